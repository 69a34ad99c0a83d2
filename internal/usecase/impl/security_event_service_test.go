package impl

import (
	"context"
	"encoding/csv"
	"sort"
	"strings"
	"testing"
	"time"

	"nutriauth/internal/domain/entity"
	domainerrors "nutriauth/internal/domain/errors"
	"nutriauth/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type securityTestEnv struct {
	attemptRepo *fakeAttemptRepo
	auditRepo   *fakeAuditRepo
	sessionRepo *fakeSessionRepo
	service     usecase.SecurityUsecase
}

func newSecurityTestEnv() *securityTestEnv {
	env := &securityTestEnv{
		attemptRepo: newFakeAttemptRepo(),
		auditRepo:   newFakeAuditRepo(),
		sessionRepo: newFakeSessionRepo(),
	}

	env.service = NewSecurityEventService(SecurityEventServiceParams{
		LoginAttemptRepo: env.attemptRepo,
		AuditLogRepo:     env.auditRepo,
		SessionRepo:      env.sessionRepo,
		Logger:           newDiscardLogger(),
	})

	return env
}

// baseTime sits at a bucket boundary so offsets below stay inside one
// 10-minute correlation bucket.
var baseTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func rangeInput() usecase.ExportEventsInput {
	return usecase.ExportEventsInput{
		From: baseTime.Add(-time.Hour),
		To:   baseTime.Add(time.Hour),
	}
}

func TestSecurityEventService_ExportEvents_InvalidRange(t *testing.T) {
	env := newSecurityTestEnv()

	_, err := env.service.ExportEvents(context.Background(), usecase.ExportEventsInput{
		From: baseTime,
		To:   baseTime.Add(-time.Hour),
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidTimeRange)

	_, err = env.service.ExportEvents(context.Background(), usecase.ExportEventsInput{
		From: baseTime,
		To:   baseTime,
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidTimeRange)
}

func TestSecurityEventService_ExportEvents_EmptyRange(t *testing.T) {
	env := newSecurityTestEnv()

	report, err := env.service.ExportEvents(context.Background(), rangeInput())
	require.NoError(t, err)
	assert.Empty(t, report.Events)
	assert.Empty(t, report.Incidents)
	assert.Equal(t, 0, report.Summary.Total)
}

func TestSecurityEventService_ExportEvents_NormalizesAllSources(t *testing.T) {
	env := newSecurityTestEnv()
	userID := uuid.New()
	revokedAt := baseTime.Add(4 * time.Minute)

	env.attemptRepo.attempts = append(env.attemptRepo.attempts, &entity.LoginAttempt{
		ID:        1,
		Email:     "mallory@example.com",
		IPAddress: "198.51.100.9",
		Success:   false,
		CreatedAt: baseTime.Add(time.Minute),
	})
	env.auditRepo.authLogs = append(env.auditRepo.authLogs, &entity.AuthLog{
		ID:        2,
		UserID:    &userID,
		Email:     "alice@example.com",
		Success:   true,
		IPAddress: "203.0.113.7",
		CreatedAt: baseTime.Add(2 * time.Minute),
	})
	env.sessionRepo.sessions[uuid.New()] = &entity.Session{
		ID:        uuid.New(),
		UserID:    userID,
		IPAddress: "203.0.113.7",
		CreatedAt: baseTime.Add(3 * time.Minute),
		RevokedAt: &revokedAt,
	}
	env.auditRepo.violations = append(env.auditRepo.violations, &entity.RBACViolation{
		ID:        3,
		UserID:    userID.String(),
		Role:      "user",
		Endpoint:  "/security/events/export",
		Method:    "GET",
		Status:    "ACCESS_DENIED",
		CreatedAt: baseTime.Add(5 * time.Minute),
	})

	report, err := env.service.ExportEvents(context.Background(), rangeInput())
	require.NoError(t, err)
	require.Len(t, report.Events, 5)

	byType := make(map[string]entity.SecurityEvent)
	for _, event := range report.Events {
		byType[event.Type] = event
	}

	assert.Equal(t, entity.SeverityHigh, byType[entity.EventBruteForce].Severity)
	assert.Equal(t, "brute_force_logs", byType[entity.EventBruteForce].Source)
	assert.Equal(t, entity.SeverityLow, byType[entity.EventLoginSuccess].Severity)
	assert.Equal(t, userID.String(), byType[entity.EventLoginSuccess].Actor.UserID)
	assert.Equal(t, entity.SeverityLow, byType[entity.EventSessionCreated].Severity)
	assert.Equal(t, entity.SeverityMedium, byType[entity.EventSessionRevoked].Severity)
	assert.Equal(t, entity.SeverityMedium, byType[entity.EventAccessDenied].Severity)
	assert.Contains(t, byType[entity.EventAccessDenied].Description, "/security/events/export")

	// Events come out in chronological order.
	timestamps := make([]string, 0, len(report.Events))
	for _, event := range report.Events {
		timestamps = append(timestamps, event.Timestamp)
	}
	assert.True(t, sort.StringsAreSorted(timestamps))

	assert.Equal(t, 5, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.BySeverity[string(entity.SeverityHigh)])
	assert.Equal(t, 1, report.Summary.ByType[entity.EventLoginSuccess])
}

func TestSecurityEventService_CorrelatesRepeatedFailures(t *testing.T) {
	env := newSecurityTestEnv()

	for i := 0; i < 3; i++ {
		env.attemptRepo.attempts = append(env.attemptRepo.attempts, &entity.LoginAttempt{
			ID:        int64(i + 1),
			Email:     "mallory@example.com",
			IPAddress: "198.51.100.9",
			Success:   false,
			CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
		})
	}

	report, err := env.service.ExportEvents(context.Background(), rangeInput())
	require.NoError(t, err)
	require.Len(t, report.Incidents, 1)

	incident := report.Incidents[0]
	assert.True(t, strings.HasPrefix(incident.ID, "corr_"))
	assert.Equal(t, entity.SeverityHigh, incident.Severity)
	assert.Equal(t, 3, incident.EventCount)
	assert.Equal(t, []string{entity.EventBruteForce}, incident.EventTypes)
	assert.InDelta(t, 0.8, incident.Confidence, 1e-9)
	assert.Equal(t, "mallory@example.com", incident.Actor.Email)
	assert.Equal(t, []string{"mallory@example.com"}, incident.Actors)
	assert.Equal(t, []string{"brute_force_logs"}, incident.Sources)
	assert.LessOrEqual(t, incident.FirstSeen, incident.LastSeen)

	// Every member event is stamped with the incident's correlation ID.
	for _, event := range report.Events {
		assert.Equal(t, incident.ID, event.CorrelationID)
	}
	assert.Equal(t, 1, report.Summary.Incidents)
}

func TestSecurityEventService_IncidentSpansSources(t *testing.T) {
	env := newSecurityTestEnv()
	userID := uuid.New()

	// A brute-force row (email only) and an auth-log failure (email + userID)
	// for the same actor and IP inside one bucket.
	env.attemptRepo.attempts = append(env.attemptRepo.attempts, &entity.LoginAttempt{
		ID:        1,
		Email:     "mallory@example.com",
		IPAddress: "198.51.100.9",
		Success:   false,
		CreatedAt: baseTime.Add(time.Minute),
	})
	env.auditRepo.authLogs = append(env.auditRepo.authLogs, &entity.AuthLog{
		ID:        2,
		UserID:    &userID,
		Email:     "mallory@example.com",
		Success:   false,
		IPAddress: "198.51.100.9",
		CreatedAt: baseTime.Add(2 * time.Minute),
	})

	report, err := env.service.ExportEvents(context.Background(), rangeInput())
	require.NoError(t, err)
	require.Len(t, report.Incidents, 1)

	incident := report.Incidents[0]
	assert.Equal(t, 2, incident.EventCount)
	assert.ElementsMatch(t, []string{"brute_force_logs", "auth_logs"}, incident.Sources)
	assert.ElementsMatch(t, []string{"mallory@example.com", "user:" + userID.String()}, incident.Actors)

	require.Len(t, incident.Events, 2)
	for _, member := range incident.Events {
		assert.Equal(t, incident.ID, member.CorrelationID)
	}
}

func TestSecurityEventService_SingleEventFormsNoIncident(t *testing.T) {
	env := newSecurityTestEnv()
	env.attemptRepo.attempts = append(env.attemptRepo.attempts, &entity.LoginAttempt{
		ID:        1,
		Email:     "mallory@example.com",
		IPAddress: "198.51.100.9",
		Success:   false,
		CreatedAt: baseTime,
	})

	report, err := env.service.ExportEvents(context.Background(), rangeInput())
	require.NoError(t, err)
	assert.Empty(t, report.Incidents)
	assert.Empty(t, report.Events[0].CorrelationID)
}

func TestSecurityEventService_SeparateActorsStayUncorrelated(t *testing.T) {
	env := newSecurityTestEnv()
	for i, email := range []string{"mallory@example.com", "trudy@example.com"} {
		env.attemptRepo.attempts = append(env.attemptRepo.attempts, &entity.LoginAttempt{
			ID:        int64(i + 1),
			Email:     email,
			IPAddress: "198.51.100.9",
			Success:   false,
			CreatedAt: baseTime,
		})
	}

	report, err := env.service.ExportEvents(context.Background(), rangeInput())
	require.NoError(t, err)
	assert.Empty(t, report.Incidents)
}

func TestSecurityEventService_SeverityEscalatesOnly(t *testing.T) {
	env := newSecurityTestEnv()

	// A LOW success followed by a HIGH brute-force signal in the same bucket.
	env.attemptRepo.attempts = append(env.attemptRepo.attempts,
		&entity.LoginAttempt{
			ID:        1,
			Email:     "mallory@example.com",
			IPAddress: "198.51.100.9",
			Success:   true,
			CreatedAt: baseTime.Add(time.Minute),
		},
		&entity.LoginAttempt{
			ID:        2,
			Email:     "mallory@example.com",
			IPAddress: "198.51.100.9",
			Success:   false,
			CreatedAt: baseTime.Add(2 * time.Minute),
		},
	)

	report, err := env.service.ExportEvents(context.Background(), rangeInput())
	require.NoError(t, err)
	require.Len(t, report.Incidents, 1)
	assert.Equal(t, entity.SeverityHigh, report.Incidents[0].Severity)
	assert.ElementsMatch(t, []string{entity.EventLoginSuccess, entity.EventBruteForce}, report.Incidents[0].EventTypes)
}

func TestSecurityEventService_ConfidenceCaps(t *testing.T) {
	env := newSecurityTestEnv()
	for i := 0; i < 6; i++ {
		env.attemptRepo.attempts = append(env.attemptRepo.attempts, &entity.LoginAttempt{
			ID:        int64(i + 1),
			Email:     "mallory@example.com",
			IPAddress: "198.51.100.9",
			Success:   false,
			CreatedAt: baseTime.Add(time.Duration(i) * time.Second),
		})
	}

	report, err := env.service.ExportEvents(context.Background(), rangeInput())
	require.NoError(t, err)
	require.Len(t, report.Incidents, 1)
	assert.InDelta(t, 0.95, report.Incidents[0].Confidence, 1e-9)
}

func TestSecurityEventService_ExportEventsCSV(t *testing.T) {
	env := newSecurityTestEnv()
	env.attemptRepo.attempts = append(env.attemptRepo.attempts, &entity.LoginAttempt{
		ID:        1,
		Email:     "mallory@example.com",
		IPAddress: "198.51.100.9",
		Success:   false,
		CreatedAt: baseTime,
	})
	env.auditRepo.authLogs = append(env.auditRepo.authLogs, &entity.AuthLog{
		ID:        2,
		Email:     "quoted, \"tricky\" value",
		Success:   false,
		IPAddress: "203.0.113.7",
		CreatedAt: baseTime.Add(time.Minute),
	})

	export, err := env.service.ExportEventsCSV(context.Background(), rangeInput())
	require.NoError(t, err)
	assert.Equal(t, "securityevent_2026-05-01_2026-05-01.csv", export.Filename)

	records, err := csv.NewReader(strings.NewReader(string(export.Data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "bfl-1", records[1][0])
	assert.Equal(t, entity.EventBruteForce, records[1][1])
	// RFC 4180 quoting survives a round trip.
	assert.Equal(t, "quoted, \"tricky\" value", records[2][5])
}

func TestSecurityEventService_CSVInvalidRange(t *testing.T) {
	env := newSecurityTestEnv()

	_, err := env.service.ExportEventsCSV(context.Background(), usecase.ExportEventsInput{
		From: baseTime,
		To:   baseTime.Add(-time.Minute),
	})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidTimeRange)
}
