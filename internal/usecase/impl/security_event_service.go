// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"time"

	deliverycontext "nutriauth/internal/delivery/context"
	"nutriauth/internal/domain/entity"
	domainerrors "nutriauth/internal/domain/errors"
	"nutriauth/internal/domain/repository"
	"nutriauth/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

const (
	// correlationBucket is the trailing window within which events sharing an
	// actor and IP are grouped into one incident.
	correlationBucket = 10 * time.Minute

	// minIncidentEvents is the group size below which no incident is formed.
	minIncidentEvents = 2

	baseConfidence     = 0.5
	perEventConfidence = 0.1
	maxConfidence      = 0.95
)

// securityEventService implements the SecurityUsecase interface.
type securityEventService struct {
	loginAttemptRepo repository.LoginAttemptRepository
	auditLogRepo     repository.AuditLogRepository
	sessionRepo      repository.SessionRepository
	logger           *slog.Logger
}

// SecurityEventServiceParams holds dependencies for securityEventService, injected by Fx.
type SecurityEventServiceParams struct {
	fx.In

	LoginAttemptRepo repository.LoginAttemptRepository
	AuditLogRepo     repository.AuditLogRepository
	SessionRepo      repository.SessionRepository
	Logger           *slog.Logger
}

// NewSecurityEventService is the constructor for securityEventService.
func NewSecurityEventService(params SecurityEventServiceParams) usecase.SecurityUsecase {
	return &securityEventService{
		loginAttemptRepo: params.LoginAttemptRepo,
		auditLogRepo:     params.AuditLogRepo,
		sessionRepo:      params.SessionRepo,
		logger:           params.Logger,
	}
}

func (srv *securityEventService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// ExportEvents builds the full JSON report for a time range: parallel source
// reads, normalization, a stable timestamp sort, and incident correlation.
func (srv *securityEventService) ExportEvents(ctx context.Context, input usecase.ExportEventsInput) (*entity.SecurityReport, error) {
	if !input.From.Before(input.To) {
		return nil, errors.Wrap(domainerrors.ErrInvalidTimeRange, "range start must precede range end")
	}
	srv.log(ctx).Debug("Building security event report",
		slog.Time("from", input.From),
		slog.Time("to", input.To))

	events, err := srv.collectEvents(ctx, input.From, input.To)
	if err != nil {
		return nil, err
	}

	// Stable sort on the ISO timestamp keeps same-instant events in source
	// order, which makes exports reproducible.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})

	incidents := correlateIncidents(events)

	return &entity.SecurityReport{
		Range: entity.EventRange{
			From: isoTimestamp(input.From),
			To:   isoTimestamp(input.To),
		},
		Summary:   summarize(events, len(incidents)),
		Events:    events,
		Incidents: incidents,
	}, nil
}

// collectEvents reads every audit source in parallel and normalizes each row
// into the unified event model.
func (srv *securityEventService) collectEvents(ctx context.Context, from, to time.Time) ([]entity.SecurityEvent, error) {
	var (
		attempts   []*entity.LoginAttempt
		authLogs   []*entity.AuthLog
		sessions   []*entity.Session
		violations []*entity.RBACViolation
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		attempts, err = srv.loginAttemptRepo.FindInRange(groupCtx, from, to)

		return errors.Wrap(err, "failed to read brute force log")
	})
	group.Go(func() error {
		var err error
		authLogs, err = srv.auditLogRepo.FindAuthEventsInRange(groupCtx, from, to)

		return errors.Wrap(err, "failed to read auth log")
	})
	group.Go(func() error {
		var err error
		sessions, err = srv.sessionRepo.FindCreatedInRange(groupCtx, from, to)

		return errors.Wrap(err, "failed to read session log")
	})
	group.Go(func() error {
		var err error
		violations, err = srv.auditLogRepo.FindRBACViolationsInRange(groupCtx, from, to)

		return errors.Wrap(err, "failed to read rbac violation log")
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	events := make([]entity.SecurityEvent, 0, len(attempts)+len(authLogs)+2*len(sessions)+len(violations))
	for _, attempt := range attempts {
		events = append(events, normalizeLoginAttempt(attempt))
	}
	for _, log := range authLogs {
		events = append(events, normalizeAuthLog(log))
	}
	for _, session := range sessions {
		events = append(events, normalizeSessionCreated(session))
		if session.RevokedAt != nil {
			events = append(events, normalizeSessionRevoked(session))
		}
	}
	for _, violation := range violations {
		events = append(events, normalizeRBACViolation(violation))
	}

	return events, nil
}

// --- Normalizers ---
// Each source row maps to one event with a source-specific severity:
// failures are MEDIUM, brute-force signals HIGH, session creation and token
// issuance LOW, revocations and authorization rejections MEDIUM.

func normalizeLoginAttempt(attempt *entity.LoginAttempt) entity.SecurityEvent {
	eventType := entity.EventBruteForce
	severity := entity.SeverityHigh
	description := "Failed login attempt recorded by brute-force guard"
	if attempt.Success {
		eventType = entity.EventLoginSuccess
		severity = entity.SeverityLow
		description = "Successful login"
	}

	return entity.SecurityEvent{
		ID:          fmt.Sprintf("bfl-%d", attempt.ID),
		Type:        eventType,
		Severity:    severity,
		Timestamp:   isoTimestamp(attempt.CreatedAt),
		Actor:       entity.EventActor{Email: attempt.Email},
		Network:     entity.EventNetwork{IPAddress: attempt.IPAddress},
		Source:      "brute_force_logs",
		Description: description,
	}
}

func normalizeAuthLog(log *entity.AuthLog) entity.SecurityEvent {
	eventType := entity.EventLoginFailure
	severity := entity.SeverityMedium
	description := "Authentication failed"
	if log.Success {
		eventType = entity.EventLoginSuccess
		severity = entity.SeverityLow
		description = "Authentication succeeded"
	}

	actor := entity.EventActor{Email: log.Email}
	if log.UserID != nil {
		actor.UserID = log.UserID.String()
	}

	return entity.SecurityEvent{
		ID:        fmt.Sprintf("auth-%d", log.ID),
		Type:      eventType,
		Severity:  severity,
		Timestamp: isoTimestamp(log.CreatedAt),
		Actor:     actor,
		Network: entity.EventNetwork{
			IPAddress: log.IPAddress,
			UserAgent: log.UserAgent,
		},
		Source:      "auth_logs",
		Description: description,
	}
}

func normalizeSessionCreated(session *entity.Session) entity.SecurityEvent {
	return entity.SecurityEvent{
		ID:        fmt.Sprintf("sess-%s-created", session.ID),
		Type:      entity.EventSessionCreated,
		Severity:  entity.SeverityLow,
		Timestamp: isoTimestamp(session.CreatedAt),
		Actor:     entity.EventActor{UserID: session.UserID.String()},
		Network: entity.EventNetwork{
			IPAddress: session.IPAddress,
			UserAgent: session.UserAgent,
		},
		SessionID:   session.ID.String(),
		Source:      "user_sessions",
		Description: "Session created",
	}
}

func normalizeSessionRevoked(session *entity.Session) entity.SecurityEvent {
	return entity.SecurityEvent{
		ID:        fmt.Sprintf("sess-%s-revoked", session.ID),
		Type:      entity.EventSessionRevoked,
		Severity:  entity.SeverityMedium,
		Timestamp: isoTimestamp(*session.RevokedAt),
		Actor:     entity.EventActor{UserID: session.UserID.String()},
		Network: entity.EventNetwork{
			IPAddress: session.IPAddress,
			UserAgent: session.UserAgent,
		},
		SessionID:   session.ID.String(),
		Source:      "user_sessions",
		Description: "Session revoked",
	}
}

func normalizeRBACViolation(violation *entity.RBACViolation) entity.SecurityEvent {
	return entity.SecurityEvent{
		ID:        fmt.Sprintf("rbac-%d", violation.ID),
		Type:      entity.EventAccessDenied,
		Severity:  entity.SeverityMedium,
		Timestamp: isoTimestamp(violation.CreatedAt),
		Actor: entity.EventActor{
			UserID: violation.UserID,
			Email:  violation.Email,
		},
		Source:      "rbac_violation_logs",
		Description: fmt.Sprintf("Authorization rejected on %s %s (%s)", violation.Method, violation.Endpoint, violation.Status),
	}
}

// --- Correlation ---

// correlateIncidents groups events sharing an actor, IP, and time bucket into
// incidents. Incident severity only escalates over member events; confidence
// grows with the event count.
func correlateIncidents(events []entity.SecurityEvent) []entity.SecurityIncident {
	type group struct {
		key    string
		events []*entity.SecurityEvent
	}

	groups := make(map[string]*group)
	order := make([]string, 0)

	for i := range events {
		event := &events[i]
		// Email first: brute-force rows only carry an email, so keying on it
		// lets them correlate with auth-log rows for the same actor.
		actorKey := event.Actor.Email
		if actorKey == "" {
			actorKey = event.Actor.UserID
		}
		if actorKey == "" {
			continue
		}

		parsed, err := time.Parse(time.RFC3339Nano, event.Timestamp)
		if err != nil {
			continue
		}
		bucket := parsed.UTC().Truncate(correlationBucket)
		key := correlationID(actorKey, event.Network.IPAddress, bucket)

		g, ok := groups[key]
		if !ok {
			g = &group{key: key}
			groups[key] = g
			order = append(order, key)
		}
		g.events = append(g.events, event)
	}

	incidents := make([]entity.SecurityIncident, 0)
	for _, key := range order {
		g := groups[key]
		if len(g.events) < minIncidentEvents {
			continue
		}

		incident := entity.SecurityIncident{
			ID:         g.key,
			Severity:   entity.SeverityLow,
			Actor:      g.events[0].Actor,
			IPAddress:  g.events[0].Network.IPAddress,
			FirstSeen:  g.events[0].Timestamp,
			LastSeen:   g.events[len(g.events)-1].Timestamp,
			EventCount: len(g.events),
		}

		seenTypes := make(map[string]bool)
		seenActors := make(map[string]bool)
		seenSources := make(map[string]bool)
		for _, event := range g.events {
			event.CorrelationID = g.key
			incident.Severity = incident.Severity.Escalate(event.Severity)
			if !seenTypes[event.Type] {
				seenTypes[event.Type] = true
				incident.EventTypes = append(incident.EventTypes, event.Type)
			}
			if email := event.Actor.Email; email != "" && !seenActors[email] {
				seenActors[email] = true
				incident.Actors = append(incident.Actors, email)
			}
			if id := event.Actor.UserID; id != "" && !seenActors["user:"+id] {
				seenActors["user:"+id] = true
				incident.Actors = append(incident.Actors, "user:"+id)
			}
			if !seenSources[event.Source] {
				seenSources[event.Source] = true
				incident.Sources = append(incident.Sources, event.Source)
			}
			incident.Events = append(incident.Events, *event)
		}

		incident.Confidence = baseConfidence + perEventConfidence*float64(len(g.events))
		if incident.Confidence > maxConfidence {
			incident.Confidence = maxConfidence
		}

		incidents = append(incidents, incident)
	}

	return incidents
}

// correlationID derives a stable short identifier from the group key.
func correlationID(actorKey, ip string, bucket time.Time) string {
	sum := sha256.Sum256([]byte(actorKey + "|" + ip + "|" + bucket.Format(time.RFC3339)))

	return "corr_" + hex.EncodeToString(sum[:])[:12]
}

func summarize(events []entity.SecurityEvent, incidentCount int) entity.EventSummary {
	summary := entity.EventSummary{
		Total:      len(events),
		BySeverity: make(map[string]int),
		ByType:     make(map[string]int),
		Incidents:  incidentCount,
	}
	for i := range events {
		summary.BySeverity[string(events[i].Severity)]++
		summary.ByType[events[i].Type]++
	}

	return summary
}

// isoTimestamp renders timestamps in the fixed-width ISO form used throughout
// exports. Lexicographic order on this form matches chronological order.
func isoTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
