package impl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"nutriauth/config"
	"nutriauth/internal/domain/entity"
	"nutriauth/internal/domain/repository"
	"nutriauth/internal/domain/service"

	"github.com/google/uuid"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	return &config.Config{
		Auth: &config.AuthConfig{
			BcryptCost:       4,
			LockoutThreshold: 10,
			LockoutWindow:    10 * time.Minute,
		},
		MFA: &config.MFAConfig{
			CodeTTL:     5 * time.Minute,
			MaxAttempts: 5,
			ExposeCode:  true,
		},
	}
}

// --- In-memory repository fakes ---

type fakeUserRepo struct {
	users map[uuid.UUID]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*entity.User)}
}

func (r *fakeUserRepo) seed(user *entity.User) *entity.User {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.users[user.ID] = user

	return user
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return user, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	user.ID = uuid.New()
	r.users[user.ID] = user

	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *entity.User) error {
	r.users[user.ID] = user

	return nil
}

func (r *fakeUserRepo) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	if user, ok := r.users[id]; ok {
		user.LastLoginAt = &at
	}

	return nil
}

type fakeSessionRepo struct {
	sessions map[uuid.UUID]*entity.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*entity.Session)}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *entity.Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.CreatedAt = time.Now()
	r.sessions[session.ID] = session

	return nil
}

func (r *fakeSessionRepo) FindByLookupHash(_ context.Context, lookupHash string) (*entity.Session, error) {
	for _, session := range r.sessions {
		if session.LookupHash == lookupHash {
			copied := *session

			return &copied, nil
		}
	}

	return nil, repository.ErrSessionNotFound
}

func (r *fakeSessionRepo) DeactivateIfActive(_ context.Context, id uuid.UUID, revokedAt time.Time) error {
	session, ok := r.sessions[id]
	if !ok || !session.IsActive {
		return repository.ErrSessionAlreadyConsumed
	}
	session.IsActive = false
	session.RevokedAt = &revokedAt

	return nil
}

func (r *fakeSessionRepo) DeactivateByUserID(_ context.Context, userID uuid.UUID, revokedAt time.Time) (int64, error) {
	var revoked int64
	for _, session := range r.sessions {
		if session.UserID == userID && session.IsActive {
			session.IsActive = false
			session.RevokedAt = &revokedAt
			revoked++
		}
	}

	return revoked, nil
}

func (r *fakeSessionRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	var removed int64
	for id, session := range r.sessions {
		if session.ExpiresAt.Before(before) {
			delete(r.sessions, id)
			removed++
		}
	}

	return removed, nil
}

func (r *fakeSessionRepo) CountActiveByUserID(_ context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	var active int64
	for _, session := range r.sessions {
		if session.UserID == userID && session.IsActive && session.ExpiresAt.After(now) {
			active++
		}
	}

	return active, nil
}

func (r *fakeSessionRepo) FindCreatedInRange(_ context.Context, from, to time.Time) ([]*entity.Session, error) {
	var found []*entity.Session
	for _, session := range r.sessions {
		if !session.CreatedAt.Before(from) && !session.CreatedAt.After(to) {
			found = append(found, session)
		}
	}

	return found, nil
}

type fakeAttemptRepo struct {
	attempts []*entity.LoginAttempt
}

func newFakeAttemptRepo() *fakeAttemptRepo {
	return &fakeAttemptRepo{}
}

func (r *fakeAttemptRepo) seedFailures(email string, count int) {
	for i := 0; i < count; i++ {
		r.attempts = append(r.attempts, &entity.LoginAttempt{
			Email:     email,
			Success:   false,
			CreatedAt: time.Now(),
		})
	}
}

func (r *fakeAttemptRepo) failureCount(email string) int {
	var count int
	for _, attempt := range r.attempts {
		if attempt.Email == email && !attempt.Success {
			count++
		}
	}

	return count
}

func (r *fakeAttemptRepo) successCount(email string) int {
	var count int
	for _, attempt := range r.attempts {
		if attempt.Email == email && attempt.Success {
			count++
		}
	}

	return count
}

func (r *fakeAttemptRepo) Record(_ context.Context, attempt *entity.LoginAttempt) error {
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	r.attempts = append(r.attempts, attempt)

	return nil
}

func (r *fakeAttemptRepo) CountRecentFailures(_ context.Context, email string, since time.Time) (int64, error) {
	var count int64
	for _, attempt := range r.attempts {
		if attempt.Email == email && !attempt.Success && attempt.CreatedAt.After(since) {
			count++
		}
	}

	return count, nil
}

func (r *fakeAttemptRepo) PurgeFailures(_ context.Context, email string) error {
	kept := r.attempts[:0]
	for _, attempt := range r.attempts {
		if attempt.Email == email && !attempt.Success {
			continue
		}
		kept = append(kept, attempt)
	}
	r.attempts = kept

	return nil
}

func (r *fakeAttemptRepo) FindInRange(_ context.Context, from, to time.Time) ([]*entity.LoginAttempt, error) {
	var found []*entity.LoginAttempt
	for _, attempt := range r.attempts {
		if !attempt.CreatedAt.Before(from) && !attempt.CreatedAt.After(to) {
			found = append(found, attempt)
		}
	}

	return found, nil
}

type fakeAuditRepo struct {
	authLogs   []*entity.AuthLog
	violations []*entity.RBACViolation
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{}
}

func (r *fakeAuditRepo) RecordAuthEvent(_ context.Context, log *entity.AuthLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	r.authLogs = append(r.authLogs, log)

	return nil
}

func (r *fakeAuditRepo) RecordRBACViolation(_ context.Context, violation *entity.RBACViolation) error {
	if violation.CreatedAt.IsZero() {
		violation.CreatedAt = time.Now()
	}
	r.violations = append(r.violations, violation)

	return nil
}

func (r *fakeAuditRepo) FindAuthEventsInRange(_ context.Context, from, to time.Time) ([]*entity.AuthLog, error) {
	var found []*entity.AuthLog
	for _, log := range r.authLogs {
		if !log.CreatedAt.Before(from) && !log.CreatedAt.After(to) {
			found = append(found, log)
		}
	}

	return found, nil
}

func (r *fakeAuditRepo) FindRBACViolationsInRange(_ context.Context, from, to time.Time) ([]*entity.RBACViolation, error) {
	var found []*entity.RBACViolation
	for _, violation := range r.violations {
		if !violation.CreatedAt.Before(from) && !violation.CreatedAt.After(to) {
			found = append(found, violation)
		}
	}

	return found, nil
}

// fakeTxManager runs the transactional function against the same fakes the
// service uses directly, without any transactional semantics.
type fakeTxManager struct {
	factory *fakeRepoFactory
}

func (m *fakeTxManager) Execute(_ context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	return fn(m.factory)
}

type fakeRepoFactory struct {
	userRepo    *fakeUserRepo
	sessionRepo *fakeSessionRepo
	attemptRepo *fakeAttemptRepo
	auditRepo   *fakeAuditRepo
}

func (f *fakeRepoFactory) NewUserRepository() repository.UserRepository {
	return f.userRepo
}

func (f *fakeRepoFactory) NewSessionRepository() repository.SessionRepository {
	return f.sessionRepo
}

func (f *fakeRepoFactory) NewLoginAttemptRepository() repository.LoginAttemptRepository {
	return f.attemptRepo
}

func (f *fakeRepoFactory) NewAuditLogRepository() repository.AuditLogRepository {
	return f.auditRepo
}

// --- Service fakes ---

// fakeHasher treats "hashed:" + password as the stored hash and counts Check
// calls so tests can assert the lockout short-circuits before hashing.
type fakeHasher struct {
	checkCalls int
}

func (h *fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (h *fakeHasher) Check(password, hash string) bool {
	h.checkCalls++

	return hash == "hashed:"+password
}

// stubTokenService mints deterministic tokens so tests can follow a token from
// issuance through rotation.
type stubTokenService struct {
	counter int
}

func (s *stubTokenService) GenerateAccessToken(userID uuid.UUID, role entity.Role) (string, error) {
	s.counter++

	return fmt.Sprintf("access-%d-%s-%s", s.counter, userID, role), nil
}

func (s *stubTokenService) VerifyAccessToken(string) (*service.Claims, error) {
	panic("not used in usecase tests")
}

func (s *stubTokenService) NewRefreshToken() (string, error) {
	s.counter++

	return fmt.Sprintf("refresh-%d", s.counter), nil
}

func (s *stubTokenService) HashRefreshToken(token string) (string, error) {
	return "bcrypt:" + token, nil
}

func (s *stubTokenService) LookupHash(token string) string {
	return "lookup:" + token
}

func (s *stubTokenService) CheckRefreshToken(token, hash string) bool {
	return hash == "bcrypt:"+token
}

func (s *stubTokenService) GetAccessTokenDuration() time.Duration {
	return 15 * time.Minute
}

func (s *stubTokenService) GetRefreshTokenDuration() time.Duration {
	return 7 * 24 * time.Hour
}

type fakeMfaManager struct {
	issued    map[string]string
	issueErr  error
	verifyErr error
}

func newFakeMfaManager() *fakeMfaManager {
	return &fakeMfaManager{issued: make(map[string]string)}
}

func (m *fakeMfaManager) Issue(_ context.Context, subject string) (string, error) {
	if m.issueErr != nil {
		return "", m.issueErr
	}
	m.issued[subject] = "654321"

	return "654321", nil
}

func (m *fakeMfaManager) Verify(_ context.Context, subject, code string) error {
	if m.verifyErr != nil {
		return m.verifyErr
	}
	if m.issued[subject] != code {
		return fmt.Errorf("code mismatch for %s", subject)
	}
	delete(m.issued, subject)

	return nil
}

type fakeCodeDelivery struct {
	sent    []string
	sendErr error
}

func (d *fakeCodeDelivery) SendVerificationCode(_ context.Context, email, code string) error {
	if d.sendErr != nil {
		return d.sendErr
	}
	d.sent = append(d.sent, email+":"+code)

	return nil
}

type fakeAlertDelivery struct {
	alerts []string
}

func (d *fakeAlertDelivery) SendSecurityAlert(_ context.Context, email, subject, _ string) error {
	d.alerts = append(d.alerts, email+":"+subject)

	return nil
}
