package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nutriauth/internal/domain/entity"
	domainerrors "nutriauth/internal/domain/errors"
	"nutriauth/internal/domain/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTokenService resolves tokens from a fixed table.
type stubTokenService struct {
	claims map[string]*service.Claims
	errs   map[string]error
}

func (s *stubTokenService) GenerateAccessToken(uuid.UUID, entity.Role) (string, error) {
	panic("not used in middleware tests")
}

func (s *stubTokenService) VerifyAccessToken(tokenString string) (*service.Claims, error) {
	if err, ok := s.errs[tokenString]; ok {
		return nil, err
	}
	if claims, ok := s.claims[tokenString]; ok {
		return claims, nil
	}

	return nil, domainerrors.ErrTokenInvalid
}

func (s *stubTokenService) NewRefreshToken() (string, error) { return "", nil }

func (s *stubTokenService) HashRefreshToken(string) (string, error) { return "", nil }

func (s *stubTokenService) LookupHash(string) string { return "" }

func (s *stubTokenService) CheckRefreshToken(string, string) bool { return false }

func (s *stubTokenService) GetAccessTokenDuration() time.Duration { return 15 * time.Minute }

func (s *stubTokenService) GetRefreshTokenDuration() time.Duration { return 7 * 24 * time.Hour }

// recordingAuditRepo captures violation writes on a channel so tests can wait
// for the detached goroutine.
type recordingAuditRepo struct {
	violations chan *entity.RBACViolation
}

func newRecordingAuditRepo() *recordingAuditRepo {
	return &recordingAuditRepo{violations: make(chan *entity.RBACViolation, 8)}
}

func (r *recordingAuditRepo) RecordAuthEvent(context.Context, *entity.AuthLog) error { return nil }

func (r *recordingAuditRepo) RecordRBACViolation(_ context.Context, violation *entity.RBACViolation) error {
	r.violations <- violation

	return nil
}

func (r *recordingAuditRepo) FindAuthEventsInRange(context.Context, time.Time, time.Time) ([]*entity.AuthLog, error) {
	return nil, nil
}

func (r *recordingAuditRepo) FindRBACViolationsInRange(context.Context, time.Time, time.Time) ([]*entity.RBACViolation, error) {
	return nil, nil
}

func (r *recordingAuditRepo) waitForViolation(t *testing.T) *entity.RBACViolation {
	t.Helper()

	select {
	case violation := <-r.violations:
		return violation
	case <-time.After(time.Second):
		t.Fatal("no rbac violation recorded")

		return nil
	}
}

func newTestMiddleware(tokens *stubTokenService, audit *recordingAuditRepo) *AuthMiddleware {
	return NewAuthMiddleware(AuthMiddlewareParams{
		TokenService: tokens,
		AuditLogRepo: audit,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func doRequest(m *AuthMiddleware, authHeader string, next echo.HandlerFunc) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = m.Authenticate(next)(c)

	return rec
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	m := newTestMiddleware(&stubTokenService{}, newRecordingAuditRepo())

	rec := doRequest(m, "", func(echo.Context) error { return nil })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOKEN_MISSING")
}

func TestAuthenticate_NotBearer(t *testing.T) {
	m := newTestMiddleware(&stubTokenService{}, newRecordingAuditRepo())

	rec := doRequest(m, "Basic dXNlcjpwYXNz", func(echo.Context) error { return nil })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOKEN_MISSING")
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	tokens := &stubTokenService{errs: map[string]error{"stale": domainerrors.ErrTokenExpired}}
	m := newTestMiddleware(tokens, newRecordingAuditRepo())

	rec := doRequest(m, "Bearer stale", func(echo.Context) error { return nil })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOKEN_EXPIRED")
}

func TestAuthenticate_WrongTokenType(t *testing.T) {
	tokens := &stubTokenService{errs: map[string]error{"refresh": domainerrors.ErrInvalidTokenType}}
	m := newTestMiddleware(tokens, newRecordingAuditRepo())

	rec := doRequest(m, "Bearer refresh", func(echo.Context) error { return nil })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_TOKEN_TYPE")
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	m := newTestMiddleware(&stubTokenService{}, newRecordingAuditRepo())

	rec := doRequest(m, "Bearer garbage", func(echo.Context) error { return nil })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "TOKEN_INVALID")
}

func TestAuthenticate_ValidTokenSetsIdentity(t *testing.T) {
	userID := uuid.New()
	tokens := &stubTokenService{claims: map[string]*service.Claims{
		"good": {UserID: userID, Role: "admin", Type: service.TokenTypeAccess},
	}}
	m := newTestMiddleware(tokens, newRecordingAuditRepo())

	var gotUserID uuid.UUID
	var gotRole entity.Role
	rec := doRequest(m, "Bearer good", func(c echo.Context) error {
		gotUserID = c.Get(ContextKeyUserID).(uuid.UUID)
		gotRole = c.Get(ContextKeyUserRole).(entity.Role)

		return c.NoContent(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, gotUserID)
	assert.Equal(t, entity.RoleAdmin, gotRole)
}

func doRoleRequest(m *AuthMiddleware, role any, userID any, allowed ...entity.Role) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin-only", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if role != nil {
		c.Set(ContextKeyUserRole, role)
	}
	if userID != nil {
		c.Set(ContextKeyUserID, userID)
	}

	handler := m.RequireRoles(allowed...)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	_ = handler(c)

	return rec
}

func TestRequireRoles_AllowsMatchingRole(t *testing.T) {
	audit := newRecordingAuditRepo()
	m := newTestMiddleware(&stubTokenService{}, audit)

	rec := doRoleRequest(m, entity.RoleAdmin, uuid.New(), entity.RoleAdmin)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, audit.violations)
}

func TestRequireRoles_MissingRole(t *testing.T) {
	audit := newRecordingAuditRepo()
	m := newTestMiddleware(&stubTokenService{}, audit)

	rec := doRoleRequest(m, nil, uuid.New(), entity.RoleAdmin)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "ROLE_MISSING")

	violation := audit.waitForViolation(t)
	assert.Equal(t, "ROLE_MISSING", violation.Status)
	assert.Equal(t, "/admin-only", violation.Endpoint)
	assert.Equal(t, http.MethodGet, violation.Method)
}

func TestRequireRoles_DeniedRole(t *testing.T) {
	audit := newRecordingAuditRepo()
	m := newTestMiddleware(&stubTokenService{}, audit)
	userID := uuid.New()

	rec := doRoleRequest(m, entity.RoleUser, userID, entity.RoleAdmin, entity.RoleNutritionist)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "ACCESS_DENIED")

	violation := audit.waitForViolation(t)
	assert.Equal(t, "ACCESS_DENIED", violation.Status)
	assert.Equal(t, "user", violation.Role)
	assert.Equal(t, userID.String(), violation.UserID)
}

func TestRequireRoles_ViolationWriteDoesNotBlockResponse(t *testing.T) {
	audit := newRecordingAuditRepo()
	// Fill the channel so the next write would block inside the goroutine.
	for i := 0; i < cap(audit.violations); i++ {
		audit.violations <- &entity.RBACViolation{}
	}
	m := newTestMiddleware(&stubTokenService{}, audit)

	done := make(chan struct{})
	go func() {
		defer close(done)
		rec := doRoleRequest(m, entity.RoleUser, uuid.New(), entity.RoleAdmin)
		require.Equal(t, http.StatusForbidden, rec.Code)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("response blocked on audit write")
	}
}
