package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"nutriauth/internal/delivery/http/response"
	"nutriauth/internal/domain/entity"
	domainerrors "nutriauth/internal/domain/errors"
	"nutriauth/internal/domain/repository"
	"nutriauth/internal/domain/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	// ContextKeyUserID is the echo context key carrying the authenticated user ID.
	ContextKeyUserID = "userID"
	// ContextKeyUserRole is the echo context key carrying the authenticated role.
	ContextKeyUserRole = "userRole"

	// violationLogTimeout bounds the detached audit write after the response
	// has already been sent.
	violationLogTimeout = 5 * time.Second
)

// AuthMiddleware provides middleware for access token authentication and
// role-based authorization.
type AuthMiddleware struct {
	tokenSvc     service.TokenService
	auditLogRepo repository.AuditLogRepository
	logger       *slog.Logger
}

// AuthMiddlewareParams holds dependencies for AuthMiddleware, injected by Fx.
type AuthMiddlewareParams struct {
	fx.In

	TokenService service.TokenService
	AuditLogRepo repository.AuditLogRepository
	Logger       *slog.Logger
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(params AuthMiddlewareParams) *AuthMiddleware {
	return &AuthMiddleware{
		tokenSvc:     params.TokenService,
		auditLogRepo: params.AuditLogRepo,
		logger:       params.Logger,
	}
}

// Authenticate validates the bearer access token and stores the caller's
// identity on the request context. Failure responses carry machine-readable
// codes so clients can branch (auto-refresh on TOKEN_EXPIRED).
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, domainerrors.ErrTokenMissing.ErrorCode(), domainerrors.ErrTokenMissing.Message())
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || tokenString == "" {
			return response.Unauthorized(c, domainerrors.ErrTokenMissing.ErrorCode(), "Authorization header must carry a Bearer token")
		}

		claims, err := m.tokenSvc.VerifyAccessToken(tokenString)
		if err != nil {
			appErr := domainerrors.ErrTokenInvalid
			switch {
			case errors.Is(err, domainerrors.ErrTokenExpired):
				appErr = domainerrors.ErrTokenExpired
			case errors.Is(err, domainerrors.ErrInvalidTokenType):
				appErr = domainerrors.ErrInvalidTokenType
			}

			return response.Unauthorized(c, appErr.ErrorCode(), appErr.Message())
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUserRole, entity.RoleFromString(claims.Role))

		return next(c)
	}
}

// RequireRoles is a middleware factory that admits only the listed roles.
// It must be used AFTER the Authenticate middleware. Every rejection is
// recorded to the violation log in a detached goroutine: the audit write
// never delays or fails the response.
func (m *AuthMiddleware) RequireRoles(allowed ...entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(ContextKeyUserRole).(entity.Role)
			if !ok || role == "" {
				m.recordViolation(c, role, domainerrors.ErrRoleMissing.ErrorCode())

				return response.Forbidden(c, domainerrors.ErrRoleMissing.ErrorCode(), domainerrors.ErrRoleMissing.Message())
			}

			if !entity.IsAllowed(role, allowed) {
				m.recordViolation(c, role, domainerrors.ErrAccessDenied.ErrorCode())

				return response.Forbidden(c, domainerrors.ErrAccessDenied.ErrorCode(), domainerrors.ErrAccessDenied.Message())
			}

			return next(c)
		}
	}
}

// recordViolation writes the rejected decision to the violation log without
// blocking the request.
func (m *AuthMiddleware) recordViolation(c echo.Context, role entity.Role, status string) {
	violation := &entity.RBACViolation{
		Role:     role.String(),
		Endpoint: c.Request().URL.Path,
		Method:   c.Request().Method,
		Status:   status,
	}
	if userID, ok := c.Get(ContextKeyUserID).(uuid.UUID); ok {
		violation.UserID = userID.String()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), violationLogTimeout)
		defer cancel()

		if err := m.auditLogRepo.RecordRBACViolation(ctx, violation); err != nil {
			m.logger.Error("Failed to record rbac violation",
				slog.String("endpoint", violation.Endpoint),
				slog.Any("error", err))
		}
	}()
}
