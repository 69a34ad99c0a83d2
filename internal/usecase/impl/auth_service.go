// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nutriauth/config"
	deliverycontext "nutriauth/internal/delivery/context"
	"nutriauth/internal/domain/entity"
	domainerrors "nutriauth/internal/domain/errors"
	"nutriauth/internal/domain/repository"
	"nutriauth/internal/domain/service"
	"nutriauth/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// attemptWarningAt is the prior failure count at which the next failure
// carries a "one attempt left" warning instead of a plain rejection.
const attemptWarningAt = 4

// authService implements the AuthUsecase interface.
type authService struct {
	txManager        repository.TransactionManager
	userRepo         repository.UserRepository
	sessionRepo      repository.SessionRepository
	loginAttemptRepo repository.LoginAttemptRepository
	auditLogRepo     repository.AuditLogRepository
	hasher           service.PasswordHasher
	tokenService     service.TokenService
	mfaManager       service.MfaManager
	codeDelivery     service.CodeDelivery
	alertDelivery    service.AlertDelivery

	lockoutThreshold  int64
	lockoutWindow     time.Duration
	singleSession     bool
	maxActiveSessions int
	exposeMfaCode     bool

	logger *slog.Logger
}

// AuthServiceParams holds dependencies for authService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager        repository.TransactionManager
	UserRepo         repository.UserRepository
	SessionRepo      repository.SessionRepository
	LoginAttemptRepo repository.LoginAttemptRepository
	AuditLogRepo     repository.AuditLogRepository
	Hasher           service.PasswordHasher
	TokenService     service.TokenService
	MfaManager       service.MfaManager
	CodeDelivery     service.CodeDelivery
	AlertDelivery    service.AlertDelivery
	Config           *config.Config
	Logger           *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	cfg := params.Config

	return &authService{
		txManager:         params.TxManager,
		userRepo:          params.UserRepo,
		sessionRepo:       params.SessionRepo,
		loginAttemptRepo:  params.LoginAttemptRepo,
		auditLogRepo:      params.AuditLogRepo,
		hasher:            params.Hasher,
		tokenService:      params.TokenService,
		mfaManager:        params.MfaManager,
		codeDelivery:      params.CodeDelivery,
		alertDelivery:     params.AlertDelivery,
		lockoutThreshold:  int64(cfg.Auth.LockoutThreshold),
		lockoutWindow:     cfg.Auth.LockoutWindow,
		singleSession:     cfg.Auth.SingleSession,
		maxActiveSessions: cfg.Auth.MaxActiveSessions,
		exposeMfaCode:     cfg.MFA.ExposeCode && !cfg.IsProduction(),
		logger:            params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// normalizeEmail lower-cases and trims a login identifier. All persistence
// and counting happen on the normalized form.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register orchestrates new account creation.
func (srv *authService) Register(ctx context.Context, input usecase.RegisterInput) (*usecase.RegisterOutput, error) {
	email := normalizeEmail(input.Email)
	srv.log(ctx).Info("Starting registration", slog.String("email", email))

	hashedPassword, err := srv.hasher.Hash(input.Password)
	if err != nil {
		srv.log(ctx).Error("Failed to hash password during registration", slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrPasswordHashFailed, "failed to hash password during registration")
	}

	newUser := &entity.User{
		Email:        email,
		Name:         input.Name,
		PasswordHash: hashedPassword,
		Role:         entity.RoleUser,
		Status:       entity.AccountActive,
	}

	if err := srv.userRepo.Create(ctx, newUser); err != nil {
		srv.log(ctx).Warn("Registration failed", slog.String("email", email), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to create user during registration")
	}

	srv.log(ctx).Debug("Registration completed", slog.Any("userID", newUser.ID))

	return &usecase.RegisterOutput{User: newUser.Public()}, nil
}

// Login orchestrates the password login flow: lockout check, credential
// verification, attempt bookkeeping, and either an MFA challenge or a token
// pair. The failure-count check happens before the password comparison so a
// locked-out identifier costs no hashing work.
func (srv *authService) Login(ctx context.Context, input usecase.LoginInput) (*usecase.LoginOutput, error) {
	email := normalizeEmail(input.Email)
	srv.log(ctx).Debug("Starting login", slog.String("email", email))

	failureCount, err := srv.loginAttemptRepo.CountRecentFailures(ctx, email, time.Now().Add(-srv.lockoutWindow))
	if err != nil {
		return nil, errors.Wrap(err, "failed to count recent login failures")
	}
	if failureCount >= srv.lockoutThreshold {
		srv.log(ctx).Warn("Login rejected by lockout", slog.String("email", email), slog.Int64("failureCount", failureCount))
		srv.recordAuthEvent(ctx, nil, email, false, input.Device)

		return nil, errors.Wrap(domainerrors.ErrTooManyAttempts, "login locked out")
	}

	user, err := srv.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			srv.recordFailure(ctx, email, input.Device)
			srv.notifyFailedLogin(ctx, email, input.Device.IPAddress)

			return nil, errors.Wrap(domainerrors.ErrInvalidEmail, "login failed")
		}

		return nil, errors.Wrap(err, "failed to find user by email")
	}

	if !user.IsActive() {
		srv.log(ctx).Warn("Login rejected for inactive account", slog.Any("userID", user.ID))

		return nil, errors.Wrap(domainerrors.ErrAccountInactive, "login failed")
	}

	// Password comparison is CPU-bound and happens outside any transaction.
	if !srv.hasher.Check(input.Password, user.PasswordHash) {
		srv.recordFailure(ctx, email, input.Device)
		srv.notifyFailedLogin(ctx, email, input.Device.IPAddress)

		if failureCount == attemptWarningAt {
			srv.log(ctx).Warn("Login failure approaching lockout", slog.String("email", email))

			return nil, errors.Wrap(domainerrors.ErrAttemptWarning, "login failed")
		}
		srv.log(ctx).Warn("Login failed", slog.String("email", email), slog.Any("error", domainerrors.ErrInvalidPassword))

		return nil, errors.Wrap(domainerrors.ErrInvalidPassword, "login failed")
	}

	// Window reset: purge failure rows and append one success row atomically.
	if err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		attemptRepo := repoFactory.NewLoginAttemptRepository()

		if err := attemptRepo.PurgeFailures(ctx, email); err != nil {
			return errors.Wrap(err, "failed to purge login failures")
		}

		return attemptRepo.Record(ctx, &entity.LoginAttempt{
			Email:     email,
			IPAddress: input.Device.IPAddress,
			Success:   true,
		})
	}); err != nil {
		return nil, errors.Wrap(err, "failed to execute login attempt transaction")
	}

	if user.MFAEnabled {
		return srv.startMfaChallenge(ctx, user)
	}

	srv.recordAuthEvent(ctx, user, email, true, input.Device)
	srv.touchLastLogin(ctx, user.ID)

	tokens, err := srv.issueTokenPair(ctx, user, input.Device)
	if err != nil {
		return nil, err
	}
	srv.log(ctx).Debug("User logged in", slog.Any("userID", user.ID))

	return &usecase.LoginOutput{Tokens: tokens}, nil
}

// startMfaChallenge issues a one-time code and dispatches it for delivery.
func (srv *authService) startMfaChallenge(ctx context.Context, user *entity.User) (*usecase.LoginOutput, error) {
	code, err := srv.mfaManager.Issue(ctx, user.Email)
	if err != nil {
		srv.log(ctx).Error("Failed to issue mfa challenge", slog.Any("userID", user.ID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to issue mfa challenge")
	}

	// Delivery is best-effort: the challenge stands even if the mail bounces,
	// and the client is told the same thing either way.
	if err := srv.codeDelivery.SendVerificationCode(ctx, user.Email, code); err != nil {
		srv.log(ctx).Error("Failed to deliver mfa code", slog.Any("userID", user.ID), slog.Any("error", err))
	}

	out := &usecase.LoginOutput{MfaRequired: true}
	if srv.exposeMfaCode {
		// Development convenience only. The constructor clears the gate when
		// the environment is production.
		out.DevCode = code
	}
	srv.log(ctx).Info("MFA challenge issued", slog.Any("userID", user.ID))

	return out, nil
}

// VerifyMfa completes an MFA-gated login. The password is re-validated before
// the code is checked.
func (srv *authService) VerifyMfa(ctx context.Context, input usecase.VerifyMfaInput) (*usecase.TokenPairOutput, error) {
	email := normalizeEmail(input.Email)
	srv.log(ctx).Debug("Verifying mfa challenge", slog.String("email", email))

	user, err := srv.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errors.Wrap(domainerrors.ErrInvalidEmail, "mfa verification failed")
		}

		return nil, errors.Wrap(err, "failed to find user by email")
	}

	if !user.IsActive() {
		return nil, errors.Wrap(domainerrors.ErrAccountInactive, "mfa verification failed")
	}

	if !srv.hasher.Check(input.Password, user.PasswordHash) {
		srv.recordFailure(ctx, email, input.Device)

		return nil, errors.Wrap(domainerrors.ErrInvalidPassword, "mfa verification failed")
	}

	if err := srv.mfaManager.Verify(ctx, email, input.Code); err != nil {
		srv.log(ctx).Warn("MFA verification failed", slog.Any("userID", user.ID), slog.Any("error", err))

		return nil, errors.Wrap(err, "mfa verification failed")
	}

	srv.recordAuthEvent(ctx, user, email, true, input.Device)
	srv.touchLastLogin(ctx, user.ID)

	tokens, err := srv.issueTokenPair(ctx, user, input.Device)
	if err != nil {
		return nil, err
	}
	srv.log(ctx).Debug("MFA login completed", slog.Any("userID", user.ID))

	return tokens, nil
}

// Refresh rotates a token pair: the consumed session row is deactivated and a
// brand-new pair is issued. Of two concurrent calls with the same token,
// exactly one wins.
func (srv *authService) Refresh(ctx context.Context, input usecase.RefreshInput) (*usecase.TokenPairOutput, error) {
	srv.log(ctx).Debug("Attempting token refresh")

	session, err := srv.sessionRepo.FindByLookupHash(ctx, srv.tokenService.LookupHash(input.RefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, errors.Wrap(domainerrors.ErrRefreshTokenInvalid, "refresh failed")
		}

		return nil, errors.Wrap(err, "failed to find session by lookup hash")
	}

	if !srv.tokenService.CheckRefreshToken(input.RefreshToken, session.TokenHash) {
		srv.log(ctx).Warn("Refresh token failed slow-hash verification", slog.Any("sessionID", session.ID))

		return nil, errors.Wrap(domainerrors.ErrRefreshTokenInvalid, "refresh failed")
	}

	now := time.Now()
	if !session.IsActive {
		return nil, errors.Wrap(domainerrors.ErrRefreshTokenInvalid, "refresh failed")
	}
	if !session.ExpiresAt.After(now) {
		return nil, errors.Wrap(domainerrors.ErrRefreshTokenExpired, "refresh failed")
	}

	user, err := srv.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user for refresh")
	}
	if !user.IsActive() {
		return nil, errors.Wrap(domainerrors.ErrAccountInactive, "refresh failed")
	}

	var tokens *usecase.TokenPairOutput
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		sessionRepo := repoFactory.NewSessionRepository()

		// The guarded update is the rotation race arbiter: a concurrent
		// refresh that lost sees ErrSessionAlreadyConsumed here.
		if err := sessionRepo.DeactivateIfActive(ctx, session.ID, now); err != nil {
			if errors.Is(err, repository.ErrSessionAlreadyConsumed) {
				return errors.Wrap(domainerrors.ErrRefreshTokenInvalid, "refresh token already consumed")
			}

			return errors.Wrap(err, "failed to deactivate consumed session")
		}

		var issueErr error
		tokens, issueErr = srv.issueTokenPairWithRepo(ctx, sessionRepo, user, input.Device)

		return issueErr
	})
	if err != nil {
		srv.log(ctx).Warn("Refresh failed", slog.Any("sessionID", session.ID), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Debug("Token pair rotated", slog.Any("userID", user.ID))

	return tokens, nil
}

// Logout deactivates the single session matching the refresh token. A token
// that matches no session is treated as already logged out.
func (srv *authService) Logout(ctx context.Context, input usecase.LogoutInput) error {
	srv.log(ctx).Debug("Attempting logout")

	session, err := srv.sessionRepo.FindByLookupHash(ctx, srv.tokenService.LookupHash(input.RefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			srv.log(ctx).Debug("Logout for unknown refresh token")

			return nil
		}

		return errors.Wrap(err, "failed to find session for logout")
	}

	if err := srv.sessionRepo.DeactivateIfActive(ctx, session.ID, time.Now()); err != nil {
		if errors.Is(err, repository.ErrSessionAlreadyConsumed) {
			return nil
		}

		return errors.Wrap(err, "failed to deactivate session on logout")
	}
	srv.log(ctx).Info("Session logged out", slog.Any("sessionID", session.ID))

	return nil
}

// LogoutAll deactivates every active session belonging to the user.
func (srv *authService) LogoutAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	srv.log(ctx).Info("Logging out all sessions", slog.Any("userID", userID))

	revoked, err := srv.sessionRepo.DeactivateByUserID(ctx, userID, time.Now())
	if err != nil {
		return 0, errors.Wrap(err, "failed to deactivate all sessions")
	}
	srv.log(ctx).Info("All sessions logged out", slog.Any("userID", userID), slog.Int64("revoked", revoked))

	return revoked, nil
}

// Profile returns the public projection of the authenticated user.
func (srv *authService) Profile(ctx context.Context, userID uuid.UUID) (*entity.PublicUser, error) {
	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errors.Wrap(domainerrors.ErrUserNotFound, "profile lookup failed")
		}

		return nil, errors.Wrap(err, "failed to find user for profile")
	}

	return user.Public(), nil
}

// CleanupExpiredSessions removes sessions past their expiry. Correctness does
// not depend on this; expired sessions already fail timestamp checks.
func (srv *authService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	removed, err := srv.sessionRepo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete expired sessions")
	}
	if removed > 0 {
		srv.log(ctx).Info("Expired sessions removed", slog.Int64("removed", removed))
	}

	return removed, nil
}

// issueTokenPair issues a pair using the service's direct session repository.
func (srv *authService) issueTokenPair(ctx context.Context, user *entity.User, device usecase.DeviceInfo) (*usecase.TokenPairOutput, error) {
	return srv.issueTokenPairWithRepo(ctx, srv.sessionRepo, user, device)
}

// issueTokenPairWithRepo mints an access token and an opaque refresh token,
// persisting only the refresh token's hashes.
func (srv *authService) issueTokenPairWithRepo(ctx context.Context, sessionRepo repository.SessionRepository, user *entity.User, device usecase.DeviceInfo) (*usecase.TokenPairOutput, error) {
	now := time.Now()

	if srv.singleSession {
		if _, err := sessionRepo.DeactivateByUserID(ctx, user.ID, now); err != nil {
			return nil, errors.Wrap(err, "failed to deactivate prior sessions")
		}
	} else if srv.maxActiveSessions > 0 {
		active, err := sessionRepo.CountActiveByUserID(ctx, user.ID, now)
		if err != nil {
			return nil, errors.Wrap(err, "failed to count active sessions")
		}
		if active >= int64(srv.maxActiveSessions) {
			return nil, errors.Wrap(domainerrors.ErrSessionLimitExceeded, "active session limit exceeded")
		}
	}

	accessToken, err := srv.tokenService.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate access token")
	}

	refreshToken, err := srv.tokenService.NewRefreshToken()
	if err != nil {
		return nil, errors.Wrap(err, "failed to mint refresh token")
	}

	tokenHash, err := srv.tokenService.HashRefreshToken(refreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash refresh token")
	}

	newSession := &entity.Session{
		UserID:     user.ID,
		TokenHash:  tokenHash,
		LookupHash: srv.tokenService.LookupHash(refreshToken),
		DeviceInfo: device.Device,
		IPAddress:  device.IPAddress,
		UserAgent:  device.UserAgent,
		ExpiresAt:  now.Add(srv.tokenService.GetRefreshTokenDuration()),
		IsActive:   true,
	}
	if err := sessionRepo.Create(ctx, newSession); err != nil {
		return nil, errors.Wrap(err, "failed to store session")
	}

	return &usecase.TokenPairOutput{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(srv.tokenService.GetAccessTokenDuration().Seconds()),
		User:         user.Public(),
	}, nil
}

// recordFailure appends a brute-force failure row. Bookkeeping failures are
// logged, never surfaced: they must not mask the authentication outcome.
func (srv *authService) recordFailure(ctx context.Context, email string, device usecase.DeviceInfo) {
	if err := srv.loginAttemptRepo.Record(ctx, &entity.LoginAttempt{
		Email:     email,
		IPAddress: device.IPAddress,
		Success:   false,
	}); err != nil {
		srv.log(ctx).Error("Failed to record login failure", slog.String("email", email), slog.Any("error", err))
	}

	srv.recordAuthEvent(ctx, nil, email, false, device)
}

// recordAuthEvent appends an authentication audit row, best-effort.
func (srv *authService) recordAuthEvent(ctx context.Context, user *entity.User, email string, success bool, device usecase.DeviceInfo) {
	log := &entity.AuthLog{
		Email:     email,
		Success:   success,
		IPAddress: device.IPAddress,
		UserAgent: device.UserAgent,
	}
	if user != nil {
		userID := user.ID
		log.UserID = &userID
	}

	if err := srv.auditLogRepo.RecordAuthEvent(ctx, log); err != nil {
		srv.log(ctx).Error("Failed to record auth event", slog.String("email", email), slog.Any("error", err))
	}
}

// notifyFailedLogin sends a security notice to the address that was targeted,
// best-effort. The notice goes out whether or not the address maps to an
// account; the alert must not become an account oracle.
func (srv *authService) notifyFailedLogin(ctx context.Context, email, ip string) {
	body := fmt.Sprintf("Someone tried to log in using your email address from IP %s. "+
		"If this wasn't you, consider changing your password.", ip)
	if err := srv.alertDelivery.SendSecurityAlert(ctx, email, "Failed login attempt", body); err != nil {
		srv.log(ctx).Error("Failed to send failed-login alert", slog.String("email", email), slog.Any("error", err))
	}
}

// touchLastLogin stamps the successful login time, best-effort.
func (srv *authService) touchLastLogin(ctx context.Context, userID uuid.UUID) {
	if err := srv.userRepo.TouchLastLogin(ctx, userID, time.Now()); err != nil {
		srv.log(ctx).Error("Failed to record last login time", slog.Any("userID", userID), slog.Any("error", err))
	}
}
