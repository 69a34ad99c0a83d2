package postgres

import (
	"context"
	"time"

	"nutriauth/internal/domain/entity"
	domainerrors "nutriauth/internal/domain/errors"
	"nutriauth/internal/domain/repository"
	"nutriauth/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// sessionRepository implements the domain's SessionRepository interface using GORM.
type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository is the constructor for sessionRepository.
func NewSessionRepository(db *gorm.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// Create persists a new session, representing a user login.
func (repo *sessionRepository) Create(ctx context.Context, session *entity.Session) error {
	sessionM := fromSessionDomain(session)

	if err := repo.db.WithContext(ctx).Create(sessionM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			// Two tokens colliding on the lookup hash means the same raw token
			// was minted twice, which is effectively impossible. Surface it.
			return domainerrors.NewDatabaseExecuteError(err, "session lookup hash collision")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create session")
	}

	session.ID = sessionM.ID
	session.CreatedAt = sessionM.CreatedAt

	return nil
}

// FindByLookupHash retrieves a session by the SHA-256 lookup hash of its refresh token.
func (repo *sessionRepository) FindByLookupHash(ctx context.Context, lookupHash string) (*entity.Session, error) {
	var sessionM model.SessionModel
	if err := repo.db.WithContext(ctx).
		Where("lookup_hash = ?", lookupHash).
		First(&sessionM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}

		return nil, errors.Wrap(err, "failed to find session by lookup hash")
	}

	return toSessionDomain(&sessionM), nil
}

// DeactivateIfActive flips is_active to false only if the session is still active.
// The WHERE guard makes rotation race-safe: of two concurrent refreshes on the
// same token, exactly one update matches a row and wins.
func (repo *sessionRepository) DeactivateIfActive(ctx context.Context, id uuid.UUID, revokedAt time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{
			"is_active":  false,
			"revoked_at": revokedAt,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to deactivate session")
	}
	if result.RowsAffected == 0 {
		return repository.ErrSessionAlreadyConsumed
	}

	return nil
}

// DeactivateByUserID revokes every active session belonging to a user.
func (repo *sessionRepository) DeactivateByUserID(ctx context.Context, userID uuid.UUID, revokedAt time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Updates(map[string]any{
			"is_active":  false,
			"revoked_at": revokedAt,
		})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to deactivate sessions for user")
	}

	return result.RowsAffected, nil
}

// DeleteExpired removes sessions whose expiry has passed.
func (repo *sessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&model.SessionModel{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete expired sessions")
	}

	return result.RowsAffected, nil
}

// CountActiveByUserID returns the number of active, unexpired sessions for a user.
func (repo *sessionRepository) CountActiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	var count int64
	if err := repo.db.WithContext(ctx).
		Model(&model.SessionModel{}).
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, now).
		Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "failed to count active sessions")
	}

	return count, nil
}

// FindCreatedInRange retrieves sessions created within a time range.
func (repo *sessionRepository) FindCreatedInRange(ctx context.Context, from, to time.Time) ([]*entity.Session, error) {
	var sessionMs []model.SessionModel
	if err := repo.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Order("created_at ASC").
		Find(&sessionMs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find sessions in range")
	}

	sessions := make([]*entity.Session, 0, len(sessionMs))
	for i := range sessionMs {
		sessions = append(sessions, toSessionDomain(&sessionMs[i]))
	}

	return sessions, nil
}

// --- Mapper Functions ---

// toSessionDomain converts a GORM SessionModel to a domain Session entity.
func toSessionDomain(data *model.SessionModel) *entity.Session {
	if data == nil {
		return nil
	}

	return &entity.Session{
		ID:         data.ID,
		UserID:     data.UserID,
		TokenHash:  data.TokenHash,
		LookupHash: data.LookupHash,
		DeviceInfo: data.DeviceInfo,
		IPAddress:  data.IPAddress,
		UserAgent:  data.UserAgent,
		ExpiresAt:  data.ExpiresAt,
		IsActive:   data.IsActive,
		RevokedAt:  data.RevokedAt,
		CreatedAt:  data.CreatedAt,
	}
}

// fromSessionDomain converts a domain Session entity to a GORM SessionModel.
func fromSessionDomain(data *entity.Session) *model.SessionModel {
	if data == nil {
		return nil
	}

	return &model.SessionModel{
		ID:         data.ID,
		UserID:     data.UserID,
		TokenHash:  data.TokenHash,
		LookupHash: data.LookupHash,
		DeviceInfo: data.DeviceInfo,
		IPAddress:  data.IPAddress,
		UserAgent:  data.UserAgent,
		ExpiresAt:  data.ExpiresAt,
		IsActive:   data.IsActive,
		RevokedAt:  data.RevokedAt,
	}
}
