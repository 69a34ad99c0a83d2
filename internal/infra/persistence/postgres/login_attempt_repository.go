package postgres

import (
	"context"
	"time"

	"nutriauth/internal/domain/entity"
	domainerrors "nutriauth/internal/domain/errors"
	"nutriauth/internal/domain/repository"
	"nutriauth/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// loginAttemptRepository implements the domain's LoginAttemptRepository interface using GORM.
type loginAttemptRepository struct {
	db *gorm.DB
}

// NewLoginAttemptRepository is the constructor for loginAttemptRepository.
func NewLoginAttemptRepository(db *gorm.DB) repository.LoginAttemptRepository {
	return &loginAttemptRepository{db: db}
}

// Record appends one attempt row. Rows are never updated.
func (repo *loginAttemptRepository) Record(ctx context.Context, attempt *entity.LoginAttempt) error {
	attemptM := fromLoginAttemptDomain(attempt)

	if err := repo.db.WithContext(ctx).Create(attemptM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to record login attempt")
	}

	attempt.ID = attemptM.ID
	attempt.CreatedAt = attemptM.CreatedAt

	return nil
}

// CountRecentFailures counts failed attempts for an email since the given time.
func (repo *loginAttemptRepository) CountRecentFailures(ctx context.Context, email string, since time.Time) (int64, error) {
	var count int64
	if err := repo.db.WithContext(ctx).
		Model(&model.LoginAttemptModel{}).
		Where("email = ? AND success = ? AND created_at >= ?", email, false, since).
		Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "failed to count recent login failures")
	}

	return count, nil
}

// PurgeFailures deletes all failure rows for an email, resetting the lockout
// counter after a successful login.
func (repo *loginAttemptRepository) PurgeFailures(ctx context.Context, email string) error {
	if err := repo.db.WithContext(ctx).
		Where("email = ? AND success = ?", email, false).
		Delete(&model.LoginAttemptModel{}).Error; err != nil {
		return errors.Wrap(err, "failed to purge login failures")
	}

	return nil
}

// FindInRange retrieves attempts within a time range.
func (repo *loginAttemptRepository) FindInRange(ctx context.Context, from, to time.Time) ([]*entity.LoginAttempt, error) {
	var attemptMs []model.LoginAttemptModel
	if err := repo.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Order("created_at ASC").
		Find(&attemptMs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find login attempts in range")
	}

	attempts := make([]*entity.LoginAttempt, 0, len(attemptMs))
	for i := range attemptMs {
		attempts = append(attempts, toLoginAttemptDomain(&attemptMs[i]))
	}

	return attempts, nil
}

// --- Mapper Functions ---

// toLoginAttemptDomain converts a GORM LoginAttemptModel to a domain LoginAttempt entity.
func toLoginAttemptDomain(data *model.LoginAttemptModel) *entity.LoginAttempt {
	if data == nil {
		return nil
	}

	return &entity.LoginAttempt{
		ID:        data.ID,
		Email:     data.Email,
		IPAddress: data.IPAddress,
		Success:   data.Success,
		CreatedAt: data.CreatedAt,
	}
}

// fromLoginAttemptDomain converts a domain LoginAttempt entity to a GORM LoginAttemptModel.
func fromLoginAttemptDomain(data *entity.LoginAttempt) *model.LoginAttemptModel {
	if data == nil {
		return nil
	}

	return &model.LoginAttemptModel{
		ID:        data.ID,
		Email:     data.Email,
		IPAddress: data.IPAddress,
		Success:   data.Success,
	}
}
