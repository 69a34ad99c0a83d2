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

// auditLogRepository implements the domain's AuditLogRepository interface using GORM.
type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository is the constructor for auditLogRepository.
func NewAuditLogRepository(db *gorm.DB) repository.AuditLogRepository {
	return &auditLogRepository{db: db}
}

// RecordAuthEvent appends one authentication event row.
func (repo *auditLogRepository) RecordAuthEvent(ctx context.Context, log *entity.AuthLog) error {
	logM := fromAuthLogDomain(log)

	if err := repo.db.WithContext(ctx).Create(logM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to record auth event")
	}

	log.ID = logM.ID
	log.CreatedAt = logM.CreatedAt

	return nil
}

// RecordRBACViolation appends one rejected authorization decision.
func (repo *auditLogRepository) RecordRBACViolation(ctx context.Context, violation *entity.RBACViolation) error {
	violationM := fromRBACViolationDomain(violation)

	if err := repo.db.WithContext(ctx).Create(violationM).Error; err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to record rbac violation")
	}

	violation.ID = violationM.ID
	violation.CreatedAt = violationM.CreatedAt

	return nil
}

// FindAuthEventsInRange retrieves authentication events within a time range.
func (repo *auditLogRepository) FindAuthEventsInRange(ctx context.Context, from, to time.Time) ([]*entity.AuthLog, error) {
	var logMs []model.AuthLogModel
	if err := repo.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Order("created_at ASC").
		Find(&logMs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find auth events in range")
	}

	logs := make([]*entity.AuthLog, 0, len(logMs))
	for i := range logMs {
		logs = append(logs, toAuthLogDomain(&logMs[i]))
	}

	return logs, nil
}

// FindRBACViolationsInRange retrieves authorization violations within a time range.
func (repo *auditLogRepository) FindRBACViolationsInRange(ctx context.Context, from, to time.Time) ([]*entity.RBACViolation, error) {
	var violationMs []model.RBACViolationModel
	if err := repo.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Order("created_at ASC").
		Find(&violationMs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find rbac violations in range")
	}

	violations := make([]*entity.RBACViolation, 0, len(violationMs))
	for i := range violationMs {
		violations = append(violations, toRBACViolationDomain(&violationMs[i]))
	}

	return violations, nil
}

// --- Mapper Functions ---

func toAuthLogDomain(data *model.AuthLogModel) *entity.AuthLog {
	if data == nil {
		return nil
	}

	return &entity.AuthLog{
		ID:        data.ID,
		UserID:    data.UserID,
		Email:     data.Email,
		Success:   data.Success,
		IPAddress: data.IPAddress,
		UserAgent: data.UserAgent,
		CreatedAt: data.CreatedAt,
	}
}

func fromAuthLogDomain(data *entity.AuthLog) *model.AuthLogModel {
	if data == nil {
		return nil
	}

	return &model.AuthLogModel{
		ID:        data.ID,
		UserID:    data.UserID,
		Email:     data.Email,
		Success:   data.Success,
		IPAddress: data.IPAddress,
		UserAgent: data.UserAgent,
	}
}

func toRBACViolationDomain(data *model.RBACViolationModel) *entity.RBACViolation {
	if data == nil {
		return nil
	}

	return &entity.RBACViolation{
		ID:        data.ID,
		UserID:    data.UserID,
		Email:     data.Email,
		Role:      data.Role,
		Endpoint:  data.Endpoint,
		Method:    data.Method,
		Status:    data.Status,
		CreatedAt: data.CreatedAt,
	}
}

func fromRBACViolationDomain(data *entity.RBACViolation) *model.RBACViolationModel {
	if data == nil {
		return nil
	}

	return &model.RBACViolationModel{
		ID:        data.ID,
		UserID:    data.UserID,
		Email:     data.Email,
		Role:      data.Role,
		Endpoint:  data.Endpoint,
		Method:    data.Method,
		Status:    data.Status,
	}
}
