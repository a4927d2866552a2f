// Package repository contains the GORM-backed implementations of the domain
// repository interfaces.
package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/veil-vpn/veil/internal/domain/user"
	"github.com/veil-vpn/veil/internal/infrastructure/persistence/mappers"
	"github.com/veil-vpn/veil/internal/infrastructure/persistence/models"
	"github.com/veil-vpn/veil/internal/shared/db"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// UserRepository implements the user repository interface
type UserRepository struct {
	db     *gorm.DB
	mapper mappers.UserMapper
	logger logger.Interface
}

// NewUserRepository creates a new user repository
func NewUserRepository(gdb *gorm.DB, log logger.Interface) user.Repository {
	return &UserRepository{
		db:     gdb,
		mapper: mappers.NewUserMapper(),
		logger: log,
	}
}

func (r *UserRepository) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, entity *user.User) error {
	model, err := r.mapper.ToModel(entity)
	if err != nil {
		return fmt.Errorf("failed to map user entity: %w", err)
	}

	if err := r.conn(ctx).WithContext(ctx).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create user", "external_id", entity.ExternalID(), "error", err)
		return fmt.Errorf("failed to create user: %w", err)
	}

	if err := entity.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set user ID: %w", err)
	}

	r.logger.Infow("user created", "id", model.ID, "external_id", model.ExternalID)
	return nil
}

// GetByID retrieves a user by internal ID. Returns nil when not found.
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*user.User, error) {
	var model models.UserModel
	if err := r.conn(ctx).WithContext(ctx).First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// GetByExternalID retrieves a user by their external messenger ID. Returns
// nil when not found.
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID int64) (*user.User, error) {
	var model models.UserModel
	if err := r.conn(ctx).WithContext(ctx).Where("external_id = ?", externalID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by external ID: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// Update persists profile changes. Balance columns are untouched; see
// UpdateBalance.
func (r *UserRepository) Update(ctx context.Context, entity *user.User) error {
	model, err := r.mapper.ToModel(entity)
	if err != nil {
		return fmt.Errorf("failed to map user entity: %w", err)
	}

	result := r.conn(ctx).WithContext(ctx).Model(&models.UserModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"username":           model.Username,
			"first_name":         model.FirstName,
			"last_name":          model.LastName,
			"agreement_accepted": model.AgreementAccepted,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user %d not found", model.ID)
	}
	return nil
}

// UpdateBalance atomically adds delta to the user's balance.
func (r *UserRepository) UpdateBalance(ctx context.Context, externalID int64, delta float64) error {
	result := r.conn(ctx).WithContext(ctx).Model(&models.UserModel{}).
		Where("external_id = ?", externalID).
		Update("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		r.logger.Errorw("failed to update balance", "external_id", externalID, "delta", delta, "error", result.Error)
		return fmt.Errorf("failed to update balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user %d not found", externalID)
	}
	return nil
}

// UpdateReferralBalance atomically adds delta to the referral earnings counter.
func (r *UserRepository) UpdateReferralBalance(ctx context.Context, externalID int64, delta float64) error {
	result := r.conn(ctx).WithContext(ctx).Model(&models.UserModel{}).
		Where("external_id = ?", externalID).
		Update("referral_balance", gorm.Expr("referral_balance + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("failed to update referral balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user %d not found", externalID)
	}
	return nil
}

// ListExternalIDsWithActiveDevices returns the owners of at least one active
// device.
func (r *UserRepository) ListExternalIDsWithActiveDevices(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.conn(ctx).WithContext(ctx).Model(&models.DeviceModel{}).
		Where("status = ?", "active").
		Distinct("user_external_id").
		Pluck("user_external_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list billable users: %w", err)
	}
	return ids, nil
}
