package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/veil-vpn/veil/internal/domain/billing"
	"github.com/veil-vpn/veil/internal/infrastructure/persistence/mappers"
	"github.com/veil-vpn/veil/internal/infrastructure/persistence/models"
	"github.com/veil-vpn/veil/internal/shared/db"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// TransactionRepository implements the ledger repository interface
type TransactionRepository struct {
	db     *gorm.DB
	mapper mappers.TransactionMapper
	logger logger.Interface
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(gdb *gorm.DB, log logger.Interface) billing.TransactionRepository {
	return &TransactionRepository{
		db:     gdb,
		mapper: mappers.NewTransactionMapper(),
		logger: log,
	}
}

func (r *TransactionRepository) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Create appends a ledger entry.
func (r *TransactionRepository) Create(ctx context.Context, entity *billing.Transaction) error {
	model, err := r.mapper.ToModel(entity)
	if err != nil {
		return fmt.Errorf("failed to map transaction entity: %w", err)
	}

	if err := r.conn(ctx).WithContext(ctx).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create transaction",
			"user_external_id", entity.UserExternalID(),
			"type", entity.Type().String(),
			"error", err,
		)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	if err := entity.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set transaction ID: %w", err)
	}
	return nil
}

// ListByUser returns the user's most recent ledger entries.
func (r *TransactionRepository) ListByUser(ctx context.Context, userExternalID int64, limit int) ([]*billing.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	var txModels []*models.TransactionModel
	err := r.conn(ctx).WithContext(ctx).
		Where("user_external_id = ?", userExternalID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return r.mapper.ToEntities(txModels)
}

// ReferralRepository implements the referral repository interface
type ReferralRepository struct {
	db     *gorm.DB
	mapper mappers.ReferralMapper
	logger logger.Interface
}

// NewReferralRepository creates a new referral repository
func NewReferralRepository(gdb *gorm.DB, log logger.Interface) billing.ReferralRepository {
	return &ReferralRepository{
		db:     gdb,
		mapper: mappers.NewReferralMapper(),
		logger: log,
	}
}

func (r *ReferralRepository) conn(ctx context.Context) *gorm.DB {
	return db.GetTxFromContext(ctx, r.db)
}

// Create persists a referral link. The unique index on the referee enforces
// the single-referrer rule at the storage layer.
func (r *ReferralRepository) Create(ctx context.Context, entity *billing.Referral) error {
	model, err := r.mapper.ToModel(entity)
	if err != nil {
		return fmt.Errorf("failed to map referral entity: %w", err)
	}

	if err := r.conn(ctx).WithContext(ctx).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create referral",
			"referrer", entity.ReferrerExternalID(),
			"referee", entity.RefereeExternalID(),
			"error", err,
		)
		return fmt.Errorf("failed to create referral: %w", err)
	}

	if err := entity.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set referral ID: %w", err)
	}
	return nil
}

// Update persists accumulated earnings.
func (r *ReferralRepository) Update(ctx context.Context, entity *billing.Referral) error {
	model, err := r.mapper.ToModel(entity)
	if err != nil {
		return fmt.Errorf("failed to map referral entity: %w", err)
	}

	result := r.conn(ctx).WithContext(ctx).Model(&models.ReferralModel{}).
		Where("id = ?", model.ID).
		Update("total_earnings", model.TotalEarnings)
	if result.Error != nil {
		return fmt.Errorf("failed to update referral: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("referral %d not found", model.ID)
	}
	return nil
}

// GetByReferee returns the link for a referee, or nil when none exists.
func (r *ReferralRepository) GetByReferee(ctx context.Context, refereeExternalID int64) (*billing.Referral, error) {
	var model models.ReferralModel
	if err := r.conn(ctx).WithContext(ctx).Where("referee_external_id = ?", refereeExternalID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

// ListByReferrer returns every link created by a referrer.
func (r *ReferralRepository) ListByReferrer(ctx context.Context, referrerExternalID int64) ([]*billing.Referral, error) {
	var refModels []*models.ReferralModel
	err := r.conn(ctx).WithContext(ctx).
		Where("referrer_external_id = ?", referrerExternalID).
		Order("created_at DESC").
		Find(&refModels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	return r.mapper.ToEntities(refModels)
}
