package mappers

import (
	"fmt"

	"github.com/veil-vpn/veil/internal/domain/billing"
	"github.com/veil-vpn/veil/internal/infrastructure/persistence/models"
)

// TransactionMapper handles the conversion between ledger entries and persistence models
type TransactionMapper interface {
	ToEntity(model *models.TransactionModel) (*billing.Transaction, error)
	ToModel(entity *billing.Transaction) (*models.TransactionModel, error)
	ToEntities(models []*models.TransactionModel) ([]*billing.Transaction, error)
}

type transactionMapper struct{}

// NewTransactionMapper creates a new transaction mapper
func NewTransactionMapper() TransactionMapper {
	return &transactionMapper{}
}

func (m *transactionMapper) ToEntity(model *models.TransactionModel) (*billing.Transaction, error) {
	if model == nil {
		return nil, nil
	}

	entity, err := billing.ReconstructTransaction(
		model.ID,
		model.UserExternalID,
		model.Amount,
		billing.TransactionType(model.Type),
		model.Reference,
		model.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct transaction entity: %w", err)
	}

	return entity, nil
}

func (m *transactionMapper) ToModel(entity *billing.Transaction) (*models.TransactionModel, error) {
	if entity == nil {
		return nil, nil
	}

	return &models.TransactionModel{
		ID:             entity.ID(),
		UserExternalID: entity.UserExternalID(),
		Amount:         entity.Amount(),
		Type:           entity.Type().String(),
		Reference:      entity.Reference(),
		CreatedAt:      entity.CreatedAt(),
	}, nil
}

func (m *transactionMapper) ToEntities(txModels []*models.TransactionModel) ([]*billing.Transaction, error) {
	entities := make([]*billing.Transaction, 0, len(txModels))
	for _, model := range txModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// ReferralMapper handles the conversion between referral links and persistence models
type ReferralMapper interface {
	ToEntity(model *models.ReferralModel) (*billing.Referral, error)
	ToModel(entity *billing.Referral) (*models.ReferralModel, error)
	ToEntities(models []*models.ReferralModel) ([]*billing.Referral, error)
}

type referralMapper struct{}

// NewReferralMapper creates a new referral mapper
func NewReferralMapper() ReferralMapper {
	return &referralMapper{}
}

func (m *referralMapper) ToEntity(model *models.ReferralModel) (*billing.Referral, error) {
	if model == nil {
		return nil, nil
	}

	entity, err := billing.ReconstructReferral(
		model.ID,
		model.ReferrerExternalID,
		model.RefereeExternalID,
		model.TotalEarnings,
		model.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct referral entity: %w", err)
	}

	return entity, nil
}

func (m *referralMapper) ToModel(entity *billing.Referral) (*models.ReferralModel, error) {
	if entity == nil {
		return nil, nil
	}

	return &models.ReferralModel{
		ID:                 entity.ID(),
		ReferrerExternalID: entity.ReferrerExternalID(),
		RefereeExternalID:  entity.RefereeExternalID(),
		TotalEarnings:      entity.TotalEarnings(),
		CreatedAt:          entity.CreatedAt(),
	}, nil
}

func (m *referralMapper) ToEntities(refModels []*models.ReferralModel) ([]*billing.Referral, error) {
	entities := make([]*billing.Referral, 0, len(refModels))
	for _, model := range refModels {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}
