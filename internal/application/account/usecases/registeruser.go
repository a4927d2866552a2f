package usecases

import (
	"context"
	"fmt"

	"github.com/veil-vpn/veil/internal/domain/billing"
	"github.com/veil-vpn/veil/internal/domain/user"
	"github.com/veil-vpn/veil/internal/shared/config"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// RegisterUserUseCase creates a user on first contact or refreshes the
// profile on repeat contact. New users receive the configured welcome
// credit, recorded in the ledger.
type RegisterUserUseCase struct {
	userRepo user.Repository
	txRepo   billing.TransactionRepository
	billing  config.BillingConfig
	logger   logger.Interface
}

// NewRegisterUserUseCase creates a new RegisterUserUseCase
func NewRegisterUserUseCase(
	userRepo user.Repository,
	txRepo billing.TransactionRepository,
	billingCfg config.BillingConfig,
	log logger.Interface,
) *RegisterUserUseCase {
	return &RegisterUserUseCase{
		userRepo: userRepo,
		txRepo:   txRepo,
		billing:  billingCfg,
		logger:   log,
	}
}

// Execute registers or refreshes the user and returns the current entity.
func (uc *RegisterUserUseCase) Execute(ctx context.Context, externalID int64, username, firstName, lastName string) (*user.User, error) {
	existing, err := uc.userRepo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if existing != nil {
		existing.UpdateProfile(username, firstName, lastName)
		if err := uc.userRepo.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to refresh profile: %w", err)
		}
		return existing, nil
	}

	usr, err := user.NewUser(externalID, username, firstName, lastName, uc.billing.InitialBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to build user: %w", err)
	}
	if err := uc.userRepo.Create(ctx, usr); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if uc.billing.InitialBalance > 0 {
		entry, err := billing.NewTransaction(externalID, uc.billing.InitialBalance, billing.TransactionTopUp, "welcome_credit")
		if err == nil {
			err = uc.txRepo.Create(ctx, entry)
		}
		if err != nil {
			uc.logger.Errorw("failed to record welcome credit", "external_id", externalID, "error", err)
		}
	}

	uc.logger.Infow("user registered", "external_id", externalID, "initial_balance", uc.billing.InitialBalance)
	return usr, nil
}
