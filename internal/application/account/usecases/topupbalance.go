package usecases

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veil-vpn/veil/internal/application/notify"
	"github.com/veil-vpn/veil/internal/domain/billing"
	"github.com/veil-vpn/veil/internal/domain/user"
	"github.com/veil-vpn/veil/internal/shared/config"
	"github.com/veil-vpn/veil/internal/shared/errors"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// TransactionRunner runs fn inside one storage transaction.
type TransactionRunner interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TopUpBalanceUseCase credits a user's balance and pays the referrer's
// percentage bonus when a referral link exists.
type TopUpBalanceUseCase struct {
	userRepo     user.Repository
	txRepo       billing.TransactionRepository
	referralRepo billing.ReferralRepository
	txRunner     TransactionRunner
	notifier     notify.Notifier
	billing      config.BillingConfig
	logger       logger.Interface
}

// NewTopUpBalanceUseCase creates a new TopUpBalanceUseCase
func NewTopUpBalanceUseCase(
	userRepo user.Repository,
	txRepo billing.TransactionRepository,
	referralRepo billing.ReferralRepository,
	txRunner TransactionRunner,
	notifier notify.Notifier,
	billingCfg config.BillingConfig,
	log logger.Interface,
) *TopUpBalanceUseCase {
	return &TopUpBalanceUseCase{
		userRepo:     userRepo,
		txRepo:       txRepo,
		referralRepo: referralRepo,
		txRunner:     txRunner,
		notifier:     notifier,
		billing:      billingCfg,
		logger:       log,
	}
}

// TopUpResult reports the credited amount and the generated payment
// reference.
type TopUpResult struct {
	Amount     float64 `json:"amount"`
	Reference  string  `json:"reference"`
	NewBalance float64 `json:"new_balance"`
}

// Execute credits amount to the user. The referral bonus is credited in the
// same transaction so the ledger never shows a bonus without its top-up.
func (uc *TopUpBalanceUseCase) Execute(ctx context.Context, externalID int64, amount float64) (*TopUpResult, error) {
	if amount < uc.billing.MinTopUp || (uc.billing.MaxTopUp > 0 && amount > uc.billing.MaxTopUp) {
		return nil, errors.NewValidationError(
			fmt.Sprintf("amount must be between %.2f and %.2f", uc.billing.MinTopUp, uc.billing.MaxTopUp),
		)
	}

	usr, err := uc.userRepo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if usr == nil {
		return nil, errors.NewNotFoundError("user not found")
	}

	referral, err := uc.referralRepo.GetByReferee(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load referral: %w", err)
	}

	reference := uuid.NewString()
	bonus := 0.0
	if referral != nil && uc.billing.ReferralRate > 0 {
		bonus = amount * uc.billing.ReferralRate
	}

	err = uc.txRunner.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.userRepo.UpdateBalance(txCtx, externalID, amount); err != nil {
			return err
		}
		entry, err := billing.NewTransaction(externalID, amount, billing.TransactionTopUp, reference)
		if err != nil {
			return err
		}
		if err := uc.txRepo.Create(txCtx, entry); err != nil {
			return err
		}

		if bonus <= 0 {
			return nil
		}

		referrerID := referral.ReferrerExternalID()
		if err := uc.userRepo.UpdateBalance(txCtx, referrerID, bonus); err != nil {
			return err
		}
		if err := uc.userRepo.UpdateReferralBalance(txCtx, referrerID, bonus); err != nil {
			return err
		}
		bonusEntry, err := billing.NewTransaction(referrerID, bonus, billing.TransactionReferralBonus, reference)
		if err != nil {
			return err
		}
		if err := uc.txRepo.Create(txCtx, bonusEntry); err != nil {
			return err
		}
		if err := referral.AddEarnings(bonus); err != nil {
			return err
		}
		return uc.referralRepo.Update(txCtx, referral)
	})
	if err != nil {
		return nil, errors.NewPersistenceError("failed to credit balance", err.Error())
	}

	if bonus > 0 {
		if err := uc.notifier.ReferralBonus(ctx, referral.ReferrerExternalID(), bonus); err != nil {
			uc.logger.Warnw("failed to notify referrer", "referrer", referral.ReferrerExternalID(), "error", err)
		}
	}

	uc.logger.Infow("balance credited",
		"external_id", externalID,
		"amount", amount,
		"reference", reference,
		"referral_bonus", bonus,
	)

	return &TopUpResult{
		Amount:     amount,
		Reference:  reference,
		NewBalance: usr.Balance() + amount,
	}, nil
}
