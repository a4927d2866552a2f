package usecases

import (
	"context"
	"fmt"

	"github.com/veil-vpn/veil/internal/domain/billing"
	"github.com/veil-vpn/veil/internal/domain/user"
	"github.com/veil-vpn/veil/internal/shared/config"
	"github.com/veil-vpn/veil/internal/shared/errors"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// TrialGranter provisions a free trial device for a user.
type TrialGranter interface {
	Execute(ctx context.Context, userExternalID int64, days int) error
}

// AttachReferralUseCase links a referee to their referrer and grants both
// sides their welcome trial configurations.
type AttachReferralUseCase struct {
	userRepo     user.Repository
	referralRepo billing.ReferralRepository
	trialGranter TrialGranter
	billing      config.BillingConfig
	logger       logger.Interface
}

// NewAttachReferralUseCase creates a new AttachReferralUseCase
func NewAttachReferralUseCase(
	userRepo user.Repository,
	referralRepo billing.ReferralRepository,
	trialGranter TrialGranter,
	billingCfg config.BillingConfig,
	log logger.Interface,
) *AttachReferralUseCase {
	return &AttachReferralUseCase{
		userRepo:     userRepo,
		referralRepo: referralRepo,
		trialGranter: trialGranter,
		billing:      billingCfg,
		logger:       log,
	}
}

// Execute attaches the referral. A referee can only ever be referred once;
// trial grant failures are logged but do not undo the link.
func (uc *AttachReferralUseCase) Execute(ctx context.Context, referrerExternalID, refereeExternalID int64) error {
	if referrerExternalID == refereeExternalID {
		return errors.NewValidationError("user cannot refer themselves")
	}

	referrer, err := uc.userRepo.GetByExternalID(ctx, referrerExternalID)
	if err != nil {
		return fmt.Errorf("failed to load referrer: %w", err)
	}
	if referrer == nil {
		return errors.NewNotFoundError("referrer not found")
	}

	referee, err := uc.userRepo.GetByExternalID(ctx, refereeExternalID)
	if err != nil {
		return fmt.Errorf("failed to load referee: %w", err)
	}
	if referee == nil {
		return errors.NewNotFoundError("referee not found")
	}

	existing, err := uc.referralRepo.GetByReferee(ctx, refereeExternalID)
	if err != nil {
		return fmt.Errorf("failed to check existing referral: %w", err)
	}
	if existing != nil {
		return errors.NewConflictError("user already has a referrer")
	}

	referral, err := billing.NewReferral(referrerExternalID, refereeExternalID)
	if err != nil {
		return errors.NewValidationError(err.Error())
	}
	if err := uc.referralRepo.Create(ctx, referral); err != nil {
		return errors.NewPersistenceError("failed to create referral", err.Error())
	}

	if days := uc.billing.TrialRefereeDays; days > 0 {
		if err := uc.trialGranter.Execute(ctx, refereeExternalID, days); err != nil {
			uc.logger.Errorw("failed to grant referee trial", "referee", refereeExternalID, "error", err)
		}
	}
	if days := uc.billing.TrialReferrerDays; days > 0 {
		if err := uc.trialGranter.Execute(ctx, referrerExternalID, days); err != nil {
			uc.logger.Errorw("failed to grant referrer trial", "referrer", referrerExternalID, "error", err)
		}
	}

	uc.logger.Infow("referral attached", "referrer", referrerExternalID, "referee", refereeExternalID)
	return nil
}
