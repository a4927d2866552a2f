package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/veil-vpn/veil/internal/domain/billing"
	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/domain/user"
	"github.com/veil-vpn/veil/internal/shared/config"
	"github.com/veil-vpn/veil/internal/shared/errors"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// AccountSummary is the user-facing account overview.
type AccountSummary struct {
	ExternalID        int64             `json:"external_id"`
	DisplayName       string            `json:"display_name"`
	Balance           float64           `json:"balance"`
	ReferralBalance   float64           `json:"referral_balance"`
	ActiveDevices     int64             `json:"active_devices"`
	DailyCost         float64           `json:"daily_cost"`
	DaysRemaining     *float64          `json:"days_remaining,omitempty"`
	AgreementAccepted bool              `json:"agreement_accepted"`
	Referrals         int               `json:"referrals"`
	RecentEntries     []LedgerEntryView `json:"recent_entries"`
}

// LedgerEntryView is one ledger row for display.
type LedgerEntryView struct {
	Amount    float64   `json:"amount"`
	Type      string    `json:"type"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountSummaryUseCase assembles the account overview.
type AccountSummaryUseCase struct {
	userRepo     user.Repository
	deviceRepo   device.Repository
	txRepo       billing.TransactionRepository
	referralRepo billing.ReferralRepository
	billing      config.BillingConfig
	logger       logger.Interface
}

// NewAccountSummaryUseCase creates a new AccountSummaryUseCase
func NewAccountSummaryUseCase(
	userRepo user.Repository,
	deviceRepo device.Repository,
	txRepo billing.TransactionRepository,
	referralRepo billing.ReferralRepository,
	billingCfg config.BillingConfig,
	log logger.Interface,
) *AccountSummaryUseCase {
	return &AccountSummaryUseCase{
		userRepo:     userRepo,
		deviceRepo:   deviceRepo,
		txRepo:       txRepo,
		referralRepo: referralRepo,
		billing:      billingCfg,
		logger:       log,
	}
}

// Execute builds the summary for one user.
func (uc *AccountSummaryUseCase) Execute(ctx context.Context, externalID int64) (*AccountSummary, error) {
	usr, err := uc.userRepo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if usr == nil {
		return nil, errors.NewNotFoundError("user not found")
	}

	activeCount, err := uc.deviceRepo.CountActiveByUserID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to count devices: %w", err)
	}

	entries, err := uc.txRepo.ListByUser(ctx, externalID, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	referrals, err := uc.referralRepo.ListByReferrer(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}

	summary := &AccountSummary{
		ExternalID:        usr.ExternalID(),
		DisplayName:       usr.DisplayName(),
		Balance:           usr.Balance(),
		ReferralBalance:   usr.ReferralBalance(),
		ActiveDevices:     activeCount,
		DailyCost:         float64(activeCount) * uc.billing.PlanPricePerDay,
		AgreementAccepted: usr.AgreementAccepted(),
		Referrals:         len(referrals),
		RecentEntries:     make([]LedgerEntryView, 0, len(entries)),
	}
	if summary.DailyCost > 0 {
		days := summary.Balance / summary.DailyCost
		summary.DaysRemaining = &days
	}
	for _, e := range entries {
		summary.RecentEntries = append(summary.RecentEntries, LedgerEntryView{
			Amount:    e.Amount(),
			Type:      e.Type().String(),
			Reference: e.Reference(),
			CreatedAt: e.CreatedAt(),
		})
	}
	return summary, nil
}
