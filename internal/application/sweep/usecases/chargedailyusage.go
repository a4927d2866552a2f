package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/veil-vpn/veil/internal/application/notify"
	"github.com/veil-vpn/veil/internal/domain/billing"
	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/domain/node"
	"github.com/veil-vpn/veil/internal/domain/user"
	"github.com/veil-vpn/veil/internal/infrastructure/cache"
	"github.com/veil-vpn/veil/internal/infrastructure/panel"
	"github.com/veil-vpn/veil/internal/shared/config"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// TransactionRunner runs fn inside one storage transaction.
type TransactionRunner interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// lowBalanceWarningDays is the days-remaining threshold under which a
// low-balance warning is sent after a successful daily charge.
const lowBalanceWarningDays = 2.0

// ChargeDailyUsageUseCase runs the daily balance sweep. For each user with
// active devices it either debits the day's cost or, when the balance no
// longer covers it, deactivates every device. Deactivation happens instead
// of the debit, never after it, so a completed pass leaves no balance
// negative.
type ChargeDailyUsageUseCase struct {
	userRepo   user.Repository
	deviceRepo device.Repository
	txRepo     billing.TransactionRepository
	panel      panel.Client
	registry   *node.Registry
	txRunner   TransactionRunner
	gate       WarningGate
	notifier   notify.Notifier
	billing    config.BillingConfig
	cooldown   time.Duration
	logger     logger.Interface
}

// NewChargeDailyUsageUseCase creates a new ChargeDailyUsageUseCase
func NewChargeDailyUsageUseCase(
	userRepo user.Repository,
	deviceRepo device.Repository,
	txRepo billing.TransactionRepository,
	panelClient panel.Client,
	registry *node.Registry,
	txRunner TransactionRunner,
	gate WarningGate,
	notifier notify.Notifier,
	billingCfg config.BillingConfig,
	cooldown time.Duration,
	log logger.Interface,
) *ChargeDailyUsageUseCase {
	if cooldown <= 0 {
		cooldown = cache.DefaultWarningCooldown
	}
	return &ChargeDailyUsageUseCase{
		userRepo:   userRepo,
		deviceRepo: deviceRepo,
		txRepo:     txRepo,
		panel:      panelClient,
		registry:   registry,
		txRunner:   txRunner,
		gate:       gate,
		notifier:   notifier,
		billing:    billingCfg,
		cooldown:   cooldown,
		logger:     log,
	}
}

// Execute returns the number of users visited. A failure for one user never
// stops the pass for the rest.
func (uc *ChargeDailyUsageUseCase) Execute(ctx context.Context) (int, error) {
	userIDs, err := uc.userRepo.ListExternalIDsWithActiveDevices(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list billable users: %w", err)
	}

	visited := 0
	for _, externalID := range userIDs {
		if err := uc.chargeUser(ctx, externalID); err != nil {
			uc.logger.Errorw("daily charge failed for user",
				"external_id", externalID,
				"error", err,
			)
			continue
		}
		visited++
	}

	uc.logger.Infow("daily balance sweep completed", "users", visited, "of", len(userIDs))
	return visited, nil
}

func (uc *ChargeDailyUsageUseCase) chargeUser(ctx context.Context, externalID int64) error {
	usr, err := uc.userRepo.GetByExternalID(ctx, externalID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if usr == nil {
		return fmt.Errorf("user %d not found", externalID)
	}

	devices, err := uc.deviceRepo.GetActiveByUserID(ctx, externalID)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	if len(devices) == 0 {
		return nil
	}

	dailyCost := float64(len(devices)) * uc.billing.PlanPricePerDay
	if usr.Balance() < dailyCost {
		return uc.deactivateAll(ctx, usr, devices, dailyCost)
	}

	err = uc.txRunner.RunInTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.userRepo.UpdateBalance(txCtx, externalID, -dailyCost); err != nil {
			return err
		}
		entry, err := billing.NewTransaction(externalID, -dailyCost, billing.TransactionDailyCharge, "")
		if err != nil {
			return err
		}
		return uc.txRepo.Create(txCtx, entry)
	})
	if err != nil {
		return fmt.Errorf("failed to debit daily charge: %w", err)
	}

	remaining := usr.Balance() - dailyCost
	daysLeft := remaining / dailyCost
	if daysLeft < lowBalanceWarningDays {
		uc.warnLowBalance(ctx, externalID, remaining, daysLeft)
	}

	uc.logger.Debugw("daily charge debited",
		"external_id", externalID,
		"daily_cost", dailyCost,
		"remaining", remaining,
	)
	return nil
}

// deactivateAll shuts down every device of an unaffordable user. The debit
// is skipped entirely; the balance is left untouched and non-negative.
func (uc *ChargeDailyUsageUseCase) deactivateAll(ctx context.Context, usr *user.User, devices []*device.Device, dailyCost float64) error {
	uc.logger.Infow("balance below daily cost, deactivating all devices",
		"external_id", usr.ExternalID(),
		"balance", usr.Balance(),
		"daily_cost", dailyCost,
		"devices", len(devices),
	)

	var lastErr error
	for _, dev := range devices {
		if err := uc.panel.DeleteAccount(ctx, dev.AccountName()); err != nil {
			uc.logger.Errorw("remote delete failed, deactivating locally anyway",
				"device_id", dev.ID(),
				"account_name", dev.AccountName(),
				"error", err,
			)
		}

		dev.Deactivate()
		if err := uc.deviceRepo.Update(ctx, dev); err != nil {
			uc.logger.Errorw("failed to deactivate device",
				"device_id", dev.ID(),
				"error", err,
			)
			lastErr = err
			continue
		}

		if host := panel.ParseLink(dev.ConfigSnapshot()).Host; host != "" {
			uc.registry.DecrementLoad(host)
		}
	}
	if lastErr != nil {
		return fmt.Errorf("failed to deactivate all devices: %w", lastErr)
	}

	if err := uc.notifier.DevicesDeactivated(ctx, usr.ExternalID(), usr.Balance()); err != nil {
		uc.logger.Warnw("failed to notify deactivated user",
			"external_id", usr.ExternalID(),
			"error", err,
		)
	}
	return nil
}

func (uc *ChargeDailyUsageUseCase) warnLowBalance(ctx context.Context, externalID int64, balance, daysLeft float64) {
	ok, err := uc.gate.TryAcquire(ctx, cache.WarningLowBalance, externalID, "balance", uc.cooldown)
	if err != nil {
		uc.logger.Warnw("warning dedup unavailable, skipping low balance warning",
			"external_id", externalID,
			"error", err,
		)
		return
	}
	if !ok {
		return
	}
	if err := uc.notifier.LowBalance(ctx, externalID, balance, daysLeft); err != nil {
		uc.logger.Warnw("failed to send low balance warning",
			"external_id", externalID,
			"error", err,
		)
	}
}
