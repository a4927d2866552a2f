package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/domain/node"
	"github.com/veil-vpn/veil/internal/infrastructure/panel"
	"github.com/veil-vpn/veil/internal/shared/errors"
	"github.com/veil-vpn/veil/internal/shared/id"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// GrantTrialUseCase provisions a free short-lived trial device. It runs the
// same pending-row flow as paid provisioning but never touches the balance.
type GrantTrialUseCase struct {
	deviceRepo device.Repository
	panel      panel.Client
	registry   *node.Registry
	logger     logger.Interface
}

// NewGrantTrialUseCase creates a new GrantTrialUseCase
func NewGrantTrialUseCase(
	deviceRepo device.Repository,
	panelClient panel.Client,
	registry *node.Registry,
	log logger.Interface,
) *GrantTrialUseCase {
	return &GrantTrialUseCase{
		deviceRepo: deviceRepo,
		panel:      panelClient,
		registry:   registry,
		logger:     log,
	}
}

// Execute grants a trial device that expires after the given number of days.
func (uc *GrantTrialUseCase) Execute(ctx context.Context, userExternalID int64, days int) error {
	if days <= 0 {
		return errors.NewValidationError("trial days must be positive")
	}

	expiresAt := time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour)
	dev, err := device.NewDevice(userExternalID, device.TypeTrial, &expiresAt)
	if err != nil {
		return fmt.Errorf("failed to build trial device: %w", err)
	}
	if err := uc.deviceRepo.Create(ctx, dev); err != nil {
		return errors.NewPersistenceError("failed to record trial device", err.Error())
	}

	accountName := fmt.Sprintf("%s%d%s", device.TypeTrial.AccountPrefix(), dev.ID(), id.MustGenerate(6))
	if err := dev.AssignAccountName(accountName); err != nil {
		return fmt.Errorf("failed to assign account name: %w", err)
	}
	if err := uc.deviceRepo.Update(ctx, dev); err != nil {
		return errors.NewPersistenceError("failed to record account name", err.Error())
	}

	host := uc.registry.SelectOptimalHost()

	account, err := uc.panel.CreateAccount(ctx, panel.CreateAccountParams{
		Username: accountName,
		ExpireAt: &expiresAt,
	})
	if err != nil {
		if markErr := dev.MarkFailed(); markErr == nil {
			if updErr := uc.deviceRepo.Update(ctx, dev); updErr != nil {
				uc.logger.Errorw("failed to persist failed trial device", "device_id", dev.ID(), "error", updErr)
			}
		}
		return errors.NewProvisionError("trial account creation failed", err.Error())
	}

	link, ok := account.PreferredLink(host)
	if !ok {
		return errors.NewProvisionError("control plane returned no connection links")
	}

	if err := dev.Activate(link.Raw); err != nil {
		return fmt.Errorf("failed to activate trial device: %w", err)
	}
	if err := uc.deviceRepo.Update(ctx, dev); err != nil {
		return errors.NewPersistenceError("failed to persist trial device", err.Error())
	}

	uc.registry.IncrementLoad(link.Host)

	uc.logger.Infow("trial granted",
		"user_external_id", userExternalID,
		"device_id", dev.ID(),
		"account_name", accountName,
		"days", days,
	)
	return nil
}
