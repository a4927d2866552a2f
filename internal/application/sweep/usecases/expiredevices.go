// Package usecases contains the recurring sweep passes: expiration, expiry
// warnings, remote-state reconciliation, orphan pruning and daily billing.
package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/veil-vpn/veil/internal/application/notify"
	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/domain/node"
	"github.com/veil-vpn/veil/internal/infrastructure/panel"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// ExpireDevicesUseCase tears down active devices whose expiry has passed.
// The remote delete is best effort: the local store is authoritative for
// whether a device should exist, so delete failures are logged and the
// device is deactivated anyway.
type ExpireDevicesUseCase struct {
	deviceRepo device.Repository
	panel      panel.Client
	registry   *node.Registry
	notifier   notify.Notifier
	logger     logger.Interface
}

// NewExpireDevicesUseCase creates a new ExpireDevicesUseCase
func NewExpireDevicesUseCase(
	deviceRepo device.Repository,
	panelClient panel.Client,
	registry *node.Registry,
	notifier notify.Notifier,
	log logger.Interface,
) *ExpireDevicesUseCase {
	return &ExpireDevicesUseCase{
		deviceRepo: deviceRepo,
		panel:      panelClient,
		registry:   registry,
		notifier:   notifier,
		logger:     log,
	}
}

// Execute tears down expired devices and returns the number deactivated.
// With trialOnly set, only trial devices are considered; this backs the fast
// pass that keeps short trial windows honest.
func (uc *ExpireDevicesUseCase) Execute(ctx context.Context, trialOnly bool) (int, error) {
	now := time.Now().UTC()
	expired, err := uc.deviceRepo.GetExpiredActive(ctx, now, trialOnly)
	if err != nil {
		return 0, fmt.Errorf("failed to find expired devices: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	uc.logger.Infow("found expired devices", "count", len(expired), "trial_only", trialOnly)

	deactivated := 0
	for _, dev := range expired {
		if err := uc.teardown(ctx, dev); err != nil {
			uc.logger.Errorw("failed to tear down expired device",
				"device_id", dev.ID(),
				"account_name", dev.AccountName(),
				"error", err,
			)
			continue
		}
		deactivated++

		if err := uc.notifier.DeviceExpired(ctx, dev.UserExternalID(), dev.DeviceType().String(), dev.AccountName()); err != nil {
			uc.logger.Warnw("failed to notify expired device owner",
				"user_external_id", dev.UserExternalID(),
				"device_id", dev.ID(),
				"error", err,
			)
		}
	}

	return deactivated, nil
}

func (uc *ExpireDevicesUseCase) teardown(ctx context.Context, dev *device.Device) error {
	if err := uc.panel.DeleteAccount(ctx, dev.AccountName()); err != nil {
		uc.logger.Errorw("remote delete failed, deactivating locally anyway",
			"device_id", dev.ID(),
			"account_name", dev.AccountName(),
			"error", err,
		)
	}

	dev.Deactivate()
	if err := uc.deviceRepo.Update(ctx, dev); err != nil {
		return fmt.Errorf("failed to persist deactivation: %w", err)
	}

	if host := panel.ParseLink(dev.ConfigSnapshot()).Host; host != "" {
		uc.registry.DecrementLoad(host)
	}

	uc.logger.Debugw("device expired",
		"device_id", dev.ID(),
		"account_name", dev.AccountName(),
	)
	return nil
}
