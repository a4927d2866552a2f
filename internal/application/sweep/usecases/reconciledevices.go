package usecases

import (
	"context"
	"fmt"

	"github.com/veil-vpn/veil/internal/application/notify"
	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/domain/node"
	"github.com/veil-vpn/veil/internal/infrastructure/panel"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// ReconcileDevicesUseCase aligns local device state with control-plane
// reality. Devices whose remote account vanished out-of-band are deactivated
// locally, and the node registry counters are realigned to what actually
// exists.
type ReconcileDevicesUseCase struct {
	deviceRepo device.Repository
	panel      panel.Client
	registry   *node.Registry
	notifier   notify.Notifier
	logger     logger.Interface
}

// NewReconcileDevicesUseCase creates a new ReconcileDevicesUseCase
func NewReconcileDevicesUseCase(
	deviceRepo device.Repository,
	panelClient panel.Client,
	registry *node.Registry,
	notifier notify.Notifier,
	log logger.Interface,
) *ReconcileDevicesUseCase {
	return &ReconcileDevicesUseCase{
		deviceRepo: deviceRepo,
		panel:      panelClient,
		registry:   registry,
		notifier:   notifier,
		logger:     log,
	}
}

// Execute returns the number of devices deactivated because their remote
// account no longer exists.
func (uc *ReconcileDevicesUseCase) Execute(ctx context.Context) (int, error) {
	active, err := uc.deviceRepo.GetAllActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active devices: %w", err)
	}

	hostLoads := make(map[string]int)
	deactivated := 0

	for _, dev := range active {
		account, err := uc.panel.GetAccount(ctx, dev.AccountName())
		if err != nil {
			// Transient control-plane trouble; keep the device and its
			// counter contribution as-is and try again next pass.
			uc.logger.Warnw("failed to check remote account, skipping",
				"device_id", dev.ID(),
				"account_name", dev.AccountName(),
				"error", err,
			)
			if host := panel.ParseLink(dev.ConfigSnapshot()).Host; host != "" {
				hostLoads[host]++
			}
			continue
		}

		if account == nil {
			dev.Deactivate()
			if err := uc.deviceRepo.Update(ctx, dev); err != nil {
				uc.logger.Errorw("failed to deactivate vanished device",
					"device_id", dev.ID(),
					"error", err,
				)
				continue
			}
			deactivated++

			uc.logger.Infow("remote account vanished, device deactivated",
				"device_id", dev.ID(),
				"account_name", dev.AccountName(),
			)
			if err := uc.notifier.DeviceDisconnected(ctx, dev.UserExternalID(), dev.DeviceType().String(), dev.AccountName()); err != nil {
				uc.logger.Warnw("failed to notify disconnected device owner",
					"user_external_id", dev.UserExternalID(),
					"error", err,
				)
			}
			continue
		}

		if host := panel.ParseLink(dev.ConfigSnapshot()).Host; host != "" {
			hostLoads[host]++
		}
	}

	// Realign advisory counters with the surviving devices.
	for _, host := range uc.registry.Hosts() {
		uc.registry.SetLoad(host, hostLoads[host])
	}

	return deactivated, nil
}
