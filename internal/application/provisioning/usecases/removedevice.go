package usecases

import (
	"context"
	"fmt"

	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/domain/node"
	"github.com/veil-vpn/veil/internal/infrastructure/panel"
	"github.com/veil-vpn/veil/internal/shared/errors"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// RemoveDeviceUseCase tears down one device at the owner's request. The
// remote delete is best effort: local state is authoritative for whether a
// device should exist, so a failed remote call never blocks deactivation.
type RemoveDeviceUseCase struct {
	deviceRepo device.Repository
	panel      panel.Client
	registry   *node.Registry
	logger     logger.Interface
}

// NewRemoveDeviceUseCase creates a new RemoveDeviceUseCase
func NewRemoveDeviceUseCase(
	deviceRepo device.Repository,
	panelClient panel.Client,
	registry *node.Registry,
	log logger.Interface,
) *RemoveDeviceUseCase {
	return &RemoveDeviceUseCase{
		deviceRepo: deviceRepo,
		panel:      panelClient,
		registry:   registry,
		logger:     log,
	}
}

// Execute removes the device. The caller's external ID must match the
// owner's.
func (uc *RemoveDeviceUseCase) Execute(ctx context.Context, userExternalID int64, deviceID uint) error {
	dev, err := uc.deviceRepo.GetByID(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("failed to load device: %w", err)
	}
	if dev == nil || dev.UserExternalID() != userExternalID {
		return errors.NewNotFoundError("device not found")
	}
	if !dev.IsActive() {
		return errors.NewConflictError("device is not active")
	}

	if err := uc.panel.DeleteAccount(ctx, dev.AccountName()); err != nil {
		uc.logger.Errorw("remote delete failed, deactivating locally anyway",
			"device_id", dev.ID(),
			"account_name", dev.AccountName(),
			"error", err,
		)
	}

	dev.Deactivate()
	if err := uc.deviceRepo.Update(ctx, dev); err != nil {
		return errors.NewPersistenceError("failed to deactivate device", err.Error())
	}

	uc.decrementHostLoad(dev)

	uc.logger.Infow("device removed",
		"user_external_id", userExternalID,
		"device_id", dev.ID(),
		"account_name", dev.AccountName(),
	)
	return nil
}

func (uc *RemoveDeviceUseCase) decrementHostLoad(dev *device.Device) {
	link := panel.Link{}
	if raw := dev.ConfigSnapshot(); raw != "" {
		link = panel.ParseLink(raw)
	}
	if link.Host != "" {
		uc.registry.DecrementLoad(link.Host)
	}
}
