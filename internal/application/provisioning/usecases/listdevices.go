package usecases

import (
	"context"
	"fmt"

	"github.com/veil-vpn/veil/internal/application/provisioning/dto"
	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// ListDevicesUseCase returns the caller's active devices for display.
type ListDevicesUseCase struct {
	deviceRepo device.Repository
	logger     logger.Interface
}

// NewListDevicesUseCase creates a new ListDevicesUseCase
func NewListDevicesUseCase(deviceRepo device.Repository, log logger.Interface) *ListDevicesUseCase {
	return &ListDevicesUseCase{
		deviceRepo: deviceRepo,
		logger:     log,
	}
}

// Execute lists the user's active devices, newest first.
func (uc *ListDevicesUseCase) Execute(ctx context.Context, userExternalID int64) ([]dto.DeviceDTO, error) {
	devices, err := uc.deviceRepo.GetActiveByUserID(ctx, userExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return dto.FromDevices(devices), nil
}
