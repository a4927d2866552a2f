package usecases

import (
	"context"
	"fmt"

	"github.com/veil-vpn/veil/internal/application/provisioning/dto"
	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/shared/errors"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// GetDeviceUseCase returns one device for status display.
type GetDeviceUseCase struct {
	deviceRepo device.Repository
	logger     logger.Interface
}

// NewGetDeviceUseCase creates a new GetDeviceUseCase
func NewGetDeviceUseCase(deviceRepo device.Repository, log logger.Interface) *GetDeviceUseCase {
	return &GetDeviceUseCase{
		deviceRepo: deviceRepo,
		logger:     log,
	}
}

// Execute loads the device. The caller's external ID must match the owner's;
// inactive devices remain visible so the caller can show their history.
func (uc *GetDeviceUseCase) Execute(ctx context.Context, userExternalID int64, deviceID uint) (*dto.DeviceDTO, error) {
	dev, err := uc.deviceRepo.GetByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load device: %w", err)
	}
	if dev == nil || dev.UserExternalID() != userExternalID {
		return nil, errors.NewNotFoundError("device not found")
	}
	d := dto.FromDevice(dev)
	return &d, nil
}
