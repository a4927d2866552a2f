package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/veil-vpn/veil/internal/application/notify"
	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/infrastructure/cache"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// WarningGate suppresses repeat warnings of one kind per user and scope.
type WarningGate interface {
	TryAcquire(ctx context.Context, warningType cache.WarningType, userExternalID int64, scope string, ttl time.Duration) (bool, error)
}

// WarnExpiringDevicesUseCase sends one warning per device whose expiry falls
// inside the warning window. The gate keeps hourly runs from re-warning the
// same device.
type WarnExpiringDevicesUseCase struct {
	deviceRepo device.Repository
	gate       WarningGate
	notifier   notify.Notifier
	window     time.Duration
	cooldown   time.Duration
	logger     logger.Interface
}

// NewWarnExpiringDevicesUseCase creates a new WarnExpiringDevicesUseCase
func NewWarnExpiringDevicesUseCase(
	deviceRepo device.Repository,
	gate WarningGate,
	notifier notify.Notifier,
	window, cooldown time.Duration,
	log logger.Interface,
) *WarnExpiringDevicesUseCase {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if cooldown <= 0 {
		cooldown = cache.DefaultWarningCooldown
	}
	return &WarnExpiringDevicesUseCase{
		deviceRepo: deviceRepo,
		gate:       gate,
		notifier:   notifier,
		window:     window,
		cooldown:   cooldown,
		logger:     log,
	}
}

// Execute returns the number of warnings sent.
func (uc *WarnExpiringDevicesUseCase) Execute(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	expiring, err := uc.deviceRepo.GetExpiringActive(ctx, now, uc.window)
	if err != nil {
		return 0, fmt.Errorf("failed to find expiring devices: %w", err)
	}

	sent := 0
	for _, dev := range expiring {
		scope := fmt.Sprintf("device:%d", dev.ID())
		ok, err := uc.gate.TryAcquire(ctx, cache.WarningExpiringSoon, dev.UserExternalID(), scope, uc.cooldown)
		if err != nil {
			uc.logger.Warnw("warning dedup unavailable, skipping",
				"device_id", dev.ID(),
				"error", err,
			)
			continue
		}
		if !ok {
			continue
		}

		if err := uc.notifier.DeviceExpiringSoon(ctx, dev.UserExternalID(), dev.DeviceType().String(), *dev.ExpiresAt()); err != nil {
			uc.logger.Warnw("failed to send expiry warning",
				"user_external_id", dev.UserExternalID(),
				"device_id", dev.ID(),
				"error", err,
			)
			continue
		}
		sent++
	}

	if sent > 0 {
		uc.logger.Infow("expiry warnings sent", "count", sent)
	}
	return sent, nil
}
