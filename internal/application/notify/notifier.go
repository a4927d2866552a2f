// Package notify defines the outbound user notification surface. Sweep and
// provisioning flows depend on this interface; the messenger transport lives
// in infrastructure.
package notify

import (
	"context"
	"time"
)

// Notifier delivers user-facing messages. Implementations must be safe for
// concurrent use. Failures are reported but callers treat delivery as best
// effort: a lost message never blocks a state transition.
type Notifier interface {
	// DeviceExpired tells the user one device was shut down at its expiry.
	DeviceExpired(ctx context.Context, userExternalID int64, deviceType, accountName string) error

	// DeviceExpiringSoon warns the user ahead of a device expiry.
	DeviceExpiringSoon(ctx context.Context, userExternalID int64, deviceType string, expiresAt time.Time) error

	// DeviceDisconnected tells the user a device was deactivated because its
	// remote account no longer exists.
	DeviceDisconnected(ctx context.Context, userExternalID int64, deviceType, accountName string) error

	// DevicesDeactivated tells the user all devices were shut down because
	// the balance no longer covered the daily charge.
	DevicesDeactivated(ctx context.Context, userExternalID int64, balance float64) error

	// LowBalance warns the user the balance covers fewer than the given
	// number of days.
	LowBalance(ctx context.Context, userExternalID int64, balance float64, daysLeft float64) error

	// ReferralBonus tells the referrer a bonus was credited.
	ReferralBonus(ctx context.Context, referrerExternalID int64, amount float64) error
}

// NopNotifier discards every message. Used when no messenger is configured.
type NopNotifier struct{}

func (NopNotifier) DeviceExpired(context.Context, int64, string, string) error { return nil }
func (NopNotifier) DeviceExpiringSoon(context.Context, int64, string, time.Time) error {
	return nil
}
func (NopNotifier) DeviceDisconnected(context.Context, int64, string, string) error {
	return nil
}
func (NopNotifier) DevicesDeactivated(context.Context, int64, float64) error { return nil }
func (NopNotifier) LowBalance(context.Context, int64, float64, float64) error { return nil }
func (NopNotifier) ReferralBonus(context.Context, int64, float64) error { return nil }
