package device

import (
	"context"
	"time"
)

// Repository defines persistence for devices.
type Repository interface {
	Create(ctx context.Context, d *Device) error
	Update(ctx context.Context, d *Device) error
	GetByID(ctx context.Context, id uint) (*Device, error)
	GetByAccountName(ctx context.Context, accountName string) (*Device, error)

	// GetActiveByUserID returns the user's active devices ordered by
	// creation time descending.
	GetActiveByUserID(ctx context.Context, userExternalID int64) ([]*Device, error)

	GetAllActive(ctx context.Context) ([]*Device, error)

	// GetExpiredActive returns active devices whose expiry is before now.
	// When trialOnly is set only trial devices are returned.
	GetExpiredActive(ctx context.Context, now time.Time, trialOnly bool) ([]*Device, error)

	// GetExpiringActive returns active devices whose expiry falls in
	// (now, now+window].
	GetExpiringActive(ctx context.Context, now time.Time, window time.Duration) ([]*Device, error)

	// CountActiveByUserID counts the user's active devices.
	CountActiveByUserID(ctx context.Context, userExternalID int64) (int64, error)

	// ListActiveAccountNames returns the account names of every active
	// device, used to detect orphaned remote accounts.
	ListActiveAccountNames(ctx context.Context) ([]string, error)
}
