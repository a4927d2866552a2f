// Package device contains the device aggregate: the local record of one
// provisioned remote VPN account and its lifecycle.
package device

import (
	"fmt"
	"time"
)

// Status is the device lifecycle state.
//
// A device starts in provisioning while the local row exists but the remote
// account may not yet. It becomes active once the control plane confirmed the
// account, and inactive when expired, unaffordable, reconciled away or
// removed by the user. failed marks a provisioning attempt whose remote
// create never succeeded. Rows are never hard-deleted.
type Status string

const (
	StatusProvisioning Status = "provisioning"
	StatusActive       Status = "active"
	StatusInactive     Status = "inactive"
	StatusFailed       Status = "failed"
)

func (s Status) String() string { return string(s) }

// Device is the aggregate root for one provisioned remote account.
type Device struct {
	id             uint
	userExternalID int64
	deviceType     Type
	accountName    string
	configSnapshot string
	status         Status
	createdAt      time.Time
	updatedAt      time.Time
	expiresAt      *time.Time
}

// NewDevice creates a device in provisioning state. The remote account name
// is assigned after the row ID is known (AssignAccountName), so a retried
// create reuses the same name instead of minting a duplicate remote account.
func NewDevice(userExternalID int64, deviceType Type, expiresAt *time.Time) (*Device, error) {
	if userExternalID <= 0 {
		return nil, fmt.Errorf("owner external ID must be positive")
	}
	if _, err := ParseType(deviceType.String()); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Device{
		userExternalID: userExternalID,
		deviceType:     deviceType,
		status:         StatusProvisioning,
		createdAt:      now,
		updatedAt:      now,
		expiresAt:      expiresAt,
	}, nil
}

// ReconstructDevice rebuilds a device from persistence.
func ReconstructDevice(
	id uint,
	userExternalID int64,
	deviceType Type,
	accountName, configSnapshot string,
	status Status,
	createdAt, updatedAt time.Time,
	expiresAt *time.Time,
) (*Device, error) {
	if id == 0 {
		return nil, fmt.Errorf("device ID cannot be zero")
	}
	if userExternalID <= 0 {
		return nil, fmt.Errorf("owner external ID must be positive")
	}

	return &Device{
		id:             id,
		userExternalID: userExternalID,
		deviceType:     deviceType,
		accountName:    accountName,
		configSnapshot: configSnapshot,
		status:         status,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
		expiresAt:      expiresAt,
	}, nil
}

func (d *Device) ID() uint { return d.id }
func (d *Device) UserExternalID() int64 { return d.userExternalID }
func (d *Device) DeviceType() Type { return d.deviceType }
func (d *Device) AccountName() string { return d.accountName }
func (d *Device) ConfigSnapshot() string { return d.configSnapshot }
func (d *Device) Status() Status { return d.status }
func (d *Device) CreatedAt() time.Time { return d.createdAt }
func (d *Device) UpdatedAt() time.Time { return d.updatedAt }
func (d *Device) ExpiresAt() *time.Time { return d.expiresAt }

// IsActive reports whether the device is supposed to have a live remote
// account.
func (d *Device) IsActive() bool {
	return d.status == StatusActive
}

// SetID assigns the persistence-generated ID. Only valid once.
func (d *Device) SetID(id uint) error {
	if d.id != 0 {
		return fmt.Errorf("device ID already set")
	}
	if id == 0 {
		return fmt.Errorf("device ID cannot be zero")
	}
	d.id = id
	return nil
}

// AssignAccountName records the synthesized remote account name before the
// remote create call is made.
func (d *Device) AssignAccountName(name string) error {
	if d.status != StatusProvisioning {
		return fmt.Errorf("cannot assign account name in status %s", d.status)
	}
	if name == "" {
		return fmt.Errorf("account name cannot be empty")
	}
	d.accountName = name
	d.updatedAt = time.Now().UTC()
	return nil
}

// Activate transitions provisioning -> active once the remote account exists,
// caching the returned descriptor for display.
func (d *Device) Activate(configSnapshot string) error {
	if d.status != StatusProvisioning {
		return fmt.Errorf("cannot activate device in status %s", d.status)
	}
	if d.accountName == "" {
		return fmt.Errorf("cannot activate device without an account name")
	}
	d.configSnapshot = configSnapshot
	d.status = StatusActive
	d.updatedAt = time.Now().UTC()
	return nil
}

// MarkFailed records a provisioning attempt whose remote create failed.
func (d *Device) MarkFailed() error {
	if d.status != StatusProvisioning {
		return fmt.Errorf("cannot fail device in status %s", d.status)
	}
	d.status = StatusFailed
	d.updatedAt = time.Now().UTC()
	return nil
}

// Deactivate transitions to inactive. Idempotent: deactivating an already
// inactive device is a no-op.
func (d *Device) Deactivate() {
	if d.status == StatusInactive {
		return
	}
	d.status = StatusInactive
	d.updatedAt = time.Now().UTC()
}

// IsExpired reports whether the expiry is set and in the past. A nil expiry
// means the device never expires by time.
func (d *Device) IsExpired(now time.Time) bool {
	return d.expiresAt != nil && d.expiresAt.Before(now)
}

// ExpiresWithin reports whether the expiry falls inside the warning window
// ending at now+window. Already-expired devices are not "expiring"; they are
// handled by the expiration pass.
func (d *Device) ExpiresWithin(now time.Time, window time.Duration) bool {
	if d.expiresAt == nil {
		return false
	}
	return d.expiresAt.After(now) && d.expiresAt.Before(now.Add(window))
}
