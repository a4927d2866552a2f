// Package dto carries the provisioning responses handed to the interface
// layer.
package dto

import (
	"time"

	"github.com/veil-vpn/veil/internal/domain/device"
)

// DeviceDTO is the outward view of one device.
type DeviceDTO struct {
	ID          uint       `json:"id"`
	DeviceType  string     `json:"device_type"`
	AccountName string     `json:"account_name"`
	Link        string     `json:"link,omitempty"`
	Status      string     `json:"status"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// FromDevice maps a device entity to its DTO.
func FromDevice(d *device.Device) DeviceDTO {
	return DeviceDTO{
		ID:          d.ID(),
		DeviceType:  d.DeviceType().String(),
		AccountName: d.AccountName(),
		Link:        d.ConfigSnapshot(),
		Status:      d.Status().String(),
		ExpiresAt:   d.ExpiresAt(),
		CreatedAt:   d.CreatedAt(),
	}
}

// FromDevices maps a slice of device entities.
func FromDevices(devices []*device.Device) []DeviceDTO {
	out := make([]DeviceDTO, 0, len(devices))
	for _, d := range devices {
		out = append(out, FromDevice(d))
	}
	return out
}
