package models

import "time"

// DeviceModel represents the database persistence model for devices
type DeviceModel struct {
	ID             uint   `gorm:"primarykey"`
	UserExternalID int64  `gorm:"not null;index:idx_devices_user"`
	DeviceType     string `gorm:"not null;size:20"`
	AccountName    string `gorm:"size:64;index:idx_devices_account_name"`
	ConfigSnapshot string `gorm:"type:text"`
	Status         string `gorm:"not null;default:provisioning;size:20;index:idx_devices_status"`
	ExpiresAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName specifies the table name for GORM
func (DeviceModel) TableName() string {
	return "devices"
}
