package models

import "time"

// UserModel represents the database persistence model for users
// This is the anti-corruption layer between domain and database
type UserModel struct {
	ID                uint   `gorm:"primarykey"`
	ExternalID        int64  `gorm:"uniqueIndex;not null"`
	Username          string `gorm:"size:100"`
	FirstName         string `gorm:"size:100"`
	LastName          string `gorm:"size:100"`
	Balance           float64
	ReferralBalance   float64
	AgreementAccepted bool `gorm:"default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName specifies the table name for GORM
func (UserModel) TableName() string {
	return "users"
}
