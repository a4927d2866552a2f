package models

import "time"

// ReferralModel represents the database persistence model for referral links
type ReferralModel struct {
	ID                 uint  `gorm:"primarykey"`
	ReferrerExternalID int64 `gorm:"not null;index:idx_referrals_referrer"`
	RefereeExternalID  int64 `gorm:"uniqueIndex;not null"`
	TotalEarnings      float64
	CreatedAt          time.Time
}

// TableName specifies the table name for GORM
func (ReferralModel) TableName() string {
	return "referrals"
}
