package models

import "time"

// TransactionModel represents the database persistence model for ledger
// entries
type TransactionModel struct {
	ID             uint  `gorm:"primarykey"`
	UserExternalID int64 `gorm:"not null;index:idx_transactions_user"`
	Amount         float64
	Type           string `gorm:"not null;size:30"`
	Reference      string `gorm:"size:64"`
	CreatedAt      time.Time
}

// TableName specifies the table name for GORM
func (TransactionModel) TableName() string {
	return "transactions"
}
