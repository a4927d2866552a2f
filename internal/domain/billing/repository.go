package billing

import "context"

// TransactionRepository persists ledger entries. Entries are append-only.
type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) error
	ListByUser(ctx context.Context, userExternalID int64, limit int) ([]*Transaction, error)
}

// ReferralRepository persists referral links.
type ReferralRepository interface {
	Create(ctx context.Context, r *Referral) error
	Update(ctx context.Context, r *Referral) error

	// GetByReferee returns the link for a referee, or nil when none exists.
	GetByReferee(ctx context.Context, refereeExternalID int64) (*Referral, error)

	ListByReferrer(ctx context.Context, referrerExternalID int64) ([]*Referral, error)
}
