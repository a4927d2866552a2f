package user

import "context"

// Repository persists users. UpdateBalance is the only balance mutation path
// so the transaction ledger stays the complete audit trail.
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uint) (*User, error)
	GetByExternalID(ctx context.Context, externalID int64) (*User, error)
	Update(ctx context.Context, user *User) error

	// UpdateBalance atomically adds delta (which may be negative) to the
	// user's balance.
	UpdateBalance(ctx context.Context, externalID int64, delta float64) error

	// UpdateReferralBalance atomically adds delta to the referral earnings
	// counter alongside the main balance.
	UpdateReferralBalance(ctx context.Context, externalID int64, delta float64) error

	// ListExternalIDsWithActiveDevices returns the owners the billing sweep
	// must visit.
	ListExternalIDsWithActiveDevices(ctx context.Context) ([]int64, error)
}
