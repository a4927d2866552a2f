package billing

import (
	"fmt"
	"time"
)

// Referral links a referee to the user who invited them. A referee can be
// referred at most once; self-referrals are rejected.
type Referral struct {
	id                 uint
	referrerExternalID int64
	refereeExternalID  int64
	totalEarnings      float64
	createdAt          time.Time
}

// NewReferral creates a referral link with zero accumulated earnings.
func NewReferral(referrerExternalID, refereeExternalID int64) (*Referral, error) {
	if referrerExternalID <= 0 || refereeExternalID <= 0 {
		return nil, fmt.Errorf("referral party IDs must be positive")
	}
	if referrerExternalID == refereeExternalID {
		return nil, fmt.Errorf("user cannot refer themselves")
	}
	return &Referral{
		referrerExternalID: referrerExternalID,
		refereeExternalID:  refereeExternalID,
		createdAt:          time.Now().UTC(),
	}, nil
}

// ReconstructReferral rebuilds a referral from persistence.
func ReconstructReferral(
	id uint,
	referrerExternalID, refereeExternalID int64,
	totalEarnings float64,
	createdAt time.Time,
) (*Referral, error) {
	if id == 0 {
		return nil, fmt.Errorf("referral ID cannot be zero")
	}
	return &Referral{
		id:                 id,
		referrerExternalID: referrerExternalID,
		refereeExternalID:  refereeExternalID,
		totalEarnings:      totalEarnings,
		createdAt:          createdAt,
	}, nil
}

func (r *Referral) ID() uint { return r.id }
func (r *Referral) ReferrerExternalID() int64 { return r.referrerExternalID }
func (r *Referral) RefereeExternalID() int64 { return r.refereeExternalID }
func (r *Referral) TotalEarnings() float64 { return r.totalEarnings }
func (r *Referral) CreatedAt() time.Time { return r.createdAt }

// AddEarnings accumulates a bonus paid out to the referrer for this link.
func (r *Referral) AddEarnings(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("earnings amount must be positive")
	}
	r.totalEarnings += amount
	return nil
}

// SetID assigns the persistence-generated ID. Only valid once.
func (r *Referral) SetID(id uint) error {
	if r.id != 0 {
		return fmt.Errorf("referral ID already set")
	}
	if id == 0 {
		return fmt.Errorf("referral ID cannot be zero")
	}
	r.id = id
	return nil
}
