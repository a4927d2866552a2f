// Package user contains the account aggregate: identity, prepaid balance and
// agreement state. Users are created on first contact and never deleted.
package user

import (
	"fmt"
	"strings"
	"time"
)

// User is the account aggregate root. The external ID is the opaque numeric
// identity assigned by the messaging platform; it is the key every other
// aggregate references.
type User struct {
	id                uint
	externalID        int64
	username          string
	firstName         string
	lastName          string
	balance           float64
	referralBalance   float64
	agreementAccepted bool
	createdAt         time.Time
	updatedAt         time.Time
}

// NewUser creates a user on first contact with the configured welcome balance.
func NewUser(externalID int64, username, firstName, lastName string, initialBalance float64) (*User, error) {
	if externalID <= 0 {
		return nil, fmt.Errorf("external ID must be positive")
	}
	if initialBalance < 0 {
		return nil, fmt.Errorf("initial balance cannot be negative")
	}

	now := time.Now().UTC()
	return &User{
		externalID: externalID,
		username:   username,
		firstName:  firstName,
		lastName:   lastName,
		balance:    initialBalance,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstructUser rebuilds a user from persistence.
func ReconstructUser(
	id uint,
	externalID int64,
	username, firstName, lastName string,
	balance, referralBalance float64,
	agreementAccepted bool,
	createdAt, updatedAt time.Time,
) (*User, error) {
	if id == 0 {
		return nil, fmt.Errorf("user ID cannot be zero")
	}
	if externalID <= 0 {
		return nil, fmt.Errorf("external ID must be positive")
	}

	return &User{
		id:                id,
		externalID:        externalID,
		username:          username,
		firstName:         firstName,
		lastName:          lastName,
		balance:           balance,
		referralBalance:   referralBalance,
		agreementAccepted: agreementAccepted,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}, nil
}

func (u *User) ID() uint { return u.id }
func (u *User) ExternalID() int64 { return u.externalID }
func (u *User) Username() string { return u.username }
func (u *User) FirstName() string { return u.firstName }
func (u *User) LastName() string { return u.lastName }
func (u *User) Balance() float64 { return u.balance }
func (u *User) ReferralBalance() float64 { return u.referralBalance }
func (u *User) AgreementAccepted() bool { return u.agreementAccepted }
func (u *User) CreatedAt() time.Time { return u.createdAt }
func (u *User) UpdatedAt() time.Time { return u.updatedAt }

// SetID assigns the persistence-generated ID. Only valid once.
func (u *User) SetID(id uint) error {
	if u.id != 0 {
		return fmt.Errorf("user ID already set")
	}
	if id == 0 {
		return fmt.Errorf("user ID cannot be zero")
	}
	u.id = id
	return nil
}

// DisplayName returns the friendliest available name.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.firstName) + " " + strings.TrimSpace(u.lastName))
	if name != "" {
		return name
	}
	if u.username != "" {
		return u.username
	}
	return fmt.Sprintf("user %d", u.externalID)
}

// UpdateProfile refreshes the mutable identity fields on repeat contact.
// Balance is never touched here.
func (u *User) UpdateProfile(username, firstName, lastName string) {
	u.username = username
	u.firstName = firstName
	u.lastName = lastName
	u.updatedAt = time.Now().UTC()
}

// AcceptAgreement marks the service agreement as accepted.
func (u *User) AcceptAgreement() {
	u.agreementAccepted = true
	u.updatedAt = time.Now().UTC()
}

// CanAfford reports whether the balance covers the given amount.
func (u *User) CanAfford(amount float64) bool {
	return u.balance >= amount
}
