// Package billing contains the ledger entries and referral links backing
// balance accounting.
package billing

import (
	"fmt"
	"time"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionTopUp          TransactionType = "top_up"
	TransactionProvisionDebit TransactionType = "provision_debit"
	TransactionDailyCharge    TransactionType = "daily_charge"
	TransactionReferralBonus  TransactionType = "referral_bonus"
)

func (t TransactionType) String() string { return string(t) }

func (t TransactionType) valid() bool {
	switch t {
	case TransactionTopUp, TransactionProvisionDebit, TransactionDailyCharge, TransactionReferralBonus:
		return true
	}
	return false
}

// Transaction is one immutable ledger entry. Amount is positive for credits
// and negative for debits.
type Transaction struct {
	id             uint
	userExternalID int64
	amount         float64
	txType         TransactionType
	reference      string
	createdAt      time.Time
}

// NewTransaction creates a ledger entry. Credits must be positive and debits
// negative; a zero amount is never recorded.
func NewTransaction(userExternalID int64, amount float64, txType TransactionType, reference string) (*Transaction, error) {
	if userExternalID <= 0 {
		return nil, fmt.Errorf("user external ID must be positive")
	}
	if !txType.valid() {
		return nil, fmt.Errorf("unknown transaction type %q", txType)
	}
	if amount == 0 {
		return nil, fmt.Errorf("transaction amount cannot be zero")
	}
	switch txType {
	case TransactionProvisionDebit, TransactionDailyCharge:
		if amount > 0 {
			return nil, fmt.Errorf("%s amount must be negative", txType)
		}
	default:
		if amount < 0 {
			return nil, fmt.Errorf("%s amount must be positive", txType)
		}
	}

	return &Transaction{
		userExternalID: userExternalID,
		amount:         amount,
		txType:         txType,
		reference:      reference,
		createdAt:      time.Now().UTC(),
	}, nil
}

// ReconstructTransaction rebuilds a ledger entry from persistence.
func ReconstructTransaction(
	id uint,
	userExternalID int64,
	amount float64,
	txType TransactionType,
	reference string,
	createdAt time.Time,
) (*Transaction, error) {
	if id == 0 {
		return nil, fmt.Errorf("transaction ID cannot be zero")
	}
	return &Transaction{
		id:             id,
		userExternalID: userExternalID,
		amount:         amount,
		txType:         txType,
		reference:      reference,
		createdAt:      createdAt,
	}, nil
}

func (t *Transaction) ID() uint { return t.id }
func (t *Transaction) UserExternalID() int64 { return t.userExternalID }
func (t *Transaction) Amount() float64 { return t.amount }
func (t *Transaction) Type() TransactionType { return t.txType }
func (t *Transaction) Reference() string { return t.reference }
func (t *Transaction) CreatedAt() time.Time { return t.createdAt }

// IsCredit reports whether the entry increases the balance.
func (t *Transaction) IsCredit() bool { return t.amount > 0 }

// SetID assigns the persistence-generated ID. Only valid once.
func (t *Transaction) SetID(id uint) error {
	if t.id != 0 {
		return fmt.Errorf("transaction ID already set")
	}
	if id == 0 {
		return fmt.Errorf("transaction ID cannot be zero")
	}
	t.id = id
	return nil
}
