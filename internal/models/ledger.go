package models

import (
	"time"
)

type AccountStatus string

const (
	AccountActive   AccountStatus = "ACTIVE"
	AccountInactive AccountStatus = "INACTIVE"
)

// Account is a customer account. Balance is kept in minor currency units.
type Account struct {
	ID             string        `json:"id" db:"id"`
	AccountNumber  string        `json:"accountNumber" db:"account_number"`
	HolderName     string        `json:"accountHolderName" db:"holder_name"`
	Balance        int64         `json:"balance" db:"balance"` // in minor units
	Status         AccountStatus `json:"status" db:"status"`
	TransactionIDs []string      `json:"transactions" db:"transaction_ids"`
	Version        int           `json:"-" db:"version"` // for optimistic locking
	CreatedAt      time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time     `json:"updatedAt" db:"updated_at"`
}

// IsActive reports whether the account accepts balance mutations.
func (a *Account) IsActive() bool {
	return a.Status == AccountActive
}

// AppendTransaction adds a transaction reference to the end of the account log.
func (a *Account) AppendTransaction(txID string) {
	a.TransactionIDs = append(a.TransactionIDs, txID)
}

// Clone returns a deep copy so callers never share the transaction log slice.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.TransactionIDs != nil {
		c.TransactionIDs = make([]string, len(a.TransactionIDs))
		copy(c.TransactionIDs, a.TransactionIDs)
	}
	return &c
}
