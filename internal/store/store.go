// Package store holds the ledger persistence contract and its implementations.
package store

import (
	"context"
	"errors"

	"github.com/ruralpay/banksim/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when an account was modified since it was read.
	ErrVersionConflict = errors.New("optimistic lock failed")
	// ErrDuplicateAccountNumber is returned when an insert reuses an account number.
	ErrDuplicateAccountNumber = errors.New("account number already exists")
)

// Store is the durable ledger. Every call is atomic on its own; multi-record
// atomicity is only available through Transactor.
type Store interface {
	FindAccountByNumber(ctx context.Context, number string) (*models.Account, error)
	// SaveAccount inserts an account with Version 0 and updates one with a
	// matching Version otherwise. The returned copy carries the new Version.
	SaveAccount(ctx context.Context, acc *models.Account) (*models.Account, error)
	DeleteAccountByNumber(ctx context.Context, number string) error

	FindTransactionByID(ctx context.Context, id string) (*models.Transaction, error)
	// FindTransactionsByAccountID returns entries in the order they were written.
	FindTransactionsByAccountID(ctx context.Context, accountID string) ([]models.Transaction, error)
	SaveTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	DeleteTransactions(ctx context.Context, txs []models.Transaction) error
}

// Transactor is implemented by stores that can group several writes into one
// unit of work. fn must only use the Store it is handed.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// RunInTx runs fn inside a unit of work when s supports one and directly otherwise.
// The boolean reports whether the writes were atomic.
func RunInTx(ctx context.Context, s Store, fn func(Store) error) (bool, error) {
	if t, ok := s.(Transactor); ok {
		return true, t.WithinTx(ctx, fn)
	}
	return false, fn(s)
}
