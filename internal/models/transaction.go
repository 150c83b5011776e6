package models

import (
	"time"
)

type TransactionType string

const (
	TransactionDeposit  TransactionType = "DEPOSIT"
	TransactionWithdraw TransactionType = "WITHDRAW"
	TransactionTransfer TransactionType = "TRANSFER"
)

// Transaction is an immutable ledger entry. A transfer produces a single entry owned
// by the source account; SourceAccountNumber and DestinationAccountNumber are only
// set for transfers.
type Transaction struct {
	ID                       string          `json:"id" db:"id"`
	AccountID                string          `json:"accountId" db:"account_id"`
	Type                     TransactionType `json:"type" db:"type"`
	Amount                   int64           `json:"amount" db:"amount"` // in minor units
	Timestamp                time.Time       `json:"timestamp" db:"created_at"`
	Note                     string          `json:"note" db:"note"`
	SourceAccountNumber      string          `json:"sourceAccountNumber,omitempty" db:"source_account_number"`
	DestinationAccountNumber string          `json:"destinationAccountNumber,omitempty" db:"destination_account_number"`
}

func (t *Transaction) IsTransfer() bool {
	return t.Type == TransactionTransfer
}
