// Package events publishes committed ledger changes for downstream consumers
// such as settlement and notification workers.
package events

import (
	"context"
	"time"
)

const (
	TypeAccountCreated = "account.created"
	TypeAccountClosed  = "account.closed"
	TypeAccountDeleted = "account.deleted"
	TypeDeposit        = "ledger.deposit"
	TypeWithdraw       = "ledger.withdraw"
	TypeTransfer       = "ledger.transfer"
)

// Event is the JSON document pushed onto the events list.
type Event struct {
	Type               string    `json:"type"`
	AccountNumber      string    `json:"accountNumber"`
	CounterpartyNumber string    `json:"counterpartyNumber,omitempty"`
	TransactionID      string    `json:"transactionId,omitempty"`
	Amount             int64     `json:"amount,omitempty"`
	Balance            int64     `json:"balance"`
	OccurredAt         time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. Used when Redis is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error {
	return nil
}
