// Package audit writes one structured record per ledger mutation.
package audit

import (
	"strconv"
	"time"

	"github.com/ruralpay/banksim/internal/logging"
	"go.uber.org/zap"
)

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

type AuditEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventType     string            `json:"event_type"`
	TransactionID string            `json:"transaction_id,omitempty"`
	AccountNumber string            `json:"account_number,omitempty"`
	Amount        int64             `json:"amount,omitempty"`
	Status        string            `json:"status"`
	Details       map[string]string `json:"details,omitempty"`
}

type AuditLogger struct {
	logger *logging.Logger
	now    func() time.Time
}

func NewAuditLogger(logger *logging.Logger) *AuditLogger {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &AuditLogger{
		logger: logger.Named("audit"),
		now:    time.Now,
	}
}

func (a *AuditLogger) LogDeposit(transactionID, accountNumber string, amount, balance int64) {
	a.log(AuditEvent{
		EventType:     "DEPOSIT",
		TransactionID: transactionID,
		AccountNumber: accountNumber,
		Amount:        amount,
		Status:        StatusSuccess,
		Details:       map[string]string{"balance": strconv.FormatInt(balance, 10)},
	})
}

func (a *AuditLogger) LogWithdraw(transactionID, accountNumber string, amount, balance int64) {
	a.log(AuditEvent{
		EventType:     "WITHDRAW",
		TransactionID: transactionID,
		AccountNumber: accountNumber,
		Amount:        amount,
		Status:        StatusSuccess,
		Details:       map[string]string{"balance": strconv.FormatInt(balance, 10)},
	})
}

func (a *AuditLogger) LogTransfer(transactionID, fromAccount, toAccount string, amount int64) {
	a.log(AuditEvent{
		EventType:     "TRANSFER",
		TransactionID: transactionID,
		AccountNumber: fromAccount,
		Amount:        amount,
		Status:        StatusSuccess,
		Details: map[string]string{
			"from_account": fromAccount,
			"to_account":   toAccount,
		},
	})
}

// LogAccount records lifecycle changes: CREATE, CLOSE, DELETE.
func (a *AuditLogger) LogAccount(operation, accountNumber, holderName string) {
	a.log(AuditEvent{
		EventType:     "ACCOUNT_" + operation,
		AccountNumber: accountNumber,
		Status:        StatusSuccess,
		Details:       map[string]string{"holder_name": holderName},
	})
}

func (a *AuditLogger) LogError(operation, accountNumber string, amount int64, err error) {
	a.log(AuditEvent{
		EventType:     operation,
		AccountNumber: accountNumber,
		Amount:        amount,
		Status:        StatusFailed,
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	event.Timestamp = a.now()
	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.String("event_type", event.EventType),
		zap.String("status", event.Status),
	}
	if event.TransactionID != "" {
		fields = append(fields, zap.String("transaction_id", event.TransactionID))
	}
	if event.AccountNumber != "" {
		fields = append(fields, zap.String("account_number", event.AccountNumber))
	}
	if event.Amount != 0 {
		fields = append(fields, zap.Int64("amount", event.Amount))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String(k, v))
	}

	if event.Status == StatusFailed {
		a.logger.Warn("AUDIT", fields...)
		return
	}
	a.logger.Info("AUDIT", fields...)
}
