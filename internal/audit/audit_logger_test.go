package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/ruralpay/banksim/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedAuditLogger() (*AuditLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := NewAuditLogger(&logging.Logger{Logger: zap.New(core)})
	a.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return a, logs
}

func TestAuditLogger(t *testing.T) {
	t.Run("deposit", func(t *testing.T) {
		a, logs := newObservedAuditLogger()
		a.LogDeposit("tx-1", "RAJ1000", 500, 500)

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, zapcore.InfoLevel, entry.Level)
		assert.Equal(t, "audit", entry.LoggerName)

		fields := entry.ContextMap()
		assert.Equal(t, "DEPOSIT", fields["event_type"])
		assert.Equal(t, "tx-1", fields["transaction_id"])
		assert.Equal(t, "RAJ1000", fields["account_number"])
		assert.Equal(t, int64(500), fields["amount"])
		assert.Equal(t, "500", fields["balance"])
	})

	t.Run("transfer", func(t *testing.T) {
		a, logs := newObservedAuditLogger()
		a.LogTransfer("tx-2", "RAJ1000", "RAV1001", 100)

		fields := logs.All()[0].ContextMap()
		assert.Equal(t, "TRANSFER", fields["event_type"])
		assert.Equal(t, "RAJ1000", fields["from_account"])
		assert.Equal(t, "RAV1001", fields["to_account"])
	})

	t.Run("account lifecycle", func(t *testing.T) {
		a, logs := newObservedAuditLogger()
		a.LogAccount("CLOSE", "RAV1001", "Ravi")

		fields := logs.All()[0].ContextMap()
		assert.Equal(t, "ACCOUNT_CLOSE", fields["event_type"])
		assert.NotContains(t, fields, "transaction_id")
	})

	t.Run("failure is a warning", func(t *testing.T) {
		a, logs := newObservedAuditLogger()
		a.LogError("WITHDRAW", "RAJ1000", 900, errors.New("insufficient balance"))

		entry := logs.All()[0]
		assert.Equal(t, zapcore.WarnLevel, entry.Level)
		assert.Equal(t, StatusFailed, entry.ContextMap()["status"])
		assert.Equal(t, "insufficient balance", entry.ContextMap()["error"])
	})

	t.Run("nil logger is tolerated", func(t *testing.T) {
		assert.NotPanics(t, func() {
			NewAuditLogger(nil).LogWithdraw("tx-3", "RAJ1000", 1, 0)
		})
	})
}
