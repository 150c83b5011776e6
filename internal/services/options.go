package services

import (
	"context"
	"time"

	"github.com/ruralpay/banksim/internal/audit"
	"github.com/ruralpay/banksim/internal/events"
	"github.com/ruralpay/banksim/internal/logging"
	"github.com/ruralpay/banksim/internal/metrics"
	"go.uber.org/zap"
)

// publishTimeout bounds one event publish. The change is already committed, so
// the publish is detached from the caller's cancellation.
const publishTimeout = 5 * time.Second

// Options carries the collaborators shared by the ledger and account services.
// Nil fields fall back to no-op implementations.
type Options struct {
	Logger    *logging.Logger
	Audit     *audit.AuditLogger
	Publisher events.Publisher
	Metrics   metrics.Collector
	Now       func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.NewNoOpLogger()
	}
	if o.Audit == nil {
		o.Audit = audit.NewAuditLogger(o.Logger)
	}
	if o.Publisher == nil {
		o.Publisher = events.NopPublisher{}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NoOpCollector{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// publish hands a committed change to the event sink. Failures are logged and
// never reach the caller.
func (o Options) publish(ctx context.Context, event events.Event) {
	event.OccurredAt = o.Now()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := o.Publisher.Publish(ctx, event); err != nil {
		o.Logger.Warn("failed to publish ledger event",
			zap.String("type", event.Type),
			zap.String("account", event.AccountNumber),
			zap.Error(err),
		)
	}
}

func (o Options) record(operation string, start time.Time, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFailure
	}
	o.Metrics.RecordOperation(operation, result, time.Since(start))
}

const (
	opDeposit  = "deposit"
	opWithdraw = "withdraw"
	opTransfer = "transfer"
	opCreate   = "create"
	opClose    = "close"
	opDelete   = "delete"
)
