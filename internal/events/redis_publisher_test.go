package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/ruralpay/banksim/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	event := Event{
		Type:          TypeDeposit,
		AccountNumber: "RAJ1000",
		TransactionID: "tx-1",
		Amount:        500,
		Balance:       500,
		OccurredAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	t.Run("pushes json onto the list", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		p := NewRedisPublisher(client, "", DefaultBreakerConfig(), nil, nil)

		mock.ExpectRPush(DefaultKey, payload).SetVal(1)

		assert.NoError(t, p.Publish(ctx, event))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis failure is returned", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		p := NewRedisPublisher(client, "custom:events", DefaultBreakerConfig(), nil, nil)

		mock.ExpectRPush("custom:events", payload).SetErr(errors.New("connection refused"))

		err := p.Publish(ctx, event)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("breaker opens after consecutive failures", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		config := DefaultBreakerConfig()
		config.FailureThreshold = 2
		p := NewRedisPublisher(client, DefaultKey, config, metrics.NoOpCollector{}, nil)

		mock.ExpectRPush(DefaultKey, payload).SetErr(errors.New("down"))
		mock.ExpectRPush(DefaultKey, payload).SetErr(errors.New("down"))

		assert.Error(t, p.Publish(ctx, event))
		assert.Error(t, p.Publish(ctx, event))
		assert.Equal(t, "open", p.State())

		// rejected without touching redis
		assert.ErrorIs(t, p.Publish(ctx, event), ErrCircuitOpen)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), Event{Type: TypeTransfer}))
}
