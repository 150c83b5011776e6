package services

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/ruralpay/banksim/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRService_AccountQR(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	bank := newTestBank(t, s, Options{})
	service := NewQRService(s)

	t.Run("active account renders png", func(t *testing.T) {
		acc := bank.open(t, "Raj Kumar", 0)
		data, err := service.AccountQR(ctx, acc.AccountNumber)
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, qrImageSize, img.Bounds().Dx())
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := service.AccountQR(ctx, "NOPE1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("inactive account", func(t *testing.T) {
		acc := bank.open(t, "Ravi", 0)
		_, err := bank.accounts.CloseAccount(ctx, acc.AccountNumber)
		require.NoError(t, err)

		_, err = service.AccountQR(ctx, acc.AccountNumber)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}
