package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"

	"github.com/ruralpay/banksim/internal/store"
	"github.com/skip2/go-qrcode"
)

const qrImageSize = 256

// AccountQRPayload is what a payer's app reads to pre-fill a transfer.
type AccountQRPayload struct {
	AccountNumber string `json:"accountNumber"`
	HolderName    string `json:"holderName"`
}

type QRService struct {
	store store.Store
}

func NewQRService(s store.Store) *QRService {
	return &QRService{
		store: s,
	}
}

// AccountQR renders a PNG QR code identifying an ACTIVE account as a transfer destination.
func (s *QRService) AccountQR(ctx context.Context, accountNumber string) ([]byte, error) {
	acc, err := loadActiveAccount(ctx, s.store, accountNumber)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(AccountQRPayload{
		AccountNumber: acc.AccountNumber,
		HolderName:    acc.HolderName,
	})
	if err != nil {
		return nil, err
	}

	qr, err := qrcode.New(string(jsonData), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr for %s: %w", accountNumber, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(qrImageSize)); err != nil {
		return nil, fmt.Errorf("render qr for %s: %w", accountNumber, err)
	}
	return buf.Bytes(), nil
}
