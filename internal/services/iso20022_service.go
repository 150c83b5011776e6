package services

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/ruralpay/banksim/internal/models"
	"github.com/ruralpay/banksim/internal/store"
)

const (
	MessageTypePacs008 = "pacs.008.001.08"
	MessageTypePacs002 = "pacs.002.001.08"
	// StatusSettled is the pacs.002 status for a completed ledger entry.
	StatusSettled = "ACSC"
)

type ISO20022Config struct {
	Currency   string
	BankBIC    string
	MinorUnits int
}

// ISO20022Service renders completed transfers as ISO 20022 messages for
// settlement systems. Amounts are converted from minor to major units.
type ISO20022Service struct {
	store  store.Store
	config ISO20022Config
	now    func() time.Time
}

func NewISO20022Service(s store.Store, config ISO20022Config) *ISO20022Service {
	if config.Currency == "" {
		config.Currency = "NGN"
	}
	return &ISO20022Service{
		store:  s,
		config: config,
		now:    time.Now,
	}
}

// ExportPacs008 returns the pacs.008 XML for a TRANSFER transaction.
func (iso *ISO20022Service) ExportPacs008(ctx context.Context, txID string) (string, error) {
	tx, err := iso.loadTransfer(ctx, txID)
	if err != nil {
		return "", err
	}
	doc, err := iso.CreatePacs008(ctx, tx)
	if err != nil {
		return "", err
	}
	return iso.ConvertToXML(doc)
}

// ExportPacs002 returns a pacs.002 status report confirming the transfer settled.
func (iso *ISO20022Service) ExportPacs002(ctx context.Context, txID string) (string, error) {
	tx, err := iso.loadTransfer(ctx, txID)
	if err != nil {
		return "", err
	}
	doc, err := iso.CreatePacs002(tx, StatusSettled)
	if err != nil {
		return "", err
	}
	return iso.ConvertToXML(doc)
}

func (iso *ISO20022Service) loadTransfer(ctx context.Context, txID string) (*models.Transaction, error) {
	tx, err := iso.store.FindTransactionByID(ctx, txID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: no transaction %s", ErrNotFound, txID)
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction %s: %w", txID, err)
	}
	if !tx.IsTransfer() {
		return nil, fmt.Errorf("%w: transaction %s is a %s, only transfers can be exported", ErrInvalidArgument, txID, tx.Type)
	}
	return tx, nil
}

// CreatePacs008 creates a pacs.008 FIToFICustomerCreditTransfer message
func (iso *ISO20022Service) CreatePacs008(ctx context.Context, tx *models.Transaction) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if !tx.IsTransfer() {
		return nil, fmt.Errorf("%w: pacs.008 requires a transfer", ErrInvalidArgument)
	}

	creDtTm := iso.now()
	settlementDate := tx.Timestamp
	amount := pacs_v08.ActiveCurrencyAndAmount{
		Ccy:   common.ActiveCurrencyCode(iso.config.Currency),
		Value: iso.majorUnits(tx.Amount),
	}
	txRef := messageID(tx.ID)

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:             common.Max35Text(messageID(uuid.NewString())),
			CreDtTm:           common.ISODateTime(creDtTm),
			NbOfTxs:           "1",
			TtlIntrBkSttlmAmt: &amount,
			IntrBkSttlmDt:     (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG", // Clearing
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    max35(txRef),
					EndToEndId: common.Max35Text(txRef),
					TxId:       max35(txRef),
				},
				IntrBkSttlmAmt: amount,
				IntrBkSttlmDt:  (*common.ISODate)(&settlementDate),
				ChrgBr:         "SLEV",
				DbtrAgt:        iso.agent(),
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: iso.partyName(ctx, tx.SourceAccountNumber),
				},
				CdtrAgt: iso.agent(),
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: iso.partyName(ctx, tx.DestinationAccountNumber),
				},
			},
		},
	}

	return doc, nil
}

// CreatePacs002 creates a pacs.002 payment status report
func (iso *ISO20022Service) CreatePacs002(tx *models.Transaction, status string) (*pacs_v08.FIToFIPaymentStatusReportV08, error) {
	txRef := messageID(tx.ID)

	doc := &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(messageID(uuid.NewString())),
			CreDtTm: common.ISODateTime(iso.now()),
		},
		TxInfAndSts: []pacs_v08.PaymentTransaction80{
			{
				OrgnlInstrId:    max35(txRef),
				OrgnlEndToEndId: max35(txRef),
				OrgnlTxId:       max35(txRef),
				TxSts:           &[]pacs_v08.ExternalPaymentTransactionStatus1Code{pacs_v08.ExternalPaymentTransactionStatus1Code(status)}[0], // ACCP, RJCT, ACSC, etc.
			},
		},
	}

	return doc, nil
}

// ConvertToXML converts ISO20022 document to XML string
func (iso *ISO20022Service) ConvertToXML(doc interface{}) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}

func (iso *ISO20022Service) agent() pacs_v08.BranchAndFinancialInstitutionIdentification6 {
	bic := common.BICFIDec2014Identifier(iso.config.BankBIC)
	return pacs_v08.BranchAndFinancialInstitutionIdentification6{
		FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
			BICFI: &bic,
		},
	}
}

// partyName prefers the holder name and falls back to the account number once
// the account has been deleted.
func (iso *ISO20022Service) partyName(ctx context.Context, number string) *common.Max140Text {
	name := number
	if acc, err := iso.store.FindAccountByNumber(ctx, number); err == nil {
		name = acc.HolderName
	}
	nm := common.Max140Text(name)
	return &nm
}

func (iso *ISO20022Service) majorUnits(amount int64) float64 {
	return float64(amount) / math.Pow10(iso.config.MinorUnits)
}

// messageID strips the dashes from a UUID so it fits Max35Text.
func messageID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 35 {
		id = id[:35]
	}
	return id
}

func max35(s string) *common.Max35Text {
	v := common.Max35Text(s)
	return &v
}
