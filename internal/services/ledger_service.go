package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ruralpay/banksim/internal/events"
	"github.com/ruralpay/banksim/internal/models"
	"github.com/ruralpay/banksim/internal/store"
	"go.uber.org/zap"
)

// LedgerService moves money. Every operation takes the per-account lock first
// and reads the account from the store only while holding it.
type LedgerService struct {
	store  store.Store
	locker *AccountLocker
	opts   Options
}

func NewLedgerService(s store.Store, locker *AccountLocker, opts Options) *LedgerService {
	if locker == nil {
		locker = NewAccountLocker()
	}
	return &LedgerService{
		store:  s,
		locker: locker,
		opts:   opts.withDefaults(),
	}
}

func (s *LedgerService) Deposit(ctx context.Context, accountNumber string, amount int64) (*models.Transaction, error) {
	start := time.Now()
	tx, acc, err := s.deposit(ctx, accountNumber, amount)
	s.opts.record(opDeposit, start, err)
	if err != nil {
		s.opts.Audit.LogError("DEPOSIT", accountNumber, amount, err)
		return nil, err
	}

	s.opts.Audit.LogDeposit(tx.ID, accountNumber, amount, acc.Balance)
	s.opts.Logger.Info("deposited",
		zap.String("account", accountNumber),
		zap.Int64("amount", amount),
		zap.String("transaction_id", tx.ID),
	)
	s.opts.publish(ctx, events.Event{
		Type:          events.TypeDeposit,
		AccountNumber: accountNumber,
		TransactionID: tx.ID,
		Amount:        amount,
		Balance:       acc.Balance,
	})
	return tx, nil
}

func (s *LedgerService) Withdraw(ctx context.Context, accountNumber string, amount int64) (*models.Transaction, error) {
	start := time.Now()
	tx, acc, err := s.withdraw(ctx, accountNumber, amount)
	s.opts.record(opWithdraw, start, err)
	if err != nil {
		s.opts.Audit.LogError("WITHDRAW", accountNumber, amount, err)
		return nil, err
	}

	s.opts.Audit.LogWithdraw(tx.ID, accountNumber, amount, acc.Balance)
	s.opts.Logger.Info("withdrew",
		zap.String("account", accountNumber),
		zap.Int64("amount", amount),
		zap.String("transaction_id", tx.ID),
	)
	s.opts.publish(ctx, events.Event{
		Type:          events.TypeWithdraw,
		AccountNumber: accountNumber,
		TransactionID: tx.ID,
		Amount:        amount,
		Balance:       acc.Balance,
	})
	return tx, nil
}

// Transfer debits from and credits to. The single TRANSFER entry is appended to
// the source account's log only.
func (s *LedgerService) Transfer(ctx context.Context, fromNumber, toNumber string, amount int64) (*models.Transaction, error) {
	start := time.Now()
	tx, from, err := s.transfer(ctx, fromNumber, toNumber, amount)
	s.opts.record(opTransfer, start, err)
	if err != nil {
		s.opts.Audit.LogError("TRANSFER", fromNumber, amount, err)
		return nil, err
	}

	s.opts.Audit.LogTransfer(tx.ID, fromNumber, toNumber, amount)
	s.opts.Logger.Info("transferred",
		zap.String("from", fromNumber),
		zap.String("to", toNumber),
		zap.Int64("amount", amount),
		zap.String("transaction_id", tx.ID),
	)
	s.opts.publish(ctx, events.Event{
		Type:               events.TypeTransfer,
		AccountNumber:      fromNumber,
		CounterpartyNumber: toNumber,
		TransactionID:      tx.ID,
		Amount:             amount,
		Balance:            from.Balance,
	})
	return tx, nil
}

func (s *LedgerService) deposit(ctx context.Context, number string, amount int64) (*models.Transaction, *models.Account, error) {
	if err := validateAmount(amount); err != nil {
		return nil, nil, err
	}

	unlock := s.lock(opDeposit, number)
	defer unlock()

	var (
		saved   *models.Transaction
		account *models.Account
		w       writeProgress
	)
	atomic, err := store.RunInTx(ctx, s.store, func(st store.Store) error {
		acc, err := loadActiveAccount(ctx, st, number)
		if err != nil {
			return err
		}
		if err := checkCredit(acc, amount); err != nil {
			return err
		}

		acc.Balance += amount
		if acc, err = st.SaveAccount(ctx, acc); err != nil {
			return fmt.Errorf("persist balance of %s: %w", number, err)
		}
		w.balancePersisted = true

		saved, account, err = appendTransaction(ctx, st, acc, &models.Transaction{
			AccountID: acc.ID,
			Type:      models.TransactionDeposit,
			Amount:    amount,
			Timestamp: s.opts.Now(),
			Note:      "deposit",
		})
		return err
	})
	if err != nil {
		s.reportPartialWrite(opDeposit, number, atomic, w, err)
		return nil, nil, err
	}
	return saved, account, nil
}

func (s *LedgerService) withdraw(ctx context.Context, number string, amount int64) (*models.Transaction, *models.Account, error) {
	if err := validateAmount(amount); err != nil {
		return nil, nil, err
	}

	unlock := s.lock(opWithdraw, number)
	defer unlock()

	var (
		saved   *models.Transaction
		account *models.Account
		w       writeProgress
	)
	atomic, err := store.RunInTx(ctx, s.store, func(st store.Store) error {
		acc, err := loadActiveAccount(ctx, st, number)
		if err != nil {
			return err
		}
		if acc.Balance < amount {
			return fmt.Errorf("%w: account %s", ErrInsufficientBalance, number)
		}

		acc.Balance -= amount
		if acc, err = st.SaveAccount(ctx, acc); err != nil {
			return fmt.Errorf("persist balance of %s: %w", number, err)
		}
		w.balancePersisted = true

		saved, account, err = appendTransaction(ctx, st, acc, &models.Transaction{
			AccountID: acc.ID,
			Type:      models.TransactionWithdraw,
			Amount:    amount,
			Timestamp: s.opts.Now(),
			Note:      "withdraw",
		})
		return err
	})
	if err != nil {
		s.reportPartialWrite(opWithdraw, number, atomic, w, err)
		return nil, nil, err
	}
	return saved, account, nil
}

func (s *LedgerService) transfer(ctx context.Context, fromNumber, toNumber string, amount int64) (*models.Transaction, *models.Account, error) {
	if err := validateAmount(amount); err != nil {
		return nil, nil, err
	}
	if fromNumber == toNumber {
		return nil, nil, fmt.Errorf("%w: cannot transfer to the same account", ErrInvalidArgument)
	}

	unlock := s.lockPair(fromNumber, toNumber)
	defer unlock()

	var (
		saved  *models.Transaction
		source *models.Account
		w      writeProgress
	)
	atomic, err := store.RunInTx(ctx, s.store, func(st store.Store) error {
		from, to, err := loadPair(ctx, st, fromNumber, toNumber)
		if err != nil {
			return err
		}
		if from.Balance < amount {
			return fmt.Errorf("%w: account %s", ErrInsufficientBalance, fromNumber)
		}
		if err := checkCredit(to, amount); err != nil {
			return err
		}

		from.Balance -= amount
		to.Balance += amount
		if from, err = st.SaveAccount(ctx, from); err != nil {
			return fmt.Errorf("persist balance of %s: %w", fromNumber, err)
		}
		w.balancePersisted = true
		if _, err = st.SaveAccount(ctx, to); err != nil {
			return fmt.Errorf("persist balance of %s: %w", toNumber, err)
		}

		saved, source, err = appendTransaction(ctx, st, from, &models.Transaction{
			AccountID:                from.ID,
			Type:                     models.TransactionTransfer,
			Amount:                   amount,
			Timestamp:                s.opts.Now(),
			Note:                     "transfer to " + toNumber,
			SourceAccountNumber:      fromNumber,
			DestinationAccountNumber: toNumber,
		})
		return err
	})
	if err != nil {
		s.reportPartialWrite(opTransfer, fromNumber+"->"+toNumber, atomic, w, err)
		return nil, nil, err
	}
	return saved, source, nil
}

func (s *LedgerService) lock(operation, number string) func() {
	start := time.Now()
	unlock := s.locker.Lock(number)
	s.opts.Metrics.RecordLockWait(operation, time.Since(start))
	return unlock
}

func (s *LedgerService) lockPair(a, b string) func() {
	start := time.Now()
	unlock := s.locker.LockPair(a, b)
	s.opts.Metrics.RecordLockWait(opTransfer, time.Since(start))
	return unlock
}

// writeProgress tracks how far a non-atomic write got before failing.
type writeProgress struct {
	balancePersisted bool
}

// reportPartialWrite logs the window where a balance change was stored but its
// transaction record was not. Only reachable with stores lacking Transactor.
func (s *LedgerService) reportPartialWrite(operation, accounts string, atomic bool, w writeProgress, err error) {
	if atomic || !w.balancePersisted {
		return
	}
	s.opts.Logger.Error("ledger write partially applied: balance persisted without transaction record",
		zap.String("operation", operation),
		zap.String("accounts", accounts),
		zap.Error(err),
	)
}

// appendTransaction persists tx, appends it to acc's log and persists acc again.
func appendTransaction(ctx context.Context, st store.Store, acc *models.Account, tx *models.Transaction) (*models.Transaction, *models.Account, error) {
	saved, err := st.SaveTransaction(ctx, tx)
	if err != nil {
		return nil, nil, fmt.Errorf("persist %s transaction for %s: %w", strings.ToLower(string(tx.Type)), acc.AccountNumber, err)
	}

	acc.AppendTransaction(saved.ID)
	updated, err := st.SaveAccount(ctx, acc)
	if err != nil {
		return nil, nil, fmt.Errorf("append transaction to %s: %w", acc.AccountNumber, err)
	}
	return saved, updated, nil
}

func loadAccount(ctx context.Context, st store.Store, number string) (*models.Account, error) {
	acc, err := st.FindAccountByNumber(ctx, number)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: no account %s", ErrNotFound, number)
	}
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", number, err)
	}
	return acc, nil
}

func loadActiveAccount(ctx context.Context, st store.Store, number string) (*models.Account, error) {
	acc, err := loadAccount(ctx, st, number)
	if err != nil {
		return nil, err
	}
	if !acc.IsActive() {
		return nil, fmt.Errorf("%w: account %s is not active", ErrInvalidState, number)
	}
	return acc, nil
}

// loadPair reads both transfer legs in the same order LockPair uses, so row
// locks taken by a transactional store follow it too.
func loadPair(ctx context.Context, st store.Store, fromNumber, toNumber string) (*models.Account, *models.Account, error) {
	first, second := fromNumber, toNumber
	if first > second {
		first, second = second, first
	}

	a, err := loadAccount(ctx, st, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := loadAccount(ctx, st, second)
	if err != nil {
		return nil, nil, err
	}

	from, to := a, b
	if first != fromNumber {
		from, to = b, a
	}
	for _, acc := range []*models.Account{from, to} {
		if !acc.IsActive() {
			return nil, nil, fmt.Errorf("%w: account %s is not active", ErrInvalidState, acc.AccountNumber)
		}
	}
	return from, to, nil
}

// checkCredit rejects a credit that would overflow the balance. amount must
// already be positive.
func checkCredit(acc *models.Account, amount int64) error {
	if acc.Balance > math.MaxInt64-amount {
		return fmt.Errorf("%w: crediting %d would overflow the balance of %s", ErrInvalidArgument, amount, acc.AccountNumber)
	}
	return nil
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	}
	return nil
}
