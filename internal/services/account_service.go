package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ruralpay/banksim/internal/events"
	"github.com/ruralpay/banksim/internal/models"
	"github.com/ruralpay/banksim/internal/store"
	"go.uber.org/zap"
)

// createAttempts covers one retry when a concurrent create claimed the same
// number between the allocator's lookup and our insert.
const createAttempts = 2

// AccountService manages the account lifecycle: create, close, delete and reads.
type AccountService struct {
	store     store.Store
	allocator *AccountNumberAllocator
	locker    *AccountLocker
	opts      Options
}

func NewAccountService(s store.Store, allocator *AccountNumberAllocator, locker *AccountLocker, opts Options) *AccountService {
	if locker == nil {
		locker = NewAccountLocker()
	}
	return &AccountService{
		store:     s,
		allocator: allocator,
		locker:    locker,
		opts:      opts.withDefaults(),
	}
}

// CreateAccount opens an ACTIVE account with a zero balance.
func (s *AccountService) CreateAccount(ctx context.Context, holderName string) (*models.Account, error) {
	start := time.Now()
	acc, err := s.create(ctx, holderName)
	s.opts.record(opCreate, start, err)
	if err != nil {
		return nil, err
	}

	s.opts.Audit.LogAccount("CREATE", acc.AccountNumber, acc.HolderName)
	s.opts.Logger.Info("created account", zap.String("account", acc.AccountNumber))
	s.opts.publish(ctx, events.Event{
		Type:          events.TypeAccountCreated,
		AccountNumber: acc.AccountNumber,
	})
	return acc, nil
}

func (s *AccountService) create(ctx context.Context, holderName string) (*models.Account, error) {
	name, err := NormalizeHolderName(holderName)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		number, err := s.allocator.Allocate(ctx, name)
		if err != nil {
			return nil, err
		}

		acc, err := s.store.SaveAccount(ctx, &models.Account{
			AccountNumber:  number,
			HolderName:     name,
			Balance:        0,
			Status:         models.AccountActive,
			TransactionIDs: []string{},
			CreatedAt:      s.opts.Now(),
		})
		if errors.Is(err, store.ErrDuplicateAccountNumber) && attempt < createAttempts {
			s.opts.Logger.Warn("account number taken concurrently, retrying", zap.String("account", number))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create account %s: %w", number, err)
		}
		return acc, nil
	}
}

func (s *AccountService) GetAccount(ctx context.Context, accountNumber string) (*models.Account, error) {
	return loadAccount(ctx, s.store, accountNumber)
}

// CloseAccount marks a zero-balance account INACTIVE. History is kept.
// Closing an INACTIVE account returns it unchanged.
func (s *AccountService) CloseAccount(ctx context.Context, accountNumber string) (*models.Account, error) {
	start := time.Now()
	acc, changed, err := s.close(ctx, accountNumber)
	s.opts.record(opClose, start, err)
	if err != nil {
		return nil, err
	}
	if !changed {
		return acc, nil
	}

	s.opts.Audit.LogAccount("CLOSE", acc.AccountNumber, acc.HolderName)
	s.opts.Logger.Info("closed account", zap.String("account", accountNumber))
	s.opts.publish(ctx, events.Event{
		Type:          events.TypeAccountClosed,
		AccountNumber: accountNumber,
	})
	return acc, nil
}

func (s *AccountService) close(ctx context.Context, number string) (*models.Account, bool, error) {
	unlock := s.locker.Lock(number)
	defer unlock()

	acc, err := loadAccount(ctx, s.store, number)
	if err != nil {
		return nil, false, err
	}
	if acc.Balance != 0 {
		return nil, false, fmt.Errorf("%w: cannot close account %s with non-zero balance", ErrInvalidState, number)
	}
	if !acc.IsActive() {
		return acc, false, nil
	}

	acc.Status = models.AccountInactive
	saved, err := s.store.SaveAccount(ctx, acc)
	if err != nil {
		return nil, false, fmt.Errorf("close account %s: %w", number, err)
	}
	return saved, true, nil
}

// DeleteAccount removes the account and every transaction it owns.
func (s *AccountService) DeleteAccount(ctx context.Context, accountNumber string) error {
	start := time.Now()
	acc, err := s.delete(ctx, accountNumber)
	s.opts.record(opDelete, start, err)
	if err != nil {
		return err
	}

	s.opts.Audit.LogAccount("DELETE", acc.AccountNumber, acc.HolderName)
	s.opts.Logger.Info("deleted account", zap.String("account", accountNumber))
	s.opts.publish(ctx, events.Event{
		Type:          events.TypeAccountDeleted,
		AccountNumber: accountNumber,
		Balance:       acc.Balance,
	})
	return nil
}

func (s *AccountService) delete(ctx context.Context, number string) (*models.Account, error) {
	unlock := s.locker.Lock(number)
	defer unlock()

	var deleted *models.Account
	_, err := store.RunInTx(ctx, s.store, func(st store.Store) error {
		acc, err := loadAccount(ctx, st, number)
		if err != nil {
			return err
		}

		txs, err := st.FindTransactionsByAccountID(ctx, acc.ID)
		if err != nil {
			return fmt.Errorf("list transactions of %s: %w", number, err)
		}
		if len(txs) > 0 {
			if err := st.DeleteTransactions(ctx, txs); err != nil {
				return fmt.Errorf("delete transactions of %s: %w", number, err)
			}
		}
		if err := st.DeleteAccountByNumber(ctx, number); err != nil {
			return fmt.Errorf("delete account %s: %w", number, err)
		}
		deleted = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ListTransactions returns the account's transactions in write order.
func (s *AccountService) ListTransactions(ctx context.Context, accountNumber string) ([]models.Transaction, error) {
	acc, err := loadAccount(ctx, s.store, accountNumber)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.FindTransactionsByAccountID(ctx, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("list transactions of %s: %w", accountNumber, err)
	}
	return txs, nil
}

func (s *AccountService) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := s.store.FindTransactionByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: no transaction %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction %s: %w", id, err)
	}
	return tx, nil
}
