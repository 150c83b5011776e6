package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ruralpay/banksim/internal/models"
)

// MemoryStore keeps the ledger in process memory. Values are copied on the way
// in and out so callers never alias stored records.
type MemoryStore struct {
	mu           sync.RWMutex
	accounts     map[string]*models.Account // by id
	numbers      map[string]string          // account number -> id
	transactions map[string]*models.Transaction
	byAccount    map[string][]string // account id -> transaction ids in write order
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[string]*models.Account),
		numbers:      make(map[string]string),
		transactions: make(map[string]*models.Transaction),
		byAccount:    make(map[string][]string),
		now:          time.Now,
	}
}

func (s *MemoryStore) FindAccountByNumber(ctx context.Context, number string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findAccount(number)
}

func (s *MemoryStore) SaveAccount(ctx context.Context, acc *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAccount(acc)
}

func (s *MemoryStore) DeleteAccountByNumber(ctx context.Context, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteAccount(number)
}

func (s *MemoryStore) FindTransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *tx
	return &c, nil
}

func (s *MemoryStore) FindTransactionsByAccountID(ctx context.Context, accountID string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byAccount[accountID]
	out := make([]models.Transaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.transactions[id])
	}
	return out, nil
}

func (s *MemoryStore) SaveTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveTransaction(tx)
}

func (s *MemoryStore) DeleteTransactions(ctx context.Context, txs []models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteTransactions(txs)
	return nil
}

// WithinTx buffers every write fn makes through the handed Store and applies
// them under the store lock once fn returns nil. Reads inside fn see the
// buffered writes; other callers see none of them until commit. The lock is
// not held while fn runs, so units of work on different accounts proceed in
// parallel. A commit fails with ErrVersionConflict or ErrDuplicateAccountNumber
// when an account fn wrote was changed by someone else in the meantime.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	tx := newMemoryTx(s)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// The helpers below expect s.mu to be held.

func (s *MemoryStore) findAccount(number string) (*models.Account, error) {
	id, ok := s.numbers[number]
	if !ok {
		return nil, ErrNotFound
	}
	return s.accounts[id].Clone(), nil
}

func (s *MemoryStore) saveAccount(acc *models.Account) (*models.Account, error) {
	if acc == nil {
		return nil, fmt.Errorf("store: nil account")
	}
	c := acc.Clone()
	c.UpdatedAt = s.now()

	if c.Version == 0 {
		if _, taken := s.numbers[c.AccountNumber]; taken {
			return nil, ErrDuplicateAccountNumber
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = c.UpdatedAt
		}
		c.Version = 1
		s.putAccount(c)
		return c.Clone(), nil
	}

	prev, ok := s.accounts[c.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if prev.Version != c.Version {
		return nil, fmt.Errorf("%w for account %s", ErrVersionConflict, c.AccountNumber)
	}
	c.Version++
	s.putAccount(c)
	return c.Clone(), nil
}

func (s *MemoryStore) putAccount(acc *models.Account) {
	s.accounts[acc.ID] = acc
	s.numbers[acc.AccountNumber] = acc.ID
}

func (s *MemoryStore) removeAccount(acc *models.Account) {
	delete(s.accounts, acc.ID)
	delete(s.numbers, acc.AccountNumber)
}

func (s *MemoryStore) deleteAccount(number string) error {
	id, ok := s.numbers[number]
	if !ok {
		return ErrNotFound
	}
	s.removeAccount(s.accounts[id])
	return nil
}

func (s *MemoryStore) saveTransaction(tx *models.Transaction) (*models.Transaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("store: nil transaction")
	}
	c := *tx
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := s.transactions[c.ID]; exists {
		return nil, fmt.Errorf("store: transaction %s is immutable", c.ID)
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = s.now()
	}
	s.transactions[c.ID] = &c
	s.byAccount[c.AccountID] = append(s.byAccount[c.AccountID], c.ID)
	out := c
	return &out, nil
}

func (s *MemoryStore) deleteTransactions(txs []models.Transaction) {
	touched := make(map[string]struct{})
	drop := make(map[string]struct{}, len(txs))
	for _, t := range txs {
		stored, ok := s.transactions[t.ID]
		if !ok {
			continue
		}
		touched[stored.AccountID] = struct{}{}
		drop[t.ID] = struct{}{}
		delete(s.transactions, t.ID)
	}
	for accountID := range touched {
		kept := make([]string, 0, len(s.byAccount[accountID]))
		for _, id := range s.byAccount[accountID] {
			if _, gone := drop[id]; !gone {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(s.byAccount, accountID)
		} else {
			s.byAccount[accountID] = kept
		}
	}
}

// memoryTx is the Store handed to WithinTx callbacks. Writes land in a
// private write set; reads consult it before the shared maps.
type memoryTx struct {
	s *MemoryStore

	// accounts holds staged account state by number, nil for a deletion.
	accounts map[string]*models.Account
	// basis records the stored version each staged number was based on,
	// 0 when the number was free.
	basis   map[string]int
	added   []*models.Transaction
	dropped map[string]struct{}
}

func newMemoryTx(s *MemoryStore) *memoryTx {
	return &memoryTx{
		s:        s,
		accounts: make(map[string]*models.Account),
		basis:    make(map[string]int),
		dropped:  make(map[string]struct{}),
	}
}

// view returns the account as this unit of work sees it, nil when absent.
func (t *memoryTx) view(number string) *models.Account {
	if acc, staged := t.accounts[number]; staged {
		return acc
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	if id, ok := t.s.numbers[number]; ok {
		return t.s.accounts[id]
	}
	return nil
}

func (t *memoryTx) stage(number string, acc *models.Account) {
	if _, staged := t.accounts[number]; !staged {
		t.basis[number] = 0
		if stored := t.view(number); stored != nil {
			t.basis[number] = stored.Version
		}
	}
	t.accounts[number] = acc
}

func (t *memoryTx) FindAccountByNumber(ctx context.Context, number string) (*models.Account, error) {
	acc := t.view(number)
	if acc == nil {
		return nil, ErrNotFound
	}
	return acc.Clone(), nil
}

func (t *memoryTx) SaveAccount(ctx context.Context, acc *models.Account) (*models.Account, error) {
	if acc == nil {
		return nil, fmt.Errorf("store: nil account")
	}
	c := acc.Clone()
	c.UpdatedAt = t.s.now()
	current := t.view(c.AccountNumber)

	if c.Version == 0 {
		if current != nil {
			return nil, ErrDuplicateAccountNumber
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = c.UpdatedAt
		}
		c.Version = 1
		t.stage(c.AccountNumber, c)
		return c.Clone(), nil
	}

	if current == nil || current.ID != c.ID {
		return nil, ErrNotFound
	}
	if current.Version != c.Version {
		return nil, fmt.Errorf("%w for account %s", ErrVersionConflict, c.AccountNumber)
	}
	c.Version++
	t.stage(c.AccountNumber, c)
	return c.Clone(), nil
}

func (t *memoryTx) DeleteAccountByNumber(ctx context.Context, number string) error {
	if t.view(number) == nil {
		return ErrNotFound
	}
	t.stage(number, nil)
	return nil
}

func (t *memoryTx) FindTransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	for _, tx := range t.added {
		if tx.ID == id {
			c := *tx
			return &c, nil
		}
	}
	if _, gone := t.dropped[id]; gone {
		return nil, ErrNotFound
	}
	return t.s.FindTransactionByID(ctx, id)
}

func (t *memoryTx) FindTransactionsByAccountID(ctx context.Context, accountID string) ([]models.Transaction, error) {
	stored, err := t.s.FindTransactionsByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Transaction, 0, len(stored)+len(t.added))
	for _, tx := range stored {
		if _, gone := t.dropped[tx.ID]; !gone {
			out = append(out, tx)
		}
	}
	for _, tx := range t.added {
		if tx.AccountID == accountID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (t *memoryTx) SaveTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("store: nil transaction")
	}
	c := *tx
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, err := t.FindTransactionByID(ctx, c.ID); err == nil {
		return nil, fmt.Errorf("store: transaction %s is immutable", c.ID)
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = t.s.now()
	}
	t.added = append(t.added, &c)
	out := c
	return &out, nil
}

func (t *memoryTx) DeleteTransactions(ctx context.Context, txs []models.Transaction) error {
	for _, tx := range txs {
		kept := t.added[:0]
		for _, a := range t.added {
			if a.ID != tx.ID {
				kept = append(kept, a)
			}
		}
		t.added = kept
		t.dropped[tx.ID] = struct{}{}
	}
	return nil
}

// commit validates the write set against the shared maps and applies it in
// one critical section. Nothing is applied when validation fails.
func (t *memoryTx) commit() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for number, basis := range t.basis {
		current := 0
		if id, ok := t.s.numbers[number]; ok {
			current = t.s.accounts[id].Version
		}
		if current == basis {
			continue
		}
		if basis == 0 {
			return ErrDuplicateAccountNumber
		}
		return fmt.Errorf("%w for account %s", ErrVersionConflict, number)
	}
	for _, tx := range t.added {
		if _, exists := t.s.transactions[tx.ID]; exists {
			return fmt.Errorf("store: transaction %s is immutable", tx.ID)
		}
	}

	for number, acc := range t.accounts {
		if id, ok := t.s.numbers[number]; ok {
			t.s.removeAccount(t.s.accounts[id])
		}
		if acc != nil {
			t.s.putAccount(acc)
		}
	}

	dropped := make([]models.Transaction, 0, len(t.dropped))
	for id := range t.dropped {
		dropped = append(dropped, models.Transaction{ID: id})
	}
	t.s.deleteTransactions(dropped)
	for _, tx := range t.added {
		t.s.transactions[tx.ID] = tx
		t.s.byAccount[tx.AccountID] = append(t.s.byAccount[tx.AccountID], tx.ID)
	}
	return nil
}
