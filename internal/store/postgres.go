package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/ruralpay/banksim/internal/models"
)

const uniqueViolation = "23505"

const accountColumns = `id, account_number, holder_name, balance, status, transaction_ids, version, created_at, updated_at`

const transactionColumns = `id, account_id, type, amount, note, source_account_number, destination_account_number, created_at`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists the ledger in PostgreSQL. Inside WithinTx account reads
// take row locks (SELECT ... FOR UPDATE).
type PostgresStore struct {
	db   *sql.DB
	q    querier
	inTx bool
	now  func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:  db,
		q:   db,
		now: time.Now,
	}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&PostgresStore{db: s.db, q: tx, inTx: true, now: s.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindAccountByNumber(ctx context.Context, number string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	if s.inTx {
		query += ` FOR UPDATE`
	}

	var acc models.Account
	err := s.q.QueryRowContext(ctx, query, number).Scan(
		&acc.ID, &acc.AccountNumber, &acc.HolderName, &acc.Balance, &acc.Status,
		pq.Array(&acc.TransactionIDs), &acc.Version, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find account %s: %w", number, err)
	}
	return &acc, nil
}

func (s *PostgresStore) SaveAccount(ctx context.Context, acc *models.Account) (*models.Account, error) {
	if acc == nil {
		return nil, fmt.Errorf("store: nil account")
	}
	c := acc.Clone()
	c.UpdatedAt = s.now()
	if c.TransactionIDs == nil {
		c.TransactionIDs = []string{}
	}

	if c.Version == 0 {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = c.UpdatedAt
		}
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO accounts (id, account_number, holder_name, balance, status, transaction_ids, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8)`,
			c.ID, c.AccountNumber, c.HolderName, c.Balance, string(c.Status),
			pq.Array(c.TransactionIDs), c.CreatedAt, c.UpdatedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return nil, ErrDuplicateAccountNumber
			}
			return nil, fmt.Errorf("store: insert account %s: %w", c.AccountNumber, err)
		}
		c.Version = 1
		return c, nil
	}

	result, err := s.q.ExecContext(ctx, `
		UPDATE accounts
		SET holder_name = $1, balance = $2, status = $3, transaction_ids = $4, version = version + 1, updated_at = $5
		WHERE id = $6 AND version = $7`,
		c.HolderName, c.Balance, string(c.Status), pq.Array(c.TransactionIDs), c.UpdatedAt, c.ID, c.Version)
	if err != nil {
		return nil, fmt.Errorf("store: update account %s: %w", c.AccountNumber, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w for account %s", ErrVersionConflict, c.AccountNumber)
	}

	c.Version++
	return c, nil
}

func (s *PostgresStore) DeleteAccountByNumber(ctx context.Context, number string) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM accounts WHERE account_number = $1`, number)
	if err != nil {
		return fmt.Errorf("store: delete account %s: %w", number, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindTransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM account_transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find transaction %s: %w", id, err)
	}
	return tx, nil
}

func (s *PostgresStore) FindTransactionsByAccountID(ctx context.Context, accountID string) ([]models.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM account_transactions
		WHERE account_id = $1
		ORDER BY created_at, seq`, accountID)
	if err != nil {
		return nil, fmt.Errorf("store: list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan transaction: %w", err)
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

func (s *PostgresStore) SaveTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("store: nil transaction")
	}
	c := *tx
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = s.now()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO account_transactions (id, account_id, type, amount, note, source_account_number, destination_account_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.AccountID, string(c.Type), c.Amount, c.Note,
		nullString(c.SourceAccountNumber), nullString(c.DestinationAccountNumber), c.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("store: insert transaction: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) DeleteTransactions(ctx context.Context, txs []models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(txs))
	for _, t := range txs {
		ids = append(ids, t.ID)
	}
	if _, err := s.q.ExecContext(ctx, `DELETE FROM account_transactions WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return fmt.Errorf("store: delete transactions: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx          models.Transaction
		source      sql.NullString
		destination sql.NullString
	)
	if err := row.Scan(&tx.ID, &tx.AccountID, &tx.Type, &tx.Amount, &tx.Note, &source, &destination, &tx.Timestamp); err != nil {
		return nil, err
	}
	tx.SourceAccountNumber = source.String
	tx.DestinationAccountNumber = destination.String
	return &tx, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
