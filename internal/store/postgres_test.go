package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/ruralpay/banksim/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountRowColumns = []string{"id", "account_number", "holder_name", "balance", "status", "transaction_ids", "version", "created_at", "updated_at"}

var transactionRowColumns = []string{"id", "account_id", "type", "amount", "note", "source_account_number", "destination_account_number", "created_at"}

func TestPostgresStore_FindAccountByNumber(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)
	ctx := context.Background()

	t.Run("existing account", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM accounts WHERE account_number = \\$1").
			WithArgs("RAJ1000").
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow("acc-1", "RAJ1000", "Raj Kumar", 500, "ACTIVE", "{tx-1,tx-2}", 3, time.Now(), time.Now()))

		acc, err := s.FindAccountByNumber(ctx, "RAJ1000")
		require.NoError(t, err)
		assert.Equal(t, "acc-1", acc.ID)
		assert.Equal(t, int64(500), acc.Balance)
		assert.Equal(t, models.AccountActive, acc.Status)
		assert.Equal(t, []string{"tx-1", "tx-2"}, acc.TransactionIDs)
		assert.Equal(t, 3, acc.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM accounts WHERE account_number = \\$1").
			WithArgs("NOPE1").
			WillReturnRows(sqlmock.NewRows(accountRowColumns))

		_, err := s.FindAccountByNumber(ctx, "NOPE1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_SaveAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)
	ctx := context.Background()

	t.Run("insert new account", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO accounts").
			WithArgs(sqlmock.AnyArg(), "RAJ1000", "Raj Kumar", 0, "ACTIVE", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		saved, err := s.SaveAccount(ctx, &models.Account{AccountNumber: "RAJ1000", HolderName: "Raj Kumar", Status: models.AccountActive})
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, 1, saved.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate account number", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO accounts").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "accounts_account_number_key"})

		_, err := s.SaveAccount(ctx, &models.Account{AccountNumber: "RAJ1000", HolderName: "Raj", Status: models.AccountActive})
		assert.ErrorIs(t, err, ErrDuplicateAccountNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("successful update", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts SET holder_name = \\$1, balance = \\$2, status = \\$3, transaction_ids = \\$4, version = version \\+ 1, updated_at = \\$5 WHERE id = \\$6 AND version = \\$7").
			WithArgs("Raj Kumar", 300, "ACTIVE", sqlmock.AnyArg(), sqlmock.AnyArg(), "acc-1", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))

		saved, err := s.SaveAccount(ctx, &models.Account{ID: "acc-1", AccountNumber: "RAJ1000", HolderName: "Raj Kumar", Balance: 300, Status: models.AccountActive, Version: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, saved.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("optimistic lock failure", func(t *testing.T) {
		mock.ExpectExec("UPDATE accounts").
			WithArgs("Raj Kumar", 300, "ACTIVE", sqlmock.AnyArg(), sqlmock.AnyArg(), "acc-1", 2).
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := s.SaveAccount(ctx, &models.Account{ID: "acc-1", AccountNumber: "RAJ1000", HolderName: "Raj Kumar", Balance: 300, Status: models.AccountActive, Version: 2})
		assert.ErrorIs(t, err, ErrVersionConflict)
		assert.Contains(t, err.Error(), "optimistic lock failed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_DeleteAccountByNumber(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)

	mock.ExpectExec("DELETE FROM accounts WHERE account_number = \\$1").
		WithArgs("RAJ1000").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM accounts WHERE account_number = \\$1").
		WithArgs("RAJ1000").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, s.DeleteAccountByNumber(context.Background(), "RAJ1000"))
	assert.ErrorIs(t, s.DeleteAccountByNumber(context.Background(), "RAJ1000"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Transactions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)
	ctx := context.Background()
	now := time.Now()

	t.Run("save transfer", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO account_transactions").
			WithArgs(sqlmock.AnyArg(), "acc-1", "TRANSFER", 100, "transfer to RAV1001", "RAJ1000", "RAV1001", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		saved, err := s.SaveTransaction(ctx, &models.Transaction{
			AccountID:                "acc-1",
			Type:                     models.TransactionTransfer,
			Amount:                   100,
			Note:                     "transfer to RAV1001",
			SourceAccountNumber:      "RAJ1000",
			DestinationAccountNumber: "RAV1001",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.False(t, saved.Timestamp.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list by account", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM account_transactions WHERE account_id = \\$1 ORDER BY created_at, seq").
			WithArgs("acc-1").
			WillReturnRows(sqlmock.NewRows(transactionRowColumns).
				AddRow("tx-1", "acc-1", "DEPOSIT", 500, "deposit", nil, nil, now).
				AddRow("tx-2", "acc-1", "TRANSFER", 100, "transfer to RAV1001", "RAJ1000", "RAV1001", now))

		txs, err := s.FindTransactionsByAccountID(ctx, "acc-1")
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, models.TransactionDeposit, txs[0].Type)
		assert.Empty(t, txs[0].SourceAccountNumber)
		assert.Equal(t, "RAV1001", txs[1].DestinationAccountNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("find missing transaction", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM account_transactions WHERE id = \\$1").
			WithArgs("tx-9").
			WillReturnRows(sqlmock.NewRows(transactionRowColumns))

		_, err := s.FindTransactionByID(ctx, "tx-9")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete batch", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM account_transactions WHERE id = ANY\\(\\$1\\)").
			WithArgs(sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 2))

		err := s.DeleteTransactions(ctx, []models.Transaction{{ID: "tx-1"}, {ID: "tx-2"}})
		assert.NoError(t, err)
		assert.NoError(t, s.DeleteTransactions(ctx, nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_WithinTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)
	ctx := context.Background()

	t.Run("locks rows and commits", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM accounts WHERE account_number = \\$1 FOR UPDATE").
			WithArgs("RAJ1000").
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow("acc-1", "RAJ1000", "Raj Kumar", 500, "ACTIVE", "{}", 1, time.Now(), time.Now()))
		mock.ExpectExec("UPDATE accounts").
			WithArgs("Raj Kumar", 600, "ACTIVE", sqlmock.AnyArg(), sqlmock.AnyArg(), "acc-1", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := s.WithinTx(ctx, func(tx Store) error {
			acc, err := tx.FindAccountByNumber(ctx, "RAJ1000")
			if err != nil {
				return err
			}
			acc.Balance += 100
			_, err = tx.SaveAccount(ctx, acc)
			return err
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := s.WithinTx(ctx, func(tx Store) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
