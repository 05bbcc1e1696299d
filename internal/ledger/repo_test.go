package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/paywallet/paywallet-backend/pkg/db/models"
	"github.com/paywallet/paywallet-backend/pkg/enums"
	"github.com/paywallet/paywallet-backend/pkg/pagination"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	wallets := `
CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  wallet_number TEXT NOT NULL UNIQUE,
  balance_kobo INTEGER NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'NGN',
  version INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	transactions := `
CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  direction TEXT NOT NULL,
  kind TEXT NOT NULL,
  amount_kobo INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  reference TEXT UNIQUE,
  correlation_id TEXT,
  counterparty_wallet_id TEXT,
  description TEXT,
  metadata TEXT,
  created_at DATETIME
);`
	require.NoError(t, conn.Exec(wallets).Error)
	require.NoError(t, conn.Exec(transactions).Error)
	return conn
}

func seedWallet(t *testing.T, conn *gorm.DB, balance int64) *models.Wallet {
	t.Helper()
	wallet := &models.Wallet{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		WalletNumber: "1" + uuid.NewString()[:12],
		BalanceKobo:  balance,
		Currency:     enums.CurrencyNGN,
	}
	require.NoError(t, conn.Create(wallet).Error)
	return wallet
}

func TestCreditIncrementsBalanceAndVersion(t *testing.T) {
	conn := setupLedgerTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	wallet := seedWallet(t, conn, 1000)

	require.NoError(t, repo.Credit(ctx, wallet.ID, wallet.Version, 500))

	got, err := repo.FindWalletByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got.BalanceKobo)
	assert.Equal(t, wallet.Version+1, got.Version)
}

func TestCreditStaleVersion(t *testing.T) {
	conn := setupLedgerTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	wallet := seedWallet(t, conn, 1000)

	err := repo.Credit(ctx, wallet.ID, wallet.Version+7, 500)
	assert.ErrorIs(t, err, ErrStaleWallet)

	got, err := repo.FindWalletByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.BalanceKobo, "stale credit must not change balance")
}

func TestCreditMissingWallet(t *testing.T) {
	conn := setupLedgerTestDB(t)
	repo := NewRepository(conn)

	err := repo.Credit(context.Background(), uuid.New(), 0, 500)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestDebitHappyPath(t *testing.T) {
	conn := setupLedgerTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	wallet := seedWallet(t, conn, 1000)

	require.NoError(t, repo.Debit(ctx, wallet.ID, wallet.Version, 400))

	got, err := repo.FindWalletByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), got.BalanceKobo)
	assert.Equal(t, wallet.Version+1, got.Version)
}

func TestDebitInsufficientFunds(t *testing.T) {
	conn := setupLedgerTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	wallet := seedWallet(t, conn, 300)

	err := repo.Debit(ctx, wallet.ID, wallet.Version, 400)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	got, err := repo.FindWalletByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.BalanceKobo)
}

func TestDebitExactBalanceSucceeds(t *testing.T) {
	conn := setupLedgerTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	wallet := seedWallet(t, conn, 400)

	require.NoError(t, repo.Debit(ctx, wallet.ID, wallet.Version, 400))

	got, err := repo.FindWalletByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.BalanceKobo)
}

func TestDebitStaleVersion(t *testing.T) {
	conn := setupLedgerTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	wallet := seedWallet(t, conn, 1000)

	err := repo.Debit(ctx, wallet.ID, wallet.Version+1, 400)
	assert.ErrorIs(t, err, ErrStaleWallet)
}

func TestRecordTransactionDuplicateReference(t *testing.T) {
	conn := setupLedgerTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	wallet := seedWallet(t, conn, 0)
	ref := "DEP-" + uuid.NewString()

	first := &models.Transaction{
		ID:         uuid.New(),
		WalletID:   wallet.ID,
		Direction:  enums.TransactionDirectionCredit,
		Kind:       enums.TransactionKindDeposit,
		AmountKobo: 500,
		Status:     enums.TransactionStatusCompleted,
		Reference:  &ref,
	}
	require.NoError(t, repo.RecordTransaction(ctx, first))

	dup := &models.Transaction{
		ID:         uuid.New(),
		WalletID:   wallet.ID,
		Direction:  enums.TransactionDirectionCredit,
		Kind:       enums.TransactionKindDeposit,
		AmountKobo: 500,
		Status:     enums.TransactionStatusCompleted,
		Reference:  &ref,
	}
	err := repo.RecordTransaction(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateReference)
}

func TestRecordTransactionNilReferencesDoNotCollide(t *testing.T) {
	conn := setupLedgerTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	wallet := seedWallet(t, conn, 0)

	for i := 0; i < 2; i++ {
		txn := &models.Transaction{
			ID:         uuid.New(),
			WalletID:   wallet.ID,
			Direction:  enums.TransactionDirectionDebit,
			Kind:       enums.TransactionKindTransferOut,
			AmountKobo: 100,
			Status:     enums.TransactionStatusCompleted,
		}
		require.NoError(t, repo.RecordTransaction(ctx, txn))
	}
}

func TestListTransactionsPaginates(t *testing.T) {
	conn := setupLedgerTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	wallet := seedWallet(t, conn, 0)
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		txn := &models.Transaction{
			ID:         uuid.New(),
			WalletID:   wallet.ID,
			Direction:  enums.TransactionDirectionCredit,
			Kind:       enums.TransactionKindDeposit,
			AmountKobo: int64(100 * (i + 1)),
			Status:     enums.TransactionStatusCompleted,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.RecordTransaction(ctx, txn))
	}

	page1, cursor, err := repo.ListTransactions(ctx, wallet.ID, pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page1, 3)
	require.NotEmpty(t, cursor)
	assert.Equal(t, int64(500), page1[0].AmountKobo, "newest first")

	page2, cursor2, err := repo.ListTransactions(ctx, wallet.ID, pagination.Params{Limit: 3, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Empty(t, cursor2)

	seen := map[uuid.UUID]bool{}
	for _, txn := range append(page1, page2...) {
		assert.False(t, seen[txn.ID], "transaction repeated across pages")
		seen[txn.ID] = true
	}
}

func TestListTransactionsScopedToWallet(t *testing.T) {
	conn := setupLedgerTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	mine := seedWallet(t, conn, 0)
	other := seedWallet(t, conn, 0)

	for _, w := range []*models.Wallet{mine, other} {
		txn := &models.Transaction{
			ID:         uuid.New(),
			WalletID:   w.ID,
			Direction:  enums.TransactionDirectionCredit,
			Kind:       enums.TransactionKindDeposit,
			AmountKobo: 100,
			Status:     enums.TransactionStatusCompleted,
		}
		require.NoError(t, repo.RecordTransaction(ctx, txn))
	}

	rows, _, err := repo.ListTransactions(ctx, mine.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, mine.ID, rows[0].WalletID)
}

func TestFindWalletByNumber(t *testing.T) {
	conn := setupLedgerTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	wallet := seedWallet(t, conn, 0)

	got, err := repo.FindWalletByNumber(ctx, wallet.WalletNumber)
	require.NoError(t, err)
	assert.Equal(t, wallet.ID, got.ID)

	_, err = repo.FindWalletByNumber(ctx, "0000000000000")
	assert.True(t, errors.Is(err, ErrWalletNotFound))
}
