package transfers

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/paywallet/paywallet-backend/internal/ledger"
	"github.com/paywallet/paywallet-backend/pkg/db/models"
	"github.com/paywallet/paywallet-backend/pkg/enums"
	apperrors "github.com/paywallet/paywallet-backend/pkg/errors"
	"github.com/paywallet/paywallet-backend/pkg/logger"
	"github.com/paywallet/paywallet-backend/pkg/pagination"
)

type fakeTxRunner struct {
	calls int
}

func (f *fakeTxRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	f.calls++
	return fn(nil)
}

type fakeLedgerRepo struct {
	wallets map[uuid.UUID]*models.Wallet
	txns    []models.Transaction

	// staleDebits forces the first N debits to lose the version race.
	staleDebits int
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{wallets: map[uuid.UUID]*models.Wallet{}}
}

func (f *fakeLedgerRepo) addWallet(balance int64) *models.Wallet {
	w := &models.Wallet{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		WalletNumber: "1" + uuid.NewString()[:12],
		BalanceKobo:  balance,
		Currency:     enums.CurrencyNGN,
	}
	f.wallets[w.ID] = w
	return w
}

func (f *fakeLedgerRepo) WithTx(_ *gorm.DB) ledger.Repository { return f }

func (f *fakeLedgerRepo) CreateWallet(_ context.Context, w *models.Wallet) error {
	f.wallets[w.ID] = w
	return nil
}

func (f *fakeLedgerRepo) FindWalletByID(_ context.Context, id uuid.UUID) (*models.Wallet, error) {
	w, ok := f.wallets[id]
	if !ok {
		return nil, ledger.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (f *fakeLedgerRepo) FindWalletByUserID(_ context.Context, userID uuid.UUID) (*models.Wallet, error) {
	for _, w := range f.wallets {
		if w.UserID == userID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, ledger.ErrWalletNotFound
}

func (f *fakeLedgerRepo) FindWalletByNumber(_ context.Context, number string) (*models.Wallet, error) {
	for _, w := range f.wallets {
		if w.WalletNumber == number {
			cp := *w
			return &cp, nil
		}
	}
	return nil, ledger.ErrWalletNotFound
}

func (f *fakeLedgerRepo) LockWallets(_ context.Context, ids ...uuid.UUID) ([]models.Wallet, error) {
	out := make([]models.Wallet, 0, len(ids))
	for _, id := range ids {
		w, ok := f.wallets[id]
		if !ok {
			return nil, ledger.ErrWalletNotFound
		}
		out = append(out, *w)
	}
	return out, nil
}

func (f *fakeLedgerRepo) Credit(_ context.Context, id uuid.UUID, version, amount int64) error {
	w, ok := f.wallets[id]
	if !ok {
		return ledger.ErrWalletNotFound
	}
	if w.Version != version {
		return ledger.ErrStaleWallet
	}
	w.BalanceKobo += amount
	w.Version++
	return nil
}

func (f *fakeLedgerRepo) Debit(_ context.Context, id uuid.UUID, version, amount int64) error {
	if f.staleDebits > 0 {
		f.staleDebits--
		return ledger.ErrStaleWallet
	}
	w, ok := f.wallets[id]
	if !ok {
		return ledger.ErrWalletNotFound
	}
	if w.Version != version {
		return ledger.ErrStaleWallet
	}
	if w.BalanceKobo < amount {
		return ledger.ErrInsufficientFunds
	}
	w.BalanceKobo -= amount
	w.Version++
	return nil
}

func (f *fakeLedgerRepo) RecordTransaction(_ context.Context, txn *models.Transaction) error {
	f.txns = append(f.txns, *txn)
	return nil
}

func (f *fakeLedgerRepo) FindTransactionByReference(_ context.Context, ref string) (*models.Transaction, error) {
	for i := range f.txns {
		if f.txns[i].Reference != nil && *f.txns[i].Reference == ref {
			return &f.txns[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeLedgerRepo) ListTransactions(_ context.Context, _ uuid.UUID, _ pagination.Params) ([]models.Transaction, string, error) {
	return f.txns, "", nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
}

func newTestService(t *testing.T, repo *fakeLedgerRepo) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		TxRunner: &fakeTxRunner{},
		Repo:     repo,
		Logger:   testLogger(t),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestExecuteMovesFundsAtomically(t *testing.T) {
	repo := newFakeLedgerRepo()
	src := repo.addWallet(10000)
	dst := repo.addWallet(500)
	svc := newTestService(t, repo)

	result, err := svc.Execute(context.Background(), ExecuteInput{
		FromUserID:     src.UserID,
		ToWalletNumber: dst.WalletNumber,
		AmountKobo:     2500,
		Description:    "rent split",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if repo.wallets[src.ID].BalanceKobo != 7500 {
		t.Errorf("source balance = %d, want 7500", repo.wallets[src.ID].BalanceKobo)
	}
	if repo.wallets[dst.ID].BalanceKobo != 3000 {
		t.Errorf("dest balance = %d, want 3000", repo.wallets[dst.ID].BalanceKobo)
	}

	if result.Outgoing.Kind != enums.TransactionKindTransferOut {
		t.Errorf("outgoing kind = %s", result.Outgoing.Kind)
	}
	if result.Incoming.Kind != enums.TransactionKindTransferIn {
		t.Errorf("incoming kind = %s", result.Incoming.Kind)
	}
	if result.Outgoing.CorrelationID == nil || result.Incoming.CorrelationID == nil ||
		*result.Outgoing.CorrelationID != *result.Incoming.CorrelationID {
		t.Error("legs do not share a correlation id")
	}
	refBase := "TRF-" + result.CorrelationID.String()
	if result.Outgoing.Reference == nil || *result.Outgoing.Reference != refBase+"-OUT" {
		t.Errorf("outgoing reference = %v, want %s-OUT", result.Outgoing.Reference, refBase)
	}
	if result.Incoming.Reference == nil || *result.Incoming.Reference != refBase+"-IN" {
		t.Errorf("incoming reference = %v, want %s-IN", result.Incoming.Reference, refBase)
	}
	if result.SourceBalance != 7500 {
		t.Errorf("reported source balance = %d, want 7500", result.SourceBalance)
	}
	if len(repo.txns) != 2 {
		t.Fatalf("recorded %d transactions, want 2", len(repo.txns))
	}
}

func TestExecuteRejectsNonPositiveAmounts(t *testing.T) {
	repo := newFakeLedgerRepo()
	src := repo.addWallet(1000)
	dst := repo.addWallet(0)
	svc := newTestService(t, repo)

	for _, amount := range []int64{0, -100} {
		_, err := svc.Execute(context.Background(), ExecuteInput{
			FromUserID:     src.UserID,
			ToWalletNumber: dst.WalletNumber,
			AmountKobo:     amount,
		})
		if !apperrors.HasCode(err, apperrors.CodeInvalidAmount) {
			t.Errorf("amount %d: expected invalid amount error, got %v", amount, err)
		}
	}
}

func TestExecuteRejectsSelfTransfer(t *testing.T) {
	repo := newFakeLedgerRepo()
	src := repo.addWallet(1000)
	svc := newTestService(t, repo)

	_, err := svc.Execute(context.Background(), ExecuteInput{
		FromUserID:     src.UserID,
		ToWalletNumber: src.WalletNumber,
		AmountKobo:     100,
	})
	if !apperrors.HasCode(err, apperrors.CodeSelfTransfer) {
		t.Fatalf("expected self transfer error, got %v", err)
	}
	if len(repo.txns) != 0 {
		t.Error("self transfer must not record transactions")
	}
}

func TestExecuteInsufficientFunds(t *testing.T) {
	repo := newFakeLedgerRepo()
	src := repo.addWallet(100)
	dst := repo.addWallet(0)
	svc := newTestService(t, repo)

	_, err := svc.Execute(context.Background(), ExecuteInput{
		FromUserID:     src.UserID,
		ToWalletNumber: dst.WalletNumber,
		AmountKobo:     500,
	})
	if !apperrors.HasCode(err, apperrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if repo.wallets[src.ID].BalanceKobo != 100 || repo.wallets[dst.ID].BalanceKobo != 0 {
		t.Error("failed transfer must not move funds")
	}
}

func TestExecuteUnknownDestination(t *testing.T) {
	repo := newFakeLedgerRepo()
	src := repo.addWallet(1000)
	svc := newTestService(t, repo)

	_, err := svc.Execute(context.Background(), ExecuteInput{
		FromUserID:     src.UserID,
		ToWalletNumber: "9999999999999",
		AmountKobo:     100,
	})
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExecuteRetriesAfterVersionRace(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.staleDebits = 2
	src := repo.addWallet(1000)
	dst := repo.addWallet(0)
	svc := newTestService(t, repo)

	_, err := svc.Execute(context.Background(), ExecuteInput{
		FromUserID:     src.UserID,
		ToWalletNumber: dst.WalletNumber,
		AmountKobo:     100,
	})
	if err != nil {
		t.Fatalf("Execute should succeed after retries: %v", err)
	}
	if repo.wallets[src.ID].BalanceKobo != 900 {
		t.Errorf("source balance = %d, want 900", repo.wallets[src.ID].BalanceKobo)
	}
}

func TestExecuteGivesUpAfterRepeatedRaces(t *testing.T) {
	repo := newFakeLedgerRepo()
	repo.staleDebits = maxAttempts
	src := repo.addWallet(1000)
	dst := repo.addWallet(0)
	svc := newTestService(t, repo)

	_, err := svc.Execute(context.Background(), ExecuteInput{
		FromUserID:     src.UserID,
		ToWalletNumber: dst.WalletNumber,
		AmountKobo:     100,
	})
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict after exhausted retries, got %v", err)
	}
}
