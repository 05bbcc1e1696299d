package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/paywallet/paywallet-backend/pkg/db"
	"github.com/paywallet/paywallet-backend/pkg/db/models"
	"github.com/paywallet/paywallet-backend/pkg/pagination"
)

var (
	// ErrWalletNotFound signals a missing wallet row.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrStaleWallet signals a lost version race; the caller should reload
	// the wallet and retry.
	ErrStaleWallet = errors.New("wallet version is stale")
	// ErrInsufficientFunds signals a debit larger than the current balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrDuplicateReference signals a transaction reference already recorded.
	ErrDuplicateReference = errors.New("transaction reference already recorded")
)

// Repository manages wallet and transaction persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	FindWalletByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	FindWalletByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	FindWalletByNumber(ctx context.Context, walletNumber string) (*models.Wallet, error)
	LockWallets(ctx context.Context, ids ...uuid.UUID) ([]models.Wallet, error)

	Credit(ctx context.Context, walletID uuid.UUID, version int64, amountKobo int64) error
	Debit(ctx context.Context, walletID uuid.UUID, version int64, amountKobo int64) error

	RecordTransaction(ctx context.Context, txn *models.Transaction) error
	FindTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) FindWalletByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	return r.findWallet(ctx, "id = ?", id)
}

func (r *repository) FindWalletByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return r.findWallet(ctx, "user_id = ?", userID)
}

func (r *repository) FindWalletByNumber(ctx context.Context, walletNumber string) (*models.Wallet, error) {
	return r.findWallet(ctx, "wallet_number = ?", walletNumber)
}

func (r *repository) findWallet(ctx context.Context, query string, arg any) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where(query, arg).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// LockWallets takes row locks on the requested wallets. Rows are locked in
// ascending id order so concurrent transfers over the same pair cannot
// deadlock. Must run inside a transaction.
func (r *repository) LockWallets(ctx context.Context, ids ...uuid.UUID) ([]models.Wallet, error) {
	var wallets []models.Wallet
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&wallets).Error; err != nil {
		return nil, err
	}
	if len(wallets) != len(ids) {
		return nil, ErrWalletNotFound
	}
	return wallets, nil
}

func (r *repository) Credit(ctx context.Context, walletID uuid.UUID, version int64, amountKobo int64) error {
	if amountKobo <= 0 {
		return fmt.Errorf("credit amount must be positive")
	}
	res := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("id = ? AND version = ?", walletID, version).
		Updates(map[string]any{
			"balance_kobo": gorm.Expr("balance_kobo + ?", amountKobo),
			"version":      gorm.Expr("version + 1"),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.classifyMiss(ctx, walletID)
	}
	return nil
}

func (r *repository) Debit(ctx context.Context, walletID uuid.UUID, version int64, amountKobo int64) error {
	if amountKobo <= 0 {
		return fmt.Errorf("debit amount must be positive")
	}
	res := r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("id = ? AND version = ? AND balance_kobo >= ?", walletID, version, amountKobo).
		Updates(map[string]any{
			"balance_kobo": gorm.Expr("balance_kobo - ?", amountKobo),
			"version":      gorm.Expr("version + 1"),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		wallet, err := r.FindWalletByID(ctx, walletID)
		if err != nil {
			return err
		}
		if wallet.Version != version {
			return ErrStaleWallet
		}
		return ErrInsufficientFunds
	}
	return nil
}

// classifyMiss distinguishes a missing wallet from a version race after a
// conditional update touched zero rows.
func (r *repository) classifyMiss(ctx context.Context, walletID uuid.UUID) error {
	if _, err := r.FindWalletByID(ctx, walletID); err != nil {
		return err
	}
	return ErrStaleWallet
}

func (r *repository) RecordTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (r *repository) FindTransactionByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var txns []models.Transaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(txns) > limit {
		txns = txns[:limit]
		last := txns[len(txns)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return txns, nextCursor, nil
}
