package ledger

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paywallet/paywallet-backend/pkg/db"
	"github.com/paywallet/paywallet-backend/pkg/db/models"
	"github.com/paywallet/paywallet-backend/pkg/enums"
	apperrors "github.com/paywallet/paywallet-backend/pkg/errors"
	"github.com/paywallet/paywallet-backend/pkg/pagination"
)

const (
	walletNumberLength = 13
	// walletNumberAttempts bounds collision retries when minting numbers.
	walletNumberAttempts = 5
)

// Service exposes wallet queries and wallet provisioning.
type Service interface {
	CreateWalletForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error)
	GetWalletByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	GetWalletByNumber(ctx context.Context, walletNumber string) (*models.Wallet, error)
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error)
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// CreateWalletForUser provisions the user's single wallet with a freshly
// minted wallet number. Runs on tx when provided so registration stays
// atomic with user creation.
func (s *service) CreateWalletForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	repo := s.repo.WithTx(tx)

	var lastErr error
	for attempt := 0; attempt < walletNumberAttempts; attempt++ {
		number, err := mintWalletNumber()
		if err != nil {
			return nil, err
		}
		wallet := &models.Wallet{
			UserID:       userID,
			WalletNumber: number,
			Currency:     enums.CurrencyNGN,
		}
		if err := repo.CreateWallet(ctx, wallet); err != nil {
			if db.IsUniqueViolation(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return wallet, nil
	}
	return nil, apperrors.Wrap(apperrors.CodeInternal, lastErr, "could not mint a unique wallet number")
}

func (s *service) GetWalletByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.repo.FindWalletByUserID(ctx, userID)
	if err != nil {
		return nil, mapWalletErr(err)
	}
	return wallet, nil
}

func (s *service) GetWalletByNumber(ctx context.Context, walletNumber string) (*models.Wallet, error) {
	if len(walletNumber) != walletNumberLength {
		return nil, apperrors.New(apperrors.CodeNotFound, "wallet not found")
	}
	wallet, err := s.repo.FindWalletByNumber(ctx, walletNumber)
	if err != nil {
		return nil, mapWalletErr(err)
	}
	return wallet, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Transaction, string, error) {
	wallet, err := s.repo.FindWalletByUserID(ctx, userID)
	if err != nil {
		return nil, "", mapWalletErr(err)
	}
	return s.repo.ListTransactions(ctx, wallet.ID, params)
}

func mapWalletErr(err error) error {
	if errors.Is(err, ErrWalletNotFound) {
		return apperrors.New(apperrors.CodeNotFound, "wallet not found")
	}
	return err
}

// mintWalletNumber produces a 13-digit number with a non-zero leading digit.
func mintWalletNumber() (string, error) {
	digits := make([]byte, walletNumberLength)
	for i := range digits {
		max := int64(10)
		if i == 0 {
			max = 9
		}
		n, err := rand.Int(rand.Reader, big.NewInt(max))
		if err != nil {
			return "", fmt.Errorf("minting wallet number: %w", err)
		}
		d := n.Int64()
		if i == 0 {
			d++
		}
		digits[i] = byte('0' + d)
	}
	return string(digits), nil
}
