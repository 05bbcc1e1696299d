package deposits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/paywallet/paywallet-backend/internal/ledger"
	"github.com/paywallet/paywallet-backend/pkg/db"
	"github.com/paywallet/paywallet-backend/pkg/db/models"
	"github.com/paywallet/paywallet-backend/pkg/enums"
	apperrors "github.com/paywallet/paywallet-backend/pkg/errors"
	"github.com/paywallet/paywallet-backend/pkg/logger"
	"github.com/paywallet/paywallet-backend/pkg/metrics"
	"github.com/paywallet/paywallet-backend/pkg/paystack"
)

const referencePrefix = "DEP-"

// creditAttempts bounds version-race retries while crediting a deposit.
const creditAttempts = 3

// Provider is the payment initiation surface the deposit service needs.
type Provider interface {
	InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error)
}

// Disposition classifies how a provider confirmation was handled.
type Disposition string

const (
	DispositionCredited         Disposition = "credited"
	DispositionDuplicate        Disposition = "duplicate"
	DispositionUnknownReference Disposition = "unknown_reference"
	DispositionAmountMismatch   Disposition = "amount_mismatch"
)

// Service manages the deposit lifecycle from initiation to crediting.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error)
	HandleConfirmation(ctx context.Context, input ConfirmationInput) (Disposition, error)
	Status(ctx context.Context, userID uuid.UUID, reference string) (*models.DepositIntent, error)
}

// InitiateInput describes a requested deposit.
type InitiateInput struct {
	UserID     uuid.UUID
	Email      string
	AmountKobo int64
}

// InitiateResult carries what the caller needs to complete checkout.
type InitiateResult struct {
	Reference        string
	AuthorizationURL string
	AmountKobo       int64
}

// ConfirmationInput is the normalized payload of a provider success event.
type ConfirmationInput struct {
	Reference   string
	AmountKobo  int64
	ProviderRef string
}

// ServiceParams collects the deposit service dependencies.
type ServiceParams struct {
	TxRunner db.TxRunner
	Intents  Repository
	Ledger   ledger.Repository
	Provider Provider
	Logger   *logger.Logger
	Metrics  *metrics.LedgerMetrics
}

type service struct {
	txRunner db.TxRunner
	intents  Repository
	ledger   ledger.Repository
	provider Provider
	logg     *logger.Logger
	metrics  *metrics.LedgerMetrics
}

// NewService validates dependencies and returns a deposit service.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if params.Intents == nil {
		return nil, fmt.Errorf("deposit repository is required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger repository is required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("payment provider is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		txRunner: params.TxRunner,
		intents:  params.Intents,
		ledger:   params.Ledger,
		provider: params.Provider,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// Initiate records the intent before the provider is contacted, so every
// reference the provider can ever echo back already exists locally.
func (s *service) Initiate(ctx context.Context, input InitiateInput) (*InitiateResult, error) {
	if input.UserID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "user is required")
	}
	if input.AmountKobo <= 0 {
		return nil, apperrors.New(apperrors.CodeInvalidAmount, "deposit amount must be positive")
	}

	wallet, err := s.ledger.FindWalletByUserID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "wallet not found")
		}
		return nil, err
	}

	intent := &models.DepositIntent{
		ID:         uuid.New(),
		WalletID:   wallet.ID,
		Reference:  referencePrefix + uuid.NewString(),
		AmountKobo: input.AmountKobo,
		Status:     enums.DepositStatusInitiated,
	}
	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, err
	}

	init, err := s.provider.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:      input.Email,
		AmountKobo: input.AmountKobo,
		Reference:  intent.Reference,
	})
	if err != nil {
		reason := err.Error()
		intent.Status = enums.DepositStatusFailed
		intent.FailureReason = &reason
		if updateErr := s.intents.Update(ctx, intent); updateErr != nil {
			s.logg.Error(ctx, "marking deposit intent failed", updateErr)
		}
		s.metrics.IncDeposit(string(enums.DepositStatusFailed))
		return nil, apperrors.Wrap(apperrors.CodeDependency, err, "payment provider unavailable")
	}

	s.metrics.IncDeposit(string(enums.DepositStatusInitiated))
	return &InitiateResult{
		Reference:        intent.Reference,
		AuthorizationURL: init.AuthorizationURL,
		AmountKobo:       input.AmountKobo,
	}, nil
}

// HandleConfirmation applies a verified provider success event. It is safe
// to call any number of times for the same reference; only the first call
// credits the wallet.
func (s *service) HandleConfirmation(ctx context.Context, input ConfirmationInput) (Disposition, error) {
	ctx = s.logg.WithReference(ctx, input.Reference)

	intent, err := s.intents.FindByReference(ctx, input.Reference)
	if err != nil {
		if errors.Is(err, ErrIntentNotFound) {
			s.logg.Warn(ctx, "confirmation for unknown deposit reference")
			s.metrics.IncWebhook(string(DispositionUnknownReference))
			return DispositionUnknownReference, nil
		}
		return "", err
	}

	if intent.Status.IsTerminal() {
		s.metrics.IncWebhook(string(DispositionDuplicate))
		return DispositionDuplicate, nil
	}

	if input.AmountKobo != intent.AmountKobo {
		reason := fmt.Sprintf("provider reported %d kobo, intent expects %d kobo", input.AmountKobo, intent.AmountKobo)
		intent.Status = enums.DepositStatusReview
		intent.FailureReason = &reason
		if input.ProviderRef != "" {
			intent.ProviderRef = &input.ProviderRef
		}
		if err := s.intents.Update(ctx, intent); err != nil {
			return "", err
		}
		s.logg.Warn(ctx, "deposit amount mismatch, flagged for review")
		s.metrics.IncDeposit(string(enums.DepositStatusReview))
		s.metrics.IncWebhook(string(DispositionAmountMismatch))
		return DispositionAmountMismatch, nil
	}

	disposition, err := s.credit(ctx, intent, input)
	if err != nil {
		return "", err
	}
	s.metrics.IncWebhook(string(disposition))
	return disposition, nil
}

// credit applies the balance change, the transaction record, and the intent
// transition in one database transaction.
func (s *service) credit(ctx context.Context, intent *models.DepositIntent, input ConfirmationInput) (Disposition, error) {
	var lastErr error
	for attempt := 0; attempt < creditAttempts; attempt++ {
		duplicate := false
		err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			ledgerRepo := s.ledger.WithTx(tx)
			intentRepo := s.intents.WithTx(tx)

			wallet, err := ledgerRepo.FindWalletByID(ctx, intent.WalletID)
			if err != nil {
				return err
			}
			if err := ledgerRepo.Credit(ctx, wallet.ID, wallet.Version, intent.AmountKobo); err != nil {
				return err
			}

			ref := intent.Reference
			txn := &models.Transaction{
				ID:         uuid.New(),
				WalletID:   wallet.ID,
				Direction:  enums.TransactionDirectionCredit,
				Kind:       enums.TransactionKindDeposit,
				AmountKobo: intent.AmountKobo,
				Status:     enums.TransactionStatusCompleted,
				Reference:  &ref,
			}
			if err := ledgerRepo.RecordTransaction(ctx, txn); err != nil {
				if errors.Is(err, ledger.ErrDuplicateReference) {
					// Another delivery won the race; the rollback undoes
					// this credit and the wallet stays correct.
					duplicate = true
					return err
				}
				return err
			}

			now := time.Now().UTC()
			intent.Status = enums.DepositStatusConfirmed
			intent.ConfirmedAt = &now
			if input.ProviderRef != "" {
				intent.ProviderRef = &input.ProviderRef
			}
			return intentRepo.Update(ctx, intent)
		})
		if err == nil {
			s.metrics.IncDeposit(string(enums.DepositStatusConfirmed))
			return DispositionCredited, nil
		}
		if duplicate {
			return DispositionDuplicate, nil
		}
		if errors.Is(err, ledger.ErrStaleWallet) {
			s.metrics.IncLockRetry()
			lastErr = err
			continue
		}
		return "", err
	}
	return "", apperrors.Wrap(apperrors.CodeConflict, lastErr, "deposit credit conflicted with concurrent activity")
}

// Status returns a deposit intent owned by the caller.
func (s *service) Status(ctx context.Context, userID uuid.UUID, reference string) (*models.DepositIntent, error) {
	intent, err := s.intents.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, ErrIntentNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "deposit not found")
		}
		return nil, err
	}

	wallet, err := s.ledger.FindWalletByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "deposit not found")
		}
		return nil, err
	}
	if intent.WalletID != wallet.ID {
		// Hide other users' references instead of confirming they exist.
		return nil, apperrors.New(apperrors.CodeNotFound, "deposit not found")
	}
	return intent, nil
}
