package transfers

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
)

// maxAttempts bounds retries after a lost version race before giving up.
const maxAttempts = 3

const referencePrefix = "TRF-"

// Service moves funds between wallets.
type Service interface {
	Execute(ctx context.Context, input ExecuteInput) (*Result, error)
}

// ExecuteInput describes one requested transfer.
type ExecuteInput struct {
	FromUserID     uuid.UUID
	ToWalletNumber string
	AmountKobo     int64
	Description    string
}

// Result reports both legs of a completed transfer.
type Result struct {
	CorrelationID uuid.UUID
	Outgoing      models.Transaction
	Incoming      models.Transaction
	SourceBalance int64
}

// ServiceParams collects the transfer service dependencies.
type ServiceParams struct {
	TxRunner db.TxRunner
	Repo     ledger.Repository
	Logger   *logger.Logger
	Metrics  *metrics.LedgerMetrics
}

type service struct {
	txRunner db.TxRunner
	repo     ledger.Repository
	logg     *logger.Logger
	metrics  *metrics.LedgerMetrics
}

// NewService validates dependencies and returns a transfer service.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		txRunner: params.TxRunner,
		repo:     params.Repo,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// Execute debits the caller's wallet and credits the destination atomically.
// Both wallet rows are locked before either balance moves, so a transfer
// never commits half-applied.
func (s *service) Execute(ctx context.Context, input ExecuteInput) (*Result, error) {
	started := time.Now()
	result, err := s.execute(ctx, input)
	s.observe(err, time.Since(started))
	return result, err
}

func (s *service) execute(ctx context.Context, input ExecuteInput) (*Result, error) {
	if input.FromUserID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "source user is required")
	}
	if input.AmountKobo <= 0 {
		return nil, apperrors.New(apperrors.CodeInvalidAmount, "transfer amount must be positive")
	}

	source, err := s.repo.FindWalletByUserID(ctx, input.FromUserID)
	if err != nil {
		return nil, mapWalletErr(err, "source wallet not found")
	}
	dest, err := s.repo.FindWalletByNumber(ctx, input.ToWalletNumber)
	if err != nil {
		return nil, mapWalletErr(err, "destination wallet not found")
	}
	if source.ID == dest.ID {
		return nil, apperrors.New(apperrors.CodeSelfTransfer, "cannot transfer to your own wallet")
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := s.attempt(ctx, source.ID, dest.ID, input)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ledger.ErrStaleWallet) {
			s.metrics.IncLockRetry()
			lastErr = err
			continue
		}
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"source_wallet_id": source.ID.String(),
		"dest_wallet_id":   dest.ID.String(),
	})
	s.logg.Warn(ctx, "transfer gave up after repeated version races")
	return nil, apperrors.Wrap(apperrors.CodeConflict, lastErr, "transfer conflicted with concurrent activity, retry")
}

func (s *service) attempt(ctx context.Context, sourceID, destID uuid.UUID, input ExecuteInput) (*Result, error) {
	var result Result

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		locked, err := repo.LockWallets(ctx, sourceID, destID)
		if err != nil {
			return mapWalletErr(err, "wallet not found")
		}
		var source, dest *models.Wallet
		for i := range locked {
			switch locked[i].ID {
			case sourceID:
				source = &locked[i]
			case destID:
				dest = &locked[i]
			}
		}
		if source == nil || dest == nil {
			return apperrors.New(apperrors.CodeNotFound, "wallet not found")
		}

		if err := repo.Debit(ctx, source.ID, source.Version, input.AmountKobo); err != nil {
			if errors.Is(err, ledger.ErrInsufficientFunds) {
				return apperrors.New(apperrors.CodeInsufficientFunds, "insufficient funds")
			}
			return err
		}
		if err := repo.Credit(ctx, dest.ID, dest.Version, input.AmountKobo); err != nil {
			return err
		}

		correlationID := uuid.New()
		base := referencePrefix + correlationID.String()
		outRef := base + "-OUT"
		inRef := base + "-IN"

		outgoing := models.Transaction{
			ID:                   uuid.New(),
			WalletID:             source.ID,
			Direction:            enums.TransactionDirectionDebit,
			Kind:                 enums.TransactionKindTransferOut,
			AmountKobo:           input.AmountKobo,
			Status:               enums.TransactionStatusCompleted,
			Reference:            &outRef,
			CorrelationID:        &correlationID,
			CounterpartyWalletID: &dest.ID,
			Description:          input.Description,
		}
		incoming := models.Transaction{
			ID:                   uuid.New(),
			WalletID:             dest.ID,
			Direction:            enums.TransactionDirectionCredit,
			Kind:                 enums.TransactionKindTransferIn,
			AmountKobo:           input.AmountKobo,
			Status:               enums.TransactionStatusCompleted,
			Reference:            &inRef,
			CorrelationID:        &correlationID,
			CounterpartyWalletID: &source.ID,
			Description:          input.Description,
		}
		if err := repo.RecordTransaction(ctx, &outgoing); err != nil {
			return err
		}
		if err := repo.RecordTransaction(ctx, &incoming); err != nil {
			return err
		}

		result = Result{
			CorrelationID: correlationID,
			Outgoing:      outgoing,
			Incoming:      incoming,
			SourceBalance: source.BalanceKobo - input.AmountKobo,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) observe(err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
		if apperrors.HasCode(err, apperrors.CodeInsufficientFunds) {
			outcome = "insufficient_funds"
		} else if apperrors.HasCode(err, apperrors.CodeConflict) {
			outcome = "conflict"
		}
	}
	s.metrics.ObserveTransfer(outcome, elapsed)
}

func mapWalletErr(err error, msg string) error {
	if errors.Is(err, ledger.ErrWalletNotFound) {
		return apperrors.New(apperrors.CodeNotFound, msg)
	}
	return err
}
