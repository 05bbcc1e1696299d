package controllers

import (
	"net/http"

	"github.com/paywallet/paywallet-backend/api/middleware"
	"github.com/paywallet/paywallet-backend/api/responses"
	"github.com/paywallet/paywallet-backend/api/validators"
	"github.com/paywallet/paywallet-backend/internal/ledger"
	"github.com/paywallet/paywallet-backend/internal/transfers"
	pkgerrors "github.com/paywallet/paywallet-backend/pkg/errors"
	"github.com/paywallet/paywallet-backend/pkg/logger"
	"github.com/paywallet/paywallet-backend/pkg/money"
)

// TransferRequest is the payload for a wallet-to-wallet move.
type TransferRequest struct {
	ToWalletNumber string `json:"to_wallet_number" validate:"required,len=13"`
	AmountKobo     int64  `json:"amount_kobo" validate:"required,gt=0"`
	Description    string `json:"description" validate:"max=140"`
}

// CreateTransfer moves money between two wallets atomically.
func CreateTransfer(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transfer service unavailable"))
			return
		}

		var body TransferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		result, err := svc.Execute(r.Context(), transfers.ExecuteInput{
			FromUserID:     identity.UserID,
			ToWalletNumber: body.ToWalletNumber,
			AmountKobo:     body.AmountKobo,
			Description:    validators.SanitizeString(body.Description, 140),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"correlation_id": result.CorrelationID,
			"outgoing":       ledger.ToTransactionDTO(result.Outgoing),
			"incoming":       ledger.ToTransactionDTO(result.Incoming),
			"balance_kobo":   result.SourceBalance,
			"balance":        money.FormatKobo(result.SourceBalance),
		})
	}
}
