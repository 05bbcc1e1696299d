package controllers

import (
	"net/http"
	"strings"

	"github.com/paywallet/paywallet-backend/api/middleware"
	"github.com/paywallet/paywallet-backend/api/responses"
	"github.com/paywallet/paywallet-backend/api/validators"
	"github.com/paywallet/paywallet-backend/internal/ledger"
	pkgerrors "github.com/paywallet/paywallet-backend/pkg/errors"
	"github.com/paywallet/paywallet-backend/pkg/logger"
	"github.com/paywallet/paywallet-backend/pkg/pagination"
)

// GetWallet returns the caller's wallet and balance.
func GetWallet(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		wallet, err := svc.GetWalletByUserID(r.Context(), identity.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, ledger.ToWalletDTO(wallet))
	}
}

// ListTransactions returns the caller's transaction history, newest first.
func ListTransactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		identity := middleware.IdentityFromContext(r.Context())
		rows, nextCursor, err := svc.History(r.Context(), identity.UserID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"transactions": ledger.ToTransactionDTOs(rows),
			"next_cursor":  nextCursor,
		})
	}
}
