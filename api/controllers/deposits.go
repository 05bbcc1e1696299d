package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/paywallet/paywallet-backend/api/middleware"
	"github.com/paywallet/paywallet-backend/api/responses"
	"github.com/paywallet/paywallet-backend/api/validators"
	"github.com/paywallet/paywallet-backend/internal/deposits"
	"github.com/paywallet/paywallet-backend/pkg/db/models"
	pkgerrors "github.com/paywallet/paywallet-backend/pkg/errors"
	"github.com/paywallet/paywallet-backend/pkg/logger"
	"github.com/paywallet/paywallet-backend/pkg/money"

	"github.com/go-chi/chi/v5"
)

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// DepositRequest is the payload to start a deposit.
type DepositRequest struct {
	AmountKobo int64 `json:"amount_kobo" validate:"required,gt=0"`
}

// InitiateDeposit creates a deposit intent and hands back the provider
// checkout URL.
func InitiateDeposit(svc deposits.Service, users userFinder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || users == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deposit service unavailable"))
			return
		}

		var body DepositRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		user, err := users.FindByID(r.Context(), identity.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve user"))
			return
		}

		result, err := svc.Initiate(r.Context(), deposits.InitiateInput{
			UserID:     identity.UserID,
			Email:      user.Email,
			AmountKobo: body.AmountKobo,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"reference":         result.Reference,
			"authorization_url": result.AuthorizationURL,
			"amount_kobo":       result.AmountKobo,
			"amount":            money.FormatKobo(result.AmountKobo),
		})
	}
}

// DepositStatus reports where a deposit intent sits in its lifecycle.
// Callers only ever see their own references.
func DepositStatus(svc deposits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deposit service unavailable"))
			return
		}

		reference := strings.TrimSpace(chi.URLParam(r, "reference"))
		if reference == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reference is required"))
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		intent, err := svc.Status(r.Context(), identity.UserID, reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"reference":    intent.Reference,
			"status":       intent.Status,
			"amount_kobo":  intent.AmountKobo,
			"amount":       money.FormatKobo(intent.AmountKobo),
			"confirmed_at": intent.ConfirmedAt,
			"created_at":   intent.CreatedAt,
		})
	}
}
