package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/paywallet/paywallet-backend/api/responses"
	"github.com/paywallet/paywallet-backend/internal/deposits"
	pkgerrors "github.com/paywallet/paywallet-backend/pkg/errors"
	"github.com/paywallet/paywallet-backend/pkg/logger"
	"github.com/paywallet/paywallet-backend/pkg/paystack"
)

const maxWebhookBody = 1 << 20

type depositConfirmer interface {
	HandleConfirmation(ctx context.Context, input deposits.ConfirmationInput) (deposits.Disposition, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, reference string) (bool, error)
	Delete(ctx context.Context, reference string) error
}

type signatureVerifier interface {
	VerifySignature(payload []byte, signature string) bool
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID        json.Number `json:"id"`
		Reference string      `json:"reference"`
		Amount    int64       `json:"amount"`
		Status    string      `json:"status"`
	} `json:"data"`
}

// PaystackWebhook ingests provider confirmations. The signature is checked
// against the raw body before anything is parsed; unverified payloads never
// reach the deposit service.
func PaystackWebhook(svc depositConfirmer, verifier signatureVerifier, guard webhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || verifier == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook pipeline unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(paystack.SignatureHeader)
		if !verifier.VerifySignature(payload, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeBadSignature, "signature verification failed"))
			return
		}

		var event paystackEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed event payload"))
			return
		}

		// Only successful charges move money. Everything else is
		// acknowledged so the provider stops redelivering.
		if event.Event != "charge.success" {
			writeAck(w)
			return
		}
		if event.Data.Reference == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event reference missing"))
			return
		}

		alreadySeen, err := guard.CheckAndMark(ctx, event.Data.Reference)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadySeen {
			writeAck(w)
			return
		}

		disposition, err := svc.HandleConfirmation(ctx, deposits.ConfirmationInput{
			Reference:   event.Data.Reference,
			AmountKobo:  event.Data.Amount,
			ProviderRef: providerRef(event),
		})
		if err != nil {
			// Unmark so the provider's retry can take another run at it.
			_ = guard.Delete(ctx, event.Data.Reference)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithReference(ctx, event.Data.Reference),
				fmt.Sprintf("paystack event handled: %s", disposition))
		}
		writeAck(w)
	}
}

// writeAck is the single body every accepted delivery gets. Dispositions
// stay in logs and metrics; the response must not reveal whether a
// reference exists or has been processed before.
func writeAck(w http.ResponseWriter) {
	responses.WriteSuccess(w, map[string]string{"status": "received"})
}

func providerRef(event paystackEvent) string {
	if id := event.Data.ID.String(); id != "" {
		if _, err := strconv.ParseInt(id, 10, 64); err == nil {
			return id
		}
	}
	return event.Data.Reference
}
