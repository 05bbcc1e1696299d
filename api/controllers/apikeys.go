package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paywallet/paywallet-backend/api/middleware"
	"github.com/paywallet/paywallet-backend/api/responses"
	"github.com/paywallet/paywallet-backend/api/validators"
	"github.com/paywallet/paywallet-backend/internal/apikeys"
	"github.com/paywallet/paywallet-backend/internal/guard"
	"github.com/paywallet/paywallet-backend/pkg/db/models"
	"github.com/paywallet/paywallet-backend/pkg/enums"
	pkgerrors "github.com/paywallet/paywallet-backend/pkg/errors"
	"github.com/paywallet/paywallet-backend/pkg/logger"
)

// CreateAPIKeyRequest is the payload to mint a new key.
type CreateAPIKeyRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=64"`
	Permissions []string `json:"permissions" validate:"required,min=1"`
	Expiry      string   `json:"expiry"`
}

// APIKeyDTO is the key shape returned to API callers. The secret never
// appears here; CreatedAPIKeyDTO carries it exactly once.
type APIKeyDTO struct {
	ID          uuid.UUID         `json:"id"`
	Name        string            `json:"name"`
	Permissions enums.Permissions `json:"permissions"`
	ExpiresAt   time.Time         `json:"expires_at"`
	IsRevoked   bool              `json:"is_revoked"`
	LastUsedAt  *time.Time        `json:"last_used_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// CreatedAPIKeyDTO pairs the stored key with its one-time plaintext secret.
type CreatedAPIKeyDTO struct {
	APIKeyDTO
	Key string `json:"key"`
}

func toAPIKeyDTO(key models.APIKey) APIKeyDTO {
	return APIKeyDTO{
		ID:          key.ID,
		Name:        key.Name,
		Permissions: key.Permissions,
		ExpiresAt:   key.ExpiresAt,
		IsRevoked:   key.IsRevoked,
		LastUsedAt:  key.LastUsedAt,
		CreatedAt:   key.CreatedAt,
	}
}

func toCreatedAPIKeyDTO(created *apikeys.CreatedKey) CreatedAPIKeyDTO {
	return CreatedAPIKeyDTO{
		APIKeyDTO: toAPIKeyDTO(created.Key),
		Key:       created.Plaintext,
	}
}

// CreateAPIKey mints a scoped key. Only session callers may manage keys;
// a key must not be able to mint further keys.
func CreateAPIKey(svc apikeys.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "api key service unavailable"))
			return
		}

		var body CreateAPIKeyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		permissions := make(enums.Permissions, 0, len(body.Permissions))
		for _, raw := range body.Permissions {
			perm, err := enums.ParsePermission(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid permission"))
				return
			}
			permissions = append(permissions, perm)
		}

		created, err := svc.Create(r.Context(), apikeys.CreateInput{
			UserID:      identity.UserID,
			Name:        body.Name,
			Permissions: permissions,
			Expiry:      body.Expiry,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toCreatedAPIKeyDTO(created))
	}
}

// ListAPIKeys returns every key the caller owns, revoked ones included.
func ListAPIKeys(svc apikeys.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "api key service unavailable"))
			return
		}

		keys, err := svc.List(r.Context(), identity.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]APIKeyDTO, 0, len(keys))
		for _, key := range keys {
			out = append(out, toAPIKeyDTO(key))
		}
		responses.WriteSuccess(w, map[string]any{"keys": out})
	}
}

// RevokeAPIKey disables a key immediately.
func RevokeAPIKey(svc apikeys.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "api key service unavailable"))
			return
		}

		keyID, err := parseKeyID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Revoke(r.Context(), identity.UserID, keyID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "revoked"})
	}
}

// RolloverAPIKey revokes a key and mints a replacement with the same name
// and permission set.
func RolloverAPIKey(svc apikeys.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "api key service unavailable"))
			return
		}

		keyID, err := parseKeyID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Rollover(r.Context(), identity.UserID, keyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toCreatedAPIKeyDTO(created))
	}
}

func parseKeyID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "keyId")
	keyID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "key id must be a uuid")
	}
	return keyID, nil
}

func requireSession(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (guard.Identity, bool) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity.UserID == uuid.Nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return guard.Identity{}, false
	}
	if identity.Source != guard.SourceSession {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "api keys cannot manage api keys"))
		return guard.Identity{}, false
	}
	return identity, true
}
