package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/paywallet/paywallet-backend/api/responses"
	"github.com/paywallet/paywallet-backend/internal/guard"
	pkgauth "github.com/paywallet/paywallet-backend/pkg/auth"
	"github.com/paywallet/paywallet-backend/pkg/db/models"
	pkgerrors "github.com/paywallet/paywallet-backend/pkg/errors"
	"github.com/paywallet/paywallet-backend/pkg/logger"
)

const apiKeyHeader = "X-API-Key"

type tokenParser interface {
	Parse(tokenString string) (*pkgauth.AccessTokenClaims, error)
}

type sessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type apiKeyAuthenticator interface {
	Authenticate(ctx context.Context, plaintext string) (*models.APIKey, error)
}

// Auth resolves the caller's identity from either a bearer access token or
// an api key header and seeds the request context with it. Requests with
// neither credential are rejected.
func Auth(tokens tokenParser, sessions sessionChecker, keys apiKeyAuthenticator, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bearer := bearerToken(r); bearer != "" {
				authenticateSession(w, r, next, tokens, sessions, logg, bearer)
				return
			}
			if apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader)); apiKey != "" && keys != nil {
				authenticateAPIKey(w, r, next, keys, logg, apiKey)
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
		})
	}
}

func authenticateSession(w http.ResponseWriter, r *http.Request, next http.Handler, tokens tokenParser, sessions sessionChecker, logg *logger.Logger, token string) {
	claims, err := tokens.Parse(token)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
		return
	}
	if claims.ID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
		return
	}

	// Logout revokes the server-side session, which must invalidate tokens
	// that are otherwise still within their expiry window.
	if sessions != nil {
		ok, err := sessions.HasSession(r.Context(), claims.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
			return
		}
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
			return
		}
	}

	identity := guard.SessionIdentity(claims.UserID)
	ctx := WithIdentity(r.Context(), identity)
	ctx = withAccessID(ctx, claims.ID)

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"user_id":     claims.UserID.String(),
			"auth_source": string(guard.SourceSession),
		})
	}

	next.ServeHTTP(w, r.WithContext(ctx))
}

func authenticateAPIKey(w http.ResponseWriter, r *http.Request, next http.Handler, keys apiKeyAuthenticator, logg *logger.Logger, plaintext string) {
	key, err := keys.Authenticate(r.Context(), plaintext)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	identity := guard.APIKeyIdentity(key.UserID, key.ID, key.Permissions)
	ctx := WithIdentity(r.Context(), identity)

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"user_id":     key.UserID.String(),
			"api_key_id":  key.ID.String(),
			"auth_source": string(guard.SourceAPIKey),
		})
	}

	next.ServeHTTP(w, r.WithContext(ctx))
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
