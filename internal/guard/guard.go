// Package guard models the caller identity resolved by authentication
// middleware and decides what that identity may do.
package guard

import (
	"github.com/google/uuid"

	"github.com/paywallet/paywallet-backend/pkg/enums"
	apperrors "github.com/paywallet/paywallet-backend/pkg/errors"
)

// Source distinguishes how the caller authenticated.
type Source string

const (
	SourceSession Source = "session"
	SourceAPIKey  Source = "api_key"
)

// Identity is the authenticated principal attached to a request. Session
// callers hold every permission; api key callers hold the set chosen when
// the key was created.
type Identity struct {
	UserID      uuid.UUID
	Source      Source
	APIKeyID    uuid.UUID
	Permissions enums.Permissions
}

// SessionIdentity builds the identity for a logged-in user.
func SessionIdentity(userID uuid.UUID) Identity {
	return Identity{
		UserID:      userID,
		Source:      SourceSession,
		Permissions: enums.AllPermissions(),
	}
}

// APIKeyIdentity builds the identity for an api key caller.
func APIKeyIdentity(userID, keyID uuid.UUID, permissions enums.Permissions) Identity {
	return Identity{
		UserID:      userID,
		Source:      SourceAPIKey,
		APIKeyID:    keyID,
		Permissions: permissions,
	}
}

// Authorize returns a forbidden error when the identity lacks the
// permission. Authentication is assumed to have already happened.
func Authorize(identity Identity, permission enums.Permission) error {
	if identity.UserID == uuid.Nil {
		return apperrors.New(apperrors.CodeUnauthorized, "authentication required")
	}
	if !identity.Permissions.Contains(permission) {
		return apperrors.New(apperrors.CodeForbidden, "this credential does not grant "+permission.String())
	}
	return nil
}
