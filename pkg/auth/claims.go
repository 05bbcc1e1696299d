package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenClaims is the JWT payload minted for authenticated sessions.
// The registered ID (jti) doubles as the server-side session handle.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"uid"`
	jwt.RegisteredClaims
}

// AccessTokenPayload carries the identity fields a caller supplies when
// requesting a new access token.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	AccessID string
}
