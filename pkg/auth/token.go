package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/paywallet/paywallet-backend/pkg/config"
	apperrors "github.com/paywallet/paywallet-backend/pkg/errors"
)

// TokenManager mints and parses HS256 access tokens.
type TokenManager struct {
	secret []byte
	issuer string
	expiry time.Duration
	now    func() time.Time
}

// NewTokenManager builds a TokenManager from the JWT configuration.
func NewTokenManager(cfg config.JWTConfig) (*TokenManager, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("jwt issuer is required")
	}
	expiry := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if expiry <= 0 {
		expiry = 30 * time.Minute
	}
	return &TokenManager{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		expiry: expiry,
		now:    time.Now,
	}, nil
}

// Mint signs a new access token for the supplied payload.
func (m *TokenManager) Mint(payload AccessTokenPayload) (string, error) {
	if payload.UserID == [16]byte{} {
		return "", fmt.Errorf("user id is required")
	}
	if payload.AccessID == "" {
		return "", fmt.Errorf("access id is required")
	}

	now := m.now()
	claims := AccessTokenClaims{
		UserID: payload.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        payload.AccessID,
			Issuer:    m.issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Parse validates a signed token and returns its claims.
func (m *TokenManager) Parse(tokenString string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return m.secret, nil
		},
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnauthorized, err, "invalid access token")
	}
	if !token.Valid {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid access token")
	}
	if claims.ID == "" {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "token missing session id")
	}
	return claims, nil
}

// Expiry reports how long minted tokens stay valid.
func (m *TokenManager) Expiry() time.Duration {
	return m.expiry
}
