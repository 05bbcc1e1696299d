package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	apperrors "github.com/paywallet/paywallet-backend/pkg/errors"
)

// ErrInvalidRefreshToken is returned when a refresh token is unknown or expired.
var ErrInvalidRefreshToken = apperrors.New(apperrors.CodeUnauthorized, "invalid refresh token")

const refreshTokenBytes = 32

// Store is the redis surface the session manager depends on.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
	RefreshSessionKey(refreshToken string) string
}

// record is the JSON payload stored against a refresh token.
type record struct {
	UserID   uuid.UUID `json:"user_id"`
	AccessID string    `json:"access_id"`
}

// Manager tracks server-side sessions in redis. Access sessions let logout
// invalidate tokens before they expire; refresh tokens rotate on every use.
type Manager struct {
	store      Store
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewManager wires a session manager over the supplied store.
func NewManager(store Store, accessTTL, refreshTTL time.Duration) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if accessTTL <= 0 {
		return nil, fmt.Errorf("access ttl must be positive")
	}
	if refreshTTL <= 0 {
		return nil, fmt.Errorf("refresh ttl must be positive")
	}
	return &Manager{store: store, accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

// Session is returned on creation and rotation.
type Session struct {
	AccessID     string
	RefreshToken string
}

// Create registers a new access session and mints a refresh token for it.
func (m *Manager) Create(ctx context.Context, userID uuid.UUID) (*Session, error) {
	accessID := NewAccessID()
	refreshToken, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	if err := m.store.Set(ctx, m.store.AccessSessionKey(accessID), userID.String(), m.accessTTL); err != nil {
		return nil, fmt.Errorf("storing access session: %w", err)
	}

	payload, err := json.Marshal(record{UserID: userID, AccessID: accessID})
	if err != nil {
		return nil, fmt.Errorf("encoding session record: %w", err)
	}
	if err := m.store.Set(ctx, m.store.RefreshSessionKey(refreshToken), string(payload), m.refreshTTL); err != nil {
		return nil, fmt.Errorf("storing refresh session: %w", err)
	}

	return &Session{AccessID: accessID, RefreshToken: refreshToken}, nil
}

// Rotate consumes a refresh token and issues a fresh session. The old refresh
// token and its access session are invalidated even if the caller discards
// the result.
func (m *Manager) Rotate(ctx context.Context, refreshToken string) (uuid.UUID, *Session, error) {
	raw, err := m.store.Get(ctx, m.store.RefreshSessionKey(refreshToken))
	if err != nil {
		return uuid.Nil, nil, wrapNotFound(err)
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return uuid.Nil, nil, fmt.Errorf("decoding session record: %w", err)
	}

	if err := m.store.Del(ctx,
		m.store.RefreshSessionKey(refreshToken),
		m.store.AccessSessionKey(rec.AccessID),
	); err != nil {
		return uuid.Nil, nil, fmt.Errorf("revoking rotated session: %w", err)
	}

	next, err := m.Create(ctx, rec.UserID)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return rec.UserID, next, nil
}

// Revoke invalidates an access session immediately.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if accessID == "" {
		return nil
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

// HasSession reports whether the access session is still live.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// NewAccessID mints the identifier stored in the token's jti claim.
func NewAccessID() string {
	return uuid.NewString()
}

func generateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func wrapNotFound(err error) error {
	if errors.Is(err, goredis.Nil) {
		return ErrInvalidRefreshToken
	}
	return err
}
