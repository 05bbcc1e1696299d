package apikeys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/paywallet/paywallet-backend/pkg/config"
	"github.com/paywallet/paywallet-backend/pkg/db/models"
	"github.com/paywallet/paywallet-backend/pkg/enums"
	apperrors "github.com/paywallet/paywallet-backend/pkg/errors"
	"github.com/paywallet/paywallet-backend/pkg/logger"
	"github.com/paywallet/paywallet-backend/pkg/security"
)

// Cache is the redis surface used for validated-key caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	APIKeyCacheKey(keyHash string) string
}

// Service manages the api key lifecycle plus request-time authentication.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CreatedKey, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error)
	Revoke(ctx context.Context, userID, keyID uuid.UUID) error
	Rollover(ctx context.Context, userID, keyID uuid.UUID) (*CreatedKey, error)
	Authenticate(ctx context.Context, plaintext string) (*models.APIKey, error)
}

// CreateInput describes a requested api key.
type CreateInput struct {
	UserID      uuid.UUID
	Name        string
	Permissions enums.Permissions
	Expiry      string
}

// CreatedKey pairs the stored row with the plaintext secret, which is only
// available at creation time.
type CreatedKey struct {
	Key       models.APIKey
	Plaintext string
}

// ServiceParams collects the api key service dependencies.
type ServiceParams struct {
	Repo   Repository
	Cache  Cache
	Logger *logger.Logger
	Config config.APIKeyConfig
	Now    func() time.Time
}

type service struct {
	repo  Repository
	cache Cache
	logg  *logger.Logger
	cfg   config.APIKeyConfig
	now   func() time.Time
}

// NewService validates dependencies and returns an api key service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("api key repository is required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("api key cache is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	cfg := params.Config
	if cfg.MaxLiveKeys <= 0 {
		cfg.MaxLiveKeys = 5
	}
	if cfg.DefaultExpiry == "" {
		cfg.DefaultExpiry = "1Y"
	}
	return &service{
		repo:  params.Repo,
		cache: params.Cache,
		logg:  params.Logger,
		cfg:   cfg,
		now:   now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*CreatedKey, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "key name is required")
	}
	if err := input.Permissions.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid permissions")
	}

	now := s.now().UTC()
	expiry := input.Expiry
	if expiry == "" {
		expiry = s.cfg.DefaultExpiry
	}
	expiresAt, err := parseExpiry(now, expiry)
	if err != nil {
		return nil, err
	}

	live, err := s.repo.CountLiveByUser(ctx, input.UserID, now)
	if err != nil {
		return nil, err
	}
	if live >= int64(s.cfg.MaxLiveKeys) {
		return nil, apperrors.New(apperrors.CodeAPIKeyLimit,
			fmt.Sprintf("at most %d live keys allowed, revoke one first", s.cfg.MaxLiveKeys))
	}

	taken, err := s.repo.NameInUse(ctx, input.UserID, name, now)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.New(apperrors.CodeConflict, "a live key with this name already exists")
	}

	plaintext, hash, err := security.GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	key := models.APIKey{
		ID:          uuid.New(),
		UserID:      input.UserID,
		Name:        name,
		KeyHash:     hash,
		Permissions: input.Permissions,
		ExpiresAt:   expiresAt,
	}
	if err := s.repo.Create(ctx, &key); err != nil {
		return nil, err
	}
	return &CreatedKey{Key: key, Plaintext: plaintext}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Revoke(ctx context.Context, userID, keyID uuid.UUID) error {
	key, err := s.ownedKey(ctx, userID, keyID)
	if err != nil {
		return err
	}
	if key.IsRevoked {
		return nil
	}
	key.IsRevoked = true
	if err := s.repo.Update(ctx, key); err != nil {
		return err
	}
	s.invalidateCache(ctx, key.KeyHash)
	return nil
}

// Rollover mints a replacement for an expired key, carrying the same name
// and permissions and expiring one default period from now. Only expiry is
// recoverable this way: live keys stay as they are and revoked keys stay
// dead.
func (s *service) Rollover(ctx context.Context, userID, keyID uuid.UUID) (*CreatedKey, error) {
	key, err := s.ownedKey(ctx, userID, keyID)
	if err != nil {
		return nil, err
	}

	if key.IsRevoked {
		return nil, apperrors.New(apperrors.CodeValidation, "revoked keys cannot be rolled over")
	}
	if key.ExpiresAt.After(s.now().UTC()) {
		return nil, apperrors.New(apperrors.CodeValidation, "only expired keys can be rolled over")
	}

	s.invalidateCache(ctx, key.KeyHash)

	return s.Create(ctx, CreateInput{
		UserID:      userID,
		Name:        key.Name,
		Permissions: key.Permissions,
		Expiry:      s.cfg.DefaultExpiry,
	})
}

// cachedKey is the JSON payload stored against a validated key hash.
type cachedKey struct {
	ID          uuid.UUID         `json:"id"`
	UserID      uuid.UUID         `json:"user_id"`
	Permissions enums.Permissions `json:"permissions"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// Authenticate resolves a plaintext key to its stored row. Validated keys
// are cached briefly; revocation busts the cache entry, so the cache window
// only covers expiry drift.
func (s *service) Authenticate(ctx context.Context, plaintext string) (*models.APIKey, error) {
	if !strings.HasPrefix(plaintext, security.APIKeyPrefix) {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid api key")
	}
	hash := security.HashAPIKey(plaintext)
	now := s.now().UTC()

	if key, ok := s.fromCache(ctx, hash, now); ok {
		return key, nil
	}

	key, err := s.repo.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid api key")
		}
		return nil, err
	}
	if !key.IsLive(now) {
		return nil, apperrors.New(apperrors.CodeUnauthorized, "invalid api key")
	}

	s.storeCache(ctx, key)
	if err := s.repo.TouchLastUsed(ctx, key.ID, now); err != nil {
		s.logg.Error(ctx, "updating api key last_used_at", err)
	}
	return key, nil
}

func (s *service) fromCache(ctx context.Context, hash string, now time.Time) (*models.APIKey, bool) {
	raw, err := s.cache.Get(ctx, s.cache.APIKeyCacheKey(hash))
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.logg.Error(ctx, "reading api key cache", err)
		}
		return nil, false
	}
	var cached cachedKey
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, false
	}
	if !cached.ExpiresAt.After(now) {
		return nil, false
	}
	return &models.APIKey{
		ID:          cached.ID,
		UserID:      cached.UserID,
		KeyHash:     hash,
		Permissions: cached.Permissions,
		ExpiresAt:   cached.ExpiresAt,
	}, true
}

func (s *service) storeCache(ctx context.Context, key *models.APIKey) {
	payload, err := json.Marshal(cachedKey{
		ID:          key.ID,
		UserID:      key.UserID,
		Permissions: key.Permissions,
		ExpiresAt:   key.ExpiresAt,
	})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.APIKeyCacheKey(key.KeyHash), string(payload), s.cfg.CacheTTL); err != nil {
		s.logg.Error(ctx, "writing api key cache", err)
	}
}

func (s *service) invalidateCache(ctx context.Context, hash string) {
	if err := s.cache.Del(ctx, s.cache.APIKeyCacheKey(hash)); err != nil {
		s.logg.Error(ctx, "invalidating api key cache", err)
	}
}

func (s *service) ownedKey(ctx context.Context, userID, keyID uuid.UUID) (*models.APIKey, error) {
	key, err := s.repo.FindByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "api key not found")
		}
		return nil, err
	}
	if key.UserID != userID {
		// Do not reveal that the key exists at all.
		return nil, apperrors.New(apperrors.CodeNotFound, "api key not found")
	}
	return key, nil
}
