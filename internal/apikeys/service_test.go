package apikeys

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/paywallet/paywallet-backend/pkg/config"
	"github.com/paywallet/paywallet-backend/pkg/db/models"
	"github.com/paywallet/paywallet-backend/pkg/enums"
	apperrors "github.com/paywallet/paywallet-backend/pkg/errors"
	"github.com/paywallet/paywallet-backend/pkg/logger"
)

type fakeKeyRepo struct {
	keys map[uuid.UUID]*models.APIKey
}

func newFakeKeyRepo() *fakeKeyRepo {
	return &fakeKeyRepo{keys: map[uuid.UUID]*models.APIKey{}}
}

func (f *fakeKeyRepo) WithTx(_ *gorm.DB) Repository { return f }

func (f *fakeKeyRepo) Create(_ context.Context, key *models.APIKey) error {
	cp := *key
	f.keys[key.ID] = &cp
	return nil
}

func (f *fakeKeyRepo) FindByID(_ context.Context, id uuid.UUID) (*models.APIKey, error) {
	key, ok := f.keys[id]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := *key
	return &cp, nil
}

func (f *fakeKeyRepo) FindByHash(_ context.Context, hash string) (*models.APIKey, error) {
	for _, key := range f.keys {
		if key.KeyHash == hash {
			cp := *key
			return &cp, nil
		}
	}
	return nil, ErrKeyNotFound
}

func (f *fakeKeyRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.APIKey, error) {
	var out []models.APIKey
	for _, key := range f.keys {
		if key.UserID == userID {
			out = append(out, *key)
		}
	}
	return out, nil
}

func (f *fakeKeyRepo) CountLiveByUser(_ context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	var count int64
	for _, key := range f.keys {
		if key.UserID == userID && key.IsLive(now) {
			count++
		}
	}
	return count, nil
}

func (f *fakeKeyRepo) NameInUse(_ context.Context, userID uuid.UUID, name string, now time.Time) (bool, error) {
	for _, key := range f.keys {
		if key.UserID == userID && key.Name == name && key.IsLive(now) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeKeyRepo) Update(_ context.Context, key *models.APIKey) error {
	cp := *key
	f.keys[key.ID] = &cp
	return nil
}

func (f *fakeKeyRepo) TouchLastUsed(_ context.Context, id uuid.UUID, at time.Time) error {
	if key, ok := f.keys[id]; ok {
		key.LastUsedAt = &at
	}
	return nil
}

type fakeCache struct {
	values map[string]string
	gets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	f.gets++
	v, ok := f.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.values[key] = value.(string)
	return nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeCache) APIKeyCacheKey(hash string) string { return "pw:api_key:" + hash }

func newTestService(t *testing.T, repo *fakeKeyRepo, cache *fakeCache) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Cache:  cache,
		Logger: logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard}),
		Config: config.APIKeyConfig{MaxLiveKeys: 5, CacheTTL: 5 * time.Minute, DefaultExpiry: "1Y"},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func readPerms() enums.Permissions {
	return enums.Permissions{enums.PermissionRead}
}

func TestCreateReturnsPlaintextOnce(t *testing.T) {
	repo := newFakeKeyRepo()
	svc := newTestService(t, repo, newFakeCache())
	userID := uuid.New()

	created, err := svc.Create(context.Background(), CreateInput{
		UserID:      userID,
		Name:        "ci",
		Permissions: readPerms(),
		Expiry:      "1M",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(created.Plaintext, "pw_live_") {
		t.Errorf("plaintext %q missing prefix", created.Plaintext)
	}
	stored := repo.keys[created.Key.ID]
	if stored.KeyHash == created.Plaintext {
		t.Error("plaintext must not be stored")
	}
	if !stored.ExpiresAt.After(time.Now().AddDate(0, 0, 27)) {
		t.Errorf("1M expiry too soon: %s", stored.ExpiresAt)
	}
}

func TestCreateEnforcesLiveKeyCap(t *testing.T) {
	repo := newFakeKeyRepo()
	svc := newTestService(t, repo, newFakeCache())
	userID := uuid.New()

	var firstID uuid.UUID
	for i := 0; i < 5; i++ {
		created, err := svc.Create(context.Background(), CreateInput{
			UserID:      userID,
			Name:        "key-" + uuid.NewString()[:8],
			Permissions: readPerms(),
		})
		if err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		if i == 0 {
			firstID = created.Key.ID
		}
	}

	_, err := svc.Create(context.Background(), CreateInput{
		UserID:      userID,
		Name:        "one-too-many",
		Permissions: readPerms(),
	})
	if !apperrors.HasCode(err, apperrors.CodeAPIKeyLimit) {
		t.Fatalf("expected api key limit error, got %v", err)
	}

	// Revoking a key frees a slot.
	if err := svc.Revoke(context.Background(), userID, firstID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.Create(context.Background(), CreateInput{
		UserID:      userID,
		Name:        "after-revoke",
		Permissions: readPerms(),
	}); err != nil {
		t.Fatalf("Create after revoke: %v", err)
	}
}

func TestCreateRejectsDuplicateLiveName(t *testing.T) {
	repo := newFakeKeyRepo()
	svc := newTestService(t, repo, newFakeCache())
	userID := uuid.New()

	if _, err := svc.Create(context.Background(), CreateInput{UserID: userID, Name: "ci", Permissions: readPerms()}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := svc.Create(context.Background(), CreateInput{UserID: userID, Name: "ci", Permissions: readPerms()})
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateRejectsBadExpiry(t *testing.T) {
	svc := newTestService(t, newFakeKeyRepo(), newFakeCache())
	for _, expiry := range []string{"1W", "0D", "abc", "-1D"} {
		_, err := svc.Create(context.Background(), CreateInput{
			UserID:      uuid.New(),
			Name:        "k",
			Permissions: readPerms(),
			Expiry:      expiry,
		})
		if !apperrors.HasCode(err, apperrors.CodeValidation) {
			t.Errorf("expiry %q: expected validation error, got %v", expiry, err)
		}
	}
}

func TestAuthenticateRoundTripAndCache(t *testing.T) {
	repo := newFakeKeyRepo()
	cache := newFakeCache()
	svc := newTestService(t, repo, cache)
	userID := uuid.New()

	created, err := svc.Create(context.Background(), CreateInput{UserID: userID, Name: "ci", Permissions: readPerms()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	key, err := svc.Authenticate(context.Background(), created.Plaintext)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if key.UserID != userID {
		t.Errorf("authenticated user = %s, want %s", key.UserID, userID)
	}

	// Second authentication is served from cache.
	delete(repo.keys, created.Key.ID)
	key, err = svc.Authenticate(context.Background(), created.Plaintext)
	if err != nil {
		t.Fatalf("Authenticate from cache: %v", err)
	}
	if key.UserID != userID {
		t.Errorf("cached user = %s, want %s", key.UserID, userID)
	}
}

func TestAuthenticateRejectsUnknownAndMalformed(t *testing.T) {
	svc := newTestService(t, newFakeKeyRepo(), newFakeCache())

	for _, plaintext := range []string{"", "not-a-key", "pw_live_unknown"} {
		_, err := svc.Authenticate(context.Background(), plaintext)
		if !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
			t.Errorf("plaintext %q: expected unauthorized, got %v", plaintext, err)
		}
	}
}

func TestRevokeBustsCache(t *testing.T) {
	repo := newFakeKeyRepo()
	cache := newFakeCache()
	svc := newTestService(t, repo, cache)
	userID := uuid.New()

	created, err := svc.Create(context.Background(), CreateInput{UserID: userID, Name: "ci", Permissions: readPerms()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), created.Plaintext); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	if err := svc.Revoke(context.Background(), userID, created.Key.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), created.Plaintext); !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized after revoke, got %v", err)
	}
}

func TestRevokeForeignKeyHidden(t *testing.T) {
	repo := newFakeKeyRepo()
	svc := newTestService(t, repo, newFakeCache())

	created, err := svc.Create(context.Background(), CreateInput{UserID: uuid.New(), Name: "ci", Permissions: readPerms()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Revoke(context.Background(), uuid.New(), created.Key.ID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found for foreign key, got %v", err)
	}
}

func TestRolloverReplacesExpiredKey(t *testing.T) {
	repo := newFakeKeyRepo()
	svc := newTestService(t, repo, newFakeCache())
	userID := uuid.New()

	created, err := svc.Create(context.Background(), CreateInput{UserID: userID, Name: "ci", Permissions: readPerms(), Expiry: "1H"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	repo.keys[created.Key.ID].ExpiresAt = time.Now().UTC().Add(-time.Minute)

	next, err := svc.Rollover(context.Background(), userID, created.Key.ID)
	if err != nil {
		t.Fatalf("Rollover: %v", err)
	}
	if next.Key.Name != "ci" {
		t.Errorf("rolled key name = %q", next.Key.Name)
	}
	if next.Plaintext == created.Plaintext {
		t.Error("rollover must mint a new secret")
	}
	if _, err := svc.Authenticate(context.Background(), created.Plaintext); !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expired secret should stay dead, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), next.Plaintext); err != nil {
		t.Fatalf("new secret should authenticate: %v", err)
	}
}

func TestRolloverRejectsLiveKey(t *testing.T) {
	repo := newFakeKeyRepo()
	svc := newTestService(t, repo, newFakeCache())
	userID := uuid.New()

	created, err := svc.Create(context.Background(), CreateInput{UserID: userID, Name: "ci", Permissions: readPerms()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Rollover(context.Background(), userID, created.Key.ID); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error for live key, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), created.Plaintext); err != nil {
		t.Fatalf("live key must keep working after rejected rollover: %v", err)
	}
}

func TestRolloverRejectsRevokedKey(t *testing.T) {
	repo := newFakeKeyRepo()
	svc := newTestService(t, repo, newFakeCache())
	userID := uuid.New()

	created, err := svc.Create(context.Background(), CreateInput{UserID: userID, Name: "ci", Permissions: readPerms()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Revoke(context.Background(), userID, created.Key.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	// Revocation stays terminal even once the key has also expired.
	repo.keys[created.Key.ID].ExpiresAt = time.Now().UTC().Add(-time.Minute)

	if _, err := svc.Rollover(context.Background(), userID, created.Key.ID); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error for revoked key, got %v", err)
	}
}

func TestParseExpiry(t *testing.T) {
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)

	cases := map[string]time.Time{
		"1H": now.Add(time.Hour),
		"7D": now.AddDate(0, 0, 7),
		"1M": now.AddDate(0, 1, 0),
		"1Y": now.AddDate(1, 0, 0),
	}
	for shorthand, want := range cases {
		got, err := parseExpiry(now, shorthand)
		if err != nil {
			t.Errorf("parseExpiry(%q): %v", shorthand, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseExpiry(%q) = %s, want %s", shorthand, got, want)
		}
	}
}
