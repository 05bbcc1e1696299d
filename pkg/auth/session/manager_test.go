package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

type fakeStore struct {
	values map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.values[key] = value.(string)
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeStore) AccessSessionKey(accessID string) string {
	return "pw:session:access:" + accessID
}

func (f *fakeStore) RefreshSessionKey(refreshToken string) string {
	return "pw:session:refresh:" + refreshToken
}

func TestCreateStoresAccessAndRefresh(t *testing.T) {
	store := newFakeStore()
	mgr, err := NewManager(store, 30*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	userID := uuid.New()
	sess, err := mgr.Create(context.Background(), userID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.AccessID == "" || sess.RefreshToken == "" {
		t.Fatalf("incomplete session: %+v", sess)
	}

	live, err := mgr.HasSession(context.Background(), sess.AccessID)
	if err != nil {
		t.Fatalf("HasSession: %v", err)
	}
	if !live {
		t.Fatal("expected live session after create")
	}
}

func TestRotateInvalidatesOldSession(t *testing.T) {
	store := newFakeStore()
	mgr, err := NewManager(store, 30*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	userID := uuid.New()
	first, err := mgr.Create(context.Background(), userID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	gotUser, second, err := mgr.Rotate(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if gotUser != userID {
		t.Errorf("rotated user = %s, want %s", gotUser, userID)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Error("refresh token did not rotate")
	}

	if live, _ := mgr.HasSession(context.Background(), first.AccessID); live {
		t.Error("old access session should be revoked after rotation")
	}
	if live, _ := mgr.HasSession(context.Background(), second.AccessID); !live {
		t.Error("new access session should be live")
	}

	// The consumed refresh token must not work twice.
	if _, _, err := mgr.Rotate(context.Background(), first.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken on reuse, got %v", err)
	}
}

func TestRotateUnknownToken(t *testing.T) {
	store := newFakeStore()
	mgr, err := NewManager(store, 30*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, _, err := mgr.Rotate(context.Background(), "nope"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	store := newFakeStore()
	mgr, err := NewManager(store, 30*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	sess, err := mgr.Create(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mgr.Revoke(context.Background(), sess.AccessID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if live, _ := mgr.HasSession(context.Background(), sess.AccessID); live {
		t.Fatal("session should be gone after revoke")
	}
}
