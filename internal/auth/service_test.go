package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgauth "github.com/paywallet/paywallet-backend/pkg/auth"
	"github.com/paywallet/paywallet-backend/pkg/auth/session"
	"github.com/paywallet/paywallet-backend/pkg/config"
	"github.com/paywallet/paywallet-backend/pkg/db/models"
	pkgerrors "github.com/paywallet/paywallet-backend/pkg/errors"
	"github.com/paywallet/paywallet-backend/pkg/security"
)

type fakeUsers struct {
	byEmail map[string]*models.User
	byID    map[uuid.UUID]*models.User

	lastLogin map[uuid.UUID]time.Time
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byEmail:   map[string]*models.User{},
		byID:      map[uuid.UUID]*models.User{},
		lastLogin: map[uuid.UUID]time.Time{},
	}
}

func (f *fakeUsers) add(t *testing.T, email, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     "user-" + uuid.NewString()[:8],
		PasswordHash: hash,
		IsActive:     true,
	}
	f.byEmail[email] = user
	f.byID[user.ID] = user
	return user
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeUsers) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	f.lastLogin[id] = at
	return nil
}

type fakeSessions struct {
	created   int
	revoked   []string
	refreshes map[string]uuid.UUID
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{refreshes: map[string]uuid.UUID{}}
}

func (f *fakeSessions) Create(_ context.Context, userID uuid.UUID) (*session.Session, error) {
	f.created++
	sess := &session.Session{
		AccessID:     uuid.NewString(),
		RefreshToken: uuid.NewString(),
	}
	f.refreshes[sess.RefreshToken] = userID
	return sess, nil
}

func (f *fakeSessions) Rotate(ctx context.Context, refreshToken string) (uuid.UUID, *session.Session, error) {
	userID, ok := f.refreshes[refreshToken]
	if !ok {
		return uuid.Nil, nil, session.ErrInvalidRefreshToken
	}
	delete(f.refreshes, refreshToken)
	sess, _ := f.Create(ctx, userID)
	return userID, sess, nil
}

func (f *fakeSessions) Revoke(_ context.Context, accessID string) error {
	f.revoked = append(f.revoked, accessID)
	return nil
}

type fakeTokens struct{}

func (fakeTokens) Mint(payload pkgauth.AccessTokenPayload) (string, error) {
	return "token-for-" + payload.UserID.String(), nil
}

func (fakeTokens) Expiry() time.Duration { return 30 * time.Minute }

func newTestService(t *testing.T, users *fakeUsers, sessions *fakeSessions) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       users,
		SessionManager: sessions,
		Tokens:         fakeTokens{},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestLoginSuccess(t *testing.T) {
	usersRepo := newFakeUsers()
	sessions := newFakeSessions()
	user := usersRepo.add(t, "user@example.com", "correct horse battery")
	svc := newTestService(t, usersRepo, sessions)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "User@Example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Error("expected token pair")
	}
	if resp.User.ID != user.ID {
		t.Errorf("user id = %s, want %s", resp.User.ID, user.ID)
	}
	if resp.ExpiresIn != 1800 {
		t.Errorf("expires_in = %d, want 1800", resp.ExpiresIn)
	}
	if _, ok := usersRepo.lastLogin[user.ID]; !ok {
		t.Error("last login not recorded")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	usersRepo := newFakeUsers()
	usersRepo.add(t, "user@example.com", "correct horse battery")
	svc := newTestService(t, usersRepo, newFakeSessions())

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "user@example.com",
		Password: "wrong",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newTestService(t, newFakeUsers(), newFakeSessions())

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@example.com",
		Password: "anything",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	usersRepo := newFakeUsers()
	user := usersRepo.add(t, "user@example.com", "correct horse battery")
	user.IsActive = false
	svc := newTestService(t, usersRepo, newFakeSessions())

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "user@example.com",
		Password: "correct horse battery",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for inactive user, got %v", err)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	usersRepo := newFakeUsers()
	sessions := newFakeSessions()
	usersRepo.add(t, "user@example.com", "correct horse battery")
	svc := newTestService(t, usersRepo, sessions)

	first, err := svc.Login(context.Background(), LoginRequest{
		Email:    "user@example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	second, err := svc.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Error("refresh token did not rotate")
	}

	// A consumed refresh token is rejected.
	if _, err := svc.Refresh(context.Background(), first.RefreshToken); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized on reuse, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	sessions := newFakeSessions()
	svc := newTestService(t, newFakeUsers(), sessions)

	if err := svc.Logout(context.Background(), "access-1"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "access-1" {
		t.Errorf("revoked = %v", sessions.revoked)
	}
}
