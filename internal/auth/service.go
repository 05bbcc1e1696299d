package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*LoginResponse, error)
	Logout(ctx context.Context, accessID string) error
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type sessionManager interface {
	Create(ctx context.Context, userID uuid.UUID) (*session.Session, error)
	Rotate(ctx context.Context, refreshToken string) (uuid.UUID, *session.Session, error)
	Revoke(ctx context.Context, accessID string) error
}

type tokenMinter interface {
	Mint(payload pkgauth.AccessTokenPayload) (string, error)
	Expiry() time.Duration
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	Tokens         tokenMinter
	PasswordConfig config.PasswordConfig
}

type service struct {
	users       userRepository
	sessions    sessionManager
	tokens      tokenMinter
	passwordCfg config.PasswordConfig
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token manager is required")
	}
	return &service{
		users:       params.UserRepo,
		sessions:    params.SessionManager,
		tokens:      params.Tokens,
		passwordCfg: params.PasswordConfig,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Burn a verification anyway so the response time does not
			// reveal whether the email exists.
			security.VerifyPassword(req.Password, decoyHash(s.passwordCfg))
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find user")
	}

	ok, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record login")
	}

	return s.issue(ctx, user)
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*LoginResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "refresh token is required")
	}

	userID, sess, err := s.sessions.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	return s.respond(user, sess)
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	return s.sessions.Revoke(ctx, accessID)
}

func (s *service) issue(ctx context.Context, user *models.User) (*LoginResponse, error) {
	sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create session")
	}
	return s.respond(user, sess)
}

func (s *service) respond(user *models.User, sess *session.Session) (*LoginResponse, error) {
	accessToken, err := s.tokens.Mint(pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		AccessID: sess.AccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresIn:    expiresIn(s.tokens.Expiry()),
		User:         summarize(user),
	}, nil
}

// decoyHash returns a fixed argon2id hash used to equalize timing on
// unknown-email logins.
func decoyHash(cfg config.PasswordConfig) string {
	hash, err := security.HashPassword("decoy-password", cfg)
	if err != nil {
		return ""
	}
	return hash
}
