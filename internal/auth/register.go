package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/paywallet/paywallet-backend/internal/ledger"
	"github.com/paywallet/paywallet-backend/internal/users"
	"github.com/paywallet/paywallet-backend/pkg/config"
	"github.com/paywallet/paywallet-backend/pkg/db"
	pkgerrors "github.com/paywallet/paywallet-backend/pkg/errors"
	"github.com/paywallet/paywallet-backend/pkg/security"
)

// RegisterService handles account onboarding.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             *db.Client
	Ledger         ledger.Service
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	db          *db.Client
	ledger      ledger.Service
	passwordCfg config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	}
	return &registerService{
		db:          params.DB,
		ledger:      params.Ledger,
		passwordCfg: params.PasswordConfig,
	}, nil
}

// Register creates the user and their wallet in one transaction. A user
// without a wallet cannot exist, so both inserts commit or neither does.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var resp RegisterResponse
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}
		if _, err := userRepo.FindByUsername(ctx, username); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check username")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			Username:     username,
			PasswordHash: passwordHash,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		wallet, err := s.ledger.CreateWalletForUser(ctx, tx, user.ID)
		if err != nil {
			return err
		}

		resp = RegisterResponse{
			UserID:       user.ID,
			Email:        user.Email,
			Username:     user.Username,
			WalletNumber: wallet.WalletNumber,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
