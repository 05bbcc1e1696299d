package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/paywallet/paywallet-backend/pkg/db/models"
)

// RegisterRequest contains the payload required to open an account.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8"`
}

// RegisterResponse reports the newly created account and wallet.
type RegisterResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	WalletNumber string    `json:"wallet_number"`
}

// LoginRequest contains the credentials for an existing account.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries a refresh token to rotate.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// UserSummary is the user shape embedded in auth responses.
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
}

// LoginResponse carries the token pair issued on login and refresh.
type LoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	User         UserSummary `json:"user"`
}

func summarize(user *models.User) UserSummary {
	return UserSummary{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
	}
}

func expiresIn(d time.Duration) int64 {
	return int64(d / time.Second)
}
