package users

import (
	"github.com/google/uuid"

	"github.com/paywallet/paywallet-backend/pkg/db/models"
)

// CreateUserDTO captures the fields needed to insert a user row.
type CreateUserDTO struct {
	Email        string
	Username     string
	PasswordHash string
}

// ToModel converts the DTO into a persistable user model.
func (d CreateUserDTO) ToModel() *models.User {
	return &models.User{
		ID:           uuid.New(),
		Email:        d.Email,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		IsActive:     true,
	}
}
