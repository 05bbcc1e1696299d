package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/paywallet/paywallet-backend/pkg/enums"
)

// APIKey belongs to exactly one user and carries an immutable permission set
// chosen at creation. Only the sha256 hash of the secret is persisted.
type APIKey struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Name        string            `gorm:"column:name;type:text;not null"`
	KeyHash     string            `gorm:"column:key_hash;type:text;not null;uniqueIndex"`
	Permissions enums.Permissions `gorm:"column:permissions;type:text;not null"`
	ExpiresAt   time.Time         `gorm:"column:expires_at;not null"`
	IsRevoked   bool              `gorm:"column:is_revoked;not null;default:false"`
	LastUsedAt  *time.Time        `gorm:"column:last_used_at"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}

// IsLive reports whether the key still counts against the per-user cap.
func (k APIKey) IsLive(now time.Time) bool {
	return !k.IsRevoked && k.ExpiresAt.After(now)
}
