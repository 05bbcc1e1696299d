package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/paywallet/paywallet-backend/pkg/enums"
)

// Wallet holds the materialized balance for a single user.
//
// BalanceKobo is derived from the append-only transaction log and must only
// change through the versioned debit/credit primitives in internal/ledger:
// every mutation bumps Version, and writers that lose a version race get no
// rows updated instead of silently clobbering a concurrent commit.
type Wallet struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID      `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	WalletNumber string         `gorm:"column:wallet_number;type:varchar(13);not null;uniqueIndex"`
	BalanceKobo  int64          `gorm:"column:balance_kobo;not null;default:0"`
	Currency     enums.Currency `gorm:"column:currency;type:text;not null;default:'NGN'"`
	Version      int64          `gorm:"column:version;not null;default:0"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
