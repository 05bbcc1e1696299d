package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/paywallet/paywallet-backend/pkg/enums"
)

// DepositIntent tracks a requested deposit from initiation until the payment
// provider confirms it. Reference is minted at initiation time and echoed
// back by the provider's webhook; it is the idempotency key for crediting.
type DepositIntent struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID      uuid.UUID           `gorm:"column:wallet_id;type:uuid;not null;index"`
	Reference     string              `gorm:"column:reference;type:text;not null;uniqueIndex"`
	AmountKobo    int64               `gorm:"column:amount_kobo;not null"`
	Status        enums.DepositStatus `gorm:"column:status;type:text;not null;default:'initiated'"`
	ProviderRef   *string             `gorm:"column:provider_ref;type:text"`
	FailureReason *string             `gorm:"column:failure_reason;type:text"`
	ConfirmedAt   *time.Time          `gorm:"column:confirmed_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
