package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/paywallet/paywallet-backend/pkg/enums"
)

// Transaction is an immutable audit record of a single ledger-affecting event.
//
// Reference carries the external idempotency key for deposits; the unique
// index on it is the database-level backstop for exactly-once crediting.
// CorrelationID links the paired debit/credit rows of one transfer.
type Transaction struct {
	ID                   uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID             uuid.UUID                  `gorm:"column:wallet_id;type:uuid;not null;index"`
	Direction            enums.TransactionDirection `gorm:"column:direction;type:text;not null"`
	Kind                 enums.TransactionKind      `gorm:"column:kind;type:text;not null"`
	AmountKobo           int64                      `gorm:"column:amount_kobo;not null"`
	Status               enums.TransactionStatus    `gorm:"column:status;type:text;not null;default:'pending'"`
	Reference            *string                    `gorm:"column:reference;type:text;uniqueIndex"`
	CorrelationID        *uuid.UUID                 `gorm:"column:correlation_id;type:uuid;index"`
	CounterpartyWalletID *uuid.UUID                 `gorm:"column:counterparty_wallet_id;type:uuid"`
	Description          string                     `gorm:"column:description;type:text"`
	Metadata             json.RawMessage            `gorm:"column:metadata;type:jsonb"`
	CreatedAt            time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
