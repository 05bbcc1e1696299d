package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/paywallet/paywallet-backend/pkg/db/models"
	"github.com/paywallet/paywallet-backend/pkg/enums"
	"github.com/paywallet/paywallet-backend/pkg/money"
)

// WalletDTO is the wallet shape returned to API callers.
type WalletDTO struct {
	ID           uuid.UUID      `json:"id"`
	WalletNumber string         `json:"wallet_number"`
	BalanceKobo  int64          `json:"balance_kobo"`
	Balance      string         `json:"balance"`
	Currency     enums.Currency `json:"currency"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ToWalletDTO shapes a wallet row for API responses.
func ToWalletDTO(w *models.Wallet) WalletDTO {
	return WalletDTO{
		ID:           w.ID,
		WalletNumber: w.WalletNumber,
		BalanceKobo:  w.BalanceKobo,
		Balance:      money.FormatKobo(w.BalanceKobo),
		Currency:     w.Currency,
		CreatedAt:    w.CreatedAt,
	}
}

// TransactionDTO is the transaction shape returned to API callers.
type TransactionDTO struct {
	ID                   uuid.UUID                  `json:"id"`
	Direction            enums.TransactionDirection `json:"direction"`
	Kind                 enums.TransactionKind      `json:"kind"`
	AmountKobo           int64                      `json:"amount_kobo"`
	Amount               string                     `json:"amount"`
	Status               enums.TransactionStatus    `json:"status"`
	Reference            *string                    `json:"reference,omitempty"`
	CounterpartyWalletID *uuid.UUID                 `json:"counterparty_wallet_id,omitempty"`
	Description          string                     `json:"description,omitempty"`
	CreatedAt            time.Time                  `json:"created_at"`
}

// ToTransactionDTO shapes a transaction row for API responses.
func ToTransactionDTO(t models.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:                   t.ID,
		Direction:            t.Direction,
		Kind:                 t.Kind,
		AmountKobo:           t.AmountKobo,
		Amount:               money.FormatKobo(t.AmountKobo),
		Status:               t.Status,
		Reference:            t.Reference,
		CounterpartyWalletID: t.CounterpartyWalletID,
		Description:          t.Description,
		CreatedAt:            t.CreatedAt,
	}
}

// ToTransactionDTOs shapes a page of transactions.
func ToTransactionDTOs(rows []models.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToTransactionDTO(row))
	}
	return out
}
