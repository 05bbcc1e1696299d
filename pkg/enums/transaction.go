package enums

import "fmt"

// TransactionDirection indicates which side of the ledger an entry sits on.
type TransactionDirection string

const (
	TransactionDirectionCredit TransactionDirection = "credit"
	TransactionDirectionDebit  TransactionDirection = "debit"
)

var validTransactionDirections = []TransactionDirection{
	TransactionDirectionCredit,
	TransactionDirectionDebit,
}

func (d TransactionDirection) String() string {
	return string(d)
}

// IsValid reports whether the direction is recognized.
func (d TransactionDirection) IsValid() bool {
	for _, candidate := range validTransactionDirections {
		if candidate == d {
			return true
		}
	}
	return false
}

// TransactionKind classifies what produced a ledger entry.
type TransactionKind string

const (
	TransactionKindDeposit     TransactionKind = "deposit"
	TransactionKindTransferIn  TransactionKind = "transfer_in"
	TransactionKindTransferOut TransactionKind = "transfer_out"
)

var validTransactionKinds = []TransactionKind{
	TransactionKindDeposit,
	TransactionKindTransferIn,
	TransactionKindTransferOut,
}

func (k TransactionKind) String() string {
	return string(k)
}

// IsValid reports whether the kind is recognized.
func (k TransactionKind) IsValid() bool {
	for _, candidate := range validTransactionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// Direction returns the ledger direction implied by the kind.
func (k TransactionKind) Direction() TransactionDirection {
	if k == TransactionKindTransferOut {
		return TransactionDirectionDebit
	}
	return TransactionDirectionCredit
}

// ParseTransactionKind converts raw input into a TransactionKind.
func ParseTransactionKind(value string) (TransactionKind, error) {
	for _, candidate := range validTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction kind %q", value)
}

// TransactionStatus tracks the lifecycle of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusCompleted,
	TransactionStatusFailed,
}

func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is recognized.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
