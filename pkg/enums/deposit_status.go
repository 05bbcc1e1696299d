package enums

import "fmt"

// DepositStatus tracks a deposit intent from initiation to settlement.
type DepositStatus string

const (
	DepositStatusInitiated DepositStatus = "initiated"
	DepositStatusConfirmed DepositStatus = "confirmed"
	// DepositStatusReview marks intents whose confirmed amount disagreed
	// with the requested amount. They are never auto-credited.
	DepositStatusReview DepositStatus = "review"
	DepositStatusFailed DepositStatus = "failed"
)

var validDepositStatuses = []DepositStatus{
	DepositStatusInitiated,
	DepositStatusConfirmed,
	DepositStatusReview,
	DepositStatusFailed,
}

func (s DepositStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is recognized.
func (s DepositStatus) IsValid() bool {
	for _, candidate := range validDepositStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the intent can still move to confirmed.
func (s DepositStatus) IsTerminal() bool {
	return s != DepositStatusInitiated
}

// ParseDepositStatus converts raw input into a DepositStatus.
func ParseDepositStatus(value string) (DepositStatus, error) {
	for _, candidate := range validDepositStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid deposit status %q", value)
}
