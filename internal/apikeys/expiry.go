package apikeys

import (
	"regexp"
	"strconv"
	"time"

	apperrors "github.com/paywallet/paywallet-backend/pkg/errors"
)

// expiryRe matches the shorthand callers supply, e.g. 1H, 7D, 3M, 1Y.
var expiryRe = regexp.MustCompile(`^(\d{1,3})([HDMY])$`)

// parseExpiry resolves an expiry shorthand relative to now. Month and year
// units use calendar arithmetic, not fixed-length approximations.
func parseExpiry(now time.Time, shorthand string) (time.Time, error) {
	m := expiryRe.FindStringSubmatch(shorthand)
	if m == nil {
		return time.Time{}, apperrors.New(apperrors.CodeValidation, "expiry must look like 1H, 7D, 3M or 1Y")
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 {
		return time.Time{}, apperrors.New(apperrors.CodeValidation, "expiry count must be positive")
	}

	switch m[2] {
	case "H":
		return now.Add(time.Duration(n) * time.Hour), nil
	case "D":
		return now.AddDate(0, 0, n), nil
	case "M":
		return now.AddDate(0, n, 0), nil
	default:
		return now.AddDate(n, 0, 0), nil
	}
}
