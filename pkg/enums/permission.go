package enums

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Permission represents a single capability an API key can exercise.
type Permission string

const (
	PermissionRead     Permission = "read"
	PermissionDeposit  Permission = "deposit"
	PermissionTransfer Permission = "transfer"
)

var validPermissions = []Permission{
	PermissionRead,
	PermissionDeposit,
	PermissionTransfer,
}

// String implements fmt.Stringer.
func (p Permission) String() string {
	return string(p)
}

// IsValid reports whether the permission is recognized.
func (p Permission) IsValid() bool {
	for _, candidate := range validPermissions {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePermission converts a raw string into a Permission.
func ParsePermission(value string) (Permission, error) {
	for _, candidate := range validPermissions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid permission %q", value)
}

// AllPermissions returns the full permission set granted to session callers.
func AllPermissions() Permissions {
	return append(Permissions(nil), validPermissions...)
}

// Permissions is the immutable set granted to an API key at creation time.
// It is stored as a JSON array in a text column so the same representation
// works on Postgres and the sqlite test driver.
type Permissions []Permission

// Contains reports whether the set grants the given permission.
func (p Permissions) Contains(perm Permission) bool {
	for _, candidate := range p {
		if candidate == perm {
			return true
		}
	}
	return false
}

// Validate ensures every member is a known permission and the set is not empty.
func (p Permissions) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("at least one permission is required")
	}
	seen := map[Permission]bool{}
	for _, perm := range p {
		if !perm.IsValid() {
			return fmt.Errorf("invalid permission %q", perm)
		}
		if seen[perm] {
			return fmt.Errorf("duplicate permission %q", perm)
		}
		seen[perm] = true
	}
	return nil
}

// Value implements driver.Valuer.
func (p Permissions) Value() (driver.Value, error) {
	if p == nil {
		p = Permissions{}
	}
	encoded, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode permissions: %w", err)
	}
	return string(encoded), nil
}

// Scan implements sql.Scanner.
func (p *Permissions) Scan(src any) error {
	if src == nil {
		*p = Permissions{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported permissions source %T", src)
	}
	return json.Unmarshal(raw, p)
}
