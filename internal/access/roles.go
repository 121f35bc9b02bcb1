package access

import (
	"fmt"
	"strings"

	"github.com/solarlink-crm/solarlink/internal/shared"
)

// Role is the canonical closed role set. Legacy enumerations from older data
// snapshots are translated on ingest via ParseRole; nothing past that boundary
// ever branches on an alias.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleSalesManager Role = "SALES_MANAGER"
	RoleOpsManager   Role = "OPS_MANAGER"
	RoleSalesUser    Role = "SALES_USER"
	RoleOpsUser      Role = "OPS_USER"
)

// legacyAliases maps role values seen in older exports to the canonical set.
var legacyAliases = map[string]Role{
	"SALES":       RoleSalesUser,
	"OPS":         RoleOpsUser,
	"SUPER_ADMIN": RoleAdmin,
	"SALES_ADMIN": RoleSalesManager,
	"OPS_ADMIN":   RoleOpsManager,
}

// ParseRole canonicalizes a stored role value. Unknown values are rejected
// rather than defaulting, so a bad import cannot silently grant access.
func ParseRole(value string) (Role, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	switch Role(normalized) {
	case RoleAdmin, RoleSalesManager, RoleOpsManager, RoleSalesUser, RoleOpsUser:
		return Role(normalized), nil
	}
	if canonical, ok := legacyAliases[normalized]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", shared.ErrValidation, value)
}

// IsHead reports whether the role bypasses the user approval gate.
func (r Role) IsHead() bool {
	return r == RoleAdmin || r == RoleSalesManager || r == RoleOpsManager
}

// IsManager reports whether the role carries approval authority.
func (r Role) IsManager() bool {
	return r.IsHead()
}

// Valid reports whether the role belongs to the canonical set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSalesManager, RoleOpsManager, RoleSalesUser, RoleOpsUser:
		return true
	default:
		return false
	}
}
