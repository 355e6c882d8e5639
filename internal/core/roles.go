package core

import "strings"

// Built-in role names. SuperAdmin absorbs every other capability.
const (
	RoleSuperAdmin = "SuperAdmin"
	RoleEntry      = "Entry"
	RoleReport     = "Report"
	RoleCategory   = "Category"
)

// DefaultRoles are granted to every newly registered identity.
var DefaultRoles = []string{RoleEntry, RoleReport}

// RoleSet holds an identity's role names. The comma-joined string form is a
// serialization detail only; membership checks go through Has.
type RoleSet struct {
	names []string
}

// NewRoleSet builds a set from individual names, dropping blanks and
// duplicates while keeping first-seen order.
func NewRoleSet(names ...string) RoleSet {
	var rs RoleSet
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		rs.names = append(rs.names, n)
	}
	return rs
}

// ParseRoleSet splits a comma-joined role string.
func ParseRoleSet(s string) RoleSet {
	return NewRoleSet(strings.Split(s, ",")...)
}

// Has reports whether the set grants the named role. SuperAdmin membership
// grants everything.
func (rs RoleSet) Has(role string) bool {
	for _, n := range rs.names {
		if n == role || n == RoleSuperAdmin {
			return true
		}
	}
	return false
}

// Granted reports whether the role itself was assigned. Unlike Has there is
// no SuperAdmin absorption, so the admin matrix shows only real grants.
func (rs RoleSet) Granted(role string) bool {
	for _, n := range rs.names {
		if n == role {
			return true
		}
	}
	return false
}

// IsSuperAdmin reports literal SuperAdmin membership.
func (rs RoleSet) IsSuperAdmin() bool {
	for _, n := range rs.names {
		if n == RoleSuperAdmin {
			return true
		}
	}
	return false
}

// Names returns the role names in first-seen order.
func (rs RoleSet) Names() []string {
	out := make([]string, len(rs.names))
	copy(out, rs.names)
	return out
}

// String renders the comma-joined serialization form.
func (rs RoleSet) String() string {
	return strings.Join(rs.names, ", ")
}

// Display returns the label shown for the identity. SuperAdmin wins over any
// other assignment; otherwise the joined names, or empty when unassigned.
func (rs RoleSet) Display() string {
	if rs.IsSuperAdmin() {
		return RoleSuperAdmin
	}
	return rs.String()
}

// Empty reports whether the identity holds no roles at all.
func (rs RoleSet) Empty() bool {
	return len(rs.names) == 0
}
