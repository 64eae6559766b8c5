// Package rbac implements the portal access-control engine: the role,
// permission and view catalogs, the static role-capability tables and the
// pure decision functions used to gate every authenticated route.
package rbac

// Role is the portal privilege level. Ordinals match the identity provider's
// userRoleID values; a lower ordinal means more privilege.
type Role int

const (
	RoleSuperAdmin Role = 1
	RoleAdmin      Role = 2
	RoleAgency     Role = 3
)

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	return r >= RoleSuperAdmin && r <= RoleAgency
}

// Rank returns the privilege ordinal.
func (r Role) Rank() int {
	return int(r)
}

// AtLeast reports whether r is at least as privileged as required.
func (r Role) AtLeast(required Role) bool {
	return r <= required
}

// String returns the stable identifier used in logs and JSON payloads.
func (r Role) String() string {
	switch r {
	case RoleSuperAdmin:
		return "super_admin"
	case RoleAdmin:
		return "admin"
	case RoleAgency:
		return "agency"
	default:
		return "unknown"
	}
}

// DisplayName returns the human readable role label.
func (r Role) DisplayName() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Admin"
	case RoleAdmin:
		return "Admin"
	case RoleAgency:
		return "Agency"
	default:
		return "Unknown"
	}
}

// AgencySubtype distinguishes an agency-owner account from an agent
// sub-account. Only identities with RoleAgency carry a subtype; the zero
// value means not applicable.
type AgencySubtype string

const (
	SubtypeNone  AgencySubtype = ""
	SubtypeOwner AgencySubtype = "agency"
	SubtypeAgent AgencySubtype = "agent"
)
