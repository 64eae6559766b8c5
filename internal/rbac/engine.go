package rbac

// Decision functions. All of them are pure, total and allocation-light:
// "no access" is always a boolean false, never an error, because callers use
// the answer directly to decide what to render or forward.

// HasPermission reports whether the role's permission set contains perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// CanAccessView reports whether the role may navigate to view.
func CanAccessView(role Role, view View) bool {
	for _, v := range roleViews[role] {
		if v == view {
			return true
		}
	}
	return false
}

// CanAccessUserManagement implements the one dynamic capability in the
// model. Super admins and admins always manage users. An agency-owner
// account (RoleAgency with the owner subtype) manages its own agents, but an
// agent sub-account shares RoleAgency and must be denied.
func CanAccessUserManagement(role Role, subtype AgencySubtype) bool {
	if role == RoleSuperAdmin || role == RoleAdmin {
		return true
	}
	return role == RoleAgency && subtype == SubtypeOwner
}

// HasPermissionWithSubtype behaves like HasPermission except for
// PermUserManagement, which is resolved through the agency-subtype rule.
func HasPermissionWithSubtype(role Role, perm Permission, subtype AgencySubtype) bool {
	if perm == PermUserManagement {
		return CanAccessUserManagement(role, subtype)
	}
	return HasPermission(role, perm)
}

// CanAccessViewWithSubtype behaves like CanAccessView except for
// ViewUserManagement, which is resolved through the agency-subtype rule.
func CanAccessViewWithSubtype(role Role, view View, subtype AgencySubtype) bool {
	if view == ViewUserManagement {
		return CanAccessUserManagement(role, subtype)
	}
	return CanAccessView(role, view)
}

// PermissionsFor returns a copy of the role's permission set.
func PermissionsFor(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// ViewsFor returns a copy of the role's view set.
func ViewsFor(role Role) []View {
	views := roleViews[role]
	out := make([]View, len(views))
	copy(out, views)
	return out
}

// IsSuperAdmin reports whether the role is the super admin role.
func IsSuperAdmin(role Role) bool {
	return role == RoleSuperAdmin
}

// IsAdminOrHigher reports whether the role is admin or super admin. The
// validity check keeps out-of-range low ordinals, zero included, from
// satisfying the rank comparison.
func IsAdminOrHigher(role Role) bool {
	return role.Valid() && role.AtLeast(RoleAdmin)
}

// IsAgencyRole reports whether the role is the agency role.
func IsAgencyRole(role Role) bool {
	return role == RoleAgency
}

// CanAccessData answers ownership-scoped access questions. Admin or higher
// sees everything. Agency identities see a resource when it is owned by them
// or belongs to their agency. A resource carrying neither ownership signal
// is denied: granting on missing metadata would widen access silently.
func CanAccessData(id Identity, resourceOwnerID, resourceAgencyID string) bool {
	if IsAdminOrHigher(id.Role) {
		return true
	}
	if !IsAgencyRole(id.Role) {
		return false
	}
	if resourceOwnerID != "" && resourceOwnerID == id.ID {
		return true
	}
	if resourceAgencyID != "" && id.AgencyID != "" && resourceAgencyID == id.AgencyID {
		return true
	}
	return false
}
