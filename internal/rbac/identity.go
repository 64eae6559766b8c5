package rbac

// AuthMethod records which login flow produced the identity.
type AuthMethod string

const (
	AuthMethodMicrosoft AuthMethod = "microsoft"
	AuthMethodEmail     AuthMethod = "email"
)

// Identity is the authenticated principal. Its Role is always the product of
// NormalizeIdentity; the raw upstream userRoleID is never carried past the
// normalization boundary.
type Identity struct {
	ID         string        `json:"id"`
	Email      string        `json:"email"`
	Name       string        `json:"name"`
	Role       Role          `json:"role"`
	Subtype    AgencySubtype `json:"agency_type,omitempty"`
	AgencyID   string        `json:"agency_id,omitempty"`
	AgencyName string        `json:"agency_name,omitempty"`
	Department string        `json:"department,omitempty"`
	JobTitle   string        `json:"job_title,omitempty"`
	AuthMethod AuthMethod    `json:"auth_method"`
}
