package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRole is returned when the upstream role identifier is missing or
// outside the closed {1,2,3} set. Callers must abort login or tear down the
// session, never fall back to a guessed role.
var ErrUnknownRole = errors.New("rbac: unknown upstream role")

// ErrUnknownAgencyType is returned when an agency profile carries an
// unrecognised agency type identifier.
var ErrUnknownAgencyType = errors.New("rbac: unknown agency type")

// RawProfile is the untrusted profile shape handed to the normalizer. The
// upstream role identifier is a pointer so that an absent field is
// distinguishable from zero; both are rejected.
type RawProfile struct {
	ID           string
	Email        string
	DisplayName  string
	GivenName    string
	Surname      string
	UserRoleID   *int
	Department   string
	JobTitle     string
	AgencyID     string
	AgencyName   string
	AgencyTypeID int
	AuthMethod   AuthMethod
}

// NormalizeRole maps a raw upstream role identifier onto the role catalog.
// Exactly {1,2,3} are accepted.
func NormalizeRole(raw int) (Role, error) {
	role := Role(raw)
	if !role.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownRole, raw)
	}
	return role, nil
}

// NormalizeIdentity validates a raw profile and builds the canonical
// Identity. It fails on a missing or out-of-range role identifier and, for
// agency accounts, on an unrecognised agency type; no partial identity is
// ever produced.
func NormalizeIdentity(p RawProfile) (Identity, error) {
	if p.UserRoleID == nil {
		return Identity{}, fmt.Errorf("%w: role identifier missing", ErrUnknownRole)
	}
	role, err := NormalizeRole(*p.UserRoleID)
	if err != nil {
		return Identity{}, err
	}

	subtype := SubtypeNone
	if role == RoleAgency {
		switch p.AgencyTypeID {
		case 1:
			subtype = SubtypeOwner
		case 2:
			subtype = SubtypeAgent
		default:
			return Identity{}, fmt.Errorf("%w: %d", ErrUnknownAgencyType, p.AgencyTypeID)
		}
	}

	name := strings.TrimSpace(p.DisplayName)
	if name == "" {
		name = strings.TrimSpace(p.GivenName + " " + p.Surname)
	}
	if name == "" {
		name = p.Email
	}

	return Identity{
		ID:         p.ID,
		Email:      p.Email,
		Name:       name,
		Role:       role,
		Subtype:    subtype,
		AgencyID:   p.AgencyID,
		AgencyName: p.AgencyName,
		Department: p.Department,
		JobTitle:   p.JobTitle,
		AuthMethod: p.AuthMethod,
	}, nil
}

// IsNormalizationFailure reports whether err is a terminal normalization
// failure, as opposed to a transient transport problem. Only normalization
// failures may tear down an existing session.
func IsNormalizationFailure(err error) bool {
	return errors.Is(err, ErrUnknownRole) || errors.Is(err, ErrUnknownAgencyType)
}
