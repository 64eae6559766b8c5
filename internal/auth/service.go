// Package auth implements the login flows: email OTP and Microsoft SSO.
// Both paths end at the same gate, rbac.NormalizeIdentity; a credential that
// cannot be normalized never becomes a session.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agency-portal/agency-portal/internal/rbac"
	"github.com/agency-portal/agency-portal/internal/upstream"
)

// Gateway is the subset of the upstream client used by authentication.
type Gateway interface {
	RequestOTP(ctx context.Context, email string) (*upstream.Envelope, error)
	SubmitOTP(ctx context.Context, email, otp string) (string, error)
	AccessToken(ctx context.Context, token string) (*upstream.AccessGrant, error)
	AgencyByID(ctx context.Context, token, agencyID string) (*upstream.Agency, error)
	FetchProfile(ctx context.Context, token string) (*upstream.Profile, error)
}

// Service wraps the authentication business rules.
type Service struct {
	gateway Gateway
	logger  *slog.Logger
}

// NewService constructs a new Service.
func NewService(gateway Gateway, logger *slog.Logger) *Service {
	return &Service{gateway: gateway, logger: logger}
}

// RequestOTP asks the upstream to mail a one-time password.
func (s *Service) RequestOTP(ctx context.Context, email string) error {
	_, err := s.gateway.RequestOTP(ctx, email)
	return err
}

// LoginWithOTP verifies the one-time password and completes the agency
// login flow. The upstream issues a bearer token, which is then exchanged
// for the agency record that determines the owner-vs-agent subtype.
func (s *Service) LoginWithOTP(ctx context.Context, email, otp string) (rbac.Identity, string, error) {
	token, err := s.gateway.SubmitOTP(ctx, email, otp)
	if err != nil {
		return rbac.Identity{}, "", err
	}
	id, err := s.completeAgencyLogin(ctx, token)
	if err != nil {
		return rbac.Identity{}, "", err
	}
	return id, token, nil
}

// LoginWithSSO accepts the Microsoft-issued bearer token, fetches the
// profile and normalizes it. The popup flow that produced the token is the
// frontend's concern; validation of the token itself is the upstream's.
func (s *Service) LoginWithSSO(ctx context.Context, token string) (rbac.Identity, error) {
	raw, err := s.FetchRawProfile(ctx, token)
	if err != nil {
		return rbac.Identity{}, err
	}
	raw.AuthMethod = rbac.AuthMethodMicrosoft
	return rbac.NormalizeIdentity(raw)
}

// FetchRawProfile fetches User/GetUser and maps it onto the normalizer's
// input shape. It also implements session.ProfileSource for refreshes.
func (s *Service) FetchRawProfile(ctx context.Context, token string) (rbac.RawProfile, error) {
	profile, err := s.gateway.FetchProfile(ctx, token)
	if err != nil {
		return rbac.RawProfile{}, err
	}
	return rawFromProfile(profile), nil
}

func (s *Service) completeAgencyLogin(ctx context.Context, token string) (rbac.Identity, error) {
	grant, err := s.gateway.AccessToken(ctx, token)
	if err != nil {
		return rbac.Identity{}, err
	}
	agencyID := grant.AgencyID.String()
	if agencyID == "" {
		return rbac.Identity{}, fmt.Errorf("%w: access grant without agency id", upstream.ErrRejected)
	}

	agency, err := s.gateway.AgencyByID(ctx, token, agencyID)
	if err != nil {
		return rbac.Identity{}, err
	}

	name := strings.TrimSpace(agency.FirstName + " " + agency.LastName)
	if name == "" {
		name = agency.Name
	}

	roleID := int(rbac.RoleAgency)
	return rbac.NormalizeIdentity(rbac.RawProfile{
		ID:           agency.ID.String(),
		Email:        agency.Email,
		DisplayName:  name,
		GivenName:    agency.FirstName,
		Surname:      agency.LastName,
		UserRoleID:   &roleID,
		Department:   agency.AgencyType.Name,
		JobTitle:     agency.AgencyType.Description,
		AgencyID:     agency.ID.String(),
		AgencyName:   agency.Name,
		AgencyTypeID: agency.AgencyTypeID,
		AuthMethod:   rbac.AuthMethodEmail,
	})
}

func rawFromProfile(p *upstream.Profile) rbac.RawProfile {
	id := p.ID
	if id == "" {
		id = p.EmployeeID
	}
	raw := rbac.RawProfile{
		ID:          id,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		GivenName:   p.GivenName,
		Surname:     p.Surname,
		UserRoleID:  p.UserRoleID,
		Department:  p.DepartmentName,
		JobTitle:    p.JobTitle,
		AgencyID:    p.AgencyID,
	}
	// Agency accounts surface their classification through the role name.
	switch strings.ToLower(p.UserRoleName) {
	case string(rbac.SubtypeOwner):
		raw.AgencyTypeID = 1
	case string(rbac.SubtypeAgent):
		raw.AgencyTypeID = 2
	}
	return raw
}
