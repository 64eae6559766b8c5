package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agency-portal/agency-portal/internal/rbac"
	"github.com/agency-portal/agency-portal/internal/upstream"
	_ "github.com/agency-portal/agency-portal/testing"
)

// ==== MOCK GATEWAY ====

type mockGateway struct {
	otpToken   string
	otpErr     error
	grant      *upstream.AccessGrant
	grantErr   error
	agency     *upstream.Agency
	agencyErr  error
	profile    *upstream.Profile
	profileErr error

	requestedOTPFor string
	fetchedAgencyID string
}

func (m *mockGateway) RequestOTP(ctx context.Context, email string) (*upstream.Envelope, error) {
	m.requestedOTPFor = email
	return &upstream.Envelope{Success: true, Status: 200}, nil
}

func (m *mockGateway) SubmitOTP(ctx context.Context, email, otp string) (string, error) {
	if m.otpErr != nil {
		return "", m.otpErr
	}
	return m.otpToken, nil
}

func (m *mockGateway) AccessToken(ctx context.Context, token string) (*upstream.AccessGrant, error) {
	return m.grant, m.grantErr
}

func (m *mockGateway) AgencyByID(ctx context.Context, token, agencyID string) (*upstream.Agency, error) {
	m.fetchedAgencyID = agencyID
	return m.agency, m.agencyErr
}

func (m *mockGateway) FetchProfile(ctx context.Context, token string) (*upstream.Profile, error) {
	return m.profile, m.profileErr
}

func newTestService(t *testing.T, gateway Gateway) *Service {
	t.Helper()
	return NewService(gateway, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func ownerAgency() *upstream.Agency {
	return &upstream.Agency{
		ID:           json.Number("55"),
		Name:         "Acme Realty",
		Email:        "owner@agency.example",
		AgencyTypeID: 1,
		FirstName:    "Alice",
		LastName:     "Owner",
		AgencyType:   upstream.AgencyType{Name: "Agency"},
	}
}

func TestLoginWithOTPCompletesAgencyFlow(t *testing.T) {
	gateway := &mockGateway{
		otpToken: "issued-token",
		grant:    &upstream.AccessGrant{AgencyID: json.Number("55")},
		agency:   ownerAgency(),
	}
	svc := newTestService(t, gateway)

	id, token, err := svc.LoginWithOTP(context.Background(), "owner@agency.example", "123456")
	require.NoError(t, err)
	assert.Equal(t, "issued-token", token)
	assert.Equal(t, "55", gateway.fetchedAgencyID)
	assert.Equal(t, rbac.RoleAgency, id.Role)
	assert.Equal(t, rbac.SubtypeOwner, id.Subtype)
	assert.Equal(t, "55", id.AgencyID)
	assert.Equal(t, "Alice Owner", id.Name)
	assert.Equal(t, rbac.AuthMethodEmail, id.AuthMethod)
}

func TestLoginWithOTPAgentSubtype(t *testing.T) {
	agency := ownerAgency()
	agency.AgencyTypeID = 2
	gateway := &mockGateway{
		otpToken: "issued-token",
		grant:    &upstream.AccessGrant{AgencyID: json.Number("55")},
		agency:   agency,
	}
	svc := newTestService(t, gateway)

	id, _, err := svc.LoginWithOTP(context.Background(), "agent@agency.example", "123456")
	require.NoError(t, err)
	assert.Equal(t, rbac.SubtypeAgent, id.Subtype)
}

func TestLoginWithOTPUnknownAgencyTypeFails(t *testing.T) {
	agency := ownerAgency()
	agency.AgencyTypeID = 9
	gateway := &mockGateway{
		otpToken: "issued-token",
		grant:    &upstream.AccessGrant{AgencyID: json.Number("55")},
		agency:   agency,
	}
	svc := newTestService(t, gateway)

	_, _, err := svc.LoginWithOTP(context.Background(), "x@agency.example", "123456")
	require.Error(t, err)
	assert.True(t, rbac.IsNormalizationFailure(err))
}

func TestLoginWithOTPMissingAgencyIDFails(t *testing.T) {
	gateway := &mockGateway{
		otpToken: "issued-token",
		grant:    &upstream.AccessGrant{},
	}
	svc := newTestService(t, gateway)

	_, _, err := svc.LoginWithOTP(context.Background(), "x@agency.example", "123456")
	require.ErrorIs(t, err, upstream.ErrRejected)
}

func TestLoginWithOTPBadCodePropagates(t *testing.T) {
	gateway := &mockGateway{otpErr: upstream.ErrRejected}
	svc := newTestService(t, gateway)

	_, _, err := svc.LoginWithOTP(context.Background(), "x@agency.example", "000000")
	require.ErrorIs(t, err, upstream.ErrRejected)
}

func TestLoginWithSSO(t *testing.T) {
	role := 2
	gateway := &mockGateway{profile: &upstream.Profile{
		ID:          "u-7",
		Email:       "ops@example.com",
		DisplayName: "Ops Admin",
		UserRoleID:  &role,
	}}
	svc := newTestService(t, gateway)

	id, err := svc.LoginWithSSO(context.Background(), "ms-token")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, id.Role)
	assert.Equal(t, rbac.AuthMethodMicrosoft, id.AuthMethod)
}

func TestLoginWithSSORejectsUnknownRole(t *testing.T) {
	role := 42
	gateway := &mockGateway{profile: &upstream.Profile{
		ID:         "u-7",
		Email:      "ops@example.com",
		UserRoleID: &role,
	}}
	svc := newTestService(t, gateway)

	_, err := svc.LoginWithSSO(context.Background(), "ms-token")
	require.ErrorIs(t, err, rbac.ErrUnknownRole)
}

func TestLoginWithSSORejectsMissingRole(t *testing.T) {
	gateway := &mockGateway{profile: &upstream.Profile{
		ID:    "u-7",
		Email: "ops@example.com",
	}}
	svc := newTestService(t, gateway)

	_, err := svc.LoginWithSSO(context.Background(), "ms-token")
	require.ErrorIs(t, err, rbac.ErrUnknownRole)
}

func TestFetchRawProfileMapsRoleNameToSubtype(t *testing.T) {
	role := 3
	gateway := &mockGateway{profile: &upstream.Profile{
		ID:           "u-9",
		Email:        "owner@agency.example",
		UserRoleID:   &role,
		UserRoleName: "Agency",
		AgencyID:     "55",
	}}
	svc := newTestService(t, gateway)

	raw, err := svc.FetchRawProfile(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, 1, raw.AgencyTypeID)

	gateway.profile.UserRoleName = "agent"
	raw, err = svc.FetchRawProfile(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, 2, raw.AgencyTypeID)
}

func TestFetchRawProfilePropagatesTransportErrors(t *testing.T) {
	gateway := &mockGateway{profileErr: errors.Join(upstream.ErrUnavailable, errors.New("boom"))}
	svc := newTestService(t, gateway)

	_, err := svc.FetchRawProfile(context.Background(), "token")
	require.ErrorIs(t, err, upstream.ErrUnavailable)
}
