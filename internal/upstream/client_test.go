package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/agency-portal/agency-portal/testing"
)

func respond(t *testing.T, w http.ResponseWriter, env Envelope) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(env); err != nil {
		t.Fatalf("encode envelope: %v", err)
	}
}

func dataJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	return raw
}

func TestSubmitOTPReturnsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/AgencyAuth/OTPSubmit" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("Email"); got != "owner@agency.example" {
			t.Fatalf("got Email %q", got)
		}
		if got := r.FormValue("OTP"); got != "123456" {
			t.Fatalf("got OTP %q", got)
		}
		respond(t, w, Envelope{Success: true, Status: 200, Data: dataJSON(t, "issued-token")})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	token, err := client.SubmitOTP(context.Background(), "owner@agency.example", "123456")
	if err != nil {
		t.Fatalf("submit otp: %v", err)
	}
	if token != "issued-token" {
		t.Fatalf("got token %q", token)
	}
}

func TestSubmitOTPRejectsEmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, Envelope{Success: true, Status: 200, Data: dataJSON(t, "")})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.SubmitOTP(context.Background(), "owner@agency.example", "123456"); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Fatalf("got Authorization %q", got)
		}
		respond(t, w, Envelope{Success: true, Status: 200, Data: dataJSON(t, Profile{Email: "x@example.com"})})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	profile, err := client.FetchProfile(context.Background(), "secret-token")
	if err != nil {
		t.Fatalf("fetch profile: %v", err)
	}
	if profile.Email != "x@example.com" {
		t.Fatalf("got %+v", profile)
	}
}

func TestClientMapsUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.FetchProfile(context.Background(), "stale"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestClientMapsServerErrorsToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.ListAgencies(context.Background(), "token"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClientMapsConnectionFailureToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening any more

	client := NewClient(server.URL)
	if _, err := client.ListProjects(context.Background(), "token"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClientMapsEnvelopeFailureToRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, Envelope{Success: false, Status: 400, Error: "duplicate email"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.CreateAgency(context.Background(), "token", CreateAgencyInput{Name: "A", Email: "a@example.com"})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestAccessTokenDecodesGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Agency/GetAgencyAPIAccessToken" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		respond(t, w, Envelope{Success: true, Status: 200, Data: dataJSON(t, map[string]any{
			"agencyID":    55,
			"accessToken": "agency-api-token",
		})})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	grant, err := client.AccessToken(context.Background(), "token")
	if err != nil {
		t.Fatalf("access token: %v", err)
	}
	if grant.AgencyID.String() != "55" {
		t.Fatalf("got agency id %q", grant.AgencyID.String())
	}
	if grant.AccessToken != "agency-api-token" {
		t.Fatalf("got access token %q", grant.AccessToken)
	}
}

func TestAgencyByIDPassesQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("agencyID"); got != "55" {
			t.Fatalf("got agencyID %q", got)
		}
		respond(t, w, Envelope{Success: true, Status: 200, Data: dataJSON(t, map[string]any{
			"id":           55,
			"name":         "Acme Realty",
			"agencyTypeID": 1,
		})})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	agency, err := client.AgencyByID(context.Background(), "token", "55")
	if err != nil {
		t.Fatalf("agency by id: %v", err)
	}
	if agency.Name != "Acme Realty" || agency.AgencyTypeID != 1 {
		t.Fatalf("got %+v", agency)
	}
}
