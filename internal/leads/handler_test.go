package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/agency-portal/agency-portal/internal/rbac"
	"github.com/agency-portal/agency-portal/internal/session"
	"github.com/agency-portal/agency-portal/internal/upstream"
	_ "github.com/agency-portal/agency-portal/testing"
)

type stubGateway struct {
	saved          *upstream.Lead
	listedProjects bool
}

func (s *stubGateway) ListProjects(ctx context.Context, token string) (*upstream.Envelope, error) {
	s.listedProjects = true
	return &upstream.Envelope{Success: true, Status: 200}, nil
}

func (s *stubGateway) SaveLead(ctx context.Context, token string, lead upstream.Lead) (*upstream.Envelope, error) {
	s.saved = &lead
	return &upstream.Envelope{Success: true, Status: 200}, nil
}

func serve(t *testing.T, gateway Gateway, id *rbac.Identity, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	manager := session.NewManager(client, "agency_portal_session", "secret", time.Hour, false)
	store := session.NewStore(manager, nil, logger)

	sess, err := manager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("load session: %v", err)
	}

	req := httptest.NewRequest(method, target, body)
	ctx := session.ContextWithSession(req.Context(), sess)
	if id != nil {
		store.Login(sess, *id, "bearer-token")
		ctx = rbac.ContextWithIdentity(ctx, sess.Identity())
	}
	req = req.WithContext(ctx)

	handler := NewHandler(logger, gateway, rbac.Middleware{Logger: logger})
	router := chi.NewRouter()
	handler.MountRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func leadPayload(t *testing.T, overrides map[string]any) io.Reader {
	t.Helper()
	payload := map[string]any{
		"projectID":        12,
		"contactChannelID": 3,
		"contactTypeID":    1,
		"firstName":        "Jane",
		"lastName":         "Doe",
		"tel":              "0812345678",
		"personalAccept":   true,
		"contactAccept":    true,
	}
	for k, v := range overrides {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal lead: %v", err)
	}
	return bytes.NewReader(raw)
}

func TestSaveLeadAttributesAgency(t *testing.T) {
	gateway := &stubGateway{}
	owner := &rbac.Identity{ID: "u-1", Role: rbac.RoleAgency, Subtype: rbac.SubtypeOwner, AgencyID: "55"}

	rec := serve(t, gateway, owner, http.MethodPost, "/", leadPayload(t, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	if gateway.saved == nil {
		t.Fatal("lead not forwarded")
	}
	if gateway.saved.Ref != "55" {
		t.Fatalf("lead not attributed to the agency, ref %q", gateway.saved.Ref)
	}
	if gateway.saved.FirstName != "Jane" || !gateway.saved.FlagPersonalAccept {
		t.Fatalf("unexpected lead: %+v", gateway.saved)
	}
}

func TestSaveLeadKeepsExplicitRef(t *testing.T) {
	gateway := &stubGateway{}
	owner := &rbac.Identity{ID: "u-1", Role: rbac.RoleAgency, Subtype: rbac.SubtypeOwner, AgencyID: "55"}

	rec := serve(t, gateway, owner, http.MethodPost, "/", leadPayload(t, map[string]any{"ref": "campaign-7"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	if gateway.saved.Ref != "campaign-7" {
		t.Fatalf("got ref %q", gateway.saved.Ref)
	}
}

func TestSaveLeadAdminRefUntouched(t *testing.T) {
	gateway := &stubGateway{}
	admin := &rbac.Identity{ID: "a-1", Role: rbac.RoleAdmin}

	rec := serve(t, gateway, admin, http.MethodPost, "/", leadPayload(t, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	if gateway.saved.Ref != "" {
		t.Fatalf("got ref %q", gateway.saved.Ref)
	}
}

func TestSaveLeadValidation(t *testing.T) {
	gateway := &stubGateway{}
	owner := &rbac.Identity{ID: "u-1", Role: rbac.RoleAgency, Subtype: rbac.SubtypeOwner, AgencyID: "55"}

	rec := serve(t, gateway, owner, http.MethodPost, "/", leadPayload(t, map[string]any{"firstName": ""}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", rec.Code)
	}
	if gateway.saved != nil {
		t.Fatal("upstream must not be called")
	}
}

func TestProjectsRequireLeadsPermission(t *testing.T) {
	gateway := &stubGateway{}
	owner := &rbac.Identity{ID: "u-1", Role: rbac.RoleAgency, Subtype: rbac.SubtypeOwner, AgencyID: "55"}
	rec := serve(t, gateway, owner, http.MethodGet, "/projects", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	if !gateway.listedProjects {
		t.Fatal("upstream not called")
	}

	rec = serve(t, &stubGateway{}, nil, http.MethodGet, "/projects", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: got status %d", rec.Code)
	}
}
