package users

import (
	"context"
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
	listedAll    bool
	listAgencyID string
}

func (s *stubGateway) ListUsers(ctx context.Context, token string) (*upstream.Envelope, error) {
	s.listedAll = true
	return &upstream.Envelope{Success: true, Status: 200}, nil
}

func (s *stubGateway) AgentsByAgencyID(ctx context.Context, token, agencyID string) (*upstream.Envelope, error) {
	s.listAgencyID = agencyID
	return &upstream.Envelope{Success: true, Status: 200}, nil
}

func serve(t *testing.T, gateway Gateway, id *rbac.Identity) *httptest.ResponseRecorder {
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

	req := httptest.NewRequest(http.MethodGet, "/", nil)
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

func TestAdminListsAllUsers(t *testing.T) {
	gateway := &stubGateway{}
	id := &rbac.Identity{ID: "a-1", Role: rbac.RoleAdmin}
	rec := serve(t, gateway, id)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	if !gateway.listedAll {
		t.Fatal("admin should list the whole user base")
	}
}

func TestAgencyOwnerListsOwnAgents(t *testing.T) {
	gateway := &stubGateway{}
	id := &rbac.Identity{ID: "u-1", Role: rbac.RoleAgency, Subtype: rbac.SubtypeOwner, AgencyID: "55"}
	rec := serve(t, gateway, id)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	if gateway.listedAll {
		t.Fatal("agency owner must not list the whole user base")
	}
	if gateway.listAgencyID != "55" {
		t.Fatalf("got agency id %q", gateway.listAgencyID)
	}
}

func TestAgentSubAccountIsDenied(t *testing.T) {
	gateway := &stubGateway{}
	id := &rbac.Identity{ID: "u-2", Role: rbac.RoleAgency, Subtype: rbac.SubtypeAgent, AgencyID: "55"}
	rec := serve(t, gateway, id)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("got status %d", rec.Code)
	}
	if gateway.listedAll || gateway.listAgencyID != "" {
		t.Fatal("upstream must not be called")
	}
}

func TestUnauthenticatedIsDenied(t *testing.T) {
	rec := serve(t, &stubGateway{}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d", rec.Code)
	}
}
