// Package session implements the cookie+Redis session layer and the
// identity store that owns the authenticated principal. The identity value
// is replaced atomically as a whole: readers observe either the pre-refresh
// or the post-refresh identity, never a mixture.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/agency-portal/agency-portal/internal/rbac"
)

// Manager orchestrates cookie based sessions backed by Redis.
type Manager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session holds per-request session data. The identity pointer and the
// refresh sequence are atomics so concurrent render-path reads need no
// locking.
type Session struct {
	ID          string
	identity    atomic.Pointer[rbac.Identity]
	seq         atomic.Uint64
	refreshedAt atomic.Int64
	token       string
	csrf        string
	manager     *Manager
	isNew       bool
	dirty       bool
	destroyed   bool
}

type sessionPayload struct {
	Identity    *rbac.Identity `json:"identity,omitempty"`
	Token       string         `json:"token,omitempty"`
	Seq         uint64         `json:"seq"`
	RefreshedAt int64          `json:"refreshed_at,omitempty"`
	CSRF        string         `json:"csrf,omitempty"`
}

// NewManager constructs a Manager.
func NewManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load loads or creates a session for the request. A persisted identity is
// only a cached value: callers must still refresh against the upstream
// before trusting it for new authorization decisions.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return m.newSession(), nil
		}
		return nil, err
	}

	payload, err := m.client.Get(ctx, m.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			sess := m.newSession()
			sess.ID = cookie.Value
			return sess, nil
		}
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		// A corrupt payload is treated as no session at all.
		sess := m.newSession()
		sess.ID = cookie.Value
		return sess, nil
	}

	sess := &Session{ID: cookie.Value, manager: m}
	sess.identity.Store(stored.Identity)
	sess.seq.Store(stored.Seq)
	sess.refreshedAt.Store(stored.RefreshedAt)
	sess.token = stored.Token
	sess.csrf = stored.CSRF
	return sess, nil
}

// Commit persists the session and writes cookie headers as needed.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		if err := m.client.Del(ctx, m.redisKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     m.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteLaxMode,
		})
		return nil
	}

	if sess.isNew && sess.ID == "" {
		sess.ID = m.generateSessionID()
	}

	if sess.dirty || sess.isNew {
		payload := sessionPayload{
			Identity:    sess.identity.Load(),
			Token:       sess.token,
			Seq:         sess.seq.Load(),
			RefreshedAt: sess.refreshedAt.Load(),
			CSRF:        sess.csrf,
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if err := m.client.Set(ctx, m.redisKey(sess.ID), data, m.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
	}

	if sess.ID != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     m.cookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   m.secure,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(m.ttl),
		})
	}

	return nil
}

// Destroy marks the session for deletion on commit.
func (m *Manager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// TTL exposes the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Identity returns the current identity snapshot, or nil when the session is
// unauthenticated.
func (s *Session) Identity() *rbac.Identity {
	if s == nil {
		return nil
	}
	return s.identity.Load()
}

// Token returns the stored upstream bearer credential.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.token
}

// Seq returns the current refresh sequence number.
func (s *Session) Seq() uint64 {
	return s.seq.Load()
}

// RefreshedAt returns when the identity was last validated against the
// upstream. The zero time means never, which always counts as stale.
func (s *Session) RefreshedAt() time.Time {
	nanos := s.refreshedAt.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// setAuth installs a fully-constructed identity and credential in one step.
func (s *Session) setAuth(id *rbac.Identity, token string) {
	s.identity.Store(id)
	s.token = token
	s.refreshedAt.Store(time.Now().UnixNano())
	s.seq.Add(1)
	s.dirty = true
}

// publish replaces the identity only when no newer refresh or logout has
// landed since expectSeq was sampled. A stale result is discarded.
func (s *Session) publish(id *rbac.Identity, expectSeq uint64) bool {
	if !s.seq.CompareAndSwap(expectSeq, expectSeq+1) {
		return false
	}
	s.identity.Store(id)
	s.refreshedAt.Store(time.Now().UnixNano())
	s.dirty = true
	return true
}

// clearAuth drops the identity and credential.
func (s *Session) clearAuth() {
	s.identity.Store(nil)
	s.token = ""
	s.seq.Add(1)
	s.dirty = true
}

func (m *Manager) newSession() *Session {
	return &Session{
		ID:      m.generateSessionID(),
		manager: m,
		isNew:   true,
		dirty:   true,
	}
}

func (m *Manager) redisKey(id string) string {
	return "session:" + id
}

func (m *Manager) generateSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	if len(m.secret) > 0 {
		for i := range b {
			b[i] ^= m.secret[i%len(m.secret)]
		}
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
