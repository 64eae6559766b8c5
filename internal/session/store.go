package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/agency-portal/agency-portal/internal/rbac"
	"github.com/agency-portal/agency-portal/internal/upstream"
)

// Store errors. ErrRevoked means the session was torn down because the
// upstream reported an invalid credential or an unrecognised role; callers
// translate it to a forced logout.
var (
	ErrNotAuthenticated = errors.New("session: not authenticated")
	ErrRevoked          = errors.New("session: revoked")
)

// ProfileSource fetches the raw upstream profile for a bearer credential.
type ProfileSource interface {
	FetchRawProfile(ctx context.Context, token string) (rbac.RawProfile, error)
}

// Store is the sole mutator of identity state. Login and Logout are the only
// transitions out of and into the unauthenticated state; Refresh re-runs the
// normalizer against fresh profile data.
type Store struct {
	sessions *Manager
	profiles ProfileSource
	logger   *slog.Logger
	group    singleflight.Group
}

// NewStore constructs a Store.
func NewStore(sessions *Manager, profiles ProfileSource, logger *slog.Logger) *Store {
	return &Store{sessions: sessions, profiles: profiles, logger: logger}
}

// Login installs a normalized identity and its credential. Callers must have
// run the identity through rbac.NormalizeIdentity first; this method never
// constructs or repairs an identity itself.
func (s *Store) Login(sess *Session, id rbac.Identity, token string) {
	sess.setAuth(&id, token)
}

// Logout clears the identity and destroys the session.
func (s *Store) Logout(sess *Session) {
	sess.clearAuth()
	s.sessions.Destroy(sess)
}

// EnsureFresh re-validates the cached identity when its last upstream check
// is older than maxAge. A maxAge of zero or less re-validates on every call.
// A persisted identity is only trusted for authorization decisions after it
// passed through here.
func (s *Store) EnsureFresh(ctx context.Context, sess *Session, maxAge time.Duration) (*rbac.Identity, error) {
	id := sess.Identity()
	if id == nil {
		return nil, ErrNotAuthenticated
	}
	if maxAge > 0 && time.Since(sess.RefreshedAt()) < maxAge {
		return id, nil
	}
	return s.Refresh(ctx, sess)
}

// Refresh re-fetches the profile and re-normalizes the role, which may have
// changed upstream. Outcomes:
//
//   - normalization failure or revoked credential: forced logout, ErrRevoked
//   - transport failure: last-known-good identity retained, error returned
//   - success: identity replaced atomically, unless a newer refresh already
//     landed, in which case the stale result is discarded
func (s *Store) Refresh(ctx context.Context, sess *Session) (*rbac.Identity, error) {
	prev := sess.Identity()
	token := sess.Token()
	if prev == nil || token == "" {
		return nil, ErrNotAuthenticated
	}
	started := sess.Seq()

	// Concurrent refreshes for the same session collapse into one upstream
	// call.
	v, err, _ := s.group.Do(sess.ID, func() (any, error) {
		raw, err := s.profiles.FetchRawProfile(ctx, token)
		if err != nil {
			return rbac.RawProfile{}, err
		}
		return raw, nil
	})
	if err != nil {
		if errors.Is(err, upstream.ErrUnauthorized) {
			s.forceLogout(sess, err)
			return nil, fmt.Errorf("%w: %v", ErrRevoked, err)
		}
		// Transient connectivity failure is not an invalid role: keep the
		// last-known-good identity.
		if s.logger != nil {
			s.logger.Warn("profile refresh failed, retaining identity", slog.Any("error", err))
		}
		return prev, err
	}

	raw := v.(rbac.RawProfile)
	raw.AuthMethod = prev.AuthMethod
	if raw.UserRoleID != nil && rbac.Role(*raw.UserRoleID) == rbac.RoleAgency && raw.AgencyTypeID == 0 {
		// GetUser does not always restate the agency classification; fall
		// back to the subtype resolved at login.
		raw.AgencyTypeID = agencyTypeID(prev.Subtype)
	}

	id, err := rbac.NormalizeIdentity(raw)
	if err != nil {
		// The fetch succeeded but the role is no longer recognisable. Stale
		// privilege is worse than a dropped session: tear it down.
		s.forceLogout(sess, err)
		return nil, fmt.Errorf("%w: %v", ErrRevoked, err)
	}

	if !sess.publish(&id, started) {
		// A newer refresh or a logout won the race; its state stands.
		return sess.Identity(), nil
	}
	return &id, nil
}

func (s *Store) forceLogout(sess *Session, cause error) {
	if s.logger != nil {
		s.logger.Warn("forcing logout",
			slog.String("session", sess.ID),
			slog.Any("error", cause),
		)
	}
	s.Logout(sess)
}

func agencyTypeID(subtype rbac.AgencySubtype) int {
	switch subtype {
	case rbac.SubtypeOwner:
		return 1
	case rbac.SubtypeAgent:
		return 2
	default:
		return 0
	}
}
