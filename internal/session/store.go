// Package session owns the current authenticated identity. It is the single
// source of truth for "who is logged in"; IsAuthenticated and CurrentUserID
// are derived from the one stored session on every call, never stored
// separately.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/place-keeper/internal/errs"
	"github.com/and161185/place-keeper/internal/model"
	"github.com/and161185/place-keeper/internal/remote"
)

// DefaultTTL applies when neither the provider TTL nor the token exp claim is
// usable.
const DefaultTTL = time.Hour

// UserSource exposes the derived identity view gated mutations need.
type UserSource interface {
	// CurrentUserID returns the authenticated user id, or false when there is
	// no valid session.
	CurrentUserID() (string, bool)
}

// Store holds the current session. The zero value of the inner session means
// "no user"; the session is replaced wholesale, never patched.
type Store struct {
	identity remote.IdentityProvider
	log      *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	current *model.Session
}

var _ UserSource = (*Store)(nil)

// NewStore constructs a session store over the given identity provider.
func NewStore(identity remote.IdentityProvider, log *zap.Logger) *Store {
	return &Store{identity: identity, log: log, now: time.Now}
}

// SignUp registers credentials and establishes the resulting session.
func (s *Store) SignUp(ctx context.Context, email, password string) (model.Session, error) {
	return s.authenticate(ctx, s.identity.SignUp, email, password)
}

// SignIn authenticates credentials and establishes the resulting session.
func (s *Store) SignIn(ctx context.Context, email, password string) (model.Session, error) {
	return s.authenticate(ctx, s.identity.SignIn, email, password)
}

type identityCall func(ctx context.Context, email, password string) (remote.AuthData, error)

func (s *Store) authenticate(ctx context.Context, call identityCall, email, password string) (model.Session, error) {
	data, err := call(ctx, email, password)
	if err != nil {
		var ae *errs.AuthError
		if errors.As(err, &ae) {
			return model.Session{}, &errs.AuthError{Reason: reason(ae.Reason)}
		}
		return model.Session{}, err
	}

	sess := model.Session{
		UserID:      data.UserID,
		Token:       data.Token,
		TokenExpiry: s.now().Add(s.ttl(data)),
	}
	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()

	s.log.Info("session established",
		zap.String("userID", sess.UserID),
		zap.Time("expiry", sess.TokenExpiry),
	)
	return sess, nil
}

// ttl prefers the provider-supplied TTL, then the token exp claim, then
// DefaultTTL.
func (s *Store) ttl(data remote.AuthData) time.Duration {
	if data.TTL > 0 {
		return data.TTL
	}
	var claims jwt.RegisteredClaims
	// unverified parse: the claim only schedules local expiry, it grants nothing
	_, _ = jwt.ParseWithClaims(data.Token, &claims,
		func(*jwt.Token) (any, error) { return nil, nil },
		jwt.WithoutClaimsValidation(),
	)
	if claims.ExpiresAt != nil {
		if d := claims.ExpiresAt.Time.Sub(s.now()); d > 0 {
			return d
		}
	}
	return DefaultTTL
}

// reason maps known provider codes to stable wording; unknown codes pass
// through verbatim.
func reason(code string) string {
	switch code {
	case "EMAIL_EXISTS":
		return "email already registered"
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return "invalid credentials"
	}
	return code
}

// Restore seeds a previously saved session, e.g. from the CLI token file.
// Expired sessions are discarded; reports whether the session was accepted.
func (s *Store) Restore(sess model.Session) bool {
	if !sess.Valid(s.now()) {
		return false
	}
	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()
	return true
}

// SignOut clears the current session. Idempotent.
func (s *Store) SignOut() {
	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	s.mu.Unlock()
	if had {
		s.log.Info("signed out")
	}
}

// Current returns a copy of the session and whether a valid one is present.
func (s *Store) Current() (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || !s.current.Valid(s.now()) {
		return model.Session{}, false
	}
	return *s.current, true
}

// CurrentUserID derives the authenticated user id from the current session.
func (s *Store) CurrentUserID() (string, bool) {
	sess, ok := s.Current()
	if !ok {
		return "", false
	}
	return sess.UserID, true
}

// IsAuthenticated reports whether a non-expired session is present.
func (s *Store) IsAuthenticated() bool {
	_, ok := s.Current()
	return ok
}
