// Package session keeps the logged-in backend user in memory. Nothing is persisted, the session
// is gone when the process exits.
package session

import (
	"context"
	"fmt"
	"sync"

	log "github.com/go-pkgz/lgr"

	"github.com/atsdesk/atsdesk/app/api"
)

// Authenticator exchanges credentials for a token
type Authenticator interface {
	Login(ctx context.Context, username, password string) (api.LoginResponse, error)
}

// Session holds token and user, safe for concurrent use. Implements api.TokenProvider.
type Session struct {
	mu    sync.RWMutex
	token string
	user  api.User
}

// New makes session with pre-set token, empty token means anonymous
func New(token string) *Session {
	return &Session{token: token}
}

// Login authenticates and stores the token and user
func (s *Session) Login(ctx context.Context, auth Authenticator, username, password string) (api.User, error) {
	resp, err := auth.Login(ctx, username, password)
	if err != nil {
		return api.User{}, fmt.Errorf("login as %s: %w", username, err)
	}
	s.mu.Lock()
	s.token, s.user = resp.Token, resp.User
	s.mu.Unlock()
	log.Printf("[INFO] logged in as %s, roles %v", resp.User.Username, resp.User.Roles)
	return resp.User, nil
}

// Logout drops token and user
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user = "", api.User{}
}

// Token returns current token
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns current user, zero value if not logged in or token was set directly
func (s *Session) User() api.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Authenticated checks if session has a token
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}
