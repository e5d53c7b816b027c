// Package auth defines the authentication collaborator contract. The engine
// and feed client trust the identity it supplies completely; credential
// verification and session issuance live outside this repository.
package auth

import (
	"sync"

	"github.com/pulsefeed/pulsefeed/utils"
)

// User is the opaque stable identity the collaborator supplies per caller.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	Avatar      string `json:"avatar,omitempty"`
}

// Service supplies the caller's identity and notifies about sign-in state
// changes. CurrentUser returns nil when nobody is signed in.
type Service interface {
	CurrentUser() *User
	OnAuthChange(callback func(*User)) (unsubscribe func())
}

// TokenService is a Service backed by bearer tokens: identity is whatever a
// valid token claims. SetToken and Clear model the sign-in/sign-out events
// an embedding application forwards from its session layer.
type TokenService struct {
	mu       sync.Mutex
	current  *User
	nextID   int
	watchers map[int]func(*User)
}

// NewTokenService creates a signed-out TokenService.
func NewTokenService() *TokenService {
	return &TokenService{watchers: map[int]func(*User){}}
}

// SetToken parses and installs a session token, notifying watchers.
func (s *TokenService) SetToken(token string) error {
	claims, err := utils.ParseToken(token)
	if err != nil {
		return err
	}
	user := &User{
		ID:          claims.UserID,
		DisplayName: claims.DisplayName,
		Username:    claims.Username,
		Avatar:      claims.Avatar,
	}
	s.set(user)
	return nil
}

// Clear signs the current user out, notifying watchers.
func (s *TokenService) Clear() { s.set(nil) }

// CurrentUser returns the signed-in identity, or nil.
func (s *TokenService) CurrentUser() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	u := *s.current
	return &u
}

// OnAuthChange registers callback for sign-in state changes. The returned
// handle removes the registration and is safe to call more than once.
func (s *TokenService) OnAuthChange(callback func(*User)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = callback
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

func (s *TokenService) set(user *User) {
	s.mu.Lock()
	s.current = user
	callbacks := make([]func(*User), 0, len(s.watchers))
	for _, cb := range s.watchers {
		callbacks = append(callbacks, cb)
	}
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(user)
	}
}
