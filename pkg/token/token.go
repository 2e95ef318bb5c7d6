package token

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims structure for custom claims in JWT
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// RefreshFunc exchanges the refresh token for a new token pair
type RefreshFunc func(ctx context.Context, refreshToken string) (access, refresh string, err error)

// Session holds the token pair of the signed-in user.
// The client never verifies signatures (no signing key on device),
// it only reads claims to know the user id and expiry.
type Session struct {
	mu        sync.Mutex
	access    string
	refresh   string
	refreshFn RefreshFunc
}

// NewSession create session from an existing token pair
func NewSession(access, refresh string, refreshFn RefreshFunc) *Session {
	return &Session{
		access:    access,
		refresh:   refresh,
		refreshFn: refreshFn,
	}
}

// Access return current access token
func (s *Session) Access() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

// Refresh exchange the refresh token once and swap the pair
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	refreshFn := s.refreshFn
	refreshToken := s.refresh
	s.mu.Unlock()

	if refreshFn == nil {
		return errors.New("no refresh function configured")
	}

	access, refresh, err := refreshFn(ctx, refreshToken)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.access = access
	if refresh != "" {
		s.refresh = refresh
	}
	s.mu.Unlock()
	return nil
}

// ParseClaims read claims without signature verification
func ParseClaims(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// UserID read user id claim from the access token
func (s *Session) UserID() (string, error) {
	claims, err := ParseClaims(s.Access())
	if err != nil {
		return "", err
	}
	if claims.UserID == "" {
		return "", errors.New("token has no user_id claim")
	}
	return claims.UserID, nil
}

// Expired report access token already past its exp claim.
// Tokens without exp are treated as not expired.
func (s *Session) Expired() bool {
	claims, err := ParseClaims(s.Access())
	if err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
