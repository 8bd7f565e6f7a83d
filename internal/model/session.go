package model

import "time"

// AuthMethod identifies which identity provider produced a session.
type AuthMethod string

const (
	AuthInternetIdentity AuthMethod = "internet-identity"
	AuthPlugWallet       AuthMethod = "plug-wallet"
)

// Valid reports whether m is a supported authentication method.
func (m AuthMethod) Valid() bool {
	return m == AuthInternetIdentity || m == AuthPlugWallet
}

// Session is the resolved authentication context handed to every entry
// point that reads principal-scoped data.
type Session struct {
	ID              string     `json:"id"`
	Principal       string     `json:"principal"`
	AuthMethod      AuthMethod `json:"auth_method"`
	IsAuthenticated bool       `json:"is_authenticated"`
	LoginTime       time.Time  `json:"login_time"`
	ExpiresAt       time.Time  `json:"expires_at"`
}

// Active reports whether the session can be used to scope requests at now.
func (s *Session) Active(now time.Time) bool {
	if s == nil || !s.IsAuthenticated || s.Principal == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// RequireSession returns ErrNotAuthenticated unless s is active.
func RequireSession(s *Session) error {
	if !s.Active(time.Now()) {
		return ErrNotAuthenticated
	}
	return nil
}
