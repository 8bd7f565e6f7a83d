// Package auth bridges identity providers to blocktrace sessions. Each
// supported provider is a Strategy; the Manager selects one by method,
// persists the resulting Session and issues a signed session token.
package auth

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/model"
)

// Credentials is what a client presents to log in.
type Credentials struct {
	Method     model.AuthMethod `json:"method"`
	Credential string           `json:"credential"`
}

// Strategy authenticates one identity provider.
type Strategy interface {
	Method() model.AuthMethod
	Login(ctx context.Context, creds Credentials) (*model.Session, error)
	Logout(ctx context.Context, s *model.Session) error
	Principal(ctx context.Context, s *model.Session) (string, error)
}

// sessionPrincipal returns the principal of a session active at now.
func sessionPrincipal(s *model.Session, method model.AuthMethod, now time.Time) (string, error) {
	if !s.Active(now) {
		return "", model.ErrNotAuthenticated
	}
	if s.AuthMethod != method {
		return "", eris.Wrapf(model.ErrNotAuthenticated, "auth: session method %q, want %q", s.AuthMethod, method)
	}
	return s.Principal, nil
}
