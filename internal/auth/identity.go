package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/model"
)

// MaxDelegationTTL caps the lifetime of an Internet Identity session.
const MaxDelegationTTL = 7 * 24 * time.Hour

// InternetIdentity authenticates delegation tokens minted by the identity
// provider. The token is HS256-signed with the shared provider secret and its
// subject is the delegated principal.
type InternetIdentity struct {
	secret []byte
	maxTTL time.Duration
	now    func() time.Time
}

// IdentityOption configures InternetIdentity.
type IdentityOption func(*InternetIdentity)

// WithMaxTTL lowers the session lifetime cap.
func WithMaxTTL(d time.Duration) IdentityOption {
	return func(ii *InternetIdentity) {
		if d > 0 && d < MaxDelegationTTL {
			ii.maxTTL = d
		}
	}
}

// WithIdentityClock overrides the clock used for expiry.
func WithIdentityClock(now func() time.Time) IdentityOption {
	return func(ii *InternetIdentity) { ii.now = now }
}

// NewInternetIdentity creates the Internet Identity strategy.
func NewInternetIdentity(secret string, opts ...IdentityOption) (*InternetIdentity, error) {
	if secret == "" {
		return nil, eris.New("auth: internet identity secret is required")
	}
	ii := &InternetIdentity{secret: []byte(secret), maxTTL: MaxDelegationTTL, now: time.Now}
	for _, o := range opts {
		o(ii)
	}
	return ii, nil
}

// Method implements Strategy.
func (ii *InternetIdentity) Method() model.AuthMethod { return model.AuthInternetIdentity }

// Login verifies the delegation token and opens a session for its subject.
func (ii *InternetIdentity) Login(_ context.Context, creds Credentials) (*model.Session, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(creds.Credential, &claims,
		func(*jwt.Token) (any, error) { return ii.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ii.now),
	)
	if err != nil {
		return nil, eris.Wrapf(model.ErrNotAuthenticated, "auth: invalid delegation: %v", err)
	}
	if err := ValidatePrincipal(claims.Subject); err != nil {
		return nil, eris.Wrapf(model.ErrNotAuthenticated, "auth: delegation subject: %v", err)
	}

	now := ii.now()
	expires := claims.ExpiresAt.Time.UTC()
	if limit := now.Add(ii.maxTTL); expires.After(limit) {
		expires = limit
	}
	return &model.Session{
		Principal:       claims.Subject,
		AuthMethod:      model.AuthInternetIdentity,
		IsAuthenticated: true,
		LoginTime:       now,
		ExpiresAt:       expires,
	}, nil
}

// Logout implements Strategy. Delegations cannot be revoked upstream, so
// dropping the session is enough.
func (ii *InternetIdentity) Logout(context.Context, *model.Session) error { return nil }

// Principal implements Strategy.
func (ii *InternetIdentity) Principal(_ context.Context, s *model.Session) (string, error) {
	return sessionPrincipal(s, model.AuthInternetIdentity, ii.now())
}
