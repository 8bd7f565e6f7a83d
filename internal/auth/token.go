package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/model"
)

const tokenIssuer = "blocktrace"

// SessionClaims is the payload of a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Method    model.AuthMethod `json:"method"`
	LoginTime int64            `json:"login_time"`
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. ttl caps token lifetime for sessions
// without their own expiry.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, eris.New("auth: token secret is required")
	}
	if ttl <= 0 {
		return nil, eris.New("auth: token ttl must be positive")
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for s. The token expires with the session or after
// the issuer TTL, whichever comes first.
func (ti *TokenIssuer) Issue(s *model.Session) (string, error) {
	now := ti.now()
	if !s.Active(now) {
		return "", model.ErrNotAuthenticated
	}
	exp := now.Add(ti.ttl)
	if !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(exp) {
		exp = s.ExpiresAt
	}

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   s.Principal,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Method:    s.AuthMethod,
		LoginTime: s.LoginTime.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", eris.Wrap(err, "auth: sign session token")
	}
	return signed, nil
}

// Verify checks the token signature and expiry and returns the Session it
// carries.
func (ti *TokenIssuer) Verify(token string) (*model.Session, error) {
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return ti.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return nil, eris.Wrapf(model.ErrNotAuthenticated, "auth: invalid session token: %v", err)
	}
	if !claims.Method.Valid() || claims.Subject == "" {
		return nil, eris.Wrap(model.ErrNotAuthenticated, "auth: malformed session token")
	}
	return &model.Session{
		ID:              claims.ID,
		Principal:       claims.Subject,
		AuthMethod:      claims.Method,
		IsAuthenticated: true,
		LoginTime:       time.Unix(claims.LoginTime, 0).UTC(),
		ExpiresAt:       claims.ExpiresAt.Time,
	}, nil
}
