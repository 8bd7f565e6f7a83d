package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blocktrace/blocktrace/internal/model"
)

// SessionStore persists sessions by ID.
type SessionStore interface {
	SaveSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// Manager routes logins to the configured strategies and tracks the
// resulting sessions.
type Manager struct {
	strategies    map[model.AuthMethod]Strategy
	defaultMethod model.AuthMethod
	store         SessionStore
	tokens        *TokenIssuer
	now           func() time.Time
}

// NewManager creates a Manager. defaultMethod is used when a login does not
// name one and must have a registered strategy.
func NewManager(store SessionStore, tokens *TokenIssuer, defaultMethod model.AuthMethod, strategies ...Strategy) (*Manager, error) {
	if store == nil || tokens == nil {
		return nil, eris.New("auth: store and token issuer are required")
	}
	m := &Manager{
		strategies:    make(map[model.AuthMethod]Strategy, len(strategies)),
		defaultMethod: defaultMethod,
		store:         store,
		tokens:        tokens,
		now:           time.Now,
	}
	for _, s := range strategies {
		m.strategies[s.Method()] = s
	}
	if _, ok := m.strategies[defaultMethod]; !ok {
		return nil, eris.Errorf("auth: no strategy for default method %q", defaultMethod)
	}
	return m, nil
}

// Methods lists the enabled authentication methods.
func (m *Manager) Methods() []model.AuthMethod {
	out := make([]model.AuthMethod, 0, len(m.strategies))
	for _, method := range []model.AuthMethod{model.AuthInternetIdentity, model.AuthPlugWallet} {
		if _, ok := m.strategies[method]; ok {
			out = append(out, method)
		}
	}
	return out
}

func (m *Manager) strategy(method model.AuthMethod) (Strategy, error) {
	if method == "" {
		method = m.defaultMethod
	}
	if !method.Valid() {
		return nil, eris.Wrapf(model.ErrInvalidInput, "auth: unknown method %q", method)
	}
	s, ok := m.strategies[method]
	if !ok {
		return nil, eris.Wrapf(model.ErrInvalidInput, "auth: method %q is not enabled", method)
	}
	return s, nil
}

// Login authenticates creds, stores the new session and returns a signed
// token for it.
func (m *Manager) Login(ctx context.Context, creds Credentials) (string, *model.Session, error) {
	strat, err := m.strategy(creds.Method)
	if err != nil {
		return "", nil, err
	}
	s, err := strat.Login(ctx, creds)
	if err != nil {
		return "", nil, err
	}
	s.ID = uuid.NewString()

	if err := m.store.SaveSession(ctx, s); err != nil {
		return "", nil, eris.Wrap(err, "auth: save session")
	}
	token, err := m.tokens.Issue(s)
	if err != nil {
		return "", nil, err
	}

	zap.L().Info("auth: login",
		zap.String("session_id", s.ID),
		zap.String("method", string(s.AuthMethod)),
		zap.String("principal", s.Principal),
	)
	return token, s, nil
}

// Resolve returns the active session behind token. A valid token whose
// session was logged out or expired yields ErrNotAuthenticated.
func (m *Manager) Resolve(ctx context.Context, token string) (*model.Session, error) {
	claimed, err := m.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	s, err := m.store.GetSession(ctx, claimed.ID)
	if err != nil {
		return nil, eris.Wrap(err, "auth: load session")
	}
	if s == nil || s.Principal != claimed.Principal || !s.Active(m.now()) {
		return nil, eris.Wrap(model.ErrNotAuthenticated, "auth: session ended")
	}
	return s, nil
}

// Principal returns the principal of an active session via its strategy.
func (m *Manager) Principal(ctx context.Context, s *model.Session) (string, error) {
	if s == nil {
		return "", model.ErrNotAuthenticated
	}
	strat, err := m.strategy(s.AuthMethod)
	if err != nil {
		return "", eris.Wrap(model.ErrNotAuthenticated, err.Error())
	}
	return strat.Principal(ctx, s)
}

// Logout ends the session behind token. Unknown or expired tokens are a
// no-op.
func (m *Manager) Logout(ctx context.Context, token string) error {
	claimed, err := m.tokens.Verify(token)
	if err != nil {
		return nil //nolint:nilerr // nothing to clear
	}
	s, err := m.store.GetSession(ctx, claimed.ID)
	if err != nil {
		return eris.Wrap(err, "auth: load session")
	}
	if s == nil {
		return nil
	}
	if strat, err := m.strategy(s.AuthMethod); err == nil {
		if err := strat.Logout(ctx, s); err != nil {
			return err
		}
	}
	if err := m.store.DeleteSession(ctx, s.ID); err != nil {
		return eris.Wrap(err, "auth: delete session")
	}
	zap.L().Info("auth: logout", zap.String("session_id", s.ID))
	return nil
}
