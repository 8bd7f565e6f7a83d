package auth

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blocktrace/blocktrace/internal/model"
)

const (
	defaultConnectTimeout   = 30 * time.Second
	defaultPrincipalTimeout = 5 * time.Second
)

// WalletConnector is the wallet side of a Plug login.
type WalletConnector interface {
	// Connect asks the wallet to approve the connection.
	Connect(ctx context.Context, credential string) (bool, error)
	// Principal returns the principal of the connected wallet.
	Principal(ctx context.Context, credential string) (string, error)
	// Disconnect releases the wallet connection.
	Disconnect(ctx context.Context, principal string) error
}

// ReportedWallet trusts the principal the browser wallet reported. It is the
// connector used when the wallet handshake already happened client side.
type ReportedWallet struct{}

func (ReportedWallet) Connect(_ context.Context, credential string) (bool, error) {
	return credential != "", nil
}

func (ReportedWallet) Principal(_ context.Context, credential string) (string, error) {
	return credential, nil
}

func (ReportedWallet) Disconnect(context.Context, string) error { return nil }

// PlugWallet authenticates Plug wallet principals.
type PlugWallet struct {
	wallet           WalletConnector
	connectTimeout   time.Duration
	principalTimeout time.Duration
	sessionTTL       time.Duration
	now              func() time.Time
}

// PlugOption configures PlugWallet.
type PlugOption func(*PlugWallet)

// WithConnector replaces the wallet connector.
func WithConnector(w WalletConnector) PlugOption {
	return func(p *PlugWallet) { p.wallet = w }
}

// WithTimeouts sets the connect and principal timeouts. Zero keeps the
// default.
func WithTimeouts(connect, principal time.Duration) PlugOption {
	return func(p *PlugWallet) {
		if connect > 0 {
			p.connectTimeout = connect
		}
		if principal > 0 {
			p.principalTimeout = principal
		}
	}
}

// WithSessionTTL bounds Plug sessions. Zero means no expiry.
func WithSessionTTL(d time.Duration) PlugOption {
	return func(p *PlugWallet) { p.sessionTTL = d }
}

// NewPlugWallet creates the Plug wallet strategy.
func NewPlugWallet(opts ...PlugOption) *PlugWallet {
	p := &PlugWallet{
		wallet:           ReportedWallet{},
		connectTimeout:   defaultConnectTimeout,
		principalTimeout: defaultPrincipalTimeout,
		now:              time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Method implements Strategy.
func (p *PlugWallet) Method() model.AuthMethod { return model.AuthPlugWallet }

// Login connects to the wallet and reads its principal, each step under its
// own timeout.
func (p *PlugWallet) Login(ctx context.Context, creds Credentials) (*model.Session, error) {
	connectCtx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	connected, err := p.wallet.Connect(connectCtx, creds.Credential)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, eris.Wrap(model.ErrNotAuthenticated, "auth: plug connection timeout")
		}
		return nil, eris.Wrapf(model.ErrNotAuthenticated, "auth: plug connect: %v", err)
	}
	if !connected {
		return nil, eris.Wrap(model.ErrNotAuthenticated, "auth: plug connection rejected")
	}

	principalCtx, cancel := context.WithTimeout(ctx, p.principalTimeout)
	principal, err := p.wallet.Principal(principalCtx, creds.Credential)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, eris.Wrap(model.ErrNotAuthenticated, "auth: plug principal timeout")
		}
		return nil, eris.Wrapf(model.ErrNotAuthenticated, "auth: plug principal: %v", err)
	}
	if err := ValidatePrincipal(principal); err != nil {
		return nil, eris.Wrapf(model.ErrNotAuthenticated, "auth: plug principal: %v", err)
	}

	now := p.now()
	s := &model.Session{
		Principal:       principal,
		AuthMethod:      model.AuthPlugWallet,
		IsAuthenticated: true,
		LoginTime:       now,
	}
	if p.sessionTTL > 0 {
		s.ExpiresAt = now.Add(p.sessionTTL)
	}
	return s, nil
}

// Logout disconnects the wallet. Disconnect failures are logged and do not
// keep the session alive.
func (p *PlugWallet) Logout(ctx context.Context, s *model.Session) error {
	if s == nil {
		return nil
	}
	if err := p.wallet.Disconnect(ctx, s.Principal); err != nil {
		zap.L().Warn("auth: plug disconnect failed",
			zap.String("principal", s.Principal),
			zap.Error(err),
		)
	}
	return nil
}

// Principal implements Strategy.
func (p *PlugWallet) Principal(_ context.Context, s *model.Session) (string, error) {
	return sessionPrincipal(s, model.AuthPlugWallet, p.now())
}
