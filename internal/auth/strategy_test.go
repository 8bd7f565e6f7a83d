package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocktrace/blocktrace/internal/model"
)

const (
	testPrincipal = "2vxsx-fae"
	idpSecret     = "idp-secret"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func delegation(t *testing.T, secret, subject string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestNewInternetIdentity_RequiresSecret(t *testing.T) {
	_, err := NewInternetIdentity("")
	assert.Error(t, err)
}

func TestInternetIdentity_Login(t *testing.T) {
	ii, err := NewInternetIdentity(idpSecret, WithIdentityClock(clock))
	require.NoError(t, err)
	assert.Equal(t, model.AuthInternetIdentity, ii.Method())

	s, err := ii.Login(context.Background(), Credentials{Credential: delegation(t, idpSecret, testPrincipal, fixedNow.Add(time.Hour))})
	require.NoError(t, err)
	assert.Equal(t, testPrincipal, s.Principal)
	assert.True(t, s.IsAuthenticated)
	assert.Equal(t, fixedNow, s.LoginTime)
	assert.Equal(t, fixedNow.Add(time.Hour), s.ExpiresAt)

	p, err := ii.Principal(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, testPrincipal, p)
	assert.NoError(t, ii.Logout(context.Background(), s))
}

func TestInternetIdentity_PrincipalUsesStrategyClock(t *testing.T) {
	ii, err := NewInternetIdentity(idpSecret, WithIdentityClock(clock))
	require.NoError(t, err)

	s, err := ii.Login(context.Background(), Credentials{Credential: delegation(t, idpSecret, testPrincipal, fixedNow.Add(time.Hour))})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, s.ExpiresAt.Location())

	later, err := NewInternetIdentity(idpSecret, WithIdentityClock(func() time.Time { return fixedNow.Add(2 * time.Hour) }))
	require.NoError(t, err)
	_, err = later.Principal(context.Background(), s)
	assert.True(t, model.IsNotAuthenticated(err))

	p, err := ii.Principal(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, testPrincipal, p)
}

func TestInternetIdentity_CapsTTL(t *testing.T) {
	ii, err := NewInternetIdentity(idpSecret, WithIdentityClock(clock))
	require.NoError(t, err)

	s, err := ii.Login(context.Background(), Credentials{Credential: delegation(t, idpSecret, testPrincipal, fixedNow.Add(30*24*time.Hour))})
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(MaxDelegationTTL), s.ExpiresAt)

	short, err := NewInternetIdentity(idpSecret, WithIdentityClock(clock), WithMaxTTL(time.Hour))
	require.NoError(t, err)
	s, err = short.Login(context.Background(), Credentials{Credential: delegation(t, idpSecret, testPrincipal, fixedNow.Add(48*time.Hour))})
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(time.Hour), s.ExpiresAt)
}

func TestInternetIdentity_Rejects(t *testing.T) {
	ii, err := NewInternetIdentity(idpSecret, WithIdentityClock(clock))
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: testPrincipal, ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: testPrincipal}).SignedString([]byte(idpSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"wrong secret", delegation(t, "other", testPrincipal, fixedNow.Add(time.Hour))},
		{"expired", delegation(t, idpSecret, testPrincipal, fixedNow.Add(-time.Minute))},
		{"bad subject", delegation(t, idpSecret, "not a principal", fixedNow.Add(time.Hour))},
		{"alg none", none},
		{"no expiry", noExp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ii.Login(context.Background(), Credentials{Credential: tt.token})
			require.Error(t, err)
			assert.True(t, model.IsNotAuthenticated(err))
		})
	}
}

type fakeWallet struct {
	connected     bool
	connectErr    error
	connectDelay  time.Duration
	principal     string
	principalWait time.Duration
	disconnectErr error
	disconnected  []string
}

func wait(ctx context.Context, d time.Duration) error {
	if d == 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *fakeWallet) Connect(ctx context.Context, _ string) (bool, error) {
	if err := wait(ctx, w.connectDelay); err != nil {
		return false, err
	}
	return w.connected, w.connectErr
}

func (w *fakeWallet) Principal(ctx context.Context, _ string) (string, error) {
	if err := wait(ctx, w.principalWait); err != nil {
		return "", err
	}
	return w.principal, nil
}

func (w *fakeWallet) Disconnect(_ context.Context, principal string) error {
	w.disconnected = append(w.disconnected, principal)
	return w.disconnectErr
}

func TestPlugWallet_ReportedPrincipal(t *testing.T) {
	p := NewPlugWallet(WithSessionTTL(time.Hour))
	p.now = clock
	assert.Equal(t, model.AuthPlugWallet, p.Method())

	s, err := p.Login(context.Background(), Credentials{Credential: testPrincipal})
	require.NoError(t, err)
	assert.Equal(t, testPrincipal, s.Principal)
	assert.Equal(t, model.AuthPlugWallet, s.AuthMethod)
	assert.Equal(t, fixedNow.Add(time.Hour), s.ExpiresAt)

	got, err := p.Principal(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, testPrincipal, got)

	_, err = p.Login(context.Background(), Credentials{Credential: ""})
	assert.True(t, model.IsNotAuthenticated(err))

	_, err = p.Login(context.Background(), Credentials{Credential: "2vxsx-fai"})
	assert.True(t, model.IsNotAuthenticated(err))
}

func TestPlugWallet_DefaultTimeouts(t *testing.T) {
	p := NewPlugWallet()
	assert.Equal(t, 30*time.Second, p.connectTimeout)
	assert.Equal(t, 5*time.Second, p.principalTimeout)
}

func TestPlugWallet_Timeouts(t *testing.T) {
	tests := []struct {
		name   string
		wallet *fakeWallet
		want   string
	}{
		{"connect", &fakeWallet{connected: true, connectDelay: time.Second, principal: testPrincipal}, "connection timeout"},
		{"principal", &fakeWallet{connected: true, principalWait: time.Second, principal: testPrincipal}, "principal timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlugWallet(WithConnector(tt.wallet), WithTimeouts(10*time.Millisecond, 10*time.Millisecond))
			_, err := p.Login(context.Background(), Credentials{Credential: "x"})
			require.Error(t, err)
			assert.True(t, model.IsNotAuthenticated(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPlugWallet_ConnectFailures(t *testing.T) {
	p := NewPlugWallet(WithConnector(&fakeWallet{connected: false}))
	_, err := p.Login(context.Background(), Credentials{Credential: "x"})
	assert.Contains(t, err.Error(), "rejected")

	p = NewPlugWallet(WithConnector(&fakeWallet{connectErr: errors.New("locked")}))
	_, err = p.Login(context.Background(), Credentials{Credential: "x"})
	assert.True(t, model.IsNotAuthenticated(err))
}

func TestPlugWallet_LogoutIgnoresDisconnectError(t *testing.T) {
	w := &fakeWallet{disconnectErr: errors.New("gone")}
	p := NewPlugWallet(WithConnector(w))

	require.NoError(t, p.Logout(context.Background(), &model.Session{Principal: testPrincipal}))
	assert.Equal(t, []string{testPrincipal}, w.disconnected)
	assert.NoError(t, p.Logout(context.Background(), nil))
}

func TestStrategy_PrincipalChecksMethod(t *testing.T) {
	p := NewPlugWallet()
	s := &model.Session{Principal: testPrincipal, AuthMethod: model.AuthInternetIdentity, IsAuthenticated: true}

	_, err := p.Principal(context.Background(), s)
	assert.True(t, model.IsNotAuthenticated(err))

	_, err = p.Principal(context.Background(), nil)
	assert.True(t, model.IsNotAuthenticated(err))
}
