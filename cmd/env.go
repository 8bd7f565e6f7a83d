package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blocktrace/blocktrace/internal/auth"
	"github.com/blocktrace/blocktrace/internal/config"
	"github.com/blocktrace/blocktrace/internal/esg"
	"github.com/blocktrace/blocktrace/internal/model"
	"github.com/blocktrace/blocktrace/internal/resilience"
	"github.com/blocktrace/blocktrace/internal/store"
	"github.com/blocktrace/blocktrace/internal/story"
	anthropicpkg "github.com/blocktrace/blocktrace/pkg/anthropic"
	"github.com/blocktrace/blocktrace/pkg/backend"
	"github.com/blocktrace/blocktrace/pkg/geocode"
	"github.com/blocktrace/blocktrace/pkg/nft"
)

// appEnv holds the clients and services shared by the commands.
type appEnv struct {
	Store    store.Store
	Breakers *resilience.ServiceBreakers
	Backend  backend.Client
	NFT      nft.Client
	Geocoder geocode.Client
	Auth     *auth.Manager
	Fleet    *esg.FleetService
	Narrator *story.Narrator
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the config for mode, opens the store and wires every
// client. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, store.Config{
		Driver:      c.Store.Driver,
		Path:        c.Store.Path,
		DatabaseURL: c.Store.DatabaseURL,
		Pool:        &store.PoolConfig{MaxConns: c.Store.MaxConns, MinConns: c.Store.MinConns},
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	env := &appEnv{
		Store:    st,
		Breakers: resilience.NewServiceBreakers(c.Backend.Circuit.CircuitBreakerConfig()),
	}
	env.Backend = backend.NewClient(c.Backend.URL, transportOptions(c, env.Breakers, "backend")...)
	env.NFT = nft.NewClient(c.NFT.URL, transportOptions(c, env.Breakers, "nft")...)
	env.Geocoder = newGeocoder(c.Geocode, st)

	secret := c.Auth.TokenSecret
	if secret == "" {
		if secret, err = localSecret(c.Auth.TokenFile); err != nil {
			env.Close()
			return nil, err
		}
	}
	if env.Auth, err = newAuthManager(c.Auth, st, secret); err != nil {
		env.Close()
		return nil, err
	}

	fleetOpts := []esg.FleetOption{esg.WithFetchConcurrency(c.ESG.FetchConcurrency)}
	refiner := esg.NewDistanceRefiner(env.Backend, env.Geocoder, c.ESG.RefineConcurrency)
	fleetOpts = append(fleetOpts, esg.WithRefiner(refiner, time.Duration(c.ESG.RefineTimeoutSecs)*time.Second))
	env.Fleet = esg.NewFleetService(env.Backend, fleetOpts...)

	var llm anthropicpkg.Client
	if c.Story.AnthropicKey != "" {
		llm = anthropicpkg.NewClient(c.Story.AnthropicKey)
	}
	env.Narrator = story.NewNarrator(llm,
		story.WithModel(c.Story.Model),
		story.WithTimeout(time.Duration(c.Story.TimeoutSecs)*time.Second),
	)

	return env, nil
}

func transportOptions(c *config.Config, breakers *resilience.ServiceBreakers, service string) []backend.TransportOption {
	return []backend.TransportOption{
		backend.WithHTTPClient(&http.Client{Timeout: c.Backend.Timeout()}),
		backend.WithRetry(c.Backend.Retry.RetryConfig()),
		backend.WithBreaker(breakers.Get(service)),
	}
}

// newGeocoder builds the configured geocoder backed by the store cache.
func newGeocoder(c config.GeocodeConfig, cache geocode.Cache) geocode.Client {
	var opts []geocode.Option
	if c.UserAgent != "" {
		opts = append(opts, geocode.WithUserAgent(c.UserAgent))
	}
	if c.RateLimit > 0 {
		opts = append(opts, geocode.WithRateLimit(c.RateLimit))
	}
	if c.NominatimURL != "" {
		opts = append(opts, geocode.WithNominatimURL(c.NominatimURL))
	}

	if c.Provider == "cascade" {
		providers := []geocode.Provider{geocode.NewNominatimProvider(opts...)}
		if c.GoogleKey != "" {
			providers = append(providers, geocode.NewGoogleProvider(c.GoogleKey, opts...))
		}
		return geocode.NewCascadeClient(providers,
			geocode.WithCascadeCache(cache),
			geocode.WithCascadeCacheTTLDays(c.CacheTTLDays),
		)
	}

	opts = append(opts, geocode.WithCache(cache, c.CacheTTL()))
	if c.GoogleKey != "" {
		opts = append(opts, geocode.WithGoogleAPIKey(c.GoogleKey))
	}
	return geocode.NewClient(opts...)
}

// newAuthManager registers a strategy for every enabled method. Internet
// Identity is skipped without a provider secret. When the configured
// default method is unavailable the first enabled one is used.
func newAuthManager(c config.AuthConfig, sessions auth.SessionStore, secret string) (*auth.Manager, error) {
	tokens, err := auth.NewTokenIssuer(secret, c.SessionTTL())
	if err != nil {
		return nil, err
	}

	methods := c.Methods
	if len(methods) == 0 {
		methods = []string{c.Method}
	}

	var strategies []auth.Strategy
	var enabled []model.AuthMethod
	for _, m := range methods {
		switch model.AuthMethod(m) {
		case model.AuthInternetIdentity:
			if c.IdentitySecret == "" {
				zap.L().Warn("auth: internet identity disabled, identity_secret not set")
				continue
			}
			ii, err := auth.NewInternetIdentity(c.IdentitySecret,
				auth.WithMaxTTL(time.Duration(c.IdentityMaxTTLHours)*time.Hour))
			if err != nil {
				return nil, err
			}
			strategies = append(strategies, ii)
		case model.AuthPlugWallet:
			strategies = append(strategies, auth.NewPlugWallet(
				auth.WithTimeouts(
					time.Duration(c.PlugConnectTimeoutSecs)*time.Second,
					time.Duration(c.PlugPrincipalTimeoutSecs)*time.Second,
				),
				auth.WithSessionTTL(c.SessionTTL()),
			))
		default:
			return nil, eris.Errorf("auth: unknown method %q", m)
		}
		enabled = append(enabled, model.AuthMethod(m))
	}
	if len(strategies) == 0 {
		return nil, eris.New("auth: no authentication method is enabled")
	}

	def := model.AuthMethod(c.Method)
	found := false
	for _, m := range enabled {
		found = found || m == def
	}
	if !found {
		zap.L().Warn("auth: default method unavailable",
			zap.String("configured", c.Method),
			zap.String("using", string(enabled[0])),
		)
		def = enabled[0]
	}
	return auth.NewManager(sessions, tokens, def, strategies...)
}
