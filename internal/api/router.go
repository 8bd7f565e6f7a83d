// Package api exposes blocktrace over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/blocktrace/blocktrace/internal/auth"
	"github.com/blocktrace/blocktrace/internal/config"
	"github.com/blocktrace/blocktrace/internal/demo"
	"github.com/blocktrace/blocktrace/internal/esg"
	"github.com/blocktrace/blocktrace/internal/monitoring"
	"github.com/blocktrace/blocktrace/internal/resilience"
	"github.com/blocktrace/blocktrace/internal/story"
	"github.com/blocktrace/blocktrace/pkg/backend"
	"github.com/blocktrace/blocktrace/pkg/nft"
)

// Dependencies holds everything the HTTP layer needs.
type Dependencies struct {
	Config   *config.Config
	Auth     *auth.Manager
	Backend  backend.Client
	NFT      nft.Client
	Fleet    *esg.FleetService
	Narrator *story.Narrator
	Scenario *demo.Scenario
	Breakers *resilience.ServiceBreakers
	// Checker is nil when monitoring is disabled.
	Checker *monitoring.Checker
	// Now defaults to time.Now.
	Now func() time.Time
}

type handlers struct {
	deps Dependencies
}

// NewRouter creates the API router. Health and login bypass session
// resolution; every other route sees the caller's session, if any, in its
// request context.
func NewRouter(deps Dependencies) chi.Router {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Config == nil {
		deps.Config = &config.Config{}
	}
	h := &handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Recovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(RequestLogging)
	if secs := deps.Config.Server.RequestTimeoutSecs; secs > 0 {
		r.Use(middleware.Timeout(time.Duration(secs) * time.Second))
	}

	r.Get("/health", h.health)
	r.Get("/auth/methods", h.authMethods)
	r.Post("/auth/login", h.login)
	r.Get("/demo/timeline", h.demoTimeline)

	r.Group(func(r chi.Router) {
		if deps.Auth != nil {
			r.Use(deps.Auth.Middleware)
		}

		r.Post("/auth/logout", h.logout)
		r.Get("/auth/me", h.me)

		r.Get("/products", h.listProducts)
		r.Route("/products/{productID}", func(r chi.Router) {
			r.Get("/timeline", h.productTimeline)
			r.Get("/timeline.xlsx", h.productTimelineXLSX)
			r.Get("/route", h.productRoute)
			r.Get("/route.wkb", h.productRouteWKB)
			r.Get("/story", h.productStory)
			r.Get("/esg", h.productESG)
		})
		r.Get("/esg", h.fleetESG)
		r.Post("/steps", h.addStep)
		r.Get("/stats", h.stats)

		r.Get("/nfts", h.listNFTs)
		r.Post("/nfts", h.mintNFT)
		r.Get("/nfts/{tokenID}", h.getNFT)
		r.Post("/passports", h.mintPassport)
		r.Get("/passports/{tokenID}", h.getPassport)

		r.Get("/monitoring/updates", h.monitoringUpdates)
	})

	return r
}
