package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-checkin-agent/internal/application/checkin"
	"github.com/go-checkin-agent/internal/application/credential"
	"github.com/go-checkin-agent/internal/application/scan"
	"github.com/go-checkin-agent/internal/application/session"
	"github.com/go-checkin-agent/internal/config"
	"github.com/go-checkin-agent/internal/transport/http/handler"
	appmiddleware "github.com/go-checkin-agent/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Store     KVStore
	Authority AuthorityClient
	Tokens    TokenInspector
	Receipts  ReceiptArchive             // nil disables receipt archiving
	Limiter   *appmiddleware.RateLimiter // required; owned and stopped by the caller
	Now       func() time.Time
}

// Services are the application services behind the router. NewServices builds them
// from Deps; main also uses them for the startup sweep.
type Services struct {
	Sessions    session.Service
	Credentials credential.Service
	Scans       scan.Service
	CheckIns    checkin.Service
}

// NewServices wires the application services onto the infrastructure in deps.
func NewServices(cfg *config.Config, deps *Deps) *Services {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	sessionSvc := session.NewService(session.ServiceDeps{
		Store:         deps.Store,
		Authority:     deps.Authority,
		Tokens:        deps.Tokens,
		RefreshWindow: cfg.SessionRefreshWindow,
		Now:           now,
	})
	scanSvc := scan.NewService(scan.ServiceDeps{
		Store:   deps.Store,
		Decoder: deps.Tokens,
		TTL:     cfg.PendingScanTTL,
		Now:     now,
	})
	credentialSvc := credential.NewService(credential.ServiceDeps{
		Sessions:  sessionSvc,
		Authority: deps.Authority,
		Cache:     credential.NewTokenCache(deps.Store, now),
		Now:       now,
	})
	checkinSvc := checkin.NewService(checkin.ServiceDeps{
		Sessions:  sessionSvc,
		Authority: deps.Authority,
		Scans:     scanSvc,
		Receipts:  deps.Receipts,
	})

	return &Services{
		Sessions:    sessionSvc,
		Credentials: credentialSvc,
		Scans:       scanSvc,
		CheckIns:    checkinSvc,
	}
}

// ErrNoLimiter is returned by NewRouter when deps carries no rate limiter. The caller
// owns the limiter and stops it on shutdown.
var ErrNoLimiter = errors.New("router requires a rate limiter")

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps, svcs *Services) (http.Handler, error) {
	if deps.Limiter == nil {
		return nil, ErrNoLimiter
	}

	corsOpts := cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}
	if len(cfg.AllowedOrigins) == 0 {
		// An empty list means "allow all" to the cors package.
		corsOpts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(corsOpts))

	healthH := handler.NewHealthHandler(deps.Store)
	sessionH := handler.NewSessionHandler(svcs.Sessions)
	credentialH := handler.NewCredentialHandler(svcs.Credentials, deps.Now)
	scanH := handler.NewScanHandler(svcs.Scans)
	checkinH := handler.NewCheckInHandler(svcs.CheckIns)

	r.Route("/v1", func(r chi.Router) {
		// ── Public ───────────────────────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)

		// ── Agent key required ───────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.AgentKey(cfg.AgentKey))

			r.Put("/session", sessionH.Handover)
			r.Delete("/session", sessionH.Clear)

			r.Get("/events/{id}/check-in-token", credentialH.GetToken)
			r.Post("/maintenance/sweep", credentialH.Sweep)

			r.Group(func(r chi.Router) {
				r.Use(deps.Limiter.Limit)

				r.Post("/scans", scanH.Save)
				r.Get("/scans/pending", scanH.GetPending)
				r.Delete("/scans/pending", scanH.ClearPending)
				r.Post("/check-ins", checkinH.Submit)
				r.Post("/check-ins/pending", checkinH.SubmitPending)
			})
		})
	})

	return r, nil
}
