// Package web provides the HTTP server and handlers for the marketing site.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/divinahealthcare/site/internal/auth"
	"github.com/divinahealthcare/site/internal/catalog"
	"github.com/divinahealthcare/site/internal/config"
	"github.com/divinahealthcare/site/internal/metrics"
	"github.com/divinahealthcare/site/internal/submit"
	"github.com/divinahealthcare/site/internal/web/middleware"
	"github.com/divinahealthcare/site/internal/web/views"
)

//go:embed static
var staticFiles embed.FS

// Submitter runs a submission to its outcome. *submit.Pipeline implements it.
type Submitter interface {
	Submit(ctx context.Context, req submit.Request) submit.Result
}

// RecentSubmissions lists ledger entries for the portal dashboard.
type RecentSubmissions interface {
	Recent(ctx context.Context, limit int) ([]submit.Record, error)
}

// Deps are the collaborators the server renders and submits through.
type Deps struct {
	Catalog  *catalog.Store
	Forms    submit.Registry
	Pipeline Submitter
	// Metrics is optional; /metrics is not mounted without it.
	Metrics *metrics.Metrics
	// Auth is optional; /portal is not mounted without it.
	Auth auth.Provider
	// Ledger is optional; the admin dashboard omits recent submissions without it.
	Ledger RecentSubmissions
}

// Server is the HTTP server for the site.
type Server struct {
	cfg     *config.Config
	deps    Deps
	router  *chi.Mux
	server  *http.Server
	general *rateLimiter
	submits *rateLimiter
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.general = newRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		s.submits = newRateLimiter(cfg.Rate.SubmitLimit, time.Minute)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.deps.Metrics != nil {
		s.router.Use(s.deps.Metrics.Middleware)
	}
	s.router.Use(chimw.Compress(5))
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.general != nil {
		s.router.Use(s.general.middleware(s))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.NotFound(s.handleNotFound)

	// Pages
	s.router.Get("/", s.handleHome)
	s.router.Get("/about", s.handleAbout)
	s.router.Get("/products", s.handleProducts)
	s.router.Get("/services", s.handleServices)
	s.router.Get("/services/{id}", s.handleServiceDetail)
	s.router.Get("/careers", s.handleCareers)
	s.router.Get("/careers/mailto", s.handleCareersMailto)
	s.router.Get("/careers/{id}/apply", s.handleJobApplyPage)
	s.router.Get("/contact", s.handleContact)
	s.router.Get("/healthz", s.handleHealth)

	// Form submissions get the stricter limit.
	s.router.Group(func(r chi.Router) {
		if s.submits != nil {
			r.Use(s.submits.middleware(s))
		}
		r.Post("/products/{id}/order", s.handleOrder)
		r.Post("/careers/apply", s.handleCareersApply)
		r.Post("/careers/{id}/apply", s.handleJobApply)
		r.Post("/contact", s.handleContactSubmit)
	})

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/products", s.handleAPIProducts)
		r.Get("/services/{id}", s.handleAPIService)
	})

	if s.deps.Metrics != nil {
		s.router.With(middleware.APIKeyAuth(&s.cfg.Security)).Handle("/metrics", s.deps.Metrics.Handler())
	}

	if s.deps.Auth != nil {
		s.router.Route("/portal", func(r chi.Router) {
			r.Get("/login", s.handleLoginPage)
			r.Get("/signup", s.handleSignupPage)
			r.Group(func(r chi.Router) {
				if s.submits != nil {
					r.Use(s.submits.middleware(s))
				}
				r.Post("/login", s.handleLogin)
				r.Post("/signup", s.handleSignup)
			})
			r.Post("/logout", s.handleLogout)
			r.With(s.requireUser).Get("/", s.handleDashboard)
		})
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// page returns the layout model for a page.
func (s *Server) page(title, active string) views.Page {
	return views.Page{
		SiteName:   s.cfg.Site.Name,
		Title:      title,
		Active:     active,
		InboxEmail: s.cfg.Site.InboxEmail,
		Phone:      s.cfg.Site.Phone,
		Portal:     s.deps.Auth != nil,
	}
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME type sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			w.Header().Set("X-Frame-Options", "DENY")

			// Pages load nothing but their own assets; product images may be remote.
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data: https:; style-src 'self'; form-action 'self' mailto:")
			}

			// Control referrer information
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
