package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tracker/internal/cache"
	"tracker/internal/log"
	"tracker/internal/middleware/ratelimit"
	"tracker/internal/middleware/security"
	"tracker/internal/middleware/trace"
	"tracker/internal/services"
	appweb "tracker/web"
)

const (
	dashboardTemplate = "dashboard.html"
	cacheCleanupEvery = 10 * time.Minute
	staticMaxAge      = 3600
)

// Options configures NewServer.
type Options struct {
	Addr               string
	RateLimitPerMinute int
	Logger             *log.Logger
	// Caches are cleaned periodically while the server runs.
	Caches []cache.Cleaner
}

type Server struct {
	http.Server
	router    chi.Router
	templates *template.Template
	dashboard *services.Dashboard
	exports   *services.ExportService
	logger    *log.Logger
	started   time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	cacheManager     *cache.Manager

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires the routes.
func NewServer(opts Options, dashboard *services.Dashboard, exports *services.ExportService) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if exports == nil {
		exports = services.NewExportService(nil, nil, logger.Slog())
	}

	s := &Server{
		router:           chi.NewRouter(),
		templates:        t,
		dashboard:        dashboard,
		exports:          exports,
		logger:           logger,
		started:          time.Now(),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: security.NewDetector(),
		cacheManager:     cache.NewManager(logger.WithComponent(log.ComponentCache).Slog()),
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	for _, c := range opts.Caches {
		s.cacheManager.Register(c)
	}
	s.cacheManager.StartCleanup(cacheCleanupEvery)

	if err := s.routes(); err != nil {
		s.stopBackground()
		return nil, err
	}

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

func (s *Server) routes() error {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.traceMiddleware.Middleware)
	r.Use(s.securityDetector.Middleware(s.logger))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	r.With(security.StaticAssetMiddleware(staticMaxAge)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(sub))))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Group(func(r chi.Router) {
		r.Use(security.NoStore)
		r.Get("/", s.handleIndex)
		r.Get("/export.csv", s.handleExport)
		r.Get("/api/charts", s.handleCharts)
		r.Get("/api/exports", s.handleExports)
	})

	r.With(s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)).
		Post("/admin/refresh", s.handleRefresh)
	return nil
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	NewJSONError(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}

func (s *Server) stopBackground() {
	s.cacheManager.Stop()
	s.rateLimiter.Stop()
}

// Shutdown stops background goroutines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.stopBackground()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
