package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	gosync "sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/coachlead/leadview/internal/config"
	"github.com/coachlead/leadview/internal/db"
)

// VersionInfo holds build-time version metadata.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
}

// Server is the HTTP server for the analytics API.
type Server struct {
	mu      gosync.RWMutex
	cfg     config.Config
	db      *db.DB
	redis   *redis.Client
	log     *logrus.Logger
	router  *chi.Mux
	httpSrv *http.Server
	version VersionInfo

	registry *prometheus.Registry
	metrics  *httpMetrics

	// handlerDelay is injected before each timeout-wrapped
	// handler, used only by tests to guarantee handlers
	// exceed a short timeout. Zero in production.
	handlerDelay time.Duration
}

// New creates a new Server.
func New(
	cfg config.Config, database *db.DB, opts ...Option,
) *Server {
	reg := prometheus.NewRegistry()
	s := &Server{
		cfg:      cfg,
		db:       database,
		log:      logrus.StandardLogger(),
		router:   chi.NewRouter(),
		registry: reg,
		metrics:  newHTTPMetrics(reg),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the build-time version metadata.
func WithVersion(v VersionInfo) Option {
	return func(s *Server) { s.version = v }
}

// WithRedis enables bearer-token workspace resolution against
// the session store. Without it the X-Workspace-ID header is
// trusted. Nil is ignored.
func WithRedis(c *redis.Client) Option {
	return func(s *Server) {
		if c != nil {
			s.redis = c
		}
	}
}

// WithLogger overrides the logger. Nil is ignored.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func (s *Server) routes() {
	r := s.router
	r.Use(chimw.Recoverer)
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(s.instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			workspaceHeader, requestIDHeader,
		},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodGet, "/version", s.withTimeout(s.handleGetVersion))

		r.Group(func(r chi.Router) {
			r.Use(s.resolveWorkspace)
			r.Method(http.MethodGet, "/stats", s.withTimeout(s.handleGetStats))

			r.Route("/analytics", func(r chi.Router) {
				r.Method(http.MethodGet, "/timeseries", s.withTimeout(s.handleTimeSeries))
				r.Method(http.MethodGet, "/key-metrics", s.withTimeout(s.handleKeyMetrics))
				r.Method(http.MethodGet, "/top-content", s.withTimeout(s.handleTopContent))
				r.Method(http.MethodGet, "/sources", s.withTimeout(s.handleSources))
				r.Method(http.MethodGet, "/comparison", s.withTimeout(s.handleComparison))
				r.Method(http.MethodGet, "/calls", s.withTimeout(s.handleCalls))
				r.Method(http.MethodGet, "/revenue", s.withTimeout(s.handleRevenue))
				r.Method(http.MethodGet, "/tasks", s.withTimeout(s.handleTasks))
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

func (s *Server) handleGetVersion(
	w http.ResponseWriter, _ *http.Request,
) {
	writeJSON(w, http.StatusOK, s.version)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"database": "ok"}
	code := http.StatusOK
	if err := s.db.Ping(ctx); err != nil {
		s.log.WithError(err).Warn("health: database ping failed")
		status["database"] = "unavailable"
		code = http.StatusServiceUnavailable
	}
	if s.redis != nil {
		status["redis"] = "ok"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.log.WithError(err).Warn("health: redis ping failed")
			status["redis"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}

// SetPort updates the listen port (for testing).
func (s *Server) SetPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Port = port
}

// Handler returns the http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.mu.RLock()
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	s.mu.RUnlock()
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()
	s.log.Infof("Starting server at http://%s", addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpSrv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// FindAvailablePort finds an available port starting from the
// given port, binding to the specified host.
func FindAvailablePort(host string, start int) int {
	for port := start; port < start+100; port++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port
		}
	}
	return start
}
