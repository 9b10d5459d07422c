// Package web provides the HTTP server and handlers for the conformance
// rule console.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/menas/internal/config"
	"github.com/JonMunkholm/menas/internal/core"
	"github.com/JonMunkholm/menas/internal/metrics"
	mw "github.com/JonMunkholm/menas/internal/web/middleware"
)

// Catalog is the read side of the metadata store.
type Catalog interface {
	core.DatasetReader
	GetLatestDataset(ctx context.Context, name string) (core.Dataset, error)
	GetSchema(ctx context.Context, name string, version int) (core.Schema, error)
	ListSchemas(ctx context.Context) ([]core.SchemaSummary, error)
	GetSchemaFile(ctx context.Context, name string, version int) (core.SchemaFile, error)
	ListMappingTables(ctx context.Context) ([]core.MappingTableSummary, error)
	GetAllVersions(ctx context.Context, name string) ([]core.MappingTable, error)
}

// Deps are the collaborators of the server.
type Deps struct {
	Catalog  Catalog
	Lists    *core.DatasetLists
	Editors  *core.EditorManager
	Registry *core.Registry
	Hub      *Hub
	Commits  *core.CommitLimiter
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// Server is the HTTP server of the console.
type Server struct {
	cfg      *config.Config
	catalog  Catalog
	lists    *core.DatasetLists
	editors  *core.EditorManager
	registry *core.Registry
	hub      *Hub
	commits  *core.CommitLimiter
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	router  *chi.Mux
	server  *http.Server
	limiter *rateLimiter
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, d Deps) *Server {
	if d.Registry == nil {
		d.Registry = core.DefaultRegistry()
	}
	if d.Commits == nil {
		d.Commits = core.NewCommitLimiter(cfg.Session.MaxConcurrentCommits, cfg.Session.CommitTimeout)
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:      cfg,
		catalog:  d.Catalog,
		lists:    d.Lists,
		editors:  d.Editors,
		registry: d.Registry,
		hub:      d.Hub,
		commits:  d.Commits,
		metrics:  d.Metrics,
		gatherer: d.Gatherer,
		router:   chi.NewRouter(),
		limiter:  newRateLimiter(300, time.Minute),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	var obs mw.RequestObserver
	if s.metrics != nil {
		obs = s.metrics
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger(obs))
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
	s.router.Use(s.limiter.middleware)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	if s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Live conformance updates
	if s.hub != nil {
		s.router.With(mw.APIKeyAuth(s.cfg.Security)).Get("/ws/conformance", s.hub.ServeHTTP)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(s.cfg.Security))
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
		r.Use(middleware.Compress(5))

		// Rule types
		r.Get("/rule-types", s.handleListRuleTypes)
		r.Get("/dataTypes", s.handleListDataTypes)

		// Datasets
		r.Get("/datasets", s.handleListDatasets)
		r.Get("/datasets/{name}", s.handleGetLatestDataset)
		r.Get("/datasets/{name}/{version}", s.handleGetDataset)

		// Schemas
		r.Get("/schemas", s.handleListSchemas)
		r.Get("/schemas/{name}/{version}", s.handleGetSchema)
		r.Get("/schemas/{name}/{version}/export", s.handleExportSchema)

		// Mapping tables
		r.Get("/mapping-tables", s.handleListMappingTables)
		r.Get("/mapping-tables/{name}/versions", s.handleMappingTableVersions)

		// Rule editors
		r.Post("/editors", s.handleCreateEditor)
		r.Route("/editors/{id}", func(r chi.Router) {
			r.Use(s.editorCtx)

			r.Get("/", s.handleGetEditor)
			r.Delete("/", s.handleRemoveEditor)
			r.Get("/dialog", s.handleEditorDialog)

			r.Post("/open", s.handleOpen)
			r.Post("/rule-type", s.handleSelectRuleType)
			r.Post("/mapping-table", s.handleSelectMappingTable)
			r.Post("/mapping-table-version", s.handleSelectMappingTableVersion)

			r.Post("/join-conditions", s.handleAddJoinCondition)
			r.Put("/join-conditions/{index}", s.handleReplaceJoinCondition)
			r.Delete("/join-conditions/{index}", s.handleRemoveJoinCondition)

			r.Post("/concat-columns", s.handleAddConcatColumn)
			r.Put("/concat-columns/{index}", s.handleReplaceConcatColumn)
			r.Delete("/concat-columns/{index}", s.handleRemoveConcatColumn)

			r.Post("/schema-field", s.handleSelectSchemaField)
			r.Patch("/draft", s.handleEditDraft)

			r.Post("/submit", s.handleSubmit)
			r.Post("/cancel", s.handleCancel)
		})
	})
}

// Start begins listening for HTTP requests on the configured address.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.stop()
	if s.hub != nil {
		s.hub.Close()
	}
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	if n := s.commits.Active(); n > 0 {
		slog.Info("waiting for commits to complete", "active", n)
	}
	return s.commits.WaitForDrain(ctx)
}

// handleHealth reports liveness along with open editors and commit slots.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "ok",
		"editors": s.editors.Len(),
		"commits": s.commits.Status(),
	})
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(csp bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if csp {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; connect-src 'self' ws: wss:")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter is a fixed window limiter keyed by client address.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// cleanup drops visitors idle for two windows.
func (rl *rateLimiter) cleanup() {
	t := time.NewTicker(rl.window)
	defer t.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-t.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}

// allow consumes a token for ip and reports whether one was left.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok || time.Since(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: time.Now()}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			respondErrorJSON(w, core.MapError(errRateLimited), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
