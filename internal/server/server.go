// Package server exposes the ledger, market data and advisory operations
// over HTTP. The analyze endpoint streams the advisory narrative as plain
// text chunks.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/easyfolio/easyfolio/config"
	"github.com/easyfolio/easyfolio/internal/service"
	"github.com/easyfolio/easyfolio/internal/storage/sqlite"
	"github.com/easyfolio/easyfolio/models"
)

// Backend is the service surface the HTTP handlers call.
type Backend interface {
	Config() *config.Config
	IsDemo() bool
	ApplyModelConfig(ctx context.Context, apiKey, baseURL, modelName string)

	Summary(ctx context.Context, symbol string) *models.Summary
	SetBudget(symbol string, totalBudget float64) (*models.Position, error)
	AddRecord(symbol, date string, units int, price float64, conclusion string) (*models.Position, error)
	DeleteRecord(symbol string, index int) bool
	Clear(symbol string) bool

	Quote(ctx context.Context, symbol string) (*service.QuoteResult, error)
	History(ctx context.Context, symbol string, days int) ([]models.IndicatorRow, error)
	Analyze(ctx context.Context, symbol, simulatedDate string) (<-chan string, string)

	Runs(ctx context.Context, cursor int64, limit int) ([]sqlite.RunWithMeta, error)
	Transcript(ctx context.Context, runID string) (string, error)
}

// Option customizes a Server.
type Option func(*Server)

// WithConfigPersist installs the callback that writes an updated model
// configuration back to disk after a POST /api/config.
func WithConfigPersist(fn func(config.Config) error) Option {
	return func(s *Server) { s.persist = fn }
}

// Server is the HTTP shell around the service layer.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	svc     Backend
	persist func(config.Config) error
	log     zerolog.Logger
}

func New(addr string, svc Backend, log zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		router: chi.NewRouter(),
		svc:    svc,
		log:    log.With().Str("component", "server").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays off: the analyze endpoint streams for as long
		// as the advisory run takes.
		IdleTimeout: 60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/config", s.handleGetConfig)
		r.Post("/config", s.handleUpdateConfig)

		r.Route("/market", func(r chi.Router) {
			r.Get("/quote", s.handleQuote)
			r.Get("/history", s.handleHistory)
			r.Get("/indices", s.handleIndices)
			r.Get("/analyze", s.handleAnalyze)
		})

		r.Route("/positions", func(r chi.Router) {
			r.Get("/summary", s.handleSummary)
			r.Post("/config", s.handleSetBudget)
			r.Post("/record", s.handleAddRecord)
			r.Delete("/record", s.handleDeleteRecord)
			r.Delete("/clear", s.handleClear)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Get("/{runID}", s.handleTranscript)
		})
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
