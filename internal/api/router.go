package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/noetic-labs/covenant/internal/api/handlers"
	mw "github.com/noetic-labs/covenant/internal/api/middleware"
	"github.com/noetic-labs/covenant/internal/config"
	"github.com/noetic-labs/covenant/internal/domain"
	"github.com/noetic-labs/covenant/internal/service"
	"github.com/noetic-labs/covenant/internal/store"
)

// App holds the router and request metrics.
type App struct {
	Router       *chi.Mux
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

// NewApp wires stores, services and handlers. An optional classifier replaces
// the built-in rule classifier; pass nil to use the rules.
func NewApp(db *pgxpool.Pool, classifier domain.DissonanceClassifier, logger *zap.Logger) *App {
	// Stores
	nodeStore := store.NewNodeStore(db)
	edgeStore := store.NewEdgeStore(db)
	auditStore := store.NewAuditStore(db)
	reviewStore := store.NewReviewStore(db)
	resolutionStore := store.NewResolutionStore(db)

	// Services
	graphSvc := service.NewGraphService(nodeStore, edgeStore, logger)
	guardSvc := service.NewGuardService(edgeStore, auditStore, logger)
	querySvc := service.NewQueryService(nodeStore, edgeStore, logger)
	dissonanceSvc := service.NewDissonanceService(edgeStore, reviewStore, auditStore, classifier, logger)
	resolutionSvc := service.NewResolutionService(edgeStore, reviewStore, auditStore, resolutionStore, logger)

	// Handlers
	graphHandler := handlers.NewGraphHandler(graphSvc, guardSvc, querySvc)
	dissonanceHandler := handlers.NewDissonanceHandler(dissonanceSvc)
	resolutionHandler := handlers.NewResolutionHandler(resolutionSvc, querySvc)
	auditHandler := handlers.NewAuditHandler(auditStore)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		startTime: time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health (no auth)
	r.Get("/health", healthHandler(db))

	// Metrics (no auth)
	r.Get("/metrics", app.metricsHandler())

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKey()))

		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", graphHandler.CreateNode)
			r.Post("/similar", graphHandler.SimilarNodes)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", graphHandler.GetNode)
				r.Put("/embedding", graphHandler.SetNodeEmbedding)
				r.Get("/neighbors", graphHandler.Neighbors)
			})
		})

		r.Route("/edges", func(r chi.Router) {
			r.Post("/", graphHandler.CreateEdge)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", graphHandler.GetEdge)
				r.Delete("/", graphHandler.DeleteEdge)
			})
		})

		r.Get("/paths", graphHandler.FindPaths)

		r.Route("/dissonance", func(r chi.Router) {
			r.Post("/classify", dissonanceHandler.Classify)
			r.Route("/reviews", func(r chi.Router) {
				r.Post("/", dissonanceHandler.OpenReview)
				r.Get("/", dissonanceHandler.ListPending)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", dissonanceHandler.GetReview)
					r.Post("/resolve", resolutionHandler.Resolve)
				})
			})
		})

		r.Get("/resolutions", resolutionHandler.ListForNode)
		r.Get("/audit", auditHandler.Query)
	})

	return app
}

// NewRouter returns just the chi.Mux.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, nil, logger).Router
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.NodeStore         = (*store.NodeStore)(nil)
	_ domain.EdgeStore         = (*store.EdgeStore)(nil)
	_ domain.AuditStore        = (*store.AuditStore)(nil)
	_ domain.ReviewStore       = (*store.ReviewStore)(nil)
	_ domain.ResolutionApplier = (*store.ResolutionStore)(nil)
)
