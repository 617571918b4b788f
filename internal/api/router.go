package api

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"

	"github.com/Fairlead-Analytics/riskserver/internal/api/handlers"
	"github.com/Fairlead-Analytics/riskserver/internal/api/middleware"
	"github.com/Fairlead-Analytics/riskserver/internal/batch"
	"github.com/Fairlead-Analytics/riskserver/internal/config"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/companies"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/predictions"
	"github.com/Fairlead-Analytics/riskserver/internal/jobs"
	"github.com/Fairlead-Analytics/riskserver/internal/metrics"
	"github.com/Fairlead-Analytics/riskserver/internal/scoring"
	"github.com/Fairlead-Analytics/riskserver/internal/storage/postgres"
)

// Router bundles the HTTP handler with the job client it started, so the
// server can run and stop both together.
type Router struct {
	Handler     http.Handler
	RiverClient *river.Client[pgx.Tx]
}

// NewRouter wires storage, scoring, the job queue, and every HTTP route.
// The returned River client is not started; the caller owns its lifecycle.
func NewRouter(cfg config.Config, logger zerolog.Logger, pool *pgxpool.Pool, version, gitCommit, buildDate string) (*Router, error) {
	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return nil, err
	}

	model, err := scoring.Load(cfg.Scoring.ModelPath)
	if err != nil {
		return nil, err
	}

	companySvc := companies.NewService(repo.Companies())
	predictionSvc := predictions.NewService(repo.Predictions(), model)

	pipeline := batch.NewPipeline(postgres.NewBatchStore(pool), model, logger)
	workers := jobs.NewWorkers(jobs.WorkerDeps{
		Pipeline:      pipeline,
		Uploads:       repo.Uploads(),
		UploadsDir:    cfg.Uploads.Dir,
		FileRetention: cfg.Uploads.Retention,
		RowRetention:  time.Duration(cfg.Jobs.HistoryRetentionDays) * 24 * time.Hour,
		Logger:        logger,
	})
	riverClient, err := jobs.NewClient(
		pool,
		workers,
		cfg.Jobs.BatchWorkers,
		config.NewSlogLogger(cfg.Logging),
		[]rivertype.Hook{metrics.NewRiverMetricsHook()},
		jobs.NewPeriodicJobs(),
	)
	if err != nil {
		return nil, err
	}
	submitter := jobs.NewSubmitter(repo, riverClient)

	predictionsHandler := handlers.NewPredictionsHandler(companySvc, predictionSvc, cfg.Environment)
	companiesHandler := handlers.NewCompaniesHandler(companySvc, predictionSvc, cfg.Environment)
	batchesHandler := handlers.NewBatchesHandler(submitter, repo.Uploads(), riverClient, cfg.Uploads.Dir, cfg.Environment)
	health := handlers.NewHealthChecker(pool, riverClient, version, gitCommit)

	jsonBody := middleware.PublicRequestSize()
	uploadTier := middleware.WithRateLimitTierHandler(middleware.TierUpload)
	uploadBody := middleware.RequestSize(cfg.Uploads.MaxBytes)

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/readyz", handlers.Readyz())
	mux.Handle("/health", health.Health())
	mux.Handle("/health/workers", health.Workers())
	mux.Handle("/version", VersionHandler(version, gitCommit, buildDate))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/api/v1/openapi.json", OpenAPIHandler())

	mux.Handle("/api/v1/predictions", methodMux(map[string]http.Handler{
		http.MethodPost: jsonBody(http.HandlerFunc(predictionsHandler.Create)),
	}))
	mux.Handle("/api/v1/predictions/batches", methodMux(map[string]http.Handler{
		http.MethodPost: uploadTier(uploadBody(http.HandlerFunc(batchesHandler.Create))),
	}))
	mux.Handle("/api/v1/predictions/batches/{uploadID}", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(batchesHandler.Get),
	}))

	mux.Handle("/api/v1/companies", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(companiesHandler.List),
	}))
	mux.Handle("/api/v1/companies/{symbol}", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(companiesHandler.Get),
	}))
	mux.Handle("/api/v1/companies/{symbol}/predictions", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(companiesHandler.History),
	}))
	mux.Handle("/api/v1/companies/{symbol}/ratios", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(companiesHandler.Ratios),
	}))

	var handler http.Handler = mux
	handler = middleware.RateLimit(cfg.RateLimit)(handler)
	handler = middleware.SecurityHeaders(cfg.Environment == "production")(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(logger)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(logger)(handler)

	return &Router{
		Handler:     handler,
		RiverClient: riverClient,
	}, nil
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
