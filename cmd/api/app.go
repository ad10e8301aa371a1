package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/tipsearch/hub/internal/api/handlers"
	"github.com/tipsearch/hub/internal/api/middleware"
	"github.com/tipsearch/hub/internal/config"
	"github.com/tipsearch/hub/internal/embeddings"
	"github.com/tipsearch/hub/internal/generation"
	"github.com/tipsearch/hub/internal/observability"
	"github.com/tipsearch/hub/internal/repository"
	"github.com/tipsearch/hub/internal/reranker"
	"github.com/tipsearch/hub/internal/service"
	"github.com/tipsearch/hub/internal/workers"
)

const (
	enqueueMaxRetries     = 3
	enqueueInitialBackoff = 200 * time.Millisecond
	enqueueMaxBackoff     = 2 * time.Second
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	river          *river.Client[pgx.Tx]
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// metricSet unpacks the collectors so a disabled metrics setup yields nil interfaces.
type metricSet struct {
	cache      observability.CacheMetrics
	embeddings observability.EmbeddingMetrics
	retrieval  observability.RetrievalMetrics
	api        observability.APIMetrics
}

func newMetricSet(m *observability.Metrics) metricSet {
	if m == nil {
		return metricSet{}
	}

	return metricSet{cache: m.Cache, embeddings: m.Embeddings, retrieval: m.Retrieval, api: m.API}
}

// setupObservability creates the meter and tracer providers requested by cfg. Either may be nil.
func setupObservability(
	ctx context.Context, cfg *config.Config,
) (*observability.MeterSetup, *observability.Metrics, *sdktrace.TracerProvider, error) {
	var (
		meter   *observability.MeterSetup
		metrics *observability.Metrics
		err     error
	)

	if cfg.OtelMetricsExporter == "" {
		slog.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	} else {
		meter, err = observability.NewMeterProvider(ctx, cfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create meter provider: %w", err)
		}

		if meter != nil {
			metrics, err = observability.NewMetrics(meter.Provider.Meter("tips-hub"))
			if err != nil {
				_ = observability.ShutdownMeterProvider(ctx, meter.Provider)
				return nil, nil, nil, fmt.Errorf("create metrics: %w", err)
			}

			otel.SetMeterProvider(meter.Provider)
		}
	}

	var tracer *sdktrace.TracerProvider

	if cfg.OtelTracesExporter == "" {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		tracer, err = observability.NewTracerProvider(ctx, cfg)
		if err != nil {
			if meter != nil {
				if err2 := observability.ShutdownMeterProvider(ctx, meter.Provider); err2 != nil {
					slog.Error("shutdown meter provider after tracer provider error", "error", err2)
				}
			}

			return nil, nil, nil, fmt.Errorf("create tracer provider: %w", err)
		}

		if tracer != nil {
			otel.SetTracerProvider(tracer)
		}
	}

	return meter, metrics, tracer, nil
}

// migrateRiver creates or upgrades River's own tables.
func migrateRiver(ctx context.Context, db *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}

	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("river migrate: %w", err)
	}

	for _, v := range res.Versions {
		slog.Info("river migration applied", "version", v.Version)
	}

	return nil
}

// NewApp builds and wires all components. It does not start the HTTP server or River;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (*App, error) {
	meter, allMetrics, tracerProvider, err := setupObservability(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var meterProvider *sdkmetric.MeterProvider
	if meter != nil {
		meterProvider = meter.Provider
	}

	metrics := newMetricSet(allMetrics)

	if err := migrateRiver(ctx, db); err != nil {
		_ = shutdownObservability(ctx, tracerProvider, meterProvider)
		return nil, err
	}

	documentsRepo := repository.NewDocumentsRepository(db)
	feedbackRepo := repository.NewRetrievalFeedbackRepository(db)
	collectionsRepo := repository.NewCollectionsRepository(db)

	embedder, err := embeddings.NewProvider(embeddings.ProviderParams{
		Dimensions:     cfg.EmbeddingDimensions,
		Timeout:        cfg.EmbeddingTimeout,
		Load:           embeddings.LoadFromConfig(cfg),
		QueryCacheSize: cfg.EmbeddingCacheSize,
		CacheMetrics:   metrics.cache,
		Logger:         slog.Default(),
	})
	if err != nil {
		_ = shutdownObservability(ctx, tracerProvider, meterProvider)
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.EmbeddingRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.EmbeddingRateLimit), 1)
	}

	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewDocumentEmbeddingWorker(documentsRepo, embedder, limiter, metrics.embeddings))
	river.AddWorker(riverWorkers, workers.NewCollectionEmbeddingWorker(collectionsRepo, embedder, limiter, metrics.embeddings))

	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			service.EmbeddingsQueueName: {MaxWorkers: cfg.EmbeddingMaxConcurrent},
		},
		Workers:     riverWorkers,
		MaxAttempts: cfg.EmbeddingMaxAttempts,
	})
	if err != nil {
		_ = shutdownObservability(ctx, tracerProvider, meterProvider)
		return nil, fmt.Errorf("create River client: %w", err)
	}

	inserter := service.NewRetryingJobInserter(riverClient, service.RetryingJobInserterConfig{
		MaxRetries:     enqueueMaxRetries,
		InitialBackoff: enqueueInitialBackoff,
		MaxBackoff:     enqueueMaxBackoff,
	})
	enqueuer := service.NewEmbeddingEnqueuer(inserter, service.EmbeddingsQueueName, cfg.EmbeddingMaxAttempts,
		metrics.embeddings)

	rerank := reranker.New(reranker.Params{
		Load:    reranker.LoadFromConfig(cfg),
		Window:  reranker.WindowOptions{Radius: cfg.RerankWindowRadius, PrefixLength: cfg.RerankPrefixLength},
		Timeout: cfg.RerankTimeout,
		Metrics: metrics.retrieval,
		Logger:  slog.Default(),
	})

	retriever := service.NewRetriever(documentsRepo, cfg.HNSWEfSearch, metrics.retrieval, slog.Default())

	searchService := service.NewSearchService(service.SearchServiceParams{
		Embedder:  embedder,
		Retriever: retriever,
		Ranker:    rerank,
		Logger:    slog.Default(),
	})

	feedbackService := service.NewFeedbackService(embedder, feedbackRepo, metrics.retrieval, slog.Default())

	collectionsService := service.NewCollectionsService(service.CollectionsServiceParams{
		Embedder: embedder,
		Store:    collectionsRepo,
		Docs:     documentsRepo,
		Enqueuer: enqueuer,
		Logger:   slog.Default(),
	})

	ragService := service.NewRAGService(service.RAGServiceParams{
		Retriever:   searchService,
		Feedback:    feedbackService,
		Collections: collectionsService,
		Docs:        documentsRepo,
		Generator:   generation.NewLazy(generation.LoadFromConfig(cfg), cfg.GenerationTimeout, slog.Default()),
		Timeout:     cfg.RAGTimeout,
		Metrics:     metrics.retrieval,
		Logger:      slog.Default(),
	})

	transcriptsService := service.NewTranscriptsService(documentsRepo, enqueuer, slog.Default())

	var metricsHandler http.Handler
	if meter != nil {
		metricsHandler = meter.Handler
	}

	server := newHTTPServer(cfg, routes{
		health:      handlers.NewHealthHandler(db),
		search:      handlers.NewSearchHandler(searchService, ragService, collectionsService),
		feedback:    handlers.NewFeedbackHandler(feedbackService),
		collections: handlers.NewCollectionsHandler(collectionsService),
		transcripts: handlers.NewTranscriptsHandler(transcriptsService),
		metrics:     metricsHandler,
	}, metrics.api, meterProvider, tracerProvider)

	slog.Info("hub wired",
		"embedding_provider", cfg.EmbeddingProvider,
		"embedding_dimensions", cfg.EmbeddingDimensions,
		"generation_provider", cfg.GenerationProvider,
		"reranker_url", cfg.RerankerURL,
	)

	return &App{
		cfg:            cfg,
		db:             db,
		server:         server,
		river:          riverClient,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
	}, nil
}

// routes groups the handlers mounted by newHTTPServer.
type routes struct {
	health      *handlers.HealthHandler
	search      *handlers.SearchHandler
	feedback    *handlers.FeedbackHandler
	collections *handlers.CollectionsHandler
	transcripts *handlers.TranscriptsHandler
	// metrics serves /metrics when the Prometheus exporter is enabled.
	metrics http.Handler
}

// newMux registers every route: /health and /metrics are public, /v1/ requires the API key.
func newMux(apiKey string, r routes) *http.ServeMux {
	public := http.NewServeMux()
	public.HandleFunc("GET /health", r.health.Check)
	public.HandleFunc("GET /health/ready", r.health.Ready)

	if r.metrics != nil {
		public.Handle("GET /metrics", r.metrics)
	}

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/search/query", r.search.Query)
	protected.HandleFunc("POST /v1/search/rag", r.search.RAG)
	protected.HandleFunc("POST /v1/search/similar-collections", r.search.SimilarCollections)

	protected.HandleFunc("POST /v1/search/feedback", r.feedback.Save)
	protected.HandleFunc("DELETE /v1/search/feedback", r.feedback.Delete)
	protected.HandleFunc("POST /v1/search/feedback/get", r.feedback.Get)
	protected.HandleFunc("POST /v1/search/similar-queries", r.feedback.SimilarQueries)

	protected.HandleFunc("POST /v1/collections", r.collections.Create)
	protected.HandleFunc("GET /v1/collections", r.collections.List)
	protected.HandleFunc("GET /v1/collections/{id}", r.collections.Get)
	protected.HandleFunc("DELETE /v1/collections/{id}", r.collections.Delete)

	protected.HandleFunc("GET /v1/videos/{video_id}/transcript", r.transcripts.Get)
	protected.HandleFunc("PUT /v1/videos/{video_id}/transcript", r.transcripts.Put)

	mux := http.NewServeMux()
	mux.Handle("/v1/", middleware.Auth(apiKey)(protected))
	mux.Handle("/", public)

	return mux
}

// newHTTPServer builds the server.
// Handler chain: RequestID -> Metrics -> otelhttp(Logging(MaxBody(mux))) so access logs carry trace ids.
func newHTTPServer(
	cfg *config.Config,
	r routes,
	apiMetrics observability.APIMetrics,
	meterProvider *sdkmetric.MeterProvider,
	tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	otelOpts := []otelhttp.Option{
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	var bodyRecorder middleware.RequestBodyTooLargeRecorder
	if apiMetrics != nil {
		bodyRecorder = apiMetrics
	}

	var handler http.Handler = newMux(cfg.APIKey, r)
	handler = middleware.MaxBody(middleware.BodyLimits{
		Default:    cfg.MaxRequestBodyBytes,
		Transcript: cfg.MaxTranscriptBodyBytes,
	}, bodyRecorder)(handler)
	handler = middleware.Logging(slog.Default())(handler)
	handler = otelhttp.NewHandler(handler, "tips-hub-api", otelOpts...)
	handler = middleware.Metrics(apiMetrics)(handler)
	handler = middleware.RequestID(handler)

	const (
		readTimeout = 15 * time.Second
		idleTimeout = 60 * time.Second
	)

	// RAG requests may run up to RAG_TIMEOUT, so the write deadline follows it.
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: cfg.RAGTimeout + readTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and River, then blocks until ctx is cancelled or a component fails.
// Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	riverCtx, cancelRiver := context.WithCancel(ctx)
	defer cancelRiver()

	go func() {
		if err := a.river.Start(riverCtx); err != nil && !errors.Is(err, context.Canceled) {
			select {
			case runErr <- fmt.Errorf("river: %w", err):
			default:
			}
		}
	}()

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		cancelRiver()
		return err
	case <-ctx.Done():
		cancelRiver()
		return nil
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *sdkmetric.MeterProvider) error {
	var first error

	if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
		first = err
	}

	if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
		if first == nil {
			first = err
		} else {
			slog.Error("shutdown meter provider", "error", err)
		}
	}

	return first
}

// Shutdown stops the server, then River (waiting for in-flight jobs), then observability.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if stopErr := a.river.Stop(ctx); stopErr != nil {
			slog.Error("river stop during server shutdown", "error", stopErr)
		}

		return fmt.Errorf("server shutdown: %w", err)
	}

	if err = a.river.Stop(ctx); err != nil {
		return fmt.Errorf("river stop: %w", err)
	}

	return nil
}
