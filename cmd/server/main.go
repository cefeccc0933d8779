package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "moviestream/catalogservice/internal/api/http"
	"moviestream/catalogservice/internal/app"
	"moviestream/catalogservice/internal/catalog"
	"moviestream/catalogservice/internal/metrics"
	"moviestream/catalogservice/internal/providers/recommend"
	"moviestream/catalogservice/internal/providers/tmdb"
	"moviestream/catalogservice/internal/telemetry"
	"moviestream/catalogservice/internal/users"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "movie-catalog")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "movie-catalog"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("datasetURL", cfg.DatasetURL),
		slog.Duration("datasetTimeout", cfg.DatasetTimeout),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Bool("hasTMDBKey", strings.TrimSpace(cfg.TMDBAPIKey) != ""),
		slog.Bool("hasRecommend", strings.TrimSpace(cfg.RecommendEndpoint) != ""),
		slog.String("dbPath", cfg.DBPath),
	)

	redisClient := connectRedis(cfg.RedisURL, logger)

	loader := catalog.NewLoader(catalog.LoaderConfig{
		Endpoint:  cfg.DatasetURL,
		UserAgent: cfg.UserAgent,
		Client: &http.Client{
			Timeout:   cfg.DatasetTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	})
	catalogService := catalog.NewService(loader, catalog.WithLogger(logger))

	serverOpts := []apihttp.ServerOption{
		apihttp.WithLogger(logger),
		apihttp.WithRequestTimeout(cfg.RequestTimeout),
	}

	tmdbClient := buildTMDBClient(cfg, redisClient, logger)
	if tmdbClient != nil {
		serverOpts = append(serverOpts, apihttp.WithTMDB(tmdbClient))
	}

	recommendClient := buildRecommendClient(cfg, redisClient, logger)
	if recommendClient != nil {
		serverOpts = append(serverOpts, apihttp.WithRecommendations(recommendClient))
	}

	if opt, closeDB := buildUserStore(cfg, logger); opt != nil {
		serverOpts = append(serverOpts, opt)
		defer closeDB()
	}

	handler := apihttp.NewServer(catalogService, serverOpts...).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Preload the dataset so the first request does not pay the cost.
	go catalogService.Warm(rootCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("movie catalog service started",
		slog.String("addr", cfg.HTTPAddr),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("movie catalog service stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func connectRedis(redisURL string, logger *slog.Logger) *redis.Client {
	redisURL = strings.TrimSpace(redisURL)
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, external caches disabled", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable, external caches disabled", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("redis connected", slog.String("addr", opts.Addr))
	return client
}

func buildTMDBClient(cfg app.Config, redisClient *redis.Client, logger *slog.Logger) *tmdb.Client {
	apiKey := strings.TrimSpace(cfg.TMDBAPIKey)
	if apiKey == "" {
		logger.Info("tmdb api key not configured, tmdb fallback disabled")
		return nil
	}

	client := tmdb.NewClient(tmdb.Config{
		APIKey:  apiKey,
		BaseURL: cfg.TMDBBaseURL,
		Client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Redis:    redisClient,
		CacheTTL: cfg.TMDBCacheTTL,
	})
	logger.Info("tmdb client initialized", slog.Bool("enabled", client.Enabled()))
	return client
}

func buildRecommendClient(cfg app.Config, redisClient *redis.Client, logger *slog.Logger) *recommend.Client {
	endpoint := strings.TrimSpace(cfg.RecommendEndpoint)
	if endpoint == "" {
		logger.Info("recommendation endpoint not configured, recommendations disabled")
		return nil
	}

	client := recommend.NewClient(recommend.Config{
		Endpoint: endpoint,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Redis:    redisClient,
		CacheTTL: cfg.RecommendCacheTTL,
	})
	logger.Info("recommendation client initialized", slog.String("endpoint", endpoint))
	return client
}

func buildUserStore(cfg app.Config, logger *slog.Logger) (apihttp.ServerOption, func()) {
	secret := strings.TrimSpace(cfg.JWTSecret)
	if secret == "" {
		logger.Warn("JWT_SECRET not set, user accounts disabled")
		return nil, nil
	}

	db, err := users.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open user database, user accounts disabled",
			slog.String("path", cfg.DBPath),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	store := users.NewStore(db)
	tokens := &users.TokenService{
		Secret:   []byte(secret),
		Issuer:   "movie-catalog",
		Duration: cfg.TokenTTL,
	}
	logger.Info("user store initialized", slog.String("path", cfg.DBPath))
	return apihttp.WithUsers(store, tokens), func() { _ = db.Close() }
}
