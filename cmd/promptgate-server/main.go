package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"github.com/joho/godotenv"
	"github.com/relaymesh/promptgate/internal/abuse"
	"github.com/relaymesh/promptgate/internal/api"
	"github.com/relaymesh/promptgate/internal/audit"
	"github.com/relaymesh/promptgate/internal/auditread"
	"github.com/relaymesh/promptgate/internal/config"
	"github.com/relaymesh/promptgate/internal/embed"
	"github.com/relaymesh/promptgate/internal/flags"
	"github.com/relaymesh/promptgate/internal/profile"
	"github.com/relaymesh/promptgate/internal/routing"
	"github.com/relaymesh/promptgate/internal/similarity"
	"github.com/relaymesh/promptgate/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logger := mustBuildLogger(envOrDefault("PROMPTGATE_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config: YAML policy file overlaid by env vars
	cfg, err := config.Load(envOrDefault("PROMPTGATE_CONFIG", "promptgate.yaml"))
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	addr := cfg.Server.Addr
	if port := os.Getenv("PROMPTGATE_HTTP_PORT"); port != "" {
		addr = ":" + port
	}
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	voyageKey := os.Getenv("VOYAGE_API_KEY")
	cacheTTL := time.Duration(envOrDefaultInt("PROMPTGATE_AUTH_CACHE_TTL_S", 30)) * time.Second
	profileTTL := time.Duration(envOrDefaultInt("PROMPTGATE_PROFILE_CACHE_TTL_S", 30)) * time.Second
	flagTTL := time.Duration(envOrDefaultInt("PROMPTGATE_FLAG_REFRESH_S", 30)) * time.Second

	logger.Info("starting promptgate server",
		zap.String("addr", addr),
		zap.Bool("semantic", voyageKey != ""),
	)

	// Embedding provider — semantic checks degrade gracefully without it
	var provider embed.Provider
	if voyageKey != "" {
		provider = embed.NewVoyageProvider(embed.VoyageConfig{
			APIKey: voyageKey,
			Model:  os.Getenv("VOYAGE_MODEL"),
		}, logger)
		logger.Info("voyage embedding provider enabled")
	} else {
		logger.Info("no VOYAGE_API_KEY set, semantic checks disabled")
	}

	// Audit sink — ClickHouse or log fallback
	var sink audit.Sink
	if clickhouseDSN != "" {
		chSink, err := audit.NewClickHouseSink(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log sink",
				zap.Error(err),
			)
			sink = audit.NewLogSink(logger)
		} else {
			sink = chSink
			logger.Info("clickhouse audit sink connected")
		}
	} else {
		sink = audit.NewLogSink(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log audit sink")
	}
	defer sink.Close()

	// Postgres pool — auth, org profiles and feature flags. Optional:
	// without it the API runs unauthenticated with static flags.
	var pgStore *store.Store
	if postgresDSN != "" {
		db, err := sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		pgStore = store.NewStore(db)
		logger.Info("postgres connected")
	} else {
		logger.Info("no POSTGRES_DSN set, running unauthenticated with static flags")
	}

	// ClickHouse reader (for audit inspection endpoints)
	var reader *auditread.Reader
	if clickhouseDSN != "" {
		var err error
		reader, err = auditread.NewReader(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse reader connection failed", zap.Error(err))
		} else {
			defer func() { _ = reader.Close() }()
			logger.Info("clickhouse reader connected")
		}
	}

	// Known-abuse corpus, built in the background so a slow embedding
	// provider never delays startup.
	corpus := abuse.NewCorpus(nil, provider, logger)
	go corpus.Build(context.Background())

	abuseCfg := cfg.AbuseDetectorConfig()
	detector := abuse.NewDetector(abuseCfg, corpus, provider, logger)
	checker := similarity.NewChecker(cfg.SimilarityCheckerConfig(), provider, sink, logger)

	var profiles profile.Store
	var flagSrc flags.Source = flags.NewStaticSource(nil)
	if pgStore != nil {
		profiles = profile.NewCachedStore(pgStore, profileTTL, logger)
		flagSrc = flags.NewDBSource(pgStore, flagTTL, logger)
	}

	orchCfg := routing.DefaultConfig()
	orchCfg.LengthOptions = cfg.LengthOptions()
	orchestrator := routing.NewOrchestrator(orchCfg, profiles, flagSrc, sink, logger)

	deps := &api.Dependencies{
		Store:      pgStore,
		Abuse:      detector,
		Similarity: checker,
		Length:     cfg.LengthOptions(),
		Router:     orchestrator,
		Reader:     reader,
		Flags:      flagSrc,
		Logger:     logger,
		CacheTTL:   cacheTTL,
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("promptgate server stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
