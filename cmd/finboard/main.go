package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finboard/internal/amqp"
	"finboard/internal/api"
	"finboard/internal/cache"
	"finboard/internal/config"
	"finboard/internal/core"
	apphttp "finboard/internal/http"
	"finboard/internal/log"
	"finboard/internal/services"
	"finboard/internal/session"
	"finboard/internal/sheets"
	gsheet "finboard/internal/sheets/google"
	mem "finboard/internal/sheets/memory"
	"finboard/internal/storage"
)

const sessionCacheSize = 5000

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Failed to load configuration", log.FieldError, err)
		os.Exit(1)
	}

	logCfg := log.DefaultConfig()
	logCfg.Format = cfg.LogFormat
	if err := cfg.Validate(); err != nil {
		log.New(logCfg).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logCfg.Level, _ = log.ParseLevel(cfg.LogLevel)
	logger := log.New(logCfg)
	log.SetDefault(logger)

	logger.Info("Starting finboard",
		"port", cfg.Port,
		"api", cfg.APIBaseURL,
		"export_backend", cfg.ExportBackend,
		"timezone", cfg.Timezone)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := api.NewClient(cfg.APIBaseURL, cfg.APITimeout, logger)

	snapshots := cache.NewLRUCache[*core.AccountDetails](cfg.SnapshotCacheSize, cfg.SnapshotCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register("snapshots", snapshots)
	cacheStats := map[string]func() cache.Stats{"snapshots": snapshots.Stats}

	checks := map[string]apphttp.ReadinessCheck{}
	var sessions session.Store
	switch cfg.SessionBackend {
	case "redis":
		store, err := session.NewRedisStore(session.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SessionTTL,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Redis session store", log.FieldError, err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		defer store.Close()
		sessions = store
		checks["sessions"] = store.Ping
		logger.Info("Initialized Redis sessions", "addr", cfg.RedisAddr)
	default:
		sessionCache := cache.NewLRUCache[*session.Session](sessionCacheSize, cfg.SessionTTL)
		caches.Register("sessions", sessionCache)
		cacheStats["sessions"] = sessionCache.Stats
		sessions = session.NewMemoryStore(sessionCache, logger)
		logger.Info("Initialized memory sessions")
	}
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
	if err != nil {
		logger.Error("Failed to initialize saved views store", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()
	checks["storage"] = repo.Ping

	var exporter sheets.ViewExporter
	switch cfg.ExportBackend {
	case "sheets":
		exp, err := gsheet.NewExporter(ctx, gsheet.Options{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err)
			os.Exit(1)
		}
		exporter = exp
		logger.Info("Initialized Google Sheets export", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	default:
		exporter = mem.New()
		logger.Info("Initialized memory export")
	}

	opts := services.Options{
		API:       client,
		Snapshots: snapshots,
		Exporter:  exporter,
		Views:     repo,
		Location:  cfg.Location(),
		Logger:    logger,
	}

	var broker *amqp.Client
	if cfg.AMQPURL != "" {
		broker, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer broker.Close()
		opts.Publisher = broker
		logger.Info("AMQP change notifications enabled", "exchange", cfg.AMQPExchange, "instance", broker.InstanceID())
	} else {
		logger.Info("AMQP disabled, snapshots refresh on TTL only")
	}

	dash := services.NewDashboard(opts)

	if broker != nil {
		go func() {
			if err := broker.ConsumeChanges(ctx, dash.HandleChange); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Change consumer stopped", log.FieldError, err)
			}
		}()
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Dashboard:          dash,
		Auth:               client,
		Sessions:           sessions,
		SessionTTL:         cfg.SessionTTL,
		CookieSecure:       cfg.CookieSecure,
		Currency:           cfg.Currency,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Checks:             checks,
		CacheStats: func() map[string]cache.Stats {
			out := make(map[string]cache.Stats, len(cacheStats))
			for name, stats := range cacheStats {
				out[name] = stats()
			}
			return out
		},
		Logger: logger,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		cancel()
		<-done
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
