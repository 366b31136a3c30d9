package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-poster/app/api"
	"github.com/lysyi3m/rss-poster/app/cfg"
	"github.com/lysyi3m/rss-poster/app/compose"
	"github.com/lysyi3m/rss-poster/app/database"
	"github.com/lysyi3m/rss-poster/app/entry"
	"github.com/lysyi3m/rss-poster/app/feed"
	"github.com/lysyi3m/rss-poster/app/fetch"
	"github.com/lysyi3m/rss-poster/app/oembed"
	"github.com/lysyi3m/rss-poster/app/pagemeta"
	"github.com/lysyi3m/rss-poster/app/shortener"
	"github.com/lysyi3m/rss-poster/app/tasks"
	"github.com/lysyi3m/rss-poster/app/thumbnail"
)

const lockTTL = 10 * time.Minute

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting RSS Poster", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Debug("Database ready", "path", appCfg.DBPath, "schema_version", version)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load feed configurations", "dir", appCfg.FeedsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Feed configurations loaded", "count", configCache.GetConfigCount())

	feedRepo := database.NewFeedRepository(db)
	entryRepo := database.NewEntryRepository(db)

	client := fetch.NewClient(appCfg.GetFetchTimeout(), appCfg.FetchRate, appCfg.UserAgent)

	builder := entry.NewBuilder(
		thumbnail.NewEngine(client),
		pagemeta.NewFetcher(client),
		oembed.NewClient(client, appCfg.YouTubeOembed, appCfg.VimeoOembed),
	)

	defaultCreds := shortener.Credentials{Login: appCfg.ShortenerLogin, APIKey: appCfg.ShortenerAPIKey}
	composer := compose.NewComposer(shortener.NewClient(client, appCfg.ShortenerURL), defaultCreds, nil)

	var locker tasks.FeedLocker = tasks.NewMemoryLocker()
	if appCfg.RedisAddr != "" {
		redisLocker, err := tasks.NewRedisLocker(appCfg.RedisAddr, lockTTL)
		if err != nil {
			slog.Error("Failed to connect to Redis", "addr", appCfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer redisLocker.Close()
		locker = redisLocker
		slog.Debug("Using Redis feed locks", "addr", appCfg.RedisAddr)
	}

	pipeline := &tasks.Pipeline{
		Fetcher:    client,
		Parser:     feed.NewParser(),
		Discoverer: feed.NewDiscoverer(),
		Filterer:   feed.NewFilterer(),
		Builder:    builder,
		Composer:   composer,
		Locker:     locker,
	}

	scheduler := tasks.NewScheduler(configCache, feedRepo, entryRepo, pipeline)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Scheduler started", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)

	handler := api.NewHandler(configCache, feedRepo, entryRepo, pipeline, scheduler)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port, "api_enabled", appCfg.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("RSS Poster shutdown complete")
}
