package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"my-history/domain/repository"
	"my-history/infrastructure/cache"
	"my-history/infrastructure/configuration"
	"my-history/infrastructure/cookiecloud"
	"my-history/infrastructure/credential"
	"my-history/infrastructure/logger"
	"my-history/infrastructure/persistence"
	"my-history/infrastructure/provider"
	httpHandler "my-history/interfaces/http"
	"my-history/server"
	"my-history/usecase"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")

	cfg := configuration.C
	dataDir := cfg.Data.Dir

	db, err := persistence.NewPostgreSQLDB()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Cannot connect to PostgreSQL")
		os.Exit(1)
	}
	if err := persistence.EnsureHistorySchema(db); err != nil {
		logger.GetLogger().WithField("error", err).Error("Cannot ensure watch_history schema")
		os.Exit(1)
	}
	historyRepo := persistence.NewHistoryRepository(db)
	syncStates := persistence.NewSyncStateStore(dataDir)

	// Credential cache: Redis when configured, otherwise a local file.
	var kv repository.IKeyValue
	if cfg.RedisClient.Enabled {
		redisClient, err := cache.NewCache(ctx,
			fmt.Sprintf("%s:%s", cfg.RedisClient.Host, cfg.RedisClient.Port),
			cfg.RedisClient.Username,
			cfg.RedisClient.Password,
		)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Redis not available, falling back to file credential cache")
		} else {
			kv = credential.NewRedisKV(redisClient, "credential:")
		}
	}
	if kv == nil {
		kv = credential.NewFileKV(filepath.Join(dataDir, "credential_cache.json"))
	}

	var cloud credential.ICookieSource
	if cfg.CookieCloud.Enabled {
		cloud = cookiecloud.NewClient(cfg.CookieCloud.URL, cfg.CookieCloud.UUID, cfg.CookieCloud.Password)
	}
	credStore := credential.NewStore(kv, cloud, map[string]configuration.PlatformCredential{
		"bilibili": cfg.Bilibili.Credential,
	})

	tokenStore := credential.NewTokenStore(
		filepath.Join(dataDir, "podcast_tokens.json"),
		cfg.Podcast.BaseURL+"/v1/app_auth_tokens.refresh",
		cfg.Podcast.AccessToken,
		cfg.Podcast.RefreshToken,
	)
	tokenStore.Init(ctx)

	pageDelay := time.Duration(cfg.Sync.PageDelayMs) * time.Millisecond
	providers := []repository.IProvider{
		provider.NewBilibiliProvider(cfg.Bilibili, pageDelay, credStore, historyRepo, syncStates),
		provider.NewYouTubeProvider(cfg.YouTube, historyRepo, syncStates),
		provider.NewYouTubeBrowserProvider(cfg.YouTubeBrowser, pageDelay, historyRepo, syncStates),
		provider.NewPodcastProvider(cfg.Podcast, pageDelay, tokenStore, historyRepo, syncStates),
	}
	syncUsecase := usecase.NewSyncUsecase(historyRepo, providers...)

	for name, p := range syncUsecase.GetEnabledProviders() {
		logger.GetLogger().WithField("provider", name).WithField("platform", p.Platform()).Info("Provider enabled")
	}

	historyHandler := httpHandler.NewHistoryHandler(syncUsecase)
	router := server.InitiateRouter(historyHandler, cfg.App.SecretKey)

	// Periodic background sync of every enabled provider.
	g.Go(func() error {
		interval := time.Duration(cfg.Sync.IntervalMinutes) * time.Minute
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				summary, err := syncUsecase.SyncHistory(ctx, "")
				if err != nil {
					logger.GetLogger().WithField("error", err).Error("Scheduled sync failed")
					continue
				}
				logger.GetLogger().WithField("new", summary.TotalNew).WithField("updated", summary.TotalUpdate).Info("Scheduled sync finished")
			}
		}
	})

	port := cfg.App.Port
	logger.GetLogger().WithField("port", port).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}
