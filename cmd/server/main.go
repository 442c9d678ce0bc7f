package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tubetrack-backend/internal/config"
	"tubetrack-backend/internal/coordinator"
	"tubetrack-backend/internal/database"
	"tubetrack-backend/internal/handlers"
	"tubetrack-backend/internal/localstore"
	"tubetrack-backend/internal/localstore/migrations"
	"tubetrack-backend/internal/logging"
	"tubetrack-backend/internal/middleware"
	"tubetrack-backend/internal/models"
	"tubetrack-backend/internal/repository"
	"tubetrack-backend/internal/router"
	"tubetrack-backend/internal/services"
	"tubetrack-backend/internal/websocket"
	"tubetrack-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("✗ Logger initialization failed: %v", err)
	}
	logger.Info("starting tubetrack backend", zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("PostgreSQL connection failed", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("PostgreSQL connected")

	if err := database.RunMigrations(ctx, pool, "migrations", logger); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("Redis connection failed", zap.Error(err))
	}
	defer redisClients.Close()
	logger.Info("Redis connected")

	// ──── Step 4: Open the Local Store ────
	localDB, err := database.NewLocalDB(cfg.LocalDBPath, 5*time.Second)
	if err != nil {
		logger.Fatal("local database open failed", zap.Error(err))
	}
	defer localDB.Close()

	group, err := migrations.BringUpToDate(ctx, localDB)
	if err != nil {
		logger.Fatal("local migration failed", zap.Error(err))
	}
	if !group.IsZero() {
		logger.Info("local store migrated", zap.String("group", group.String()))
	}
	local := localstore.New(localDB)

	// ──── Initialize Repositories ────
	playlistRepo := repository.NewPlaylistRepo(pool)
	progressRepo := repository.NewProgressRepo(pool)
	playlistCacheRepo := repository.NewPlaylistCacheRepo(pool)
	notesRepo := repository.NewNotesRepo(pool)
	testRepo := repository.NewTestRepo(pool)
	creditRepo := repository.NewCreditRepo(pool)

	// ──── Step 5: Initialize Caches and the Credit Ledger ────
	publisher := services.NewRedisPublisher(redisClients.PubSub, logger)
	hot := services.NewRedisHotCache(redisClients.Cache, time.Duration(cfg.CacheTTLMinutes)*time.Minute)

	playlistCache := services.NewGenerationCache[models.PlaylistDetails](services.KindPlaylist, playlistCacheRepo, hot, logger)
	notesCache := services.NewGenerationCache[models.NotesRecord](services.KindNotes, notesRepo, hot, logger)
	// Tests are graded in place, so they are always read from the table.
	testCache := services.NewGenerationCache[models.TestRecord](services.KindTest, testRepo, nil, logger)

	ledger := services.NewCreditLedger(creditRepo, services.CreditPolicy{
		Costs: map[services.Action]int{
			services.ActionSearch: cfg.CostSearch,
			services.ActionNotes:  cfg.CostNotes,
			services.ActionTest:   cfg.CostTest,
		},
		ChargeOnCacheHit: map[services.Action]bool{
			services.ActionNotes: cfg.ChargeNotesOnCacheHit,
			services.ActionTest:  cfg.ChargeTestsOnCacheHit,
		},
	}, publisher, logger)

	// ──── Step 6: Initialize Collaborators ────
	fetcher, err := services.NewYouTubeFetcher(ctx, cfg.YouTubeAPIKey, cfg.YouTubeBaseURL, logger)
	if err != nil {
		logger.Fatal("YouTube client initialization failed", zap.Error(err))
	}

	generator, err := services.NewGeminiGenerator(ctx, services.GeminiConfig{
		APIKey:             cfg.GeminiAPIKey,
		BaseURL:            cfg.GeminiBaseURL,
		Model:              cfg.GeminiModel,
		ConcurrentRequests: cfg.GeminiConcurrentReqs,
	}, services.NewVideoContentSource(logger), logger)
	if err != nil {
		logger.Fatal("Gemini client initialization failed", zap.Error(err))
	}
	defer generator.Close()

	identity := services.NewIdentityProvider(cfg.AuthJWTSecret, publisher, logger)

	study := services.NewStudyService(services.StudyDeps{
		Notes:   notesCache,
		Tests:   testCache,
		Results: testRepo,
		Stats:   progressRepo,
		Ledger:  ledger,
		Gen:     generator,
		Videos:  local,
		Local:   local,
		Log:     logger,
	})

	// ──── Step 7: Start the Cleanup Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, playlistRepo, publisher, cfg.WorkerCount, logger)
	workerPool.Start()

	coord := coordinator.New(coordinator.Deps{
		Local: local,
		Remote: coordinator.Remote{
			Playlists: playlistRepo,
			Progress:  progressRepo,
			Notes:     notesRepo,
			Results:   testRepo,
			Cache:     playlistCacheRepo,
		},
		Playlists: playlistCache,
		Fetcher:   fetcher,
		Ledger:    ledger,
		Publisher: publisher,
		Cleanup:   workerPool,
		Log:       logger,
	})

	balanceSync := services.NewBalanceSync(ledger, identity, services.DefaultBalanceSyncInterval, logger)
	balanceSync.Start()

	// ──── Step 8: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, logger)

	// ──── Step 9: Start HTTP Server ────
	limiter := middleware.NewRateLimiter(ctx, 30, time.Minute)
	r := router.New(identity, limiter, router.Handlers{
		Session:   handlers.NewSessionHandler(identity),
		Playlist:  handlers.NewPlaylistHandler(coord),
		Study:     handlers.NewStudyHandler(study),
		Credits:   handlers.NewCreditsHandler(ledger),
		WebSocket: wsHub.HandleWebSocket,
	}, cfg.FrontendURL)

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("tubetrack backend ready",
			zap.String("api", fmt.Sprintf("http://%s/api/v1", cfg.ListenAddr())),
			zap.String("ws", fmt.Sprintf("ws://%s/api/v1/ws", cfg.ListenAddr())),
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	// Graceful shutdown
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := coord.Shutdown(shutdownCtx); err != nil {
		logger.Warn("background refreshes abandoned", zap.Error(err))
	}
	balanceSync.Stop()
	workerPool.Stop()
	wsHub.Close()

	if err := logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
		fmt.Fprintf(os.Stderr, "logger sync: %v\n", err)
	}
}
