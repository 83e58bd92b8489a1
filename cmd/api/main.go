package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kb-advisor/backend/internal/api/handlers"
	"github.com/kb-advisor/backend/internal/cache/redis"
	"github.com/kb-advisor/backend/internal/learning"
	"github.com/kb-advisor/backend/internal/metrics"
	"github.com/kb-advisor/backend/internal/middleware/ratelimit"
	"github.com/kb-advisor/backend/internal/middleware/security"
	"github.com/kb-advisor/backend/internal/middleware/validation"
	"github.com/kb-advisor/backend/internal/ranker"
	"github.com/kb-advisor/backend/internal/storage/sqlite"
	"github.com/kb-advisor/backend/internal/suggest"
	"github.com/kb-advisor/backend/pkg/config"
	appLogger "github.com/kb-advisor/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting KB Advisor API Server")

	metrics.Init()

	store, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer store.Close()

	if err := store.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cache suggest.Cache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without suggestion cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			cache = redisClient
		}
	}

	loop := learning.NewLoop(learning.Config{
		MinTrainingCases:    cfg.Learning.MinTrainingCases,
		RetrainThreshold:    cfg.Learning.RetrainThreshold,
		DisagreementPenalty: cfg.Learning.DisagreementPenalty,
		SnapshotPath:        cfg.Learning.SnapshotPath,
	}, store)

	statsStore := ranker.NewStatsStore()
	seedEffectiveness(store, statsStore)

	engine := suggest.NewEngine(store, cache, loop, statsStore, suggest.Config{
		Weights: ranker.Weights{
			Similarity:           cfg.Ranking.SimilarityWeight,
			Effectiveness:        cfg.Ranking.EffectivenessWeight,
			Staleness:            cfg.Ranking.StalenessWeight,
			StalenessHorizonDays: cfg.Ranking.StalenessHorizonDays,
		},
		MaxSuggestions: cfg.Ranking.MaxSuggestions,
	})

	// Fit at boot when no usable snapshot was restored.
	if !loop.Current().Trained() {
		loop.RetrainAsync(context.Background())
	}

	scheduler := startRetrainSchedule(cfg.Learning.RetrainSchedule, engine)
	if scheduler != nil {
		defer scheduler.Stop()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{})
	defer limiter.Stop()
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		MaxDocumentSize: cfg.Server.BodyLimit,
	}))

	suggestHandler := handlers.NewSuggestHandler(engine)
	caseHandler := handlers.NewCaseHandler(store, engine)
	feedbackHandler := handlers.NewFeedbackHandler(engine)
	documentHandler := handlers.NewDocumentHandler(engine)
	statsHandler := handlers.NewStatsHandler(engine, store)
	wsHandler := handlers.NewWebSocketHandler(engine)

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")

	api.Post("/suggest", suggestHandler.HandleSuggest)

	api.Post("/cases", caseHandler.HandleCreate)
	api.Get("/cases", caseHandler.HandleList)
	api.Get("/cases/:id", caseHandler.HandleGet)
	api.Put("/cases/:id", caseHandler.HandleUpdate)
	api.Delete("/cases/:id", caseHandler.HandleDelete)
	api.Post("/cases/:id/feedback", feedbackHandler.HandleSubmit)

	api.Post("/documents", documentHandler.HandleIngest)

	api.Get("/learning/stats", statsHandler.HandleStats)
	api.Post("/learning/retrain", statsHandler.HandleRetrain)
	api.Get("/dashboard", statsHandler.HandleDashboard)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/ws", websocket.New(wsHandler.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if _, err := store.CountCases(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
			})
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

// seedEffectiveness restores the in-memory feedback aggregates from the
// per-case columns so rankings survive restarts.
func seedEffectiveness(store *sqlite.Client, stats *ranker.StatsStore) {
	cases, err := store.ListCases(context.Background())
	if err != nil {
		appLogger.Warn("Failed to seed effectiveness stats", zap.Error(err))
		return
	}
	seeded := 0
	for _, cs := range cases {
		if cs.EffectivenessScore != nil && cs.FeedbackCount > 0 {
			stats.Seed(cs.ID, *cs.EffectivenessScore, cs.FeedbackCount)
			seeded++
		}
	}
	appLogger.Info("Effectiveness stats seeded", zap.Int("cases", seeded))
}

// startRetrainSchedule arranges the optional periodic retraining sweep.
// It picks up corpus edits that never crossed a trigger threshold.
func startRetrainSchedule(schedule string, engine *suggest.Engine) *cron.Cron {
	if schedule == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := engine.RetrainNow(ctx); err != nil && !errors.Is(err, learning.ErrInsufficientData) {
			appLogger.Error("Scheduled retraining failed", zap.Error(err))
		}
	})
	if err != nil {
		appLogger.Warn("Invalid retrain schedule, sweep disabled",
			zap.String("schedule", schedule),
			zap.Error(err),
		)
		return nil
	}

	c.Start()
	appLogger.Info("Retrain schedule started", zap.String("schedule", schedule))
	return c
}
