package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"campus-referral-engine/config"
	"campus-referral-engine/handlers"
	"campus-referral-engine/middleware"
	"campus-referral-engine/services"
	"campus-referral-engine/source"
	"campus-referral-engine/store"
	"campus-referral-engine/utils"
	"campus-referral-engine/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration: ", err)
	}
	logger, err := utils.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to build logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}
	if cfg.AllowlistSeedPath != "" {
		n, err := db.SeedAllowList(ctx, cfg.AllowlistSeedPath)
		if err != nil {
			logger.Fatal("failed to seed allow-list", zap.Error(err))
		}
		logger.Info("✅ allow-list seeded", zap.Int("domains", n), zap.String("path", cfg.AllowlistSeedPath))
	}

	src, err := source.Connect(ctx, cfg.SourceDatabaseURL, cfg.SourcePasswordColumn, logger)
	if err != nil {
		logger.Fatal("failed to connect to product database", zap.Error(err))
	}
	defer src.Close()

	var archiver services.RunArchiver
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Archiver(ctx, utils.R2Options{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			AccessKeySecret: cfg.R2.AccessKeySecret,
			Bucket:          cfg.R2.Bucket,
			Prefix:          cfg.R2.Prefix,
		})
		if err != nil {
			logger.Fatal("failed to initialize R2 client", zap.Error(err))
		}
		archiver = r2
	}

	clock := clockwork.NewRealClock()
	policy := services.NewPolicy(cfg.UnlockThreshold, cfg.UnrestrictedEmails, cfg.UnrestrictedCampusDomain)
	tokens := services.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL, clock)

	ingestService := services.NewIngestService(services.IngestDeps{
		Store:  db,
		Source: src,
		Policy: policy,
		Config: services.IngestConfig{
			BatchLimit: cfg.IngestBatchLimit,
			Budget:     cfg.IngestBudget,
			LeaseTTL:   cfg.LeaseTTL,
			Epoch:      cfg.IngestEpoch,
			Location:   cfg.Location,
		},
		Clock:    clock,
		Archiver: archiver,
		Logger:   logger,
	})
	analyticsService := services.NewAnalyticsService(db, src, policy, cfg.Location, clock, logger)
	participantService := services.NewParticipantService(db, src, policy, cfg.Location, clock, logger)
	joinService := services.NewJoinService(db, src, tokens, policy, cfg.Location, clock, logger)

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 70 * time.Second,
	})
	app.Use(middleware.RequestLogger(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	auth := middleware.ParticipantAuthMiddleware(tokens, logger)
	handlers.SetupIngestRoutes(app, ingestService, db, cfg.CronSecret, logger)
	handlers.SetupAuthRoutes(app, joinService, logger)
	handlers.SetupAnalyticsRoutes(app, analyticsService, auth, logger)
	handlers.SetupParticipantRoutes(app, participantService, auth, logger)
	handlers.SetupHealthRoutes(app, handlers.HealthDeps{
		Database:     db,
		Source:       src,
		CountDomains: db.CountAllowedDomains,
		Env: map[string]bool{
			"DATABASE_URL":        cfg.DatabaseURL != "",
			"SOURCE_DATABASE_URL": cfg.SourceDatabaseURL != "",
			"JWT_SECRET":          cfg.JWTSecret != "",
		},
		Clock: clock.Now,
	})

	if cfg.IngestInterval > 0 {
		sched, err := workers.NewIngestScheduler(ingestService, cfg.IngestInterval, logger)
		if err != nil {
			logger.Fatal("failed to create ingestion scheduler", zap.Error(err))
		}
		if err := sched.Start(ctx); err != nil {
			logger.Fatal("failed to start ingestion scheduler", zap.Error(err))
		}
		defer sched.Shutdown() //nolint:errcheck
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()

	logger.Info("✅ Server running", zap.String("port", cfg.Port), zap.Strings("origins", cfg.AllowedOrigins))

	<-ctx.Done()
	logger.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
}
