package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/utils"
	"go.uber.org/zap"

	"retailku_backend/internals/configs"
	database "retailku_backend/internals/databases"
	"retailku_backend/internals/features/finance/collections/binder"
	"retailku_backend/internals/features/finance/collections/collaborator"
	collectionController "retailku_backend/internals/features/finance/collections/controller"
	"retailku_backend/internals/features/finance/collections/model"
	"retailku_backend/internals/features/finance/collections/repository"
	"retailku_backend/internals/features/finance/collections/service"
	"retailku_backend/internals/features/finance/collections/validator"
	middlewares "retailku_backend/internals/middlewares"
	routes "retailku_backend/internals/route"
)

func main() {
	configs.LoadEnv()

	logger, err := configs.NewLogger()
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	colCfg := configs.LoadCollectionConfig()
	if err := colCfg.Validate(); err != nil {
		logger.Fatal("collection config invalid", zap.Error(err))
	}
	if configs.JWTSecret == "" {
		logger.Fatal("JWT_SECRET wajib diisi")
	}

	app := fiber.New(fiber.Config{
		// 🚀 JSON super cepat
		JSONEncoder:             sonic.Marshal,
		JSONDecoder:             sonic.Unmarshal,
		DisableStartupMessage:   true,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          configs.GetEnvList("TRUSTED_PROXIES", "0.0.0.0/0"),
	})

	// ⚙️ middleware dasar + performa
	app.Use(compress.New(compress.Config{Level: compress.LevelDefault})) // gzip
	app.Use(etag.New())                                                  // 304 caching

	// 🔎 Request-ID + timeout guard
	app.Use(func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = utils.UUID()
		}
		c.Set("X-Request-ID", id)
		c.Locals("reqid", id)
		// complete = create voucher + submit, jadi lebih longgar dari statement_timeout DB
		ctx, cancel := context.WithTimeout(c.Context(), colCfg.RequestTimeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	})

	middlewares.SetupMiddlewares(app, logger)

	// 🔌 DB connect + pool + warm-up
	database.ConnectDB(logger)
	database.TunePool()
	if configs.GetEnv("DB_AUTO_MIGRATE", "false") == "true" {
		if err := database.Migrate(); err != nil {
			logger.Fatal("migrate journal tables", zap.Error(err))
		}
	}
	database.WarmUpQueries()

	// ===================== collections wiring =====================
	store := service.NewSessionStore(colCfg.SessionTTL)
	sweeper, err := service.StartSessionSweeper(store, colCfg.SweepSchedule, logger)
	if err != nil {
		logger.Fatal("session sweeper", zap.Error(err))
	}

	flowPaths := make(map[model.Flow]string, len(colCfg.FlowPaths))
	for f, p := range colCfg.FlowPaths {
		flowPaths[model.Flow(f)] = p
	}
	client := collaborator.New(collaborator.Config{
		BaseURL:             colCfg.CollabBaseURL,
		Token:               colCfg.CollabToken,
		Timeout:             colCfg.CollabTimeout,
		FlowPaths:           flowPaths,
		OpenTimeout:         colCfg.BreakerOpenTimeout,
		ConsecutiveFailures: uint32(colCfg.BreakerFailures),
	}, logger)

	rejectFuture := map[model.Flow]bool{}
	for _, f := range colCfg.RejectFutureChequeFlows {
		rejectFuture[model.Flow(f)] = true
	}

	journal := repository.NewJournalRepository(database.DB)
	compensator := binder.NewJournalCompensator(journal, store.CustomerOf)

	svc := service.NewCollectionService(service.Deps{
		Store: store,
		Validator: validator.New(validator.Config{
			ChequeTrailingDays:      colCfg.ChequeTrailingDays,
			RejectFutureChequeFlows: rejectFuture,
		}),
		Binder: binder.New(client, compensator, binder.Config{
			DefaultValidityDays: int64(colCfg.VoucherValidityDays),
		}, logger),
		Vouchers:    client,
		Submitter:   client,
		Compensator: compensator,
		Journal:     journal,
		Log:         logger,
	})

	// ✅ Routes
	routes.SetupRoutes(app, database.DB, routes.Deps{
		JWTSecret:   configs.JWTSecret,
		Collections: collectionController.NewCollectionController(svc, journal, logger),
	})

	// 🔒 Keep-Alive & timeout koneksi server
	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	// Start server non-blocking
	go func() {
		logger.Info("✅ Listening", zap.String("port", port))
		if err := app.Listen("0.0.0.0:" + port); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown + tutup pool DB
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	<-sweeper.Stop().Done()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)

	database.Close()
}
