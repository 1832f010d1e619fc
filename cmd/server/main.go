package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quest-server/internal/auth"
	"quest-server/internal/config"
	"quest-server/internal/handler"
	"quest-server/internal/messaging"
	"quest-server/internal/narration"
	"quest-server/internal/quest"
	"quest-server/internal/referral"
	"quest-server/migrations"
	"quest-server/pkg/database"
	sharedLogger "quest-server/pkg/logger"
	"quest-server/pkg/middleware"
	"quest-server/pkg/migration"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env-file", ".env", "Path to .env file")
	migrateDown := flag.Bool("migrate-down", false, "Roll back all migrations and exit")
	generateCodes := flag.Int("generate-codes", 0, "Top up unused initial invite codes to N, print new ones and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := sharedLogger.New(sharedLogger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
		Service:  "quest-server",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	zap.L().Info("Logger initialized successfully", zap.String("logLevel", cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, database.Config{
		DSN:             cfg.GetDSN(),
		MaxConns:        cfg.DBMaxConns,
		MaxConnIdleTime: cfg.DBIdleTime,
		MaxRetries:      50,
		RetryDelay:      3 * time.Second,
	}, logger)
	if err != nil {
		zap.L().Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	migrator := migration.NewMigrator(migration.Config{MigrationsFS: migrations.FS}, db.Pool, logger)
	if *migrateDown {
		if err := migrator.Down(); err != nil {
			zap.L().Fatal("Failed to roll back migrations", zap.Error(err))
		}
		return
	}
	if err := migrator.Up(); err != nil {
		zap.L().Fatal("Failed to apply migrations", zap.Error(err))
	}
	if version, dirty, err := migrator.Version(); err == nil {
		zap.L().Info("Database schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}

	referralSvc := referral.NewService(db.Pool, referral.NewPgRepository(logger), logger)
	if *generateCodes > 0 {
		created, err := referralSvc.GenerateInitial(ctx, *generateCodes)
		if err != nil {
			zap.L().Fatal("Failed to generate initial invite codes", zap.Error(err))
		}
		for _, code := range created {
			fmt.Println(code)
		}
		zap.L().Info("Initial invite codes generated", zap.Int("created", len(created)))
		return
	}

	// Реферальный бэкенд: встроенный или внешний сервис.
	var referralGate quest.ReferralGate = referral.NewLocalGate(referralSvc)
	var admin handler.InitialCodeGenerator = referralSvc
	if cfg.ReferralServiceURL != "" {
		referralGate = referral.NewHTTPClient(cfg.ReferralServiceURL, nil, logger)
		admin = nil
		zap.L().Info("Using external referral service", zap.String("url", cfg.ReferralServiceURL))
	}

	store, closeStore, err := setupSessionStore(ctx, cfg, logger)
	if err != nil {
		zap.L().Fatal("Failed to set up session store", zap.Error(err))
	}
	defer closeStore()

	settlementFactory, err := setupSettlement(ctx, cfg, logger)
	if err != nil {
		zap.L().Fatal("Failed to set up token settlement", zap.Error(err))
	}

	provider, err := narration.NewProvider(narration.Config{
		Provider:  cfg.AIProvider,
		APIKey:    cfg.AIAPIKey,
		BaseURL:   cfg.AIBaseURL,
		Model:     cfg.AIModel,
		OllamaURL: cfg.OllamaURL,
		Timeout:   cfg.AITimeout,
	}, logger)
	if err != nil {
		zap.L().Fatal("Failed to create narration provider", zap.Error(err))
	}
	narrator, err := narration.NewClient(provider, narration.Options{CacheSize: cfg.AICacheSize, Timeout: cfg.AITimeout}, logger)
	if err != nil {
		zap.L().Fatal("Failed to create narration client", zap.Error(err))
	}

	catalog, err := quest.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		zap.L().Fatal("Failed to load quest catalog", zap.Error(err))
	}

	hub := handler.NewHub(logger)
	defer hub.Close()
	sinks := []quest.EventSink{hub}

	if cfg.RabbitMQURL != "" {
		mqConn, err := connectRabbitMQ(cfg.RabbitMQURL, logger)
		if err != nil {
			zap.L().Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer mqConn.Close()
		publisher, err := messaging.NewRabbitMQEventPublisher(mqConn, cfg.EventsExchange, logger)
		if err != nil {
			zap.L().Fatal("Failed to create event publisher", zap.Error(err))
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}

	sessions, err := quest.NewManager(quest.Environment{
		Store:      store,
		Narrator:   narrator,
		Referral:   referralGate,
		Settlement: settlementFactory,
		Sinks:      sinks,
		Counter:    narration.NewTokenCounter(cfg.AIModel, logger),
		Options: quest.Options{
			Catalog:            catalog,
			InteractionCost:    cfg.InteractionCost,
			HistoryTokenBudget: cfg.HistoryTokenLimit,
		},
	}, cfg.MaxSessions, cfg.SessionIdleTTL, logger)
	if err != nil {
		zap.L().Fatal("Failed to create session manager", zap.Error(err))
	}

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		zap.L().Fatal("Failed to create token manager", zap.Error(err))
	}
	authSvc := auth.NewService(auth.NewPgUserRepository(db.Pool, logger), tokens, logger)

	questHandler := handler.NewQuestHandler(handler.Deps{
		Login:         authSvc,
		Tokens:        tokens,
		Referral:      referralGate,
		Sessions:      sessions,
		Hub:           hub,
		Admin:         admin,
		AdminToken:    cfg.AdminToken,
		ClearOnLogout: cfg.ClearOnLogout,
	}, logger)

	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(middleware.RequestID())
	router.Use(middleware.ZapLogger(logger))
	router.Use(gin.Recovery())

	p := ginprometheus.NewPrometheus("gin")

	corsConfig := cors.DefaultConfig()
	allowedOrigins := cfg.GetAllowedOrigins()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
		zap.L().Info("CORSAllowedOrigins not set, allowing default", zap.String("origin", "http://localhost:3000"))
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID", "X-Admin-Token"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	questHandler.RegisterRoutes(router)

	p.Use(router)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
		// Списание ждет подтверждения транзакции, поэтому запись ответа может быть долгой.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SettlementTimeout + cfg.AITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	zap.L().Info("Starting HTTP server", zap.String("port", cfg.ServerPort))

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	zap.L().Info("Server exiting")
}
