// questcli терминальный клиент квеста: одна сессия кошелька в этом процессе.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"quest-server/internal/config"
	"quest-server/internal/narration"
	"quest-server/internal/quest"
	"quest-server/internal/referral"
	"quest-server/internal/settlement"
	"quest-server/internal/storage"
	"quest-server/internal/tui"
	"quest-server/pkg/database"
	sharedLogger "quest-server/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	envFile := flag.String("env-file", ".env", "Path to .env file")
	wallet := flag.String("wallet", "", "Wallet address to play as (required)")
	dbPath := flag.String("db", "", "SQLite file for the session record (default SQLITE_PATH)")
	offline := flag.Bool("offline", false, "Use the offline narrator regardless of AI settings")
	logPath := flag.String("log", "questcli.log", "Log file path")
	flag.Parse()

	if *wallet == "" {
		fmt.Fprintln(os.Stderr, "Usage: questcli -wallet 0x... [-db quest.db] [-offline] [-env-file .env]")
		os.Exit(2)
	}

	if err := run(*envFile, *wallet, *dbPath, *logPath, *offline); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile, wallet, dbPath, logPath string, offline bool) error {
	cfg, err := config.LoadClientConfig(envFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Экран занят интерфейсом, поэтому журнал пишется в файл.
	logger, err := sharedLogger.New(sharedLogger.Config{
		Level:      cfg.LogLevel,
		Encoding:   "json",
		OutputPath: logPath,
		Service:    "questcli",
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if dbPath == "" {
		dbPath = cfg.SQLitePath
	}
	store, err := storage.OpenSQLiteStore(dbPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	gate, closeGate, err := referralGate(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeGate()

	factory, err := settlement.Open(ctx, settlement.OpenConfig{
		Mode:           cfg.SettlementMode,
		InitialBalance: cfg.LedgerInitialBalance,
		RPCURL:         cfg.ChainRPCURL,
		SignerKey:      cfg.SignerKey,
		ERC20: settlement.ERC20Config{
			TokenAddress:    cfg.TokenContract,
			TreasuryAddress: cfg.TreasuryAddress,
			ChainID:         cfg.ChainID,
			Timeout:         cfg.SettlementTimeout,
		},
	}, logger)
	if err != nil {
		return err
	}
	settler, err := factory(wallet)
	if err != nil {
		return err
	}

	narrator, err := newNarrator(cfg, offline, logger)
	if err != nil {
		return err
	}

	catalog, err := quest.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	session, err := quest.NewSession(wallet, quest.Deps{
		Store:    store,
		Narrator: narrator,
		Referral: gate,
		Settler:  settler,
		Counter:  narration.NewTokenCounter(cfg.AIModel, logger),
		Logger:   logger,
	}, quest.Options{
		Catalog:            catalog,
		InteractionCost:    cfg.InteractionCost,
		HistoryTokenBudget: cfg.HistoryTokenLimit,
	})
	if err != nil {
		return err
	}

	logger.Info("Starting terminal client", zap.String("wallet", session.Wallet()), zap.String("db", dbPath))
	return tui.Run(session)
}

// referralGate использует внешний сервис, если он задан, иначе базу PostgreSQL.
func referralGate(ctx context.Context, cfg *config.Config, logger *zap.Logger) (quest.ReferralGate, func(), error) {
	if cfg.ReferralServiceURL != "" {
		return referral.NewHTTPClient(cfg.ReferralServiceURL, nil, logger), func() {}, nil
	}
	db, err := database.Connect(ctx, database.Config{
		DSN:        cfg.GetDSN(),
		MaxConns:   2,
		MaxRetries: 1,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("referral backend unavailable (set REFERRAL_SERVICE_URL or configure PostgreSQL): %w", err)
	}
	svc := referral.NewService(db.Pool, referral.NewPgRepository(logger), logger)
	return referral.NewLocalGate(svc), db.Close, nil
}

func newNarrator(cfg *config.Config, offline bool, logger *zap.Logger) (*narration.Client, error) {
	opts := narration.Options{CacheSize: cfg.AICacheSize, Timeout: cfg.AITimeout}
	if offline {
		return narration.NewClient(nil, opts, logger)
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
		return nil, err
	}
	return narration.NewClient(provider, opts, logger)
}
