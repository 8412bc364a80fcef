package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/feral-file/ff-marketplace/internal/adapter"
	"github.com/feral-file/ff-marketplace/internal/config"
	"github.com/feral-file/ff-marketplace/internal/emitter"
	"github.com/feral-file/ff-marketplace/internal/logger"
	"github.com/feral-file/ff-marketplace/internal/providers/ethereum"
	"github.com/feral-file/ff-marketplace/internal/providers/jetstream"
	"github.com/feral-file/ff-marketplace/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadChainEmitterConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	chainCfg := cfg.Chains[cfg.Chain]
	chain := chainCfg.Chain(cfg.Chain)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "chain-emitter",
			"chain":   cfg.Chain,
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	ctx = logger.WithFields(ctx, zap.String("chain", cfg.Chain))
	logger.InfoCtx(ctx, "Starting Chain Event Emitter")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := store.Migrate(db); err != nil {
			logger.FatalCtx(ctx, "Failed to migrate database", zap.Error(err))
		}
	}
	logger.InfoCtx(ctx, "Connected to database")

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	natsJS := adapter.NewNatsJetStream()

	// Collections deployed before this start are watched from the first subscription
	collections, err := dataStore.ListCollectionAddresses(ctx, cfg.Chain)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to load collection addresses", zap.Error(err))
	}

	// Initialize NATS publisher
	natsPublisher, err := jetstream.NewPublisher(
		ctx,
		jetstream.Config{
			URL:             cfg.NATS.URL,
			StreamName:      cfg.NATS.StreamName,
			SubjectPrefix:   cfg.NATS.SubjectPrefix,
			MaxReconnects:   cfg.NATS.MaxReconnects,
			ReconnectWait:   cfg.NATS.ReconnectWait,
			ConnectionName:  cfg.NATS.ConnectionName,
			DuplicateWindow: cfg.NATS.DuplicateWindow,
		}, natsJS, jsonAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create NATS publisher", zap.Error(err), zap.String("url", cfg.NATS.URL))
	}
	defer natsPublisher.Close()
	logger.InfoCtx(ctx, "Connected to NATS JetStream")

	// Initialize chain event source
	eventSource := ethereum.NewSource(ethereum.Config{
		Chain:        chain,
		WebSocketURL: chainCfg.WebSocketURL,
		Collections:  collections,
	}, adapter.NewEthClientDialer(), clockAdapter)
	if err := eventSource.Connect(ctx); err != nil {
		logger.FatalCtx(ctx, "Failed to connect to chain", zap.Error(err), zap.String("websocket_url", chainCfg.WebSocketURL))
	}
	logger.InfoCtx(ctx, "Connected to chain WebSocket", zap.Int("collections", len(collections)))

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	eventEmitter := emitter.NewEmitter(
		eventSource,
		natsPublisher,
		dataStore,
		emitter.Config{
			Chain:                cfg.Chain,
			StartBlock:           chainCfg.StartBlock,
			CursorSaveFreq:       cfg.CheckpointBlocks,
			CursorSaveDelay:      cfg.CheckpointInterval,
			RetryInitialInterval: cfg.Retry.InitialInterval,
			RetryMaxInterval:     cfg.Retry.MaxInterval,
			RetryMaxElapsedTime:  cfg.Retry.MaxElapsedTime,
		},
		clockAdapter,
	)
	defer eventEmitter.Close()

	// Channel for emitter completion
	errCh := make(chan error, 1)

	// Start the emitter
	go func() {
		errCh <- eventEmitter.Run(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.ErrorCtx(ctx, err, zap.String("component", "emitter"))
		}
		cancel()
	}

	// Use non-context logger for final shutdown message since context is already canceled
	logger.Info("Chain Event Emitter stopped")
}
