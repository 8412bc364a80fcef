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

	"github.com/alitto/pond/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/feral-file/ff-marketplace/internal/adapter"
	"github.com/feral-file/ff-marketplace/internal/bridge"
	"github.com/feral-file/ff-marketplace/internal/config"
	"github.com/feral-file/ff-marketplace/internal/dispatcher"
	"github.com/feral-file/ff-marketplace/internal/logger"
	"github.com/feral-file/ff-marketplace/internal/normalizer"
	"github.com/feral-file/ff-marketplace/internal/providers/ethereum"
	"github.com/feral-file/ff-marketplace/internal/providers/jetstream"
	"github.com/feral-file/ff-marketplace/internal/reconciler"
	"github.com/feral-file/ff-marketplace/internal/sideeffects"
	"github.com/feral-file/ff-marketplace/internal/source"
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
	cfg, err := config.LoadReconcilerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "reconciler",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Reconciler", zap.String("source", cfg.Source))

	chains := cfg.Chains.Descriptors()
	if len(chains) == 0 {
		logger.FatalCtx(ctx, "No chain is enabled")
	}

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
	ethDialer := adapter.NewEthClientDialer()

	// Chain readers resolve token URIs and auction state; chains without an RPC URL
	// are reconciled from event payloads alone
	readers := make(map[string]reconciler.ChainReader)
	for _, chain := range chains {
		rpcURL := cfg.Chains[chain.Name].RPCURL
		if rpcURL == "" {
			logger.WarnCtx(ctx, "No RPC URL configured, contract reads are disabled", zap.String("chain", chain.Name))
			continue
		}

		client, err := ethDialer.Dial(ctx, rpcURL)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to dial chain RPC", zap.Error(err), zap.String("chain", chain.Name))
		}
		defer client.Close()
		readers[chain.Name] = ethereum.NewReader(chain, client, clockAdapter)
	}

	// Side effects are written by the dispatcher after each committed transition
	sideEffects := dispatcher.New(dispatcher.Config{Workers: cfg.Dispatcher.PoolSize})
	defer sideEffects.Close()
	sideeffects.Register(sideEffects, dataStore)

	engine := reconciler.New(reconciler.Config{Chains: chains}, dataStore, readers, sideEffects, clockAdapter)
	eventNormalizer := normalizer.New(chains)

	sources, err := newSources(ctx, cfg, dataStore, ethDialer, clockAdapter, jsonAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create event sources", zap.Error(err))
	}

	// Serve metrics
	metricsServer := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           metricsHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCtx(ctx, err, zap.String("component", "metrics"))
		}
	}()
	logger.InfoCtx(ctx, "Serving metrics", zap.String("address", cfg.Metrics.Address))

	// Events of one chain are applied in order; chains run side by side
	pool := pond.NewPool(len(sources), pond.WithContext(ctx))
	defer pool.StopAndWait()

	tasks := make([]pond.Task, 0, len(sources))
	for _, chain := range chains {
		eventSource, ok := sources[chain.Name]
		if !ok {
			continue
		}

		b := bridge.NewBridge(bridge.Config{
			Chain:                chain.Name,
			StartBlock:           cfg.Chains[chain.Name].StartBlock,
			RetryInitialInterval: cfg.Retry.InitialInterval,
			RetryMaxInterval:     cfg.Retry.MaxInterval,
			RetryMaxElapsedTime:  cfg.Retry.MaxElapsedTime,
		}, eventSource, eventNormalizer, engine)
		defer b.Close()

		tasks = append(tasks, pool.SubmitErr(func() error {
			return b.Run(ctx)
		}))
	}

	done := make(chan error, 1)
	go func() {
		var errs []error
		for _, task := range tasks {
			if err := task.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				errs = append(errs, err)
			}
		}
		done <- errors.Join(errs...)
	}()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or for every bridge to finish
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			logger.ErrorCtx(ctx, err, zap.String("component", "bridge"))
		} else {
			logger.InfoCtx(ctx, "All event sources exhausted")
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, zap.String("component", "metrics"))
	}

	// Use non-context logger for final shutdown message since context is already canceled
	logger.Info("Reconciler stopped")
}

// newSources creates one event source per enabled chain for the configured source kind
func newSources(
	ctx context.Context,
	cfg *config.ReconcilerConfig,
	dataStore store.Store,
	dialer adapter.EthClientDialer,
	clock adapter.Clock,
	jsonAdapter adapter.JSON,
) (map[string]source.EventSource, error) {
	sources := make(map[string]source.EventSource)

	switch cfg.Source {
	case config.SourceNATS:
		natsJS := adapter.NewNatsJetStream()
		for _, name := range cfg.Chains.Enabled() {
			sources[name] = jetstream.NewConsumer(jetstream.ConsumerConfig{
				Config: jetstream.Config{
					URL:             cfg.NATS.URL,
					StreamName:      cfg.NATS.StreamName,
					SubjectPrefix:   cfg.NATS.SubjectPrefix,
					MaxReconnects:   cfg.NATS.MaxReconnects,
					ReconnectWait:   cfg.NATS.ReconnectWait,
					ConnectionName:  fmt.Sprintf("%s-%s", cfg.NATS.ConnectionName, name),
					DuplicateWindow: cfg.NATS.DuplicateWindow,
				},
				Chain:        name,
				ConsumerName: cfg.NATS.ConsumerName,
				AckWait:      cfg.NATS.AckWait,
				MaxDeliver:   cfg.NATS.MaxDeliver,
				NakDelay:     cfg.NATS.NakDelay,
			}, natsJS, jsonAdapter)
		}

	case config.SourceChain:
		for _, name := range cfg.Chains.Enabled() {
			collections, err := dataStore.ListCollectionAddresses(ctx, name)
			if err != nil {
				return nil, err
			}
			sources[name] = ethereum.NewSource(ethereum.Config{
				Chain:        cfg.Chains[name].Chain(name),
				WebSocketURL: cfg.Chains[name].WebSocketURL,
				Collections:  collections,
			}, dialer, clock)
		}

	case config.SourceReplay:
		file, err := os.Open(cfg.ReplayFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open replay file: %w", err)
		}
		defer file.Close()

		replays, err := source.LoadChainReplays(file, jsonAdapter)
		if err != nil {
			return nil, err
		}
		for _, name := range cfg.Chains.Enabled() {
			if replay, ok := replays[name]; ok {
				sources[name] = replay
			}
		}
		for name := range replays {
			if _, ok := sources[name]; !ok {
				logger.WarnCtx(ctx, "Skipping replay events of a disabled chain", zap.String("chain", name))
			}
		}
		if len(sources) == 0 {
			return nil, fmt.Errorf("replay file %s has no events of an enabled chain", cfg.ReplayFile)
		}
	}

	return sources, nil
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
