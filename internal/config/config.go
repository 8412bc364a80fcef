package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/feral-file/ff-marketplace/internal/domain"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	SubjectPrefix  string        `mapstructure:"subject_prefix"`
	ConsumerName   string        `mapstructure:"consumer_name"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
	AckWait        time.Duration `mapstructure:"ack_wait"`
	MaxDeliver     int           `mapstructure:"max_deliver"`
	NakDelay       time.Duration `mapstructure:"nak_delay"`

	// DuplicateWindow is how long the stream remembers message ids for de-duplication
	DuplicateWindow time.Duration `mapstructure:"duplicate_window"`
}

// ChainConfig holds the connection and contract configuration of one EVM chain
type ChainConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ChainID         int64  `mapstructure:"chain_id"`
	RPCURL          string `mapstructure:"rpc_url"`
	WebSocketURL    string `mapstructure:"websocket_url"`
	MintContract    string `mapstructure:"mint_contract"`
	AuctionContract string `mapstructure:"auction_contract"`
	Decimals        int32  `mapstructure:"decimals"`
	StartBlock      uint64 `mapstructure:"start_block"`
}

// Chain converts the configuration into a domain chain descriptor
func (c ChainConfig) Chain(name string) domain.Chain {
	return domain.NewChain(name, c.ChainID, c.MintContract, c.AuctionContract, c.Decimals)
}

// ChainsConfig holds every configured chain by name
type ChainsConfig map[string]ChainConfig

// Enabled returns the enabled chains sorted by name
func (c ChainsConfig) Enabled() []string {
	names := make([]string, 0, len(c))
	for name, chain := range c {
		if chain.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Descriptors returns the domain descriptors of the enabled chains
func (c ChainsConfig) Descriptors() []domain.Chain {
	var chains []domain.Chain
	for _, name := range c.Enabled() {
		chains = append(chains, c[name].Chain(name))
	}
	return chains
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize  int `mapstructure:"pool_size"`
	QueueSize int `mapstructure:"queue_size"`
}

// RetryConfig holds exponential backoff configuration
type RetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

// MetricsConfig holds the prometheus endpoint configuration
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// CORSConfig holds CORS configuration of the API
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ChainEmitterConfig holds configuration for chain-emitter
type ChainEmitterConfig struct {
	BaseConfig         `mapstructure:",squash"`
	Chain              string         `mapstructure:"chain"`
	Database           DatabaseConfig `mapstructure:"database"`
	NATS               NATSConfig     `mapstructure:"nats"`
	Chains             ChainsConfig   `mapstructure:"chains"`
	Retry              RetryConfig    `mapstructure:"retry"`
	CheckpointInterval time.Duration  `mapstructure:"checkpoint_interval"`
	CheckpointBlocks   uint64         `mapstructure:"checkpoint_blocks"`
}

// ReconcilerConfig holds configuration for reconciler
type ReconcilerConfig struct {
	BaseConfig `mapstructure:",squash"`
	// Source selects where raw events come from: "nats", "chain" or "replay"
	Source     string         `mapstructure:"source"`
	ReplayFile string         `mapstructure:"replay_file"`
	Database   DatabaseConfig `mapstructure:"database"`
	NATS       NATSConfig     `mapstructure:"nats"`
	Chains     ChainsConfig   `mapstructure:"chains"`
	Worker     WorkerConfig   `mapstructure:"worker"`
	Dispatcher WorkerConfig   `mapstructure:"dispatcher"`
	Retry      RetryConfig    `mapstructure:"retry"`
	Metrics    MetricsConfig  `mapstructure:"metrics"`
}

// APIConfig holds configuration for api
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Database   DatabaseConfig `mapstructure:"database"`
	Server     ServerConfig   `mapstructure:"server"`
	CORS       CORSConfig     `mapstructure:"cors"`
}

const (
	SourceNATS   = "nats"
	SourceChain  = "chain"
	SourceReplay = "replay"
)

// LoadChainEmitterConfig loads configuration for chain-emitter
func LoadChainEmitterConfig(configFile string, envPath string) (*ChainEmitterConfig, error) {
	v := configureViper("chain-emitter", configFile, envPath)

	setDatabaseDefaults(v)
	setNATSDefaults(v)
	setChainDefaults(v)
	setRetryDefaults(v)
	v.SetDefault("chain", domain.CHAIN_ETHEREUM)
	v.SetDefault("checkpoint_interval", "30s")
	v.SetDefault("checkpoint_blocks", 2)

	var cfg ChainEmitterConfig
	if err := readAndUnmarshal(v, &cfg); err != nil {
		return nil, err
	}

	if _, ok := cfg.Chains[cfg.Chain]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownChain, cfg.Chain)
	}

	return &cfg, nil
}

// LoadReconcilerConfig loads configuration for reconciler
func LoadReconcilerConfig(configFile string, envPath string) (*ReconcilerConfig, error) {
	v := configureViper("reconciler", configFile, envPath)

	setDatabaseDefaults(v)
	setNATSDefaults(v)
	setChainDefaults(v)
	setRetryDefaults(v)
	v.SetDefault("source", SourceNATS)
	v.SetDefault("nats.consumer_name", "reconciler")
	v.SetDefault("worker.pool_size", 4)
	v.SetDefault("worker.queue_size", 1024)
	v.SetDefault("dispatcher.pool_size", 8)
	v.SetDefault("metrics.address", ":9090")

	var cfg ReconcilerConfig
	if err := readAndUnmarshal(v, &cfg); err != nil {
		return nil, err
	}

	switch cfg.Source {
	case SourceNATS, SourceChain:
	case SourceReplay:
		if cfg.ReplayFile == "" {
			return nil, fmt.Errorf("source %q requires replay_file", SourceReplay)
		}
	default:
		return nil, fmt.Errorf("invalid source %q: must be %q, %q or %q", cfg.Source, SourceNATS, SourceChain, SourceReplay)
	}

	return &cfg, nil
}

// LoadAPIConfig loads configuration for api
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	setDatabaseDefaults(v)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("server.idle_timeout", 60)
	v.SetDefault("cors.allowed_origins", []string{"*"})

	var cfg APIConfig
	if err := readAndUnmarshal(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDatabaseDefaults(v *viper.Viper) {
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
}

func setNATSDefaults(v *viper.Viper) {
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream_name", "MARKETPLACE_RAW_EVENTS")
	v.SetDefault("nats.subject_prefix", "marketplace.raw")
	v.SetDefault("nats.ack_wait", "30s")
	v.SetDefault("nats.max_deliver", 10)
	v.SetDefault("nats.nak_delay", "5s")
	v.SetDefault("nats.duplicate_window", "2h")
}

func setChainDefaults(v *viper.Viper) {
	v.SetDefault("chains.ethereum.enabled", true)
	v.SetDefault("chains.ethereum.chain_id", 1)
	v.SetDefault("chains.ethereum.decimals", domain.DEFAULT_DECIMALS)
	v.SetDefault("chains.polygon.enabled", false)
	v.SetDefault("chains.polygon.chain_id", 137)
	v.SetDefault("chains.polygon.decimals", domain.DEFAULT_DECIMALS)
}

func setRetryDefaults(v *viper.Viper) {
	v.SetDefault("retry.initial_interval", "1s")
	v.SetDefault("retry.max_interval", "1m")
	v.SetDefault("retry.max_elapsed_time", "0s")
}

// readAndUnmarshal reads the config file, tolerating its absence, and decodes it into cfg
func readAndUnmarshal(v *viper.Viper, cfg any) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	loadEnv(envPath, service)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("FF_MARKETPLACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		"chain",
		"source",
		"replay_file",
		"checkpoint_interval",
		"checkpoint_blocks",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		"database.auto_migrate",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.subject_prefix",
		"nats.consumer_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		"nats.ack_wait",
		"nats.max_deliver",
		"nats.nak_delay",
		"nats.duplicate_window",
		// Workers
		"worker.pool_size",
		"worker.queue_size",
		"dispatcher.pool_size",
		"dispatcher.queue_size",
		// Retry
		"retry.initial_interval",
		"retry.max_interval",
		"retry.max_elapsed_time",
		// Metrics
		"metrics.address",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		"cors.allowed_origins",
	}

	for _, chain := range []string{domain.CHAIN_ETHEREUM, domain.CHAIN_POLYGON} {
		for _, field := range []string{"enabled", "chain_id", "rpc_url", "websocket_url", "mint_contract", "auction_contract", "decimals", "start_block"} {
			keys = append(keys, fmt.Sprintf("chains.%s.%s", chain, field))
		}
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		_ = godotenv.Overload(filepath.Join(envPath, envFile))
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
