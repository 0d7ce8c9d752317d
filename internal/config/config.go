package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// API server configuration
	API APIConfig

	// On-chain price oracle configuration
	Oracle OracleConfig

	// Rebalancing policy defaults
	Strategy StrategyConfig

	// Logging configuration
	Log LogConfig
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"rebalancer"`
	Password        string        `envconfig:"DB_PASSWORD" default:"rebalancer"`
	Name            string        `envconfig:"DB_NAME" default:"stage_rebalancer"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	MigrationsPath  string        `envconfig:"DB_MIGRATIONS_PATH" default:"migrations"`

	// Startup waits for the database this many extra times
	ConnectRetries    int           `envconfig:"DB_CONNECT_RETRIES" default:"5"`
	ConnectRetryDelay time.Duration `envconfig:"DB_CONNECT_RETRY_DELAY" default:"2s"`

	// Apply pending migrations when the API starts
	AutoMigrate bool `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Host            string        `envconfig:"API_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"API_PORT" default:"3001"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    int           `envconfig:"API_RATE_LIMIT_RPS" default:"100"`
	CacheTTL        time.Duration `envconfig:"API_CACHE_TTL" default:"30s"`
	MaxBodyBytes    int64         `envconfig:"API_MAX_BODY_BYTES" default:"1048576"`
}

// OracleConfig holds settings for the Chainlink price feed poller
type OracleConfig struct {
	RPCURL         string        `envconfig:"ORACLE_RPC_URL" default:"https://mainnet.base.org"`
	ChainID        int64         `envconfig:"ORACLE_CHAIN_ID" default:"8453"`
	RequestTimeout time.Duration `envconfig:"ORACLE_REQUEST_TIMEOUT" default:"15s"`
	MaxRetries     int           `envconfig:"ORACLE_MAX_RETRIES" default:"3"`
	RetryDelay     time.Duration `envconfig:"ORACLE_RETRY_DELAY" default:"1s"`
	PollInterval   time.Duration `envconfig:"ORACLE_POLL_INTERVAL" default:"5m"`
	MaxStaleness   time.Duration `envconfig:"ORACLE_MAX_STALENESS" default:"2h"`
	WorkerCount    int           `envconfig:"ORACLE_WORKER_COUNT" default:"2"`
	MetricsPort    int           `envconfig:"ORACLE_METRICS_PORT" default:"9090"`

	// Chainlink aggregator proxies on Base
	ETHUSDFeed string `envconfig:"ORACLE_ETH_USD_FEED" default:"0x71041dddad3595F9CEd3DcCFBe3D1F4b0a16Bb70"`
	SOLUSDFeed string `envconfig:"ORACLE_SOL_USD_FEED" default:"0x975043adBb80fc32276CbF9Bbcfd4A601a12462D"`
}

// StrategyConfig holds the rebalancing policy defaults applied when a
// request does not override them
type StrategyConfig struct {
	DefaultStage     int      `envconfig:"STRATEGY_DEFAULT_STAGE" default:"4"`
	TrimThresholdPct float64  `envconfig:"STRATEGY_TRIM_THRESHOLD_PCT" default:"5"`
	RefillOnly       bool     `envconfig:"STRATEGY_REFILL_ONLY" default:"true"`
	StableSymbols    []string `envconfig:"STRATEGY_STABLE_SYMBOLS" default:"USDC"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment wins.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	if c.Strategy.DefaultStage < 1 || c.Strategy.DefaultStage > 5 {
		return fmt.Errorf("STRATEGY_DEFAULT_STAGE must be 1-5, got %d", c.Strategy.DefaultStage)
	}
	if t := c.Strategy.TrimThresholdPct; math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return fmt.Errorf("STRATEGY_TRIM_THRESHOLD_PCT must be a non-negative finite number, got %v", t)
	}
	if len(c.Strategy.StableSymbols) == 0 {
		return errors.New("STRATEGY_STABLE_SYMBOLS must name at least one symbol")
	}
	if c.Oracle.WorkerCount < 1 {
		return fmt.Errorf("ORACLE_WORKER_COUNT must be positive, got %d", c.Oracle.WorkerCount)
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as golang-migrate expects
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}
