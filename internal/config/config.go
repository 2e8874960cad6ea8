package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	TransportNATS   = "nats"
	TransportMemory = "memory"
)

// Messaging is shared by the API and the adapter so both sides agree on
// topics and partitioning.
type Messaging struct {
	Transport       string        `env:"TRANSPORT" envDefault:"nats"`
	NatsURL         string        `env:"NATS_URL" envDefault:"nats://nats:4222"`
	Partitions      int           `env:"PARTITIONS" envDefault:"8"`
	RequestTopic    string        `env:"REQUEST_TOPIC" envDefault:"xpayment.request"`
	ResponseTopic   string        `env:"RESPONSE_TOPIC" envDefault:"xpayment.response"`
	RedeliveryDelay time.Duration `env:"REDELIVERY_DELAY" envDefault:"1s"`
}

type Config struct {
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	Port          int    `env:"PORT" envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv        string `env:"APP_ENV" envDefault:"production"`

	Messaging
	ConsumerGroup string `env:"CONSUMER_GROUP" envDefault:"payment-service"`

	// Empty disables Redis; duplicates are then caught in process memory.
	RedisURL string        `env:"REDIS_URL"`
	DedupTTL time.Duration `env:"DEDUP_TTL" envDefault:"24h"`

	OutboxInterval time.Duration `env:"OUTBOX_INTERVAL" envDefault:"5s"`
	OutboxBatch    int           `env:"OUTBOX_BATCH" envDefault:"50"`

	IdempotencyTTL      time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	IdempotencySweepInt time.Duration `env:"IDEMPOTENCY_SWEEP_INTERVAL" envDefault:"10m"`

	// Used when TRANSPORT=memory, where the simulator runs in-process.
	SimulatorDelay time.Duration `env:"SIMULATOR_DELAY" envDefault:"10s"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
	DBConnectAttempts  int `env:"DB_CONNECT_ATTEMPTS" envDefault:"30"`
}

type AdapterConfig struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`
	Port     int    `env:"PORT" envDefault:"8081"`

	Messaging
	ConsumerGroup  string        `env:"CONSUMER_GROUP" envDefault:"settlement-adapter"`
	SimulatorDelay time.Duration `env:"SIMULATOR_DELAY" envDefault:"10s"`
	// One of PROCESSING, CANCELED, SUCCEEDED; anything else is sent verbatim.
	SimulatorStatus string        `env:"SIMULATOR_STATUS" envDefault:"SUCCEEDED"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func LoadAdapter() (*AdapterConfig, error) {
	cfg, err := env.ParseAs[AdapterConfig]()
	if err != nil {
		return nil, fmt.Errorf("config.LoadAdapter: %w", err)
	}
	if err := cfg.Messaging.validate(); err != nil {
		return nil, fmt.Errorf("config.LoadAdapter: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER=%s", StoragePostgres)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.OutboxBatch < 1 {
		return fmt.Errorf("OUTBOX_BATCH must be positive")
	}
	return c.Messaging.validate()
}

func (m *Messaging) validate() error {
	if m.Transport != TransportNATS && m.Transport != TransportMemory {
		return fmt.Errorf("unknown TRANSPORT %q", m.Transport)
	}
	if m.Partitions < 1 {
		return fmt.Errorf("PARTITIONS must be positive")
	}
	return nil
}
