package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"stockwatch/registry"
)

type Config struct {
	App struct {
		Environment string `yaml:"environment"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Fetch struct {
		Interval    time.Duration `yaml:"interval"`
		Concurrency int           `yaml:"concurrency"`
		Timeout     time.Duration `yaml:"timeout"`
		SecretName  string        `yaml:"secret_name"`
	} `yaml:"fetch"`

	Quote struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"quote"`

	Stream struct {
		BatchSize  int           `yaml:"batch_size"`
		Window     time.Duration `yaml:"window"`
		MaxRetries int           `yaml:"max_retries"`
		Buffer     int           `yaml:"buffer"`
	} `yaml:"stream"`

	Store struct {
		Backend string `yaml:"backend"` // memory | clickhouse

		ClickHouse struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Database string `yaml:"database"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
		} `yaml:"clickhouse"`
	} `yaml:"store"`

	Bus struct {
		Backend string   `yaml:"backend"` // memory | kafka
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"bus"`

	Queue struct {
		MaxReceives int `yaml:"max_receives"`
	} `yaml:"queue"`

	Router struct {
		Rule string `yaml:"rule"`
	} `yaml:"router"`

	Symbols []registry.Entry `yaml:"symbols"`
}

// Load builds the configuration from defaults, an optional YAML file named
// by CONFIG_FILE, and environment variables, in that order of precedence
// (env wins).
func Load() (*Config, error) {
	cfg := &Config{}

	// Defaults
	cfg.App.Environment = "production"
	cfg.Server.Addr = ":8080"
	cfg.Fetch.Interval = time.Minute
	cfg.Fetch.Concurrency = 1
	cfg.Fetch.Timeout = 10 * time.Second
	cfg.Fetch.SecretName = "QUOTE_API_KEY"
	cfg.Stream.BatchSize = 10
	cfg.Stream.Window = 5 * time.Second
	cfg.Stream.MaxRetries = 1
	cfg.Stream.Buffer = 1024
	cfg.Store.Backend = "memory"
	cfg.Store.ClickHouse.Host = "localhost"
	cfg.Store.ClickHouse.Port = 9000
	cfg.Store.ClickHouse.Database = "default"
	cfg.Store.ClickHouse.User = "default"
	cfg.Bus.Backend = "memory"
	cfg.Bus.Topic = "stockwatch-events"
	cfg.Queue.MaxReceives = 2
	cfg.Router.Rule = "stockwatch-price-events"
	cfg.Symbols = registry.DefaultEntries()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Env overrides
	cfg.App.Environment = getEnvOrDefault("APP_ENV", cfg.App.Environment)
	cfg.Server.Addr = getEnvOrDefault("SERVER_ADDR", cfg.Server.Addr)
	cfg.Fetch.Interval = getEnvAsDurationOrDefault("FETCH_INTERVAL", cfg.Fetch.Interval)
	cfg.Fetch.Concurrency = getEnvAsIntOrDefault("FETCH_CONCURRENCY", cfg.Fetch.Concurrency)
	cfg.Fetch.Timeout = getEnvAsDurationOrDefault("FETCH_TIMEOUT", cfg.Fetch.Timeout)
	cfg.Fetch.SecretName = getEnvOrDefault("FETCH_SECRET_NAME", cfg.Fetch.SecretName)
	cfg.Quote.BaseURL = getEnvOrDefault("QUOTE_BASE_URL", cfg.Quote.BaseURL)
	cfg.Stream.BatchSize = getEnvAsIntOrDefault("STREAM_BATCH_SIZE", cfg.Stream.BatchSize)
	cfg.Stream.Window = getEnvAsDurationOrDefault("STREAM_WINDOW", cfg.Stream.Window)
	cfg.Stream.MaxRetries = getEnvAsIntOrDefault("STREAM_MAX_RETRIES", cfg.Stream.MaxRetries)
	cfg.Stream.Buffer = getEnvAsIntOrDefault("STREAM_BUFFER", cfg.Stream.Buffer)
	cfg.Store.Backend = getEnvOrDefault("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.ClickHouse.Host = getEnvOrDefault("CLICKHOUSE_HOST", cfg.Store.ClickHouse.Host)
	cfg.Store.ClickHouse.Port = getEnvAsIntOrDefault("CLICKHOUSE_PORT", cfg.Store.ClickHouse.Port)
	cfg.Store.ClickHouse.Database = getEnvOrDefault("CLICKHOUSE_DB", cfg.Store.ClickHouse.Database)
	cfg.Store.ClickHouse.User = getEnvOrDefault("CLICKHOUSE_USER", cfg.Store.ClickHouse.User)
	cfg.Store.ClickHouse.Password = getEnvOrDefault("CLICKHOUSE_PASSWORD", cfg.Store.ClickHouse.Password)
	cfg.Bus.Backend = getEnvOrDefault("BUS_BACKEND", cfg.Bus.Backend)
	cfg.Bus.Topic = getEnvOrDefault("BUS_TOPIC", cfg.Bus.Topic)
	if brokers := os.Getenv("BUS_BROKERS"); brokers != "" {
		cfg.Bus.Brokers = strings.Split(brokers, ",")
	}
	cfg.Queue.MaxReceives = getEnvAsIntOrDefault("QUEUE_MAX_RECEIVES", cfg.Queue.MaxReceives)
	cfg.Router.Rule = getEnvOrDefault("ROUTER_RULE", cfg.Router.Rule)

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
