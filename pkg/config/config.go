package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is shared by every binary; each reads the fields it needs.
type Config struct {
	GatewayAddr      string   `env:"GATEWAY_ADDR" envDefault:":8080"`
	APIAddr          string   `env:"API_ADDR" envDefault:":8081"`
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:19092"`
	KafkaTopic       string   `env:"KAFKA_TOPIC" envDefault:"chat-events"`
	RedisAddr        string   `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	ScyllaHosts      []string `env:"SCYLLA_HOSTS" envSeparator:"," envDefault:"localhost:9042"`
	ScyllaKeyspace   string   `env:"SCYLLA_KEYSPACE" envDefault:"chat"`
	JWTSecret        string   `env:"JWT_SECRET" envDefault:"my_secret_key"`
	NodeID           int64    `env:"NODE_ID" envDefault:"1"`
	LogFile          string   `env:"LOG_FILE"`
	SweepConcurrency int      `env:"SWEEP_CONCURRENCY" envDefault:"8"`
	// Store selects the message store: "scylla" or "memory".
	Store string `env:"STORE" envDefault:"scylla"`
	// Fanout selects how broadcasts reach other gateways: "kafka" or "local".
	Fanout string `env:"FANOUT" envDefault:"kafka"`
}

// Load reads Config from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}
