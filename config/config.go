package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP      HTTPConfig      `yaml:"http" envPrefix:"GALAXIUM_HTTP_"`
	Inventory InventoryConfig `yaml:"inventory" envPrefix:"GALAXIUM_API_"`
	Session   SessionConfig   `yaml:"session" envPrefix:"GALAXIUM_SESSION_"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"GALAXIUM_DB_"`
	Redis     RedisConfig     `yaml:"redis" envPrefix:"GALAXIUM_REDIS_"`
	Kafka     KafkaConfig     `yaml:"kafka" envPrefix:"GALAXIUM_KAFKA_"`
	Worker    WorkerConfig    `yaml:"worker" envPrefix:"GALAXIUM_WORKER_"`
}

type HTTPConfig struct {
	Address     string `yaml:"address" env:"ADDRESS"`
	MetricsPath string `yaml:"metrics_path" env:"METRICS_PATH"`
}

type InventoryConfig struct {
	BaseURL        string `yaml:"base_url" env:"URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
}

func (c InventoryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

const (
	SessionBackendMemory   = "memory"
	SessionBackendSQLite   = "sqlite"
	SessionBackendRedis    = "redis"
	SessionBackendPostgres = "postgres"
)

type SessionConfig struct {
	Backend    string `yaml:"backend" env:"BACKEND"`
	Path       string `yaml:"path" env:"PATH"`
	ID         string `yaml:"id" env:"ID"`
	TTLMinutes int    `yaml:"ttl_minutes" env:"TTL_MINUTES"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Name     string `yaml:"name" env:"NAME"`
	SSLMode  string `yaml:"ssl_mode" env:"SSL_MODE"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	BookingEventsTopic string   `yaml:"booking_events_topic" env:"BOOKING_EVENTS_TOPIC"`
	NotificationsTopic string   `yaml:"notifications_topic" env:"NOTIFICATIONS_TOPIC"`
	GroupID            string   `yaml:"group_id" env:"GROUP_ID"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.BookingEventsTopic != ""
}

type WorkerConfig struct {
	HealthCheckSeconds int `yaml:"health_check_seconds" env:"HEALTH_CHECK_SECONDS"`
}

func Default() Config {
	return Config{
		HTTP:      HTTPConfig{Address: ":8090", MetricsPath: "/metrics"},
		Inventory: InventoryConfig{BaseURL: "http://localhost:8080", TimeoutSeconds: 10},
		Session:   SessionConfig{Backend: SessionBackendSQLite, Path: "galaxium-session.db"},
		Worker:    WorkerConfig{HealthCheckSeconds: 60},
	}
}

// LoadConfig reads the YAML file at path on top of the defaults and then
// applies GALAXIUM_* environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Inventory.BaseURL == "" {
		return fmt.Errorf("inventory base_url is required")
	}
	if c.Inventory.TimeoutSeconds <= 0 {
		return fmt.Errorf("inventory timeout_seconds must be positive")
	}
	if c.Worker.HealthCheckSeconds <= 0 {
		return fmt.Errorf("worker health_check_seconds must be positive")
	}
	switch c.Session.Backend {
	case SessionBackendMemory, SessionBackendSQLite, SessionBackendRedis, SessionBackendPostgres:
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	if c.Session.Backend == SessionBackendSQLite && c.Session.Path == "" {
		return fmt.Errorf("session path is required for the sqlite backend")
	}
	return nil
}
