package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for smokecore.
// All configuration is loaded from YAML and can be overridden by environment
// variables.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Storage     StorageConfig     `yaml:"storage"`
	LogStore    LogStoreConfig    `yaml:"logstore"`
	ConfigStore ConfigStoreConfig `yaml:"config_store"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// KafkaConfig contains log-broker connection settings.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topics   []string `yaml:"topics"`
	GroupID  string   `yaml:"group_id"`
	ClientID string   `yaml:"client_id"`
	SSL      bool     `yaml:"ssl"`
}

// MQTTConfig contains pub/sub broker connection settings.
// All *Ms fields are milliseconds; KeepAlive is seconds, matching the broker
// protocol's keepalive unit.
type MQTTConfig struct {
	URL                string `yaml:"url"`
	ClientID           string `yaml:"client_id"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	QoS                int    `yaml:"qos"`
	ReconnectPeriodMs  int    `yaml:"reconnect_period_ms"`
	KeepAliveSec       int    `yaml:"keep_alive_sec"`
	ConnectTimeoutMs   int    `yaml:"connect_timeout_ms"`
	PublishTimeoutMs   int    `yaml:"publish_timeout_ms"`
	SubscribeTimeoutMs int    `yaml:"subscribe_timeout_ms"`
	CleanupTimeoutMs   int    `yaml:"cleanup_timeout_ms"`
}

// StorageConfig contains object-storage settings.
type StorageConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	ForcePathStyle bool   `yaml:"force_path_style"`
	AccessKeyID    string `yaml:"access_key_id"`
	SecretKey      string `yaml:"secret_key"`
}

// LogStoreConfig contains log-query client settings.
type LogStoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// ConfigStoreConfig contains settings for the SQLite store of per-client
// configuration overrides.
type ConfigStoreConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SMOKE_SECTION_KEY
// For example: SMOKE_KAFKA_BROKERS, SMOKE_MQTT_URL.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Kafka: KafkaConfig{
			GroupID:  "smoke-test-group",
			ClientID: "smoke-test-client",
		},
		MQTT: MQTTConfig{
			QoS:                1,
			ReconnectPeriodMs:  5000,
			KeepAliveSec:       60,
			ConnectTimeoutMs:   120000,
			PublishTimeoutMs:   10000,
			SubscribeTimeoutMs: 10000,
			CleanupTimeoutMs:   5000,
		},
		ConfigStore: ConfigStoreConfig{
			Path:        "./data/smokecore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables follow the pattern: SMOKE_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	// Logging
	if v := os.Getenv("SMOKE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Kafka
	if v := os.Getenv("SMOKE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("SMOKE_KAFKA_TOPICS"); v != "" {
		cfg.Kafka.Topics = splitList(v)
	}
	if v := os.Getenv("SMOKE_KAFKA_GROUP_ID"); v != "" {
		cfg.Kafka.GroupID = v
	}

	// MQTT
	if v := os.Getenv("SMOKE_MQTT_URL"); v != "" {
		cfg.MQTT.URL = v
	}
	if v := os.Getenv("SMOKE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("SMOKE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}

	// Storage
	if v := os.Getenv("SMOKE_STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("SMOKE_STORAGE_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.AccessKeyID = v
	}
	if v := os.Getenv("SMOKE_STORAGE_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}

	// Log store
	if v := os.Getenv("SMOKE_LOGSTORE_TOKEN"); v != "" {
		cfg.LogStore.Token = v
	}

	// Config store
	if v := os.Getenv("SMOKE_CONFIGSTORE_PATH"); v != "" {
		cfg.ConfigStore.Path = v
	}
}

// splitList parses a comma-separated environment value into a slice.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate checks the configuration for errors.
//
// Per-client required fields (brokers, topics, broker URL) are deliberately
// not validated here: a smoke run may configure only a subset of clients, and
// each client validates its own requirements during Init.
func (c *Config) Validate() error {
	var errs []string

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}

	if c.ConfigStore.Enabled && c.ConfigStore.Path == "" {
		errs = append(errs, "config_store.path is required when config_store.enabled is true")
	}

	if c.Storage.Enabled && (c.Storage.Bucket == "" || c.Storage.Region == "") {
		errs = append(errs, "storage.bucket and storage.region are required when storage.enabled is true")
	}

	if c.LogStore.Enabled && c.LogStore.URL == "" {
		errs = append(errs, "logstore.url is required when logstore.enabled is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ConnectTimeout returns the MQTT connect timeout as a Duration.
func (c *MQTTConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

// PublishTimeout returns the MQTT publish-ack timeout as a Duration.
func (c *MQTTConfig) PublishTimeout() time.Duration {
	return time.Duration(c.PublishTimeoutMs) * time.Millisecond
}

// SubscribeTimeout returns the MQTT subscribe-ack timeout as a Duration.
func (c *MQTTConfig) SubscribeTimeout() time.Duration {
	return time.Duration(c.SubscribeTimeoutMs) * time.Millisecond
}

// CleanupTimeout returns the MQTT teardown grace period as a Duration.
func (c *MQTTConfig) CleanupTimeout() time.Duration {
	return time.Duration(c.CleanupTimeoutMs) * time.Millisecond
}
