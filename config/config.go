package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Manager  ManagerConfig  `yaml:"manager"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// ManagerConfig holds the appliance connection and polling settings.
type ManagerConfig struct {
	Host                 string        `yaml:"host"`
	Username             string        `yaml:"username"`
	Password             string        `yaml:"password"`
	ScanIntervalSeconds  int           `yaml:"scan_interval_seconds"`
	ScanInterval         time.Duration `yaml:"-"`
	ThingsRefreshSeconds int           `yaml:"things_refresh_seconds"`
	ThingsRefresh        time.Duration `yaml:"-"`
	SessionTTLSeconds    int           `yaml:"session_ttl_seconds"`
	SessionTTL           time.Duration `yaml:"-"`
	NamePrefix           string        `yaml:"name_prefix"`
}

// DatabaseConfig holds the warm-start cache settings. An empty DSN disables
// the cache entirely.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// MQTTConfig holds the optional MQTT publishing settings. An empty broker
// disables publishing.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	defaultScanIntervalSeconds = 15
	minScanIntervalSeconds     = 5
	maxScanIntervalSeconds     = 3600
)

// Load reads the configuration from the given path and applies defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Manager.Host == "" {
		return nil, fmt.Errorf("manager.host is required")
	}
	if cfg.Manager.Username == "" || cfg.Manager.Password == "" {
		return nil, fmt.Errorf("manager.username and manager.password are required")
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	// Clamp rather than reject: a too-eager interval hammers the appliance,
	// a too-slow one starves consumers.
	if cfg.Manager.ScanIntervalSeconds <= 0 {
		cfg.Manager.ScanIntervalSeconds = defaultScanIntervalSeconds
	}
	if cfg.Manager.ScanIntervalSeconds < minScanIntervalSeconds {
		cfg.Manager.ScanIntervalSeconds = minScanIntervalSeconds
	}
	if cfg.Manager.ScanIntervalSeconds > maxScanIntervalSeconds {
		cfg.Manager.ScanIntervalSeconds = maxScanIntervalSeconds
	}
	cfg.Manager.ScanInterval = time.Duration(cfg.Manager.ScanIntervalSeconds) * time.Second

	if cfg.Manager.ThingsRefreshSeconds <= 0 {
		cfg.Manager.ThingsRefreshSeconds = 600
	}
	cfg.Manager.ThingsRefresh = time.Duration(cfg.Manager.ThingsRefreshSeconds) * time.Second

	cfg.Manager.SessionTTL = time.Duration(cfg.Manager.SessionTTLSeconds) * time.Second

	if cfg.Database.DSN != "" && cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}

	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = "solarwatt-bridge"
		}
		if cfg.MQTT.TopicPrefix == "" {
			cfg.MQTT.TopicPrefix = "solarwatt"
		}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return &cfg, nil
}
