package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config lists the tunable parameters for the campus map client.
type Config struct {
	APIBaseURL      string        `yaml:"api_base_url"`
	HTTPPort        int           `yaml:"http_port"`
	MetricsPort     int           `yaml:"metrics_port"`
	DatabasePath    string        `yaml:"database_path"`
	LogLevel        string        `yaml:"log_level"`
	DefaultPosition string        `yaml:"default_position"`
	Routing         RoutingConfig `yaml:"routing"`
	MQTT            MQTTConfig    `yaml:"mqtt"`
	Map             MapConfig     `yaml:"map"`
	Search          SearchConfig  `yaml:"search"`
	MDNS            MDNSConfig    `yaml:"mdns"`
}

// RoutingConfig points at the routing engine.
type RoutingConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// MQTTConfig configures the live position feed. An empty broker disables it.
type MQTTConfig struct {
	Broker        string `yaml:"broker"`
	PositionTopic string `yaml:"position_topic"`
	ClientID      string `yaml:"client_id"`
}

// MapConfig describes the initial viewport and tile source.
type MapConfig struct {
	TileURL   string  `yaml:"tile_url"`
	CenterLat float64 `yaml:"center_lat"`
	CenterLng float64 `yaml:"center_lng"`
	Zoom      int     `yaml:"zoom"`
}

// SearchConfig tunes the location search box.
type SearchConfig struct {
	Debounce      time.Duration `yaml:"debounce"`
	MatchCollege  bool          `yaml:"match_college"`
	MatchCategory bool          `yaml:"match_category"`
}

// MDNSConfig toggles LAN advertisement of the local shell.
type MDNSConfig struct {
	Enabled bool `yaml:"enabled"`
}

const (
	defaultAPIBaseURL     = "https://fivec-maps.onrender.com/api/v1"
	defaultHTTPPort       = 8080
	defaultMetricsPort    = 9090
	defaultDatabasePath   = "data/chizu.db"
	defaultLogLevel       = "info"
	defaultRoutingBaseURL = "https://graphhopper.com/api/1"
	defaultRoutingTimeout = 15 * time.Second
	defaultPositionTopic  = "chizu/position"
	defaultTileURL        = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	defaultCenterLat      = 34.1000
	defaultCenterLng      = -117.7090
	defaultZoom           = 16
	defaultSearchDebounce = 150 * time.Millisecond
	defaultConfigFileEnv  = "CHIZU_CONFIG"
	defaultDotEnvFile     = ".env"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIBaseURL:   defaultAPIBaseURL,
		HTTPPort:     defaultHTTPPort,
		MetricsPort:  defaultMetricsPort,
		DatabasePath: defaultDatabasePath,
		LogLevel:     defaultLogLevel,
		Routing: RoutingConfig{
			BaseURL: defaultRoutingBaseURL,
			Timeout: defaultRoutingTimeout,
		},
		MQTT: MQTTConfig{
			PositionTopic: defaultPositionTopic,
		},
		Map: MapConfig{
			TileURL:   defaultTileURL,
			CenterLat: defaultCenterLat,
			CenterLng: defaultCenterLng,
			Zoom:      defaultZoom,
		},
		Search: SearchConfig{
			Debounce:     defaultSearchDebounce,
			MatchCollege: true,
		},
		MDNS: MDNSConfig{Enabled: true},
	}
}

// Load derives configuration from defaults, an optional YAML file, a .env
// file, and environment variables, in increasing precedence. An empty path
// falls back to $CHIZU_CONFIG.
func Load(path string) (Config, error) {
	cfg := Default()

	// A missing .env is normal outside development.
	_ = godotenv.Load(defaultDotEnvFile)

	if path == "" {
		path = os.Getenv(defaultConfigFileEnv)
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("CHIZU_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = v
	}

	if v := os.Getenv("CHIZU_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CHIZU_HTTP_PORT: %w", err)
		}
		cfg.HTTPPort = port
	}

	if v := os.Getenv("CHIZU_METRICS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CHIZU_METRICS_PORT: %w", err)
		}
		cfg.MetricsPort = port
	}

	if v := os.Getenv("CHIZU_DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}

	if v := os.Getenv("CHIZU_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("CHIZU_DEFAULT_POSITION"); v != "" {
		cfg.DefaultPosition = v
	}

	if v := os.Getenv("CHIZU_ROUTING_URL"); v != "" {
		cfg.Routing.BaseURL = v
	}

	if v := os.Getenv("CHIZU_ROUTING_API_KEY"); v != "" {
		cfg.Routing.APIKey = v
	}

	if v := os.Getenv("CHIZU_ROUTING_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CHIZU_ROUTING_TIMEOUT: %w", err)
		}
		cfg.Routing.Timeout = d
	}

	if v := os.Getenv("CHIZU_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}

	if v := os.Getenv("CHIZU_MQTT_POSITION_TOPIC"); v != "" {
		cfg.MQTT.PositionTopic = v
	}

	if v := os.Getenv("CHIZU_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.ClientID = v
	}

	if v := os.Getenv("CHIZU_TILE_URL"); v != "" {
		cfg.Map.TileURL = v
	}

	if v := os.Getenv("CHIZU_SEARCH_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CHIZU_SEARCH_DEBOUNCE: %w", err)
		}
		cfg.Search.Debounce = d
	}

	if v := os.Getenv("CHIZU_MDNS"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CHIZU_MDNS: %w", err)
		}
		cfg.MDNS.Enabled = enabled
	}

	return nil
}

// Validate rejects configurations the client cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return errors.New("api_base_url is required")
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 0 and 65535, got %d", c.HTTPPort)
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("metrics_port must be between 0 and 65535, got %d", c.MetricsPort)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	if c.Search.Debounce < 0 {
		return errors.New("search.debounce must not be negative")
	}
	return nil
}
