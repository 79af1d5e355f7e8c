package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/obsidianstack/rcon-exporter/internal/query"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHost              = "localhost"
	DefaultPort              = 25575
	DefaultPasswordEnv       = "RCON_PASSWORD"
	DefaultTimeout           = 5 * time.Second
	DefaultReconnectInterval = time.Second
	DefaultReconnectBurst    = 2
	DefaultListenPort        = 9150
	DefaultMetricsPath       = "/metrics"

	// HealthPath is served by the exporter itself and cannot be the metrics path.
	HealthPath = "/healthz"
)

// Config is the top-level exporter configuration.
type Config struct {
	RCON     RCONConfig     `yaml:"rcon"`
	Exporter ExporterConfig `yaml:"exporter"`
	Log      LogConfig      `yaml:"log"`
}

// RCONConfig describes the game server to query.
type RCONConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// PasswordEnv is the name of the environment variable holding the RCON
	// password. It takes precedence over Password.
	PasswordEnv string `yaml:"password_env"`

	// Password is a literal fallback used when PasswordEnv is unset or empty.
	Password string `yaml:"password"`

	// Timeout bounds every connect and command exchange.
	Timeout time.Duration `yaml:"timeout"`

	// ReconnectInterval is the minimum spacing between reconnect attempts
	// once ReconnectBurst is used up.
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	ReconnectBurst    int           `yaml:"reconnect_burst"`
}

// Addr returns the host:port dial target.
func (r RCONConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Secret returns the RCON password, resolved from the environment first.
func (r RCONConfig) Secret() string {
	if r.PasswordEnv != "" {
		if v := os.Getenv(r.PasswordEnv); v != "" {
			return v
		}
	}
	return r.Password
}

// ExporterConfig holds the HTTP side and the scrape schedule.
type ExporterConfig struct {
	ListenPort  int    `yaml:"listen_port"`
	MetricsPath string `yaml:"metrics_path"`

	// ScrapeInterval of zero collects on every /metrics request. A positive
	// value collects in the background and serves the cached result.
	ScrapeInterval time.Duration `yaml:"scrape_interval"`

	// Queries lists the enabled query names from the catalog.
	Queries []string `yaml:"queries"`
}

// ListenAddr returns the address the HTTP server binds to.
func (e ExporterConfig) ListenAddr() string {
	return ":" + strconv.Itoa(e.ListenPort)
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SlogLevel maps Level onto slog; unknown values were rejected by Load.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Load reads and parses the YAML config file at path. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		RCON: RCONConfig{
			Host:              DefaultHost,
			Port:              DefaultPort,
			PasswordEnv:       DefaultPasswordEnv,
			Timeout:           DefaultTimeout,
			ReconnectInterval: DefaultReconnectInterval,
			ReconnectBurst:    DefaultReconnectBurst,
		},
		Exporter: ExporterConfig{
			ListenPort:  DefaultListenPort,
			MetricsPath: DefaultMetricsPath,
			Queries:     append([]string(nil), query.DefaultQueries...),
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.RCON.Host == "" {
		return fmt.Errorf("rcon.host is required")
	}
	if cfg.RCON.Port <= 0 || cfg.RCON.Port > 65535 {
		return fmt.Errorf("rcon.port %d out of range", cfg.RCON.Port)
	}
	if cfg.RCON.Timeout <= 0 {
		return fmt.Errorf("rcon.timeout must be positive")
	}
	if cfg.RCON.ReconnectInterval < 0 {
		return fmt.Errorf("rcon.reconnect_interval must not be negative")
	}
	if cfg.RCON.ReconnectBurst <= 0 {
		return fmt.Errorf("rcon.reconnect_burst must be positive")
	}
	if cfg.Exporter.ListenPort <= 0 || cfg.Exporter.ListenPort > 65535 {
		return fmt.Errorf("exporter.listen_port %d out of range", cfg.Exporter.ListenPort)
	}
	if !strings.HasPrefix(cfg.Exporter.MetricsPath, "/") || cfg.Exporter.MetricsPath == "/" {
		return fmt.Errorf("exporter.metrics_path %q must be an absolute path other than /", cfg.Exporter.MetricsPath)
	}
	if cfg.Exporter.MetricsPath == HealthPath {
		return fmt.Errorf("exporter.metrics_path %q is reserved for the health endpoint", HealthPath)
	}
	if cfg.Exporter.ScrapeInterval < 0 {
		return fmt.Errorf("exporter.scrape_interval must not be negative")
	}
	if len(cfg.Exporter.Queries) == 0 {
		return fmt.Errorf("exporter.queries must name at least one query")
	}
	if _, err := query.Lookup(cfg.Exporter.Queries...); err != nil {
		return fmt.Errorf("exporter.queries: %w", err)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Log.Format)
	}
	return nil
}
