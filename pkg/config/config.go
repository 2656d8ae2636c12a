// Package config loads the filesystem server configuration from defaults, an optional YAML
// file, environment variables and command-line arguments, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Transports supported by the server.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// Config holds all server configuration.
type Config struct {
	// Directories every tool is confined to.
	AllowedDirectories []string `yaml:"allowed_directories"`

	// Transport
	Transport string `yaml:"transport"`
	Addr      string `yaml:"addr"`
	BasePath  string `yaml:"base_path"`
	BaseURL   string `yaml:"base_url"`

	// Auth gates the tools that modify files on the HTTP transports.
	AuthEnabled bool   `yaml:"auth_enabled"`
	JWTSecret   string `yaml:"jwt_secret"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Tool call limits and metrics. A zero RateLimit disables rate limiting.
	MetricsAddr    string        `yaml:"metrics_addr"`
	RateLimit      float64       `yaml:"rate_limit"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	ToolTimeout    time.Duration `yaml:"tool_timeout"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Transport:      TransportStdio,
		Addr:           ":3333",
		BasePath:       "/mcp",
		LogLevel:       "info",
		LogFormat:      "json",
		RateLimit:      0,
		MaxConcurrency: 8,
		ToolTimeout:    60 * time.Second,
	}
}

// Load builds the configuration for the command line args (without the program name).
// Positional arguments are allowed directories and replace any configured elsewhere.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("mcp-filesystem", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("FS_CONFIG"), "Path to a YAML configuration file")
	transport := fs.String("transport", "", "Transport: stdio | sse | http")
	addr := fs.String("addr", "", "Listen address for HTTP/SSE transports")
	basePath := fs.String("base-path", "", "Base path for HTTP/SSE endpoints")
	baseURL := fs.String("base-url", "", "Public base URL (SSE only, optional)")
	authEnabled := fs.Bool("auth", false, "Require a bearer token for tools that modify files")
	logLevel := fs.String("log-level", "", "Log level: debug | info | warn | error")
	logFormat := fs.String("log-format", "", "Log format: json | console")
	metricsAddr := fs.String("metrics-addr", "", "Listen address for Prometheus metrics (optional)")
	rateLimit := fs.Float64("rate-limit", 0, "Calls per second allowed per tool, 0 for unlimited")
	toolTimeout := fs.Duration("tool-timeout", 0, "Maximum duration of a single tool call")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if *configPath != "" {
		if err := cfg.loadFile(*configPath); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "transport":
			cfg.Transport = *transport
		case "addr":
			cfg.Addr = *addr
		case "base-path":
			cfg.BasePath = *basePath
		case "base-url":
			cfg.BaseURL = *baseURL
		case "auth":
			cfg.AuthEnabled = *authEnabled
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "rate-limit":
			cfg.RateLimit = *rateLimit
		case "tool-timeout":
			cfg.ToolTimeout = *toolTimeout
		}
	})
	if fs.NArg() > 0 {
		cfg.AllowedDirectories = fs.Args()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first inconsistency in c.
func (c Config) Validate() error {
	if len(c.AllowedDirectories) == 0 {
		return errors.New("at least one allowed directory is required")
	}
	switch c.Transport {
	case TransportStdio, TransportSSE, TransportHTTP:
	default:
		return fmt.Errorf("unknown transport %q (use stdio|sse|http)", c.Transport)
	}
	if c.AuthEnabled && c.Transport != TransportStdio && c.JWTSecret == "" {
		return errors.New("a JWT secret is required when auth is enabled")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %v", c.RateLimit)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be positive, got %d", c.MaxConcurrency)
	}
	if c.ToolTimeout < 0 {
		return fmt.Errorf("tool timeout must not be negative, got %v", c.ToolTimeout)
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	bs, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(bs, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("FS_ALLOWED_DIRECTORIES"); v != "" {
		c.AllowedDirectories = filepath.SplitList(v)
	}
	c.Transport = envOr("FS_TRANSPORT", c.Transport)
	c.Addr = envOr("FS_ADDR", c.Addr)
	c.BasePath = envOr("FS_BASE_PATH", c.BasePath)
	c.BaseURL = envOr("FS_BASE_URL", c.BaseURL)
	c.JWTSecret = envOr("FS_JWT_SECRET", c.JWTSecret)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
	c.MetricsAddr = envOr("METRICS_ADDR", c.MetricsAddr)

	var err error
	if c.AuthEnabled, err = envBool("FS_AUTH_ENABLED", c.AuthEnabled); err != nil {
		return err
	}
	if c.RateLimit, err = envFloat("FS_RATE_LIMIT", c.RateLimit); err != nil {
		return err
	}
	if c.MaxConcurrency, err = envInt("FS_MAX_CONCURRENCY", c.MaxConcurrency); err != nil {
		return err
	}
	if c.ToolTimeout, err = envDuration("FS_TOOL_TIMEOUT", c.ToolTimeout); err != nil {
		return err
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return i, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
