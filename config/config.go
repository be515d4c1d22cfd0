package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultEnvPath       = ".env"
	DefaultOverridesPath = "parser_overrides.yaml"
)

// CircuitBreakerConfig controls circuit breaker behavior
type CircuitBreakerConfig struct {
	FailureThreshold   int           `json:"failure_threshold"`    // Number of failures before opening circuit
	BackoffDuration    time.Duration `json:"backoff_duration"`     // How long to wait before retrying failed endpoint
	MaxBackoffDuration time.Duration `json:"max_backoff_duration"` // Maximum backoff time
	ResetTimeout       time.Duration `json:"reset_timeout"`        // Time to reset failure count after success
}

// DefaultCircuitBreakerConfig returns sensible defaults for circuit breaker
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:   2,                // Open circuit after 2 consecutive failures
		BackoffDuration:    30 * time.Second, // Initial 30s backoff
		MaxBackoffDuration: 5 * time.Minute,  // Max 5min backoff
		ResetTimeout:       1 * time.Minute,  // Reset failure count after 1min of success
	}
}

// PlaceholderConfig selects the element rendered where an artifact was
type PlaceholderConfig struct {
	Tag   string `json:"tag" yaml:"tag"`
	Class string `json:"class" yaml:"class"`
}

// Config represents the service configuration, from .env, the environment
// and parser_overrides.yaml
type Config struct {
	Port string `json:"port"`

	// Parser settings
	WorkDir                string            `json:"work_dir"`
	NormalizeFunctionCalls bool              `json:"normalize_function_calls"`
	Placeholder            PlaceholderConfig `json:"placeholder"`

	// Session store
	SessionCacheSize int           `json:"session_cache_size"`
	SessionTTL       time.Duration `json:"session_ttl"`

	// Logging and metrics
	LogLevel       string `json:"log_level"`
	LogFormat      string `json:"log_format"`
	LogDir         string `json:"log_dir"`
	LokiURL        string `json:"loki_url"`
	MetricsEnabled bool   `json:"metrics_enabled"`

	// Upstream OpenAI-compatible model endpoints (comma-separated in the environment)
	UpstreamEndpoints []string      `json:"upstream_endpoints"`
	UpstreamAPIKey    string        `json:"-"`
	UpstreamModel     string        `json:"upstream_model"`
	UpstreamTimeout   time.Duration `json:"upstream_timeout"`

	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`

	// Endpoint rotation state (not serialized)
	upstreamIndex int        `json:"-"`
	mutex         sync.Mutex `json:"-"`
}

// GetDefaultConfig returns a default configuration for testing
func GetDefaultConfig() *Config {
	return &Config{
		Port:                   "3456",
		WorkDir:                "/home/project",
		NormalizeFunctionCalls: true,
		SessionCacheSize:       1024,
		SessionTTL:             time.Hour,
		LogLevel:               "INFO",
		LogFormat:              "json",
		MetricsEnabled:         true,
		UpstreamEndpoints:      []string{},
		UpstreamTimeout:        10 * time.Minute,
		CircuitBreaker:         DefaultCircuitBreakerConfig(),
	}
}

// LoadConfigWithEnv loads configuration from ./.env (optional), the process
// environment and ./parser_overrides.yaml (optional)
func LoadConfigWithEnv() (*Config, error) {
	return LoadConfigFrom(DefaultEnvPath, DefaultOverridesPath)
}

// LoadConfigFrom is LoadConfigWithEnv with explicit file locations. A missing
// file is not an error; a malformed one is.
func LoadConfigFrom(envPath, overridesPath string) (*Config, error) {
	envVars, err := loadEnvFile(envPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", envPath, err)
		}
		logrus.Infof("📝 %s not found, using process environment", envPath)
	}
	lookup := func(key string) (string, bool) {
		if value, exists := envVars[key]; exists {
			return value, true
		}
		return os.LookupEnv(key)
	}

	cfg := GetDefaultConfig()

	if port, exists := lookup("PORT"); exists && port != "" {
		cfg.Port = port
		logrus.Infof("🔧 Configured PORT: %s", port)
	}
	if workDir, exists := lookup("WORK_DIR"); exists && workDir != "" {
		cfg.WorkDir = workDir
		logrus.Infof("🔧 Configured WORK_DIR: %s", workDir)
	}
	if level, exists := lookup("LOG_LEVEL"); exists && level != "" {
		switch strings.ToUpper(level) {
		case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
			cfg.LogLevel = strings.ToUpper(level)
		default:
			logrus.Warnf("⚠️  Invalid LOG_LEVEL '%s', using default 'INFO'", level)
		}
	}
	if format, exists := lookup("LOG_FORMAT"); exists && format != "" {
		switch strings.ToLower(format) {
		case "json", "text":
			cfg.LogFormat = strings.ToLower(format)
		default:
			logrus.Warnf("⚠️  Invalid LOG_FORMAT '%s', using default 'json'", format)
		}
	}
	if logDir, exists := lookup("LOG_DIR"); exists {
		cfg.LogDir = logDir
	}
	if lokiURL, exists := lookup("LOKI_URL"); exists && lokiURL != "" {
		cfg.LokiURL = lokiURL
		logrus.Infof("📡 Configured LOKI_URL: %s", lokiURL)
	}

	if cfg.MetricsEnabled, err = parseBool(lookup, "METRICS_ENABLED", cfg.MetricsEnabled); err != nil {
		return nil, err
	}
	if cfg.NormalizeFunctionCalls, err = parseBool(lookup, "NORMALIZE_FUNCTION_CALLS", cfg.NormalizeFunctionCalls); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = parseDuration(lookup, "SESSION_TTL", cfg.SessionTTL); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = parseDuration(lookup, "UPSTREAM_TIMEOUT", cfg.UpstreamTimeout); err != nil {
		return nil, err
	}
	if size, exists := lookup("SESSION_CACHE_SIZE"); exists && size != "" {
		n, err := strconv.Atoi(size)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("SESSION_CACHE_SIZE must be a positive integer, got %q", size)
		}
		cfg.SessionCacheSize = n
	}

	if endpoints, exists := lookup("UPSTREAM_ENDPOINT"); exists && endpoints != "" {
		cfg.UpstreamEndpoints = splitEndpoints(endpoints)
		logrus.Infof("🔧 Configured UPSTREAM_ENDPOINT: %v (%d endpoints)", cfg.UpstreamEndpoints, len(cfg.UpstreamEndpoints))
	}
	if apiKey, exists := lookup("UPSTREAM_API_KEY"); exists && apiKey != "" {
		cfg.UpstreamAPIKey = apiKey
		logrus.Infof("🔧 Configured UPSTREAM_API_KEY: %s", maskAPIKey(apiKey))
	}
	if model, exists := lookup("UPSTREAM_MODEL"); exists && model != "" {
		cfg.UpstreamModel = model
		logrus.Infof("🔧 Configured UPSTREAM_MODEL: %s", model)
	}

	overrides, err := LoadParserOverrides(overridesPath)
	if err != nil {
		return nil, err
	}
	overrides.apply(cfg)

	return cfg, nil
}

// GetUpstreamEndpoint returns the next upstream endpoint in round-robin order
func (c *Config) GetUpstreamEndpoint() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if len(c.UpstreamEndpoints) == 0 {
		return ""
	}
	endpoint := c.UpstreamEndpoints[c.upstreamIndex%len(c.UpstreamEndpoints)]
	c.upstreamIndex = (c.upstreamIndex + 1) % len(c.UpstreamEndpoints)
	return endpoint
}

// ParserOverridesYAML represents the structure of parser_overrides.yaml
type ParserOverridesYAML struct {
	Placeholder *PlaceholderConfig `yaml:"placeholder"`
	WorkDir     string             `yaml:"workDir"`
}

func (o ParserOverridesYAML) apply(cfg *Config) {
	if o.Placeholder != nil {
		cfg.Placeholder = *o.Placeholder
	}
	if o.WorkDir != "" {
		cfg.WorkDir = o.WorkDir
	}
}

// LoadParserOverrides loads placeholder and work dir overrides from a yaml file.
// A missing file yields empty overrides.
func LoadParserOverrides(path string) (ParserOverridesYAML, error) {
	var overrides ParserOverridesYAML

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Debugf("📝 %s not found, using default parser settings", path)
			return overrides, nil
		}
		return overrides, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&overrides); err != nil {
		return overrides, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	logrus.Infof("📝 Loaded parser overrides from %s", path)
	return overrides, nil
}

func parseBool(lookup func(string) (string, bool), key string, fallback bool) (bool, error) {
	raw, exists := lookup(key)
	if !exists || raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a boolean, got %q", key, raw)
	}
	logrus.Infof("🔧 Configured %s: %t", key, value)
	return value, nil
}

func parseDuration(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, exists := lookup(key)
	if !exists || raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback, fmt.Errorf("%s must be a positive duration, got %q", key, raw)
	}
	return value, nil
}

func splitEndpoints(raw string) []string {
	var endpoints []string
	for _, endpoint := range strings.Split(raw, ",") {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			endpoints = append(endpoints, endpoint)
		}
	}
	return endpoints
}

// maskAPIKey masks an API key for safe logging
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "***"
	}
	return apiKey[:4] + "..." + apiKey[len(apiKey)-4:]
}

// loadEnvFile reads KEY=VALUE lines, skipping blanks and comments
func loadEnvFile(path string) (map[string]string, error) {
	envVars := make(map[string]string)

	file, err := os.Open(path)
	if err != nil {
		return envVars, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE format
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if unquoted, err := strconv.Unquote(value); err == nil {
			value = unquoted
		} else if commentIndex := strings.Index(value, " #"); commentIndex != -1 {
			value = strings.TrimSpace(value[:commentIndex])
		}

		envVars[key] = value
	}

	return envVars, scanner.Err()
}
