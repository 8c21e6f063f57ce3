package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/indpriyanshuraj/talvaar-image-optimizer/pkg/validation"
)

// maxDefaultWorkers caps the automatic worker count; encoding is CPU
// bound and more goroutines past this point mostly thrash memory.
const maxDefaultWorkers = 6

// Config carries every batch, watch and serve setting.
type Config struct {
	// Batch settings
	Input              string `yaml:"input"`
	Output             string `yaml:"output"`
	Format             string `yaml:"format"`
	Mode               string `yaml:"mode"`
	Compression        int    `yaml:"compression"`
	Conflict           string `yaml:"conflict"`
	IgnoreTransparency bool   `yaml:"ignore_transparency"`
	Prefix             string `yaml:"prefix"`
	Suffix             string `yaml:"suffix"`
	Algorithm          string `yaml:"algorithm"`
	Resize             string `yaml:"resize"`
	Workers            int    `yaml:"workers"`
	Report             bool   `yaml:"report"`

	// Run modes
	Watch bool `yaml:"watch"`
	Serve bool `yaml:"serve"`

	// Server settings
	Host               string        `yaml:"host"`
	Port               string        `yaml:"port"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	ImageFetchTimeout  time.Duration `yaml:"image_fetch_timeout"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	// Azure output (all three set switches the sink to blob storage)
	AzureAccountName string `yaml:"azure_account_name"`
	AzureAccountKey  string `yaml:"azure_account_key"`
	AzureContainer   string `yaml:"azure_container"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Output:             "optimized",
		Format:             "png",
		Mode:               "auto",
		Compression:        6,
		Conflict:           "overwrite",
		Algorithm:          "auto",
		Host:               "0.0.0.0",
		Port:               "8080",
		RequestTimeout:     30 * time.Second,
		ImageFetchTimeout:  15 * time.Second,
		MaxRequestBodySize: 10 * 1024 * 1024, // 10MB
	}
}

// ServerAddress returns the host:port the server binds.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// WorkerCount resolves the effective pool size: an explicit value wins,
// otherwise the CPU count capped at maxDefaultWorkers.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	n := runtime.NumCPU()
	if n > maxDefaultWorkers {
		n = maxDefaultWorkers
	}
	return n
}

// Validate checks the parameter set with the shared validator.
func (c *Config) Validate() error {
	v := validation.NewParamsValidator()
	return v.ValidateAll(c.Mode, c.Format, c.Compression, c.Conflict, c.Algorithm, c.Resize)
}

// LoadFromEnv builds a config from defaults overridden by environment
// variables.
func LoadFromEnv() (*Config, error) {
	cfg := Default()

	cfg.Input = getEnvOrDefault("INPUT_PATH", cfg.Input)
	cfg.Output = getEnvOrDefault("OUTPUT_PATH", cfg.Output)
	cfg.Format = getEnvOrDefault("OUTPUT_FORMAT", cfg.Format)
	cfg.Mode = getEnvOrDefault("SAVE_MODE", cfg.Mode)
	cfg.Compression = int(parseIntOrDefault("COMPRESSION_LEVEL", int64(cfg.Compression)))
	cfg.Conflict = getEnvOrDefault("CONFLICT_POLICY", cfg.Conflict)
	cfg.Prefix = getEnvOrDefault("OUTPUT_PREFIX", cfg.Prefix)
	cfg.Suffix = getEnvOrDefault("OUTPUT_SUFFIX", cfg.Suffix)
	cfg.Algorithm = getEnvOrDefault("RESIZE_ALGORITHM", cfg.Algorithm)
	cfg.Resize = getEnvOrDefault("RESIZE_SPEC", cfg.Resize)
	cfg.Workers = int(parseIntOrDefault("WORKERS", int64(cfg.Workers)))

	cfg.Host = getEnvOrDefault("HOST", cfg.Host)
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.RequestTimeout = parseDurationOrDefault("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ImageFetchTimeout = parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", cfg.ImageFetchTimeout)
	cfg.MaxRequestBodySize = parseIntOrDefault("MAX_REQUEST_BODY_SIZE", cfg.MaxRequestBodySize)

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnvOrDefault("LOG_FILE", cfg.LogFile)

	cfg.AzureAccountName = getEnvOrDefault("AZURE_ACCOUNT_NAME", cfg.AzureAccountName)
	cfg.AzureAccountKey = getEnvOrDefault("AZURE_ACCOUNT_KEY", cfg.AzureAccountKey)
	cfg.AzureContainer = getEnvOrDefault("AZURE_CONTAINER", cfg.AzureContainer)

	return cfg, nil
}

// LoadFile overlays a YAML config file onto cfg in place. Fields absent
// from the file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
