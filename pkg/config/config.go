package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the Messenger dumper
type Config struct {
	// Credential sources
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`

	// Dump phase settings
	Dump DumpConfig `yaml:"dump" json:"dump"`

	// Parse phase settings
	Parse ParseConfig `yaml:"parse" json:"parse"`

	// Download settings (parser dl mode)
	Download DownloadConfig `yaml:"download" json:"download"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CredentialsConfig holds the sources a credential bundle can be loaded from.
// RequestFile points at a copied-request text blob; Account names a bundle
// kept in the credential store. The request file wins when both are set.
type CredentialsConfig struct {
	RequestFile string `yaml:"request_file" json:"request_file"`
	Account     string `yaml:"account" json:"account"`
	UserAgent   string `yaml:"user_agent" json:"user_agent"`
}

// DumpConfig holds dump-phase configuration
type DumpConfig struct {
	PageSize       int  `yaml:"page_size" json:"page_size"`
	ThreadPageSize int  `yaml:"thread_page_size" json:"thread_page_size"`
	Resume         bool `yaml:"resume" json:"resume"`
}

// ParseConfig holds parse-phase configuration
type ParseConfig struct {
	Mode      string   `yaml:"mode" json:"mode"`
	DataTypes []string `yaml:"data_types" json:"data_types"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Workers           int           `yaml:"workers" json:"workers"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	OverwriteExisting bool          `yaml:"overwrite_existing" json:"overwrite_existing"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size" json:"burst_size"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	PrettyJSON    bool   `yaml:"pretty_json" json:"pretty_json"`
	LedgerFile    string `yaml:"ledger_file" json:"ledger_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// ValidDataTypes lists the artifact types the parse phase understands.
// "all" expands to every other entry.
var ValidDataTypes = []string{"all", "messages", "pictures", "gifs", "videos", "files", "links"}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Credentials: CredentialsConfig{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		},
		Dump: DumpConfig{
			PageSize:       2000,
			ThreadPageSize: 1000,
			Resume:         false,
		},
		Parse: ParseConfig{
			Mode:      "report",
			DataTypes: []string{"all"},
		},
		Download: DownloadConfig{
			Workers:           4,
			Timeout:           30 * time.Second,
			OverwriteExisting: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BurstSize:         5,
			BackoffMultiplier: 2.0,
			MaxRetries:        3,
			RetryDelay:        5 * time.Second,
		},
		Output: OutputConfig{
			BaseDirectory: "output",
			PrettyJSON:    true,
			LedgerFile:    "msgdump.db",
		},
		Logging: LoggingConfig{
			Level:   "info",
			File:    "",
			NoColor: false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if requestFile := os.Getenv("MSGDUMP_REQUEST_FILE"); requestFile != "" {
		c.Credentials.RequestFile = requestFile
	}
	if account := os.Getenv("MSGDUMP_ACCOUNT"); account != "" {
		c.Credentials.Account = account
	}
	if userAgent := os.Getenv("MSGDUMP_USER_AGENT"); userAgent != "" {
		c.Credentials.UserAgent = userAgent
	}

	if pageSize := os.Getenv("MSGDUMP_PAGE_SIZE"); pageSize != "" {
		var val int
		fmt.Sscanf(pageSize, "%d", &val)
		if val > 0 {
			c.Dump.PageSize = val
		}
	}

	if rpm := os.Getenv("MSGDUMP_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if workers := os.Getenv("MSGDUMP_WORKERS"); workers != "" {
		var val int
		fmt.Sscanf(workers, "%d", &val)
		if val > 0 {
			c.Download.Workers = val
		}
	}

	if outputDir := os.Getenv("MSGDUMP_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}

	if logLevel := os.Getenv("MSGDUMP_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".msgdump.yaml",
		".msgdump.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "msgdump", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "msgdump", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".msgdump.yaml"),
		filepath.Join(os.Getenv("HOME"), ".msgdump.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Validate dump settings
	if c.Dump.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.Dump.ThreadPageSize <= 0 {
		errs = append(errs, errors.New("thread page size must be positive"))
	}

	// Validate parse settings
	validModes := map[string]bool{"report": true, "dl": true}
	if !validModes[strings.ToLower(c.Parse.Mode)] {
		errs = append(errs, errors.New("parse mode must be 'report' or 'dl'"))
	}
	if len(c.Parse.DataTypes) == 0 {
		errs = append(errs, errors.New("at least one data type is required"))
	}
	valid := make(map[string]bool, len(ValidDataTypes))
	for _, t := range ValidDataTypes {
		valid[t] = true
	}
	for _, t := range c.Parse.DataTypes {
		if !valid[strings.ToLower(t)] {
			errs = append(errs, fmt.Errorf("unknown data type %q", t))
		}
	}

	// Validate download settings
	if c.Download.Workers <= 0 {
		errs = append(errs, errors.New("download workers must be positive"))
	}
	if c.Download.Workers > 16 {
		errs = append(errs, errors.New("download workers should not exceed 16"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	// Validate rate limiting
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	// Validate output settings
	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.LedgerFile == "" {
		errs = append(errs, errors.New("ledger file name is required"))
	}

	// Validate logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if requestFile, ok := flags["request-file"].(string); ok && requestFile != "" {
		c.Credentials.RequestFile = requestFile
	}
	if account, ok := flags["account"].(string); ok && account != "" {
		c.Credentials.Account = account
	}
	if pageSize, ok := flags["page-size"].(int); ok && pageSize > 0 {
		c.Dump.PageSize = pageSize
	}
	if resume, ok := flags["resume"].(bool); ok {
		c.Dump.Resume = resume
	}
	if mode, ok := flags["mode"].(string); ok && mode != "" {
		c.Parse.Mode = mode
	}
	if dataTypes, ok := flags["data"].([]string); ok && len(dataTypes) > 0 {
		c.Parse.DataTypes = dataTypes
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Download.Workers = workers
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if noColor, ok := flags["no-color"].(bool); ok && noColor {
		c.Logging.NoColor = true
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".msgdump.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
