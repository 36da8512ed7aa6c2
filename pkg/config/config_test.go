package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	// Test default values
	if config.Dump.PageSize != 2000 {
		t.Errorf("Expected default page size to be 2000, got %d", config.Dump.PageSize)
	}

	if config.Dump.ThreadPageSize != 1000 {
		t.Errorf("Expected default thread page size to be 1000, got %d", config.Dump.ThreadPageSize)
	}

	if config.Download.Workers != 4 {
		t.Errorf("Expected default download workers to be 4, got %d", config.Download.Workers)
	}

	if config.Parse.Mode != "report" {
		t.Errorf("Expected default parse mode to be report, got %s", config.Parse.Mode)
	}

	if len(config.Parse.DataTypes) != 1 || config.Parse.DataTypes[0] != "all" {
		t.Errorf("Expected default data types to be [all], got %v", config.Parse.DataTypes)
	}

	if config.Output.BaseDirectory != "output" {
		t.Errorf("Expected default output directory to be output, got %s", config.Output.BaseDirectory)
	}
}

func TestLoadFromEnv(t *testing.T) {
	// Set test environment variables
	os.Setenv("MSGDUMP_REQUEST_FILE", "/tmp/request_data.txt")
	os.Setenv("MSGDUMP_ACCOUNT", "test-account")
	os.Setenv("MSGDUMP_PAGE_SIZE", "500")
	os.Setenv("MSGDUMP_REQUESTS_PER_MINUTE", "30")
	os.Setenv("MSGDUMP_OUTPUT_DIR", "/tmp/test-output")
	os.Setenv("MSGDUMP_WORKERS", "8")
	os.Setenv("MSGDUMP_LOG_LEVEL", "debug")

	defer func() {
		// Clean up environment variables
		os.Unsetenv("MSGDUMP_REQUEST_FILE")
		os.Unsetenv("MSGDUMP_ACCOUNT")
		os.Unsetenv("MSGDUMP_PAGE_SIZE")
		os.Unsetenv("MSGDUMP_REQUESTS_PER_MINUTE")
		os.Unsetenv("MSGDUMP_OUTPUT_DIR")
		os.Unsetenv("MSGDUMP_WORKERS")
		os.Unsetenv("MSGDUMP_LOG_LEVEL")
	}()

	config := DefaultConfig()
	err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	// Test loaded values
	if config.Credentials.RequestFile != "/tmp/request_data.txt" {
		t.Errorf("Expected request file to be /tmp/request_data.txt, got %s", config.Credentials.RequestFile)
	}

	if config.Credentials.Account != "test-account" {
		t.Errorf("Expected account to be test-account, got %s", config.Credentials.Account)
	}

	if config.Dump.PageSize != 500 {
		t.Errorf("Expected page size to be 500, got %d", config.Dump.PageSize)
	}

	if config.RateLimit.RequestsPerMinute != 30 {
		t.Errorf("Expected requests per minute to be 30, got %d", config.RateLimit.RequestsPerMinute)
	}

	if config.Output.BaseDirectory != "/tmp/test-output" {
		t.Errorf("Expected output directory to be /tmp/test-output, got %s", config.Output.BaseDirectory)
	}

	if config.Download.Workers != 8 {
		t.Errorf("Expected download workers to be 8, got %d", config.Download.Workers)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level to be debug, got %s", config.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Dump: DumpConfig{
				PageSize:       2000,
				ThreadPageSize: 1000,
			},
			Parse: ParseConfig{
				Mode:      "report",
				DataTypes: []string{"all"},
			},
			Download: DownloadConfig{
				Workers: 4,
				Timeout: 30 * time.Second,
			},
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         5,
				MaxRetries:        3,
			},
			Output: OutputConfig{
				BaseDirectory: "output",
				LedgerFile:    "msgdump.db",
			},
			Logging: LoggingConfig{
				Level: "info",
			},
		}
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{
			name:      "valid config",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "zero page size",
			mutate:    func(c *Config) { c.Dump.PageSize = 0 },
			wantError: true,
		},
		{
			name:      "unknown parse mode",
			mutate:    func(c *Config) { c.Parse.Mode = "export" },
			wantError: true,
		},
		{
			name:      "unknown data type",
			mutate:    func(c *Config) { c.Parse.DataTypes = []string{"stickers"} },
			wantError: true,
		},
		{
			name:      "too many workers",
			mutate:    func(c *Config) { c.Download.Workers = 32 },
			wantError: true,
		},
		{
			name:      "missing output directory",
			mutate:    func(c *Config) { c.Output.BaseDirectory = "" },
			wantError: true,
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "invalid" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()

	flags := map[string]interface{}{
		"request-file": "/flag/request_data.txt",
		"account":      "flag-account",
		"page-size":    750,
		"mode":         "dl",
		"data":         []string{"pictures", "links"},
		"workers":      7,
		"output":       "/flag/output",
		"log-level":    "error",
	}

	config.MergeCommandLineFlags(flags)

	// Test merged values
	if config.Credentials.RequestFile != "/flag/request_data.txt" {
		t.Errorf("Expected request file to be /flag/request_data.txt, got %s", config.Credentials.RequestFile)
	}

	if config.Credentials.Account != "flag-account" {
		t.Errorf("Expected account to be flag-account, got %s", config.Credentials.Account)
	}

	if config.Dump.PageSize != 750 {
		t.Errorf("Expected page size to be 750, got %d", config.Dump.PageSize)
	}

	if config.Parse.Mode != "dl" {
		t.Errorf("Expected parse mode to be dl, got %s", config.Parse.Mode)
	}

	if len(config.Parse.DataTypes) != 2 {
		t.Errorf("Expected two data types, got %v", config.Parse.DataTypes)
	}

	if config.Download.Workers != 7 {
		t.Errorf("Expected download workers to be 7, got %d", config.Download.Workers)
	}

	if config.Output.BaseDirectory != "/flag/output" {
		t.Errorf("Expected output directory to be /flag/output, got %s", config.Output.BaseDirectory)
	}

	if config.Logging.Level != "error" {
		t.Errorf("Expected log level to be error, got %s", config.Logging.Level)
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	// Create temporary directory for testing
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	// Create a config and save it
	config := DefaultConfig()
	config.Credentials.Account = "save-test-account"
	config.Dump.PageSize = 1234
	config.Download.Workers = 8

	err := config.Save(configPath)
	if err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	// Load the saved config
	loadedConfig := DefaultConfig()
	err = loadedConfig.LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify loaded values
	if loadedConfig.Credentials.Account != "save-test-account" {
		t.Errorf("Expected loaded account to be save-test-account, got %s", loadedConfig.Credentials.Account)
	}

	if loadedConfig.Dump.PageSize != 1234 {
		t.Errorf("Expected loaded page size to be 1234, got %d", loadedConfig.Dump.PageSize)
	}

	if loadedConfig.Download.Workers != 8 {
		t.Errorf("Expected loaded download workers to be 8, got %d", loadedConfig.Download.Workers)
	}
}
