package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"msgdump/pkg/config"
	"msgdump/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage msgdump configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'msgdump.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the current configuration including values from all sources:
  - Command line flags
  - Environment variables
  - Configuration file
  - Default values

Session bundles are never part of the configuration; they live in the
credential store (see 'msgdump auth').`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Required fields
  - Value types and ranges
  - Path accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	// Determine config file path
	configPath := configFile
	if configPath == "" {
		configPath = "msgdump.yaml"
	}

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	// Create example configuration
	exampleConfig := `# msgdump Configuration File
#
# This file contains all available configuration options.
# You can also use environment variables prefixed with MSGDUMP_
# For example: MSGDUMP_OUTPUT_DIR, MSGDUMP_LOG_LEVEL

# Credential sources
# Session bundles themselves are stored in the system keychain or an
# encrypted file, never in this configuration.
credentials:
  # Path to a copied-request file (optional)
  # When set, the session is read from this file instead of the store
  request_file: ""

  # Stored account to use (optional)
  # Leave empty to use the default account
  account: ""

  # User agent string sent with every request
  user_agent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

# Dump phase settings
dump:
  # Messages fetched per history request
  # Range: 1-5000
  page_size: 2000

  # Conversations fetched per listing request
  thread_page_size: 1000

  # Resume interrupted dumps by default
  resume: false

# Parse phase settings
parse:
  # Parse mode: report writes text reports, dl also downloads media
  mode: "report"

  # Data types to extract
  # Options: all, messages, pictures, gifs, videos, files, links
  data_types:
    - "all"

# Download settings (dl mode)
download:
  # Number of concurrent download workers
  # Range: 1-16
  workers: 4

  # Download timeout
  timeout: 30s

  # Re-download media that is already on disk
  overwrite_existing: false

# Rate limiting configuration
rate_limit:
  # Requests per minute
  # Range: 1-120
  requests_per_minute: 60

  # Burst size (number of requests allowed in a burst)
  burst_size: 5

  # Backoff multiplier for retries
  backoff_multiplier: 2.0

  # Maximum number of retry attempts
  # Range: 0-10
  max_retries: 3

  # Initial delay between retries
  retry_delay: 5s

# Output settings
output:
  # Directory the per-conversation archives land in
  base_directory: "output"

  # Also write an indented complete.pretty.json next to each archive
  pretty_json: true

  # Dump ledger file name, kept inside the output directory
  ledger_file: "msgdump.db"

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path (optional)
  # Leave empty to log to stderr only
  file: ""

  # Disable colored output
  no_color: false
`

	// Write configuration file
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Run 'msgdump auth login' to capture and store a session")
	fmt.Println("2. Run 'msgdump config validate' to check the configuration")
	fmt.Println("3. Start dumping with 'msgdump dump'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	// Load configuration
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Convert to YAML for display
	data, err := yaml.Marshal(cfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	// Show configuration sources
	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (MSGDUMP_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (not specified)")
	}
	fmt.Println("4. Default values")
	fmt.Println("\nSession bundles are stored separately; run 'msgdump auth list' to see them.")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	// Check if config file is specified
	if configFile == "" {
		// Try to find config file in common locations
		possiblePaths := []string{
			"msgdump.yaml",
			"msgdump.yml",
			".msgdump.yaml",
			".msgdump.yml",
			filepath.Join(os.Getenv("HOME"), ".msgdump.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "msgdump", "config.yaml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			ui.PrintError("No configuration file found", "Specify a file with --config flag")
			os.Exit(1)
		}
	}

	ui.PrintInfo("Validating configuration", configFile)

	// Try to load and validate configuration
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	// Perform additional validation checks
	warnings := []string{}
	errors := []string{}

	// Check credential sources
	if cfg.Credentials.RequestFile != "" {
		if _, err := os.Stat(cfg.Credentials.RequestFile); err != nil {
			warnings = append(warnings, fmt.Sprintf("request file %s does not exist", cfg.Credentials.RequestFile))
		}
	}

	// Check paths
	if cfg.Output.BaseDirectory != "" {
		if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("Cannot create output directory: %v", err))
		}
	}

	// Check logging file path
	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			errors = append(errors, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	// Check value ranges
	if cfg.Dump.PageSize < 1 || cfg.Dump.PageSize > 5000 {
		errors = append(errors, "page_size must be between 1 and 5000")
	}
	if cfg.Download.Workers < 1 || cfg.Download.Workers > 16 {
		errors = append(errors, "workers must be between 1 and 16")
	}
	if cfg.RateLimit.RequestsPerMinute < 1 || cfg.RateLimit.RequestsPerMinute > 120 {
		errors = append(errors, "requests_per_minute must be between 1 and 120")
	}
	if cfg.RateLimit.MaxRetries < 0 || cfg.RateLimit.MaxRetries > 10 {
		errors = append(errors, "max_retries must be between 0 and 10")
	}

	// Display results
	if len(errors) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, err := range errors {
			fmt.Printf("  - %s\n", err)
		}
		os.Exit(1)
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	// Show summary
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Dump page size: %d\n", cfg.Dump.PageSize)
	fmt.Printf("  Parse mode: %s\n", cfg.Parse.Mode)
	fmt.Printf("  Download workers: %d\n", cfg.Download.Workers)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
