// Package logger provides a structured logging interface for the Messenger dumper.
//
// It wraps the zerolog library to provide a clean, easy-to-use API with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output with colors
// - Optional file output alongside the console
// - Context support for request tracing
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "msgdump/pkg/logger"
//
//	// Initialize the global logger
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File: "/var/log/msgdump.log",
//	}
//	err := logger.Initialize(cfg)
//
//	// Use the global logger
//	logger.Info("Application started")
//	logger.WithField("conversation_id", "1234567890").Info("Dumping conversation")
//	logger.WithError(err).Error("Failed to download attachment")
//
// Advanced Usage:
//
//	// Create a logger instance with fields
//	log := logger.GetLogger().
//	    WithField("component", "dumper").
//	    WithField("run_id", runID)
//
//	// Use structured logging
//	log.InfoWithFields("Archive written", map[string]interface{}{
//	    "file": "complete.json",
//	    "messages": 1552,
//	    "duration": time.Second * 5,
//	})
//
// The logger supports the following configuration options:
// - Level: Log level (debug, info, warn, error, fatal)
// - File: Path to log file (empty for console only)
// - NoColor: Disable ANSI colors in console output
package logger
