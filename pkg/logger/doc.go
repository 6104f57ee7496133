// Package logger provides the structured logging interface used across the crawler.
//
// It wraps zerolog with a colored console writer and, when a log file is
// configured, a size-rotated JSON file written through lumberjack.
//
// Basic Usage:
//
//	cfg := &config.LoggingConfig{
//	    Level:      "info",
//	    File:       "/var/log/igcrawler.log",
//	    MaxSize:    100,
//	    MaxBackups: 3,
//	}
//	err := logger.Initialize(cfg)
//
//	logger.Info("crawler started")
//	logger.WithField("handle", "natgeo").Info("profile opened")
//
// Components receive a Logger explicitly where they can; the global instance
// is for the command layer. Tests use NewNopLogger or NewTestLogger, which
// captures every message for assertions.
package logger
