package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRound logs the outcome of one pagination round
func LogRound(l Logger, round, newItems, collected, target int, elapsed, interval time.Duration) {
	fields := map[string]interface{}{
		"round":     round,
		"new_items": newItems,
		"collected": collected,
		"target":    target,
		"elapsed":   elapsed,
		"interval":  interval,
	}
	if newItems > 0 {
		l.InfoWithFields("Round made progress", fields)
		return
	}
	l.DebugWithFields("Round yielded nothing new", fields)
}

// LogItemSkipped logs an item that was dropped or downgraded during extraction
func LogItemSkipped(l Logger, key, reason string, err error) {
	entry := l.WithFields(map[string]interface{}{
		"key":    key,
		"reason": reason,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn("Item skipped")
}

// LogScrapeProgress logs overall progress against the target
func LogScrapeProgress(handle string, collected, target int) {
	percentage := 0.0
	if target > 0 {
		percentage = float64(collected) / float64(target) * 100
	}

	GetLogger().WithFields(map[string]interface{}{
		"handle":     handle,
		"collected":  collected,
		"target":     target,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Crawl progress")
}

// LogDownload logs media download operations
func LogDownload(handle, key string, success bool, err error) {
	entry := GetLogger().WithFields(map[string]interface{}{
		"handle":  handle,
		"key":     key,
		"success": success,
	})

	if err != nil {
		entry.WithError(err).Error("Download failed")
	} else if success {
		entry.Debug("Download completed")
	} else {
		entry.Warn("Download skipped")
	}
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
