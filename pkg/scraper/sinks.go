package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"igcrawler/pkg/config"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/storage"
)

// OpenSinks opens every sink enabled in cfg for handle. Closing the returned
// sink closes all of them.
func OpenSinks(ctx context.Context, cfg *config.Config, handle string, log logger.Logger) (*storage.MultiSink, error) {
	var sinks []storage.Sink
	fail := func(err error) (*storage.MultiSink, error) {
		_ = storage.NewMultiSink(sinks...).Close()
		return nil, err
	}

	if cfg.Output.JSONLines || cfg.Output.Snapshot {
		if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if cfg.Output.JSONLines {
		j, err := storage.OpenJSONLines(filepath.Join(cfg.Output.Directory, handle+".jsonl"))
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, j)
		log.WithField("path", j.Path()).Debug("JSON lines sink opened")
	}

	if cfg.Output.Snapshot {
		name := strings.ReplaceAll(cfg.Output.SnapshotName, "{handle}", handle)
		s, err := storage.OpenSnapshot(filepath.Join(cfg.Output.Directory, name))
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
		log.WithField("path", s.Path()).Debug("Snapshot sink opened")
	}

	if cfg.Database.DSN != "" {
		p, err := storage.OpenPostgres(ctx, cfg.Database, log)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, p)
	}

	return storage.NewMultiSink(sinks...), nil
}
