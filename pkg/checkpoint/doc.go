// Package checkpoint keeps a per-handle ledger of what earlier crawls already
// persisted and downloaded.
//
// A crawl writes items to its sinks round by round. Each persisted key is
// recorded here so that a later run, or a resumed one after an interruption,
// only writes and downloads items that are new. Use --force-restart on the
// crawl command to discard the ledger.
//
// Checkpoints are stored in platform-specific data directories:
//   - Linux: ~/.local/share/igcrawler/checkpoints/
//   - macOS: ~/Library/Application Support/igcrawler/checkpoints/
//   - Windows: %APPDATA%/igcrawler/checkpoints/
//
// Files are saved atomically via a temporary file and rename.
package checkpoint
