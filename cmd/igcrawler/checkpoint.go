package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"igcrawler/pkg/checkpoint"
	"igcrawler/pkg/config"
	"igcrawler/pkg/feed"
	"igcrawler/pkg/metadata"
	"igcrawler/pkg/scraper"
	"igcrawler/pkg/ui"
)

// checkpointCmd represents the checkpoint command
var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or clear a handle's crawl checkpoint",
	Long: `Every handle keeps a checkpoint listing the posts already persisted and
the media already downloaded. A later crawl only writes what is new.`,
}

var checkpointStatusCmd = &cobra.Command{
	Use:   "status <handle>",
	Short: "Show the checkpoint of a handle",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckpointStatus,
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear <handle>",
	Short: "Delete the checkpoint of a handle, keeping a backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckpointClear,
}

// pruneCmd removes media sidecars left behind by deleted files
var pruneCmd = &cobra.Command{
	Use:   "prune <handle>",
	Short: "Remove metadata files whose media file was deleted",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrune,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointStatusCmd)
	checkpointCmd.AddCommand(checkpointClearCmd)
	rootCmd.AddCommand(pruneCmd)
}

func runCheckpointStatus(cmd *cobra.Command, args []string) error {
	m, err := checkpoint.NewManager(args[0])
	if err != nil {
		return err
	}
	info, err := m.GetCheckpointInfo()
	if err != nil {
		ui.PrintError("Failed to read checkpoint", err)
		return err
	}
	if info == nil {
		ui.PrintInfo("No checkpoint", "@"+feed.NormalizeHandle(args[0]))
		return nil
	}

	ui.PrintHighlight("Checkpoint")
	ui.PrintInfo("Path", m.Path())
	ui.PrintInfo("Handle", fmt.Sprint(info["handle"]))
	ui.PrintInfo("Persisted posts", fmt.Sprint(info["total_persisted"]))
	ui.PrintInfo("Downloaded media", fmt.Sprint(info["total_downloaded"]))
	ui.PrintInfo("Last run", fmt.Sprint(info["last_run_id"]))
	if age, ok := info["age"].(time.Duration); ok {
		ui.PrintInfo("Updated", age.Round(time.Second).String()+" ago")
	}
	if inProgress, _ := info["in_progress"].(bool); inProgress {
		ui.PrintWarning("The last crawl did not finish, continue it with --resume")
	}
	return nil
}

func runCheckpointClear(cmd *cobra.Command, args []string) error {
	m, err := checkpoint.NewManager(args[0])
	if err != nil {
		return err
	}
	if !m.Exists() {
		ui.PrintInfo("No checkpoint", "@"+feed.NormalizeHandle(args[0]))
		return nil
	}
	if err := m.BackupCheckpoint(); err != nil {
		return err
	}
	if err := m.Delete(); err != nil {
		return err
	}
	ui.PrintSuccess("Checkpoint cleared, backup kept at " + m.Path() + ".backup")
	return nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	handle := feed.NormalizeHandle(args[0])
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err)
		return err
	}

	dir := scraper.MediaDir(cfg.Output.Directory, handle)
	removed, err := metadata.CleanOrphaned(dir)
	if err != nil {
		ui.PrintError("Failed to prune metadata", err)
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Removed %d orphaned metadata files from %s", removed, dir))
	return nil
}
