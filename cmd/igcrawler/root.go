package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"igcrawler/pkg/ui"
)

var (
	// Version information
	version   = "0.4.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	notifications bool
	quiet         bool
	noColor       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igcrawler",
	Short: "Crawl a profile feed with a real browser",
	Long: `igcrawler scrolls an Instagram profile feed in an automated browser and
collects its posts.

Features:
  - Adaptive pagination with exponential backoff on a stalled feed
  - Optional detail mode: caption, collaborators, likes and comments
  - JSON lines, snapshot and Postgres sinks
  - Checkpointed runs that only persist posts not seen before
  - Optional media download with a concurrent worker pool
  - Secure credential storage using the system keychain`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColor(false)
		}
		if quiet {
			ui.Output = io.Discard
			logLevel = "error"
		}
		if !quiet && cmd.Name() != "help" && cmd.Name() != "version" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./igcrawler.yaml or ~/.config/igcrawler/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", true, "enable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output (also honors NO_COLOR)")

	rootCmd.SetVersionTemplate(`igcrawler {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
