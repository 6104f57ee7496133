package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igcrawler/pkg/config"
	"igcrawler/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igcrawler configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (IGCRAWLER_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with the default values",
	Long: `Create a configuration file holding every option at its default value.

The file will be created in the current directory as 'igcrawler.yaml'
unless a different path is specified with the --config flag.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging all sources.

The database password, if any, is masked.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value types and ranges
  - Output and log directory accessibility`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "igcrawler.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		return fmt.Errorf("%s already exists", configPath)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		ui.PrintError("Failed to create configuration file", err)
		return err
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the configuration file")
	fmt.Println("2. Run 'igcrawler config validate' to check the configuration")
	fmt.Println("3. Store an account with 'igcrawler auth login'")
	fmt.Println("4. Start crawling with 'igcrawler crawl <handle>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err)
		return err
	}

	displayCfg := *cfg
	displayCfg.Database.DSN = redactDSN(displayCfg.Database.DSN)

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err)
		return err
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (IGCRAWLER_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (searched in default locations)")
	}
	fmt.Println("4. Default values")
	return nil
}

// redactDSN masks the password of a URL-style connection string
func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	return u.Redacted()
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		home := os.Getenv("HOME")
		for _, p := range []string{
			"igcrawler.yaml",
			"igcrawler.yml",
			".igcrawler.yaml",
			filepath.Join(home, ".igcrawler.yaml"),
			filepath.Join(home, ".config", "igcrawler", "config.yaml"),
		} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
		if path == "" {
			ui.PrintError("No configuration file found", "Specify a file with --config flag")
			return fmt.Errorf("no configuration file found")
		}
	}

	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err)
		return err
	}

	var problems, warnings []string

	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}
	if !cfg.Output.JSONLines && !cfg.Output.Snapshot && cfg.Database.DSN == "" {
		warnings = append(warnings, "No sink enabled, collected posts will not be stored")
	}
	if !cfg.Browser.Headless {
		warnings = append(warnings, "Browser runs with a visible window")
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("configuration has %d errors", len(problems))
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	if cfg.Crawl.Target > 0 {
		fmt.Printf("  Target: %d posts\n", cfg.Crawl.Target)
	} else {
		fmt.Println("  Target: every post on the profile")
	}
	fmt.Printf("  Wait budget: %s\n", cfg.Crawl.BudgetDuration())
	fmt.Printf("  Output directory: %s\n", cfg.Output.Directory)
	fmt.Printf("  Rate limit: %d actions/minute\n", cfg.RateLimit.ActionsPerMinute)
	fmt.Printf("  Media download: %t\n", cfg.Download.Enabled)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
