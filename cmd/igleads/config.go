package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igleads/pkg/config"
)

var forceInit bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igleads configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables prefixed with IGLEADS_, including a .env file
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	Long: `Write the default configuration, including the keyword lists and the region
table, so it can be edited.

The file is written to $XDG_CONFIG_HOME/igleads/config.yaml unless a
different path is given with --config.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging defaults, the configuration file and
environment variables. Cookies and API keys are masked.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)

	initCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return fmt.Errorf("failed to resolve config path: %w", err)
		}
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("configuration file %s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	p := printer(cmd)
	p.Success("Configuration file created: " + path)
	p.Plain("\nNext steps:")
	p.Plain("1. Add seed handles under crawl.seeds or point crawl.seed_file at a list")
	p.Plain("2. Run 'igleads auth login' to store a session")
	p.Plain("3. Start with 'igleads crawl'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := *cfg
	display.Instagram.SessionID = maskSecret(display.Instagram.SessionID)
	display.Instagram.CSRFToken = maskSecret(display.Instagram.CSRFToken)
	display.Classifier.Semantic.APIKey = maskSecret(display.Classifier.Semantic.APIKey)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(nil)
	if err != nil {
		return err
	}

	p := printer(cmd)
	seeds, err := cfg.Crawl.ResolveSeeds()
	if err != nil {
		return err
	}
	p.Success("Configuration is valid")
	if len(seeds) == 0 {
		p.Warning("No seeds configured; pass them to 'igleads crawl' as arguments")
	} else {
		p.Info("Seeds", fmt.Sprintf("%d", len(seeds)))
	}
	return nil
}

func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) > 8:
		return s[:4] + "..." + s[len(s)-4:]
	default:
		return "***"
	}
}
