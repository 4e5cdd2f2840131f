package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "marketscout",
	Short:         "Marketplace search, opportunity scoring and trend tracking",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("NO_COLOR") != "" {
			noColor = true
		}
		return loadDotEnv(envFile)
	},
}

var envFile string

// loadDotEnv reads KEY=VALUE pairs into the environment without
// overriding variables that are already set. A missing default file is fine.
func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env when present)")

	rootCmd.AddCommand(serveCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(searchCmd, trendsCmd, refreshCmd, statsCmd, recommendCmd, detailsCmd)
	rootCmd.AddCommand(watchlistCmd, seedCmd, migrateCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
