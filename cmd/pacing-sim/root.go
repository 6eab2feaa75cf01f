package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	envLogLevel = "PACING_LOG_LEVEL"
	envDB       = "PACING_DB"
	envWorkers  = "PACING_WORKERS"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pacing-sim",
		Short: "Simulate budget-paced bidders in repeated second-price auctions.",
		Long: `pacing-sim plays scenario files in which truthful, budget-capped and paced bidders ` +
			`compete in second-price auctions, and reports spend, value and ROI bids per iteration. ` +
			`Defaults for some flags are read from the environment and from a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadDotEnv(".env")
		},
	}
	rootCmd.AddCommand(newRunCmd(), newSolveCmd())
	return rootCmd
}

// loadDotEnv loads path into the environment when it exists. Variables already set win.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
