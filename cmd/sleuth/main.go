package main

import (
	"context"
	"fmt"
	"os"

	"coinsleuth/internal/config"
	"coinsleuth/internal/container"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// storageFlags override the environment configuration for one invocation
type storageFlags struct {
	backend  string
	folder   string
	file     string
	noDB     bool
	noCache  bool
	tolerate bool
	workers  int
	logLevel string
}

func main() {
	_ = godotenv.Load()

	flags := &storageFlags{}
	rootCmd := &cobra.Command{
		Use:   "sleuth",
		Short: "Run-length chi-squared tests for binary sequences",
		Long: `sleuth tests whether binary sequences look like fair, independent coin flips.

Every sequence of length N maps to a partition of N (its run lengths). The
statistics table for N lists each partition with its multiplicity, Pearson
chi-squared statistic against the expected run-length counts, and the
multiplicity-weighted rank p-value. Tables are cached in memory and persisted.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.backend, "backend", "", "Storage backend: sqlite|postgres|badger (default from SLEUTH_BACKEND)")
	pf.StringVar(&flags.folder, "db-folder", "", "Storage folder (default from SLEUTH_DB_FOLDER)")
	pf.StringVar(&flags.file, "db-file", "", "Storage file name (default from SLEUTH_DB_FILE)")
	pf.BoolVar(&flags.noDB, "no-db", false, "Disable the persistent store")
	pf.BoolVar(&flags.noCache, "no-cache", false, "Disable the in-memory cache")
	pf.BoolVar(&flags.tolerate, "tolerate-storage-errors", false, "Keep serving computed tables when storage fails")
	pf.IntVar(&flags.workers, "workers", 0, "Worker goroutines for sample analysis and sampling")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: ERROR|WARN|INFO|DEBUG|TRACE")

	rootCmd.AddCommand(
		newBuildCmd(flags),
		newSummarizeCmd(flags),
		newTableCmd(flags),
		newAnalyzeCmd(flags),
		newTestCmd(flags),
		newSimulateCmd(flags),
		newMoeCmd(flags),
		newGenerateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openContainer loads configuration, applies flag overrides and wires services
func openContainer(ctx context.Context, flags *storageFlags) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if flags.backend != "" {
		cfg.Storage.Backend = flags.backend
	}
	if flags.folder != "" {
		cfg.Storage.Location = flags.folder
	}
	if flags.file != "" {
		cfg.Storage.FileName = flags.file
	}
	if flags.noDB {
		cfg.Storage.EnablePersistence = false
	}
	if flags.noCache {
		cfg.Storage.EnableInMemoryCache = false
	}
	if flags.tolerate {
		cfg.Storage.TolerateErrors = true
	}
	if flags.workers > 0 {
		cfg.Analysis.Workers = flags.workers
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return container.New(ctx, cfg)
}
