// Package cli defines Cobra command definitions for the mabel CLI.
// This file contains the root command, version flag, and shared setup.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mabel-stories/mabel/internal/config"
	"github.com/mabel-stories/mabel/internal/log"
	"github.com/mabel-stories/mabel/internal/store"
)

var (
	workDir string
	debug   bool
	version = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "mabel",
	Short: "Guided family memoir interviews",
	Long: `Mabel helps you interview a family member one themed module at a time.
AI-written questions guide each module, the answers become a chapter,
and approved chapters are compiled into a book.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workDir, "dir", "", "Directory holding .mabel/ (default: current directory)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log SQL statements")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(interviewCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(cleanCmd)
}

// app is the shared state most commands open.
type app struct {
	dir    string
	cfg    *config.Config
	logger *log.Logger
	store  *store.Store
}

func resolveDir() (string, error) {
	if workDir != "" {
		return workDir, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return dir, nil
}

// openApp loads config and opens the logger and database.
func openApp() (*app, error) {
	dir, err := resolveDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := log.NewLogger(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Database.Path, store.Options{
		BusyTimeout: cfg.BusyTimeout(),
		Debug:       debug,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &app{dir: dir, cfg: cfg, logger: logger, store: st}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
