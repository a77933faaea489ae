package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	importservice "github.com/FACorreiaa/statement-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/statement-ingest/pkg/config"
)

// app is the state shared by every command
type app struct {
	envFile string
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Import bank statement exports into the transaction store",
		Long: `ingest detects the layout of CSV and XLSX bank statement exports,
parses them into normalized transactions, flags duplicates and categorizes
descriptions by keyword before storing them.`,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			if a.envFile != "" {
				files = append(files, a.envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(cfg.Log)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", "", "environment file to load (default .env)")

	rootCmd.AddCommand(
		newDetectCommand(a),
		newPreviewCommand(a),
		newImportCommand(a),
		newScanCommand(a),
		newWatchCommand(a),
		newSourcesCommand(a),
		newMigrateCommand(a),
		newKeywordsCommand(a),
		newArchiveCommand(a),
	)
	return rootCmd
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func readInputs(paths []string) ([]importservice.Input, error) {
	inputs := make([]importservice.Input, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		inputs = append(inputs, importservice.Input{Name: filepath.Base(p), Data: data})
	}
	return inputs, nil
}
