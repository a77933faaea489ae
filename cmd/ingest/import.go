package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/folder"
	importservice "github.com/FACorreiaa/statement-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/statement-ingest/pkg/cron"
)

func newImportCommand(a *app) *cobra.Command {
	var (
		flags  configFlags
		source string
		opts   importservice.ImportOptions
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "import --source NAME FILE...",
		Short: "Import statement files of one source",
		Long: `import parses the files with the source's stored configuration, or a
detected one for a new source, skips rows that were already imported and
stores the rest with their category.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			inputs, err := readInputs(args)
			if err != nil {
				return err
			}

			deps, err := a.dependencies(ctx)
			if err != nil {
				return err
			}
			defer deps.Cleanup()
			svc := deps.ImportService

			cfg, analysis, err := svc.ResolveConfig(ctx, source, inputs[0], opts.Redetect)
			if err != nil {
				return err
			}
			if analysis != nil {
				printAnalysis(cmd.OutOrStdout(), analysis)
			}
			if err := flags.apply(cmd, &cfg); err != nil {
				return err
			}

			preview, err := svc.Preview(ctx, source, cfg, inputs)
			if err != nil {
				return err
			}
			if len(preview.Rows) == 0 {
				return importservice.ErrNoRows
			}

			dups, err := svc.CheckDuplicates(ctx, source, inputs, preview.Rows)
			if err != nil {
				return err
			}
			printDuplicates(cmd.OutOrStdout(), dups)

			if dups.FileAlreadyImported && !opts.Force {
				return fmt.Errorf("%s: %w (use --force to import anyway)", inputs[0].Name, importservice.ErrFileAlreadyImported)
			}
			if dryRun {
				printPreview(cmd.OutOrStdout(), preview, 20)
				return nil
			}

			req := importservice.ExecuteRequest{
				SourceName: source,
				Config:     cfg,
				Files:      inputs,
				Rows:       preview.Rows,
				Duplicates: dups,
			}
			if opts.KeepDuplicates {
				for _, d := range dups.Duplicates {
					if !d.InBatch {
						req.KeepDuplicates = append(req.KeepDuplicates, d.RowIndex)
					}
				}
			}

			report, err := svc.Execute(ctx, req)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report, a.cfg.Import.DefaultCurrency)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&source, "source", "s", "", "source name (institution export)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "import a file that was already imported")
	cmd.Flags().BoolVar(&opts.KeepDuplicates, "keep-duplicates", false, "also import rows matching stored transactions")
	cmd.Flags().BoolVar(&opts.Redetect, "redetect", false, "ignore the stored configuration of the source")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "stop after the duplicate check")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func newScanCommand(a *app) *cobra.Command {
	var (
		root     string
		doImport bool
		opts     importservice.ImportOptions
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List the import folder, or import everything in it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if root == "" {
				root = a.cfg.Import.Folder
			}

			deps, err := a.dependencies(ctx)
			if err != nil {
				return err
			}
			defer deps.Cleanup()

			if doImport {
				results, err := deps.ImportService.ImportFolder(ctx, root, opts)
				if err != nil {
					return err
				}
				printFolderResults(cmd.OutOrStdout(), results)
				return nil
			}

			folders, err := folder.Scan(root)
			if err != nil {
				return err
			}
			sources, err := deps.ImportRepo.ListSources(ctx)
			if err != nil {
				return err
			}
			known := make([]string, len(sources))
			for i, s := range sources {
				known[i] = s.Name
			}
			printFolders(cmd.OutOrStdout(), folders, known)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "folder", "", "import folder (default IMPORT_FOLDER)")
	cmd.Flags().BoolVar(&doImport, "import", false, "import every file found")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "import files that were already imported")
	return cmd
}

func newWatchCommand(a *app) *cobra.Command {
	var (
		root     string
		schedule string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rescan the import folder on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if root == "" {
				root = a.cfg.Import.Folder
			}
			if schedule == "" {
				schedule = a.cfg.Import.WatchSchedule
			}

			deps, err := a.dependencies(ctx)
			if err != nil {
				return err
			}
			defer deps.Cleanup()

			scheduler := cron.NewScheduler(schedule, 30*time.Minute, func(ctx context.Context) error {
				results, err := deps.ImportService.ImportFolder(ctx, root, importservice.ImportOptions{})
				if err != nil {
					return err
				}
				logFolderResults(a.logger, results)
				return nil
			}, a.logger)

			var srv *http.Server
			if a.cfg.Observability.MetricsEnabled {
				srv = serveMetrics(deps, a.cfg.Observability.MetricsPort)
			}

			scheduler.RunNow()
			if err := scheduler.Start(); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", schedule, err)
			}

			<-ctx.Done()
			<-scheduler.Stop().Done()
			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "folder", "", "import folder (default IMPORT_FOLDER)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron schedule (default IMPORT_WATCH_SCHEDULE)")
	return cmd
}

func serveMetrics(deps *Dependencies, port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		deps.Logger.Info("metrics server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	return srv
}

func logFolderResults(logger *slog.Logger, results []importservice.FolderResult) {
	imported, skipped, failed := 0, 0, 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.Skipped:
			skipped++
		default:
			imported++
			logger.Info("file imported",
				slog.String("source", r.Source),
				slog.String("file", r.File),
				slog.Int("rows", r.Report.ImportedCount),
				slog.String("status", r.Report.Status))
		}
	}
	logger.Info("folder rescan finished",
		slog.Int("imported", imported),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed))
}

func newSourcesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List registered sources and their configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := a.dependencies(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Cleanup()

			sources, err := deps.ImportRepo.ListSources(cmd.Context())
			if err != nil {
				return err
			}
			printSources(cmd.OutOrStdout(), sources)
			return nil
		},
	}
}
