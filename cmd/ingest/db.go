package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-ingest/internal/domain/categorization"
)

func newMigrateCommand(a *app) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps := &Dependencies{Config: a.cfg, Logger: a.logger}
			database, err := deps.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if !status {
				if err := database.RunMigrations(ctx); err != nil {
					return err
				}
			}

			statuses, err := database.MigrationStatus(ctx)
			if err != nil {
				return err
			}
			printMigrations(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "only show migration status")
	return cmd
}

func newKeywordsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Manage categorization keywords",
	}

	var (
		category string
		kind     string
		priority int
	)
	add := &cobra.Command{
		Use:   "add --category NAME KEYWORD...",
		Short: "Add a keyword to a category, creating the category if needed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := a.dependencies(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Cleanup()

			kw, err := deps.CategorizationService.AddKeyword(cmd.Context(), category, kind, strings.Join(args, " "), priority)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added keyword %q (priority %d) to %s: %s\n", kw.Text, kw.Priority, category, kw.ID)
			return nil
		},
	}
	add.Flags().StringVarP(&category, "category", "c", "", "category name")
	add.Flags().StringVar(&kind, "kind", "expense", "kind of a new category ("+strings.Join(categorization.CategoryKinds, ", ")+")")
	add.Flags().IntVarP(&priority, "priority", "p", 0, "higher priorities win when several keywords match")
	_ = add.MarkFlagRequired("category")

	test := &cobra.Command{
		Use:   "test DESCRIPTION",
		Short: "Show which keyword matches a description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := a.dependencies(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Cleanup()

			keywords, err := deps.CategorizationRepo.ListActiveKeywords(cmd.Context())
			if err != nil {
				return err
			}
			printKeywordMatch(cmd.OutOrStdout(), args[0], keywords, categorization.Categorize(args[0], keywords))
			return nil
		},
	}

	cmd.AddCommand(add, test, newKeywordToggleCommand(a, "enable", true), newKeywordToggleCommand(a, "disable", false))
	return cmd
}

func newKeywordToggleCommand(a *app, name string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   name + " KEYWORD_ID",
		Short: strings.ToUpper(name[:1]) + name[1:] + " a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid keyword id %q: %w", args[0], err)
			}

			deps, err := a.dependencies(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Cleanup()

			if err := deps.CategorizationService.SetKeywordActive(cmd.Context(), id, active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "keyword %s %sd\n", id, name)
			return nil
		},
	}
}
