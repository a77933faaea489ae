package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-ingest/pkg/storage"
)

var errArchiveDisabled = errors.New("archiving is disabled (IMPORT_ARCHIVE_DIR is empty)")

// archive opens the configured archive without touching the database
func (a *app) archive() (storage.Storage, error) {
	archive, err := storage.New(storage.Config{LocalPath: a.cfg.Import.ArchiveDir})
	if err != nil {
		return nil, err
	}
	if archive == nil {
		return nil, errArchiveDisabled
	}
	return archive, nil
}

func newArchiveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect the copies kept of imported files",
	}

	list := &cobra.Command{
		Use:   "list SOURCE",
		Short: "List the archived files of a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.archive()
			if err != nil {
				return err
			}
			files, err := archive.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printArchive(cmd.OutOrStdout(), files)
			return nil
		},
	}

	cat := &cobra.Command{
		Use:   "cat SOURCE FILE_ID",
		Short: "Write an archived file to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFileID(args[1])
			if err != nil {
				return err
			}
			archive, err := a.archive()
			if err != nil {
				return err
			}
			r, _, err := archive.Open(cmd.Context(), args[0], id)
			if err != nil {
				return err
			}
			defer r.Close()
			_, err = io.Copy(cmd.OutOrStdout(), r)
			return err
		},
	}

	rm := &cobra.Command{
		Use:   "rm SOURCE FILE_ID",
		Short: "Delete an archived file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFileID(args[1])
			if err != nil {
				return err
			}
			archive, err := a.archive()
			if err != nil {
				return err
			}
			if err := archive.Delete(cmd.Context(), args[0], id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}

	cmd.AddCommand(list, cat, rm)
	return cmd
}

func parseFileID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid file id %q: %w", s, err)
	}
	return id, nil
}
