package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/folder"
)

// FolderResult is the outcome of importing one file found in the import folder
type FolderResult struct {
	Folder  string
	Source  string
	File    string
	Report  *ImportReport
	Skipped bool
	Err     error
}

// ImportFolder imports every statement file under root. Each subdirectory
// names a source; an unknown folder name is mapped to the closest registered
// source when there is one. Files are imported one at a time so the
// already-imported check applies to each. A file failing does not stop the scan.
func (s *ImportService) ImportFolder(ctx context.Context, root string, opts ImportOptions) ([]FolderResult, error) {
	folders, err := folder.Scan(root)
	if err != nil {
		return nil, err
	}

	sources, err := s.repo.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	known := make([]string, len(sources))
	for i, src := range sources {
		known[i] = src.Name
	}

	var results []FolderResult
	for _, sf := range folders {
		name := sf.Name
		if suggested, ok := folder.SuggestSource(sf.Name, known); ok {
			name = suggested
		}

		for _, f := range sf.Files {
			if err := ctx.Err(); err != nil {
				return results, err
			}

			res := FolderResult{Folder: sf.Name, Source: name, File: f.Name}
			data, err := os.ReadFile(f.Path)
			if err != nil {
				res.Err = fmt.Errorf("failed to read %s: %w", f.Path, err)
				results = append(results, res)
				continue
			}

			res.Report, res.Err = s.ImportFiles(ctx, name, []Input{{Name: f.Name, Data: data}}, opts)
			if errors.Is(res.Err, ErrFileAlreadyImported) {
				res.Skipped, res.Err = true, nil
			}
			if res.Err != nil {
				s.logger.Warn("folder import failed",
					slog.String("source", name),
					slog.String("file", f.Name),
					slog.Any("error", res.Err))
			}
			results = append(results, res)
		}
	}
	return results, nil
}
