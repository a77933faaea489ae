// Package folder lists statement files waiting in the import folder. Every
// direct subdirectory is one source; its statement files are the candidates.
package folder

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

var supportedExtensions = map[string]bool{
	".csv":  true,
	".txt":  true,
	".xlsx": true,
}

// File is a statement file found in a source folder
type File struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// IsWorkbook reports whether the file is an Excel workbook rather than text.
func (f File) IsWorkbook() bool {
	return strings.EqualFold(filepath.Ext(f.Name), ".xlsx")
}

// SourceFolder is one subdirectory of the import folder
type SourceFolder struct {
	Name  string
	Path  string
	Files []File
}

// IsSupported reports whether name has a statement file extension.
func IsSupported(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Scan lists the source folders under root, sorted by name, each with its
// supported files sorted by name. Hidden entries and files directly under root are ignored.
func Scan(root string) ([]SourceFolder, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read import folder %s: %w", root, err)
	}

	var sources []SourceFolder
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(root, e.Name())
		files, err := ListFiles(dir)
		if err != nil {
			return nil, err
		}
		sources = append(sources, SourceFolder{Name: e.Name(), Path: dir, Files: files})
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources, nil
}

// ListFiles returns the supported files of one source folder sorted by name.
func ListFiles(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source folder %s: %w", dir, err)
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !IsSupported(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", e.Name(), err)
		}
		files = append(files, File{
			Name:    e.Name(),
			Path:    filepath.Join(dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// SuggestSource returns the registered source name closest to folder, for
// folders that do not match any source exactly. Matching is case and accent
// insensitive and works in both directions ("bnp" finds "BNP Paribas" and
// "bnp-paribas-2024" finds "bnp").
func SuggestSource(folder string, known []string) (string, bool) {
	for _, k := range known {
		if k == folder {
			return k, true
		}
	}

	ranks := fuzzy.RankFindNormalizedFold(folder, known)
	if len(ranks) == 0 {
		for i, k := range known {
			if fuzzy.MatchNormalizedFold(k, folder) {
				ranks = append(ranks, fuzzy.Rank{
					Source:        k,
					Target:        k,
					Distance:      fuzzy.LevenshteinDistance(k, folder),
					OriginalIndex: i,
				})
			}
		}
	}
	if len(ranks) == 0 {
		return "", false
	}

	sort.Stable(ranks)
	return ranks[0].Target, true
}
