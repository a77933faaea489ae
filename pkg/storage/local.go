package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const metaDir = ".meta"

// LocalStorage archives files under <base>/<namespace>/<date>_<id8>_<name>
type LocalStorage struct {
	basePath string
	now      func() time.Time
}

// NewLocalStorage creates the archive root if needed
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, now: time.Now}, nil
}

// Upload copies r into the namespace directory, hashing it on the way
func (s *LocalStorage) Upload(ctx context.Context, namespace, filename, contentType string, r io.Reader) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := s.namespaceDir(namespace)
	if err := os.MkdirAll(filepath.Join(dir, metaDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create namespace directory: %w", err)
	}

	id := uuid.New()
	created := s.now().UTC()
	stored := fmt.Sprintf("%s_%s_%s", created.Format("20060102"), id.String()[:8], sanitizeFilename(filename))
	path := filepath.Join(dir, stored)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, h), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	info := &FileInfo{
		ID:          id,
		Namespace:   namespace,
		Name:        filename,
		Size:        size,
		Checksum:    hex.EncodeToString(h.Sum(nil)),
		ContentType: contentType,
		Path:        stored,
		CreatedAt:   created,
	}
	if err := s.writeMeta(info); err != nil {
		os.Remove(path)
		return nil, err
	}
	return info, nil
}

// Open returns the archived bytes of fileID
func (s *LocalStorage) Open(ctx context.Context, namespace string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	info, err := s.readMeta(namespace, fileID)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.namespaceDir(namespace), info.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, info, nil
}

// Delete removes the file and its metadata
func (s *LocalStorage) Delete(ctx context.Context, namespace string, fileID uuid.UUID) error {
	info, err := s.readMeta(namespace, fileID)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.namespaceDir(namespace), info.Path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return os.Remove(s.metaPath(namespace, fileID))
}

// List returns the namespace's files sorted by creation time
func (s *LocalStorage) List(ctx context.Context, namespace string) ([]*FileInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.namespaceDir(namespace), metaDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}

	files := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		id, err := uuid.Parse(strings.TrimSuffix(entry.Name(), ".json"))
		if entry.IsDir() || err != nil {
			continue
		}
		info, err := s.readMeta(namespace, id)
		if err != nil {
			continue
		}
		files = append(files, info)
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})
	return files, nil
}

func (s *LocalStorage) namespaceDir(namespace string) string {
	return filepath.Join(s.basePath, sanitizeFilename(namespace))
}

func (s *LocalStorage) metaPath(namespace string, fileID uuid.UUID) string {
	return filepath.Join(s.namespaceDir(namespace), metaDir, fileID.String()+".json")
}

func (s *LocalStorage) readMeta(namespace string, fileID uuid.UUID) (*FileInfo, error) {
	data, err := os.ReadFile(s.metaPath(namespace, fileID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

func (s *LocalStorage) writeMeta(info *FileInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(info.Namespace, info.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

var unsafeChars = strings.NewReplacer(
	"/", "_", "\\", "_", "..", "_", ":", "_", "*", "_",
	"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
)

// sanitizeFilename replaces path separators and shell-hostile characters
func sanitizeFilename(name string) string {
	name = unsafeChars.Replace(strings.TrimSpace(name))
	if name == "" {
		return "_"
	}
	return name
}
