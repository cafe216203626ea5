package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/floresloli/pedidos-factura-service/internal/models"
)

// LocalStore keeps documents in a directory
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir if needed
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create invoices dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the backing directory
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save writes the document atomically, replacing any previous version
func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader, size int64) error {
	name, err := CleanName(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to store %s: %w", name, err)
	}
	return nil
}

// List returns the stored PDFs, newest first
func (s *LocalStore) List(ctx context.Context) ([]models.StoredFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	files := []models.StoredFile{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, models.StoredFile{
			Name:      e.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].Name > files[j].Name
		}
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

// Open returns the document and its size
func (s *LocalStore) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	name, err := CleanName(name)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, notFound(name)
		}
		return nil, 0, fmt.Errorf("failed to open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	return f, info.Size(), nil
}

// Delete removes the document
func (s *LocalStore) Delete(ctx context.Context, name string) error {
	name, err := CleanName(name)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound(name)
		}
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// URL is the service-relative download path
func (s *LocalStore) URL(ctx context.Context, name string) (string, error) {
	name, err := CleanName(name)
	if err != nil {
		return "", err
	}
	return "/factura/" + name, nil
}
