// Package storage keeps rendered invoice PDFs on local disk or in MinIO.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/floresloli/pedidos-factura-service/internal/common"
	"github.com/floresloli/pedidos-factura-service/internal/models"
)

// ContentType of every stored document
const ContentType = "application/pdf"

// Store is a flat namespace of PDF documents
type Store interface {
	Save(ctx context.Context, name string, r io.Reader, size int64) error
	List(ctx context.Context) ([]models.StoredFile, error)
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, name string) error
	URL(ctx context.Context, name string) (string, error)
}

// CleanName strips any directory part from name and checks it is a PDF name
func CleanName(name string) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == "/" || base == ".pdf" || !strings.HasSuffix(strings.ToLower(base), ".pdf") {
		return "", common.NewAppError("INVALID_FILENAME", fmt.Sprintf("invalid document name %q", name), common.ErrInvalidInput)
	}
	return base, nil
}

func notFound(name string) error {
	return common.NewAppError("NOT_FOUND", fmt.Sprintf("document %s not found", name), common.ErrNotFound)
}
