// Package storage keeps PDF files: originals uploaded by users and the
// finalized artifacts produced from them. Files are addressed by keys
// relative to the uploads root, e.g. "pdfs/<uuid>.pdf".
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
	sc "github.com/dmitrijs2005/pdfsigner/internal/server/config"
)

const (
	// UploadsRoot prefixes every public file path.
	UploadsRoot   = "/uploads/"
	OriginalsDir  = "pdfs"
	FinalizedDir  = "finalized"
	pdfExtension  = ".pdf"
	presignExpiry = 15 * time.Minute
)

// Storage is a flat blob store. Open returns common.ErrorNotFound for
// missing keys.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Presigner is implemented by backends that can hand out temporary direct
// download URLs.
type Presigner interface {
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}

// New builds the backend selected in the configuration.
func New(ctx context.Context, cfg *sc.Config) (Storage, error) {
	switch cfg.StorageBackend {
	case "", "local":
		return NewLocal(cfg.StorageDir)
	case "s3":
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// NewOriginalPath returns a fresh path for an uploaded file. The client's
// file name is never part of it.
func NewOriginalPath() string {
	return UploadsRoot + OriginalsDir + "/" + uuid.NewString() + pdfExtension
}

// NewFinalizedPath returns a fresh path for a finalized artifact.
func NewFinalizedPath() string {
	return UploadsRoot + FinalizedDir + "/" + uuid.NewString() + pdfExtension
}

// ValidateOriginalPath checks that p is a clean .pdf path directly under
// /uploads/pdfs/.
func ValidateOriginalPath(p string) error {
	return validatePath(p, OriginalsDir)
}

// ValidateFinalizedPath checks that p is a clean .pdf path directly under
// /uploads/finalized/.
func ValidateFinalizedPath(p string) error {
	return validatePath(p, FinalizedDir)
}

func validatePath(p, dir string) error {
	root := UploadsRoot + dir + "/"
	switch {
	case path.Clean(p) != p || strings.Contains(p, ".."):
		return common.NewValidationError("path", "must be a clean path")
	case !strings.HasPrefix(p, root):
		return common.NewValidationError("path", "must be under "+root)
	case !strings.HasSuffix(strings.ToLower(p), pdfExtension):
		return common.NewValidationError("path", "must end in "+pdfExtension)
	case strings.Contains(p[len(root):], "/") || len(p) == len(root)+len(pdfExtension):
		return common.NewValidationError("path", "must name a file directly under "+root)
	}
	return nil
}

// KeyFromPath turns "/uploads/pdfs/x.pdf" into "pdfs/x.pdf".
func KeyFromPath(p string) string {
	return strings.TrimPrefix(p, UploadsRoot)
}

// PathFromKey is the inverse of KeyFromPath.
func PathFromKey(key string) string {
	return UploadsRoot + strings.TrimPrefix(key, "/")
}
