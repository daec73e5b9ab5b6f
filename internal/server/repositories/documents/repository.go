package documents

import (
	"context"

	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, doc *models.Document) (*models.Document, error)
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error)
	// Touch sets last_accessed_at to now.
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	// MarkFinalized flips is_finalized from false to true and reports whether
	// this call did it. A false result means another finalize got there first.
	MarkFinalized(ctx context.Context, id, finalizedPath string, signatureCount int) (bool, error)
}
