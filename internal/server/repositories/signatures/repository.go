package signatures

import (
	"context"

	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
)

type Repository interface {
	// Create inserts sig unless its document is finalized, in which case it
	// returns common.ErrAlreadyFinalized.
	Create(ctx context.Context, sig *models.Signature) (*models.Signature, error)
	GetByID(ctx context.Context, id string) (*models.Signature, error)
	// ListByDocument returns signatures in creation order, which is also
	// the order they are painted in.
	ListByDocument(ctx context.Context, documentID string) ([]*models.Signature, error)
	// Delete returns common.ErrAlreadyFinalized when the document was
	// finalized and common.ErrorNotFound when there is no such signature.
	Delete(ctx context.Context, id string) error
	// MarkSigned moves the listed pending signatures of the document to
	// signed and reports how many changed.
	MarkSigned(ctx context.Context, documentID string, ids []string) (int64, error)
}
