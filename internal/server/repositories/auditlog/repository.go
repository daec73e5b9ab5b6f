package auditlog

import (
	"context"

	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, ev *models.AuditEvent) error
	ListByDocument(ctx context.Context, documentID string) ([]*models.AuditEvent, error)
}
