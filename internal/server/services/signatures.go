package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
	"github.com/dmitrijs2005/pdfsigner/internal/coords"
	"github.com/dmitrijs2005/pdfsigner/internal/logging"
	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
	"github.com/dmitrijs2005/pdfsigner/internal/server/repositories/repomanager"
)

// CreateSignatureInput is a placement request. Pointer fields distinguish
// "missing" from zero; every field is required. DocumentID may be left
// empty by public link holders, whose link names the document.
type CreateSignatureInput struct {
	DocumentID string
	Type       string
	Content    json.RawMessage
	Page       *int
	X          *float64
	Y          *float64
}

type SignatureService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       AuditRecorder
	logger      logging.Logger
}

func NewSignatureService(db *sql.DB, m repomanager.RepositoryManager, audit AuditRecorder, logger logging.Logger) *SignatureService {
	return &SignatureService{db: db, repomanager: m, audit: audit, logger: logger}
}

// Create validates and stores a signature. Coordinates are clamped to
// [0,1] here and nowhere else.
func (s *SignatureService) Create(ctx context.Context, actor Actor, in CreateSignatureInput) (*models.Signature, error) {
	docID := in.DocumentID
	if actor.Public() {
		if docID != "" && docID != actor.LinkDocumentID {
			return nil, common.ErrorForbidden
		}
		docID = actor.LinkDocumentID
	}

	sig, err := in.validate(docID)
	if err != nil {
		return nil, err
	}

	doc, err := s.loadDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if err := actor.authorize(doc); err != nil {
		return nil, err
	}
	if doc.IsFinalized {
		return nil, common.ErrAlreadyFinalized
	}
	if doc.Metadata.Pages > 0 && sig.Page > doc.Metadata.Pages {
		return nil, common.NewValidationError("page", fmt.Sprintf("document has %d pages", doc.Metadata.Pages))
	}

	sig.AuthorID = actor.UserID
	created, err := s.repomanager.Signatures(s.db).Create(ctx, sig)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyFinalized) {
			return nil, common.ErrAlreadyFinalized
		}
		return nil, fmt.Errorf("error creating signature: %w", err)
	}

	s.audit.Record(ctx, actor.event(models.ActionSignatureAdded, docID, map[string]any{
		"signature_id": created.ID,
		"type":         string(created.Type),
		"page":         created.Page,
		"public":       actor.Public(),
	}))
	return created, nil
}

func (in CreateSignatureInput) validate(docID string) (*models.Signature, error) {
	if docID == "" {
		return nil, common.NewValidationError("documentId", "is required")
	}
	if in.Type == "" {
		return nil, common.NewValidationError("type", "is required")
	}
	typ, ok := models.ParseSignatureType(in.Type)
	if !ok {
		return nil, common.NewValidationError("type", "must be one of Typed, Drawn, Image")
	}
	if in.Page == nil {
		return nil, common.NewValidationError("page", "is required")
	}
	if *in.Page < 1 {
		return nil, common.NewValidationError("page", "must be 1 or greater")
	}
	for _, c := range []struct {
		field string
		v     *float64
	}{{"x", in.X}, {"y", in.Y}} {
		if c.v == nil {
			return nil, common.NewValidationError(c.field, "is required")
		}
		if math.IsNaN(*c.v) || math.IsInf(*c.v, 0) {
			return nil, common.NewValidationError(c.field, "must be a finite number")
		}
	}

	content, err := models.DecodeContent(typ, in.Content)
	if err != nil {
		return nil, err
	}

	return &models.Signature{
		DocumentID: docID,
		Type:       typ,
		Content:    content,
		Page:       *in.Page,
		X:          coords.Clamp(*in.X),
		Y:          coords.Clamp(*in.Y),
		Status:     models.StatusPending,
	}, nil
}

// ListByDocument returns a document's signatures in paint order. A document
// that does not exist, for instance because it was deleted, has none.
func (s *SignatureService) ListByDocument(ctx context.Context, actor Actor, documentID string) ([]*models.Signature, error) {
	doc, err := s.loadDocument(ctx, documentID)
	if errors.Is(err, common.ErrorNotFound) && !actor.Public() {
		return []*models.Signature{}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := actor.authorize(doc); err != nil {
		return nil, err
	}

	sigs, err := s.repomanager.Signatures(s.db).ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("error listing signatures: %w", err)
	}
	return sigs, nil
}

// Delete removes a signature from a document that is not finalized yet.
func (s *SignatureService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	repo := s.repomanager.Signatures(s.db)

	sig, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("error getting signature: %w", err)
	}

	doc, err := s.loadDocument(ctx, sig.DocumentID)
	if err != nil {
		return err
	}
	if err := actor.authorize(doc); err != nil {
		return err
	}
	if doc.IsFinalized {
		return common.ErrAlreadyFinalized
	}

	if err := repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			return common.ErrorNotFound
		case errors.Is(err, common.ErrAlreadyFinalized):
			return common.ErrAlreadyFinalized
		}
		return fmt.Errorf("error deleting signature: %w", err)
	}

	s.audit.Record(ctx, actor.event(models.ActionSignatureRemoved, doc.ID, map[string]any{
		"signature_id": id,
		"public":       actor.Public(),
	}))
	return nil
}

func (s *SignatureService) loadDocument(ctx context.Context, id string) (*models.Document, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	doc, err := s.repomanager.Documents(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error getting document: %w", err)
	}
	return doc, nil
}
