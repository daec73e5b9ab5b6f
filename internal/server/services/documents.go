// Package services contains server-side business logic: documents and their
// public links, signature placement, finalization, users and the audit
// trail. Every operation takes the Actor performing it and checks access
// itself; handlers only translate transport details.
package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
	"github.com/dmitrijs2005/pdfsigner/internal/logging"
	"github.com/dmitrijs2005/pdfsigner/internal/server/auth"
	"github.com/dmitrijs2005/pdfsigner/internal/server/config"
	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
	"github.com/dmitrijs2005/pdfsigner/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pdfsigner/internal/server/storage"
)

const maxFileNameLength = 255

// PublicLink is a freshly issued public signing link.
type PublicLink struct {
	Token     string
	URL       string
	ExpiresAt time.Time
}

// UploadInput describes an uploaded file. Size is what the client declared;
// the stored size is the number of bytes actually read.
type UploadInput struct {
	FileName string
	MimeType string
	Size     int64
	Body     io.Reader
}

type DocumentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Storage
	audit       AuditRecorder
	logger      logging.Logger

	publicSecret      []byte
	publicValidity    time.Duration
	publicSignBaseURL string
	maxUploadSize     int64
}

func NewDocumentService(db *sql.DB, m repomanager.RepositoryManager, st storage.Storage, audit AuditRecorder,
	logger logging.Logger, cfg *config.Config) *DocumentService {
	return &DocumentService{
		db:                db,
		repomanager:       m,
		storage:           st,
		audit:             audit,
		logger:            logger,
		publicSecret:      []byte(cfg.PublicTokenSecret),
		publicValidity:    cfg.PublicTokenValidityDuration,
		publicSignBaseURL: strings.TrimRight(cfg.PublicSignBaseURL, "/"),
		maxUploadSize:     cfg.MaxUploadSize,
	}
}

// Upload validates and stores a PDF for actor. The stored path is generated
// here; nothing the client sends ends up in it.
func (s *DocumentService) Upload(ctx context.Context, actor Actor, in UploadInput) (*models.Document, error) {
	if actor.UserID == "" {
		return nil, common.ErrorUnauthorized
	}

	name, err := cleanFileName(in.FileName)
	if err != nil {
		return nil, err
	}
	if err := checkMimeType(in.MimeType); err != nil {
		return nil, err
	}
	if in.Size > s.maxUploadSize {
		return nil, tooLarge(s.maxUploadSize)
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, s.maxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("error reading upload: %w", err)
	}
	switch {
	case len(data) == 0:
		return nil, common.NewValidationError("pdf", "file is empty")
	case int64(len(data)) > s.maxUploadSize:
		return nil, tooLarge(s.maxUploadSize)
	case !bytes.Contains(data[:min(len(data), 1024)], []byte("%PDF-")):
		return nil, common.NewValidationError("pdf", "file is not a PDF")
	}

	meta, err := Inspect(data)
	if err != nil {
		return nil, err
	}

	storagePath := storage.NewOriginalPath()
	key := storage.KeyFromPath(storagePath)
	if _, err := s.storage.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("error storing file: %w", err)
	}

	doc, err := s.repomanager.Documents(s.db).Create(ctx, &models.Document{
		OwnerID:     actor.UserID,
		FileName:    name,
		StoragePath: storagePath,
		Size:        int64(len(data)),
		MimeType:    common.PDFMimeType,
		Metadata:    meta,
	})
	if err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Error(ctx, "orphaned upload", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("error creating document: %w", err)
	}

	s.audit.Record(ctx, actor.event(models.ActionDocumentUploaded, doc.ID, map[string]any{
		"filename": doc.FileName,
		"size":     doc.Size,
		"pages":    meta.Pages,
	}))
	s.logger.Info(ctx, "document uploaded", "document_id", doc.ID, "size", doc.Size, "pages", meta.Pages)
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, actor Actor) ([]*models.Document, error) {
	if actor.UserID == "" {
		return nil, common.ErrorForbidden
	}
	docs, err := s.repomanager.Documents(s.db).ListByOwner(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("error listing documents: %w", err)
	}
	return docs, nil
}

// Get returns a document the actor may see and records the access.
func (s *DocumentService) Get(ctx context.Context, actor Actor, id string) (*models.Document, error) {
	repo := s.repomanager.Documents(s.db)

	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := actor.authorize(doc); err != nil {
		return nil, err
	}

	if err := repo.Touch(ctx, id); err != nil {
		s.logger.Warn(ctx, "could not update last access", "document_id", id, "error", err)
	} else {
		doc.LastAccessedAt = time.Now().UTC()
	}
	return doc, nil
}

// ResolveLink verifies a public link token and returns the actor it stands
// for. Every failure is common.ErrInvalidToken.
func (s *DocumentService) ResolveLink(token, ip string) (Actor, error) {
	docID, err := auth.GetDocumentIDFromToken(token, s.publicSecret)
	if err != nil {
		return Actor{}, common.ErrInvalidToken
	}
	return LinkActor(docID, ip), nil
}

// GetForLink returns the document a public link points at.
func (s *DocumentService) GetForLink(ctx context.Context, token, ip string) (*models.Document, Actor, error) {
	actor, err := s.ResolveLink(token, ip)
	if err != nil {
		return nil, Actor{}, err
	}
	doc, err := s.Get(ctx, actor, actor.LinkDocumentID)
	if err != nil {
		return nil, Actor{}, err
	}
	return doc, actor, nil
}

// Delete removes the record first, which cascades to signatures, and then
// the stored files. A record therefore never outlives its file; a file
// that could not be removed is logged and left behind.
func (s *DocumentService) Delete(ctx context.Context, actor Actor, id string) error {
	doc, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := actor.authorizeOwner(doc); err != nil {
		return err
	}

	if err := s.repomanager.Documents(s.db).Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("error deleting document: %w", err)
	}

	meta := map[string]any{"filename": doc.FileName}
	for _, p := range []string{doc.StoragePath, doc.FinalizedPath} {
		if p == "" {
			continue
		}
		if err := s.storage.Delete(ctx, storage.KeyFromPath(p)); err != nil {
			s.logger.Error(ctx, "stored file not removed", "document_id", id, "path", p, "error", err)
			meta["file_cleanup_failed"] = true
		}
	}

	s.audit.Record(ctx, actor.event(models.ActionDocumentDeleted, id, meta))
	return nil
}

// IssuePublicLink signs a new link for the document. Links are not stored,
// so earlier links stay valid until they expire.
func (s *DocumentService) IssuePublicLink(ctx context.Context, actor Actor, id string) (*PublicLink, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := actor.authorizeOwner(doc); err != nil {
		return nil, err
	}

	token, expiresAt, err := auth.GenerateDocumentToken(doc.ID, s.publicSecret, s.publicValidity)
	if err != nil {
		return nil, fmt.Errorf("error signing link: %w", err)
	}

	s.audit.Record(ctx, actor.event(models.ActionPublicLinkIssued, doc.ID, map[string]any{
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	}))
	return &PublicLink{
		Token:     token,
		URL:       s.publicSignBaseURL + "/" + token,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *DocumentService) load(ctx context.Context, id string) (*models.Document, error) {
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

// cleanFileName keeps the base name of a client-supplied file name, which
// must end in .pdf.
func cleanFileName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)
	switch {
	case name == "" || name == "." || name == "/":
		return "", common.NewValidationError("filename", "is required")
	case len(name) > maxFileNameLength:
		return "", common.NewValidationError("filename", "is too long")
	case !strings.HasSuffix(strings.ToLower(name), ".pdf") || len(name) == len(".pdf"):
		return "", common.NewValidationError("filename", "must end in .pdf")
	}
	return name, nil
}

func checkMimeType(mimeType string) error {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil || mt != common.PDFMimeType {
		return common.NewValidationError("mimetype", "only application/pdf is accepted")
	}
	return nil
}

func tooLarge(limit int64) error {
	return common.NewValidationError("pdf", fmt.Sprintf("file exceeds %d MiB", limit>>20))
}
