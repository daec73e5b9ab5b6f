package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
	"github.com/dmitrijs2005/pdfsigner/internal/dbx"
	"github.com/dmitrijs2005/pdfsigner/internal/logging"
	"github.com/dmitrijs2005/pdfsigner/internal/server/config"
	"github.com/dmitrijs2005/pdfsigner/internal/server/finalizer"
	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
	"github.com/dmitrijs2005/pdfsigner/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pdfsigner/internal/server/storage"
)

// Renderer bakes signatures into a PDF.
type Renderer interface {
	Render(ctx context.Context, original []byte, sigs []*models.Signature) (*finalizer.Result, error)
}

// FinalizeResult is returned to the caller of Finalize. SignatureCount is
// the number of signatures attempted, skipped ones included.
type FinalizeResult struct {
	Document       *models.Document
	URL            string
	FileName       string
	SignatureCount int
	Rendered       int
	Skipped        int
}

// FinalizeService runs finalizations in a bounded pool, one at a time per
// document.
type FinalizeService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Storage
	renderer    Renderer
	audit       AuditRecorder
	logger      logging.Logger

	sem     *semaphore.Weighted
	locks   *keyLock
	baseURL string

	withTx func(ctx context.Context, fn func(context.Context, dbx.DBTX) error) error
}

func NewFinalizeService(db *sql.DB, m repomanager.RepositoryManager, st storage.Storage, r Renderer,
	audit AuditRecorder, logger logging.Logger, cfg *config.Config) *FinalizeService {
	workers := cfg.MaxConcurrentFinalize
	if workers < 1 {
		workers = 1
	}
	s := &FinalizeService{
		db:          db,
		repomanager: m,
		storage:     st,
		renderer:    r,
		audit:       audit,
		logger:      logger,
		sem:         semaphore.NewWeighted(int64(workers)),
		locks:       newKeyLock(),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
	}
	s.withTx = func(ctx context.Context, fn func(context.Context, dbx.DBTX) error) error {
		return dbx.WithTx(ctx, s.db, nil, fn)
	}
	return s
}

// Finalize renders every current signature of the document into a new
// artifact and marks the document finalized. A document can be finalized
// once; later calls get common.ErrAlreadyFinalized.
func (s *FinalizeService) Finalize(ctx context.Context, actor Actor, documentID string) (*FinalizeResult, error) {
	if err := checkID(documentID); err != nil {
		return nil, err
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	unlock := s.locks.Lock(documentID)
	defer unlock()

	docs := s.repomanager.Documents(s.db)
	doc, err := docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error getting document: %w", err)
	}
	if err := actor.authorize(doc); err != nil {
		return nil, err
	}
	if doc.IsFinalized {
		return nil, common.ErrAlreadyFinalized
	}

	original, err := s.readOriginal(ctx, doc)
	if err != nil {
		return nil, err
	}

	sigs, err := s.repomanager.Signatures(s.db).ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("error listing signatures: %w", err)
	}

	res, err := s.renderer.Render(ctx, original, sigs)
	if err != nil {
		s.logger.Error(ctx, "finalize failed", "document_id", documentID, "error", err)
		return nil, err
	}

	finalizedPath := storage.NewFinalizedPath()
	key := storage.KeyFromPath(finalizedPath)
	if _, err := s.storage.Put(ctx, key, bytes.NewReader(res.Data)); err != nil {
		return nil, fmt.Errorf("error storing artifact: %w", err)
	}

	ids := make([]string, 0, len(sigs))
	for _, sig := range sigs {
		ids = append(ids, sig.ID)
	}

	// The document flag and the signature statuses change together. Only
	// the signatures listed above are in the artifact.
	var won bool
	err = s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		won, err = s.repomanager.Documents(tx).MarkFinalized(ctx, documentID, finalizedPath, res.Attempted)
		if err != nil || !won {
			return err
		}
		n, err := s.repomanager.Signatures(tx).MarkSigned(ctx, documentID, ids)
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return common.ErrSignaturesChanged
		}
		return nil
	})
	if err != nil || !won {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Error(ctx, "orphaned artifact", "key", key, "error", delErr)
		}
		if errors.Is(err, common.ErrSignaturesChanged) {
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("error updating document: %w", err)
		}
		return nil, common.ErrAlreadyFinalized
	}

	doc.IsFinalized = true
	doc.FinalizedPath = finalizedPath
	doc.SignatureCount = res.Attempted

	problems := make([]string, 0, len(res.Problems))
	for _, p := range res.Problems {
		problems = append(problems, p.SignatureID+": "+p.Err.Error())
	}
	s.audit.Record(ctx, actor.event(models.ActionDocumentFinalized, documentID, map[string]any{
		"finalized_path": finalizedPath,
		"attempted":      res.Attempted,
		"rendered":       res.Rendered,
		"skipped":        res.Skipped,
		"problems":       problems,
		"public":         actor.Public(),
	}))
	s.logger.Info(ctx, "document finalized",
		"document_id", documentID, "rendered", res.Rendered, "skipped", res.Skipped)

	return &FinalizeResult{
		Document:       doc,
		URL:            s.baseURL + finalizedPath,
		FileName:       SignedFileName(doc.FileName),
		SignatureCount: res.Attempted,
		Rendered:       res.Rendered,
		Skipped:        res.Skipped,
	}, nil
}

// readOriginal loads the uploaded file. A record whose file is gone is
// reported as not found.
func (s *FinalizeService) readOriginal(ctx context.Context, doc *models.Document) ([]byte, error) {
	if err := storage.ValidateOriginalPath(doc.StoragePath); err != nil {
		return nil, fmt.Errorf("%w: stored path %q: %v", common.ErrFatalIO, doc.StoragePath, err)
	}

	rc, err := s.storage.Open(ctx, storage.KeyFromPath(doc.StoragePath))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "document file missing", "document_id", doc.ID, "path", doc.StoragePath)
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrFatalIO, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFatalIO, err)
	}
	return data, nil
}

// SignedFileName is the download name suggested for a finalized artifact.
func SignedFileName(name string) string {
	return "signed_" + strings.Join(strings.Fields(name), "_")
}
