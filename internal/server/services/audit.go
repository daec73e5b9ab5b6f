package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
	"github.com/dmitrijs2005/pdfsigner/internal/logging"
	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
	"github.com/dmitrijs2005/pdfsigner/internal/server/repositories/repomanager"
)

const (
	defaultAuditBuffer = 256
	auditWriteTimeout  = 5 * time.Second
)

// AuditRecorder accepts audit events without waiting for them to be stored.
type AuditRecorder interface {
	Record(ctx context.Context, ev *models.AuditEvent)
}

// AuditService queues audit events in memory and writes them from Run. When
// the queue is full new events are dropped and logged; callers never block.
type AuditService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	events      chan *models.AuditEvent
	now         func() time.Time
}

func NewAuditService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger, buffer int) *AuditService {
	if buffer <= 0 {
		buffer = defaultAuditBuffer
	}
	return &AuditService{
		db:          db,
		repomanager: m,
		logger:      logger,
		events:      make(chan *models.AuditEvent, buffer),
		now:         time.Now,
	}
}

// Record stamps ev and queues it.
func (s *AuditService) Record(ctx context.Context, ev *models.AuditEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now().UTC()
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn(ctx, "audit queue full, event dropped",
			"action", ev.Action, "document_id", ev.DocumentID)
	}
}

// Run writes queued events until ctx is cancelled, then flushes whatever is
// still queued and returns.
func (s *AuditService) Run(ctx context.Context) {
	for {
		select {
		case ev := <-s.events:
			s.write(ctx, ev)
		case <-ctx.Done():
			s.flush(context.WithoutCancel(ctx))
			return
		}
	}
}

func (s *AuditService) flush(ctx context.Context) {
	for {
		select {
		case ev := <-s.events:
			s.write(ctx, ev)
		default:
			return
		}
	}
}

func (s *AuditService) write(ctx context.Context, ev *models.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := s.repomanager.AuditLog(s.db).Create(ctx, ev); err != nil {
		s.logger.Error(ctx, "audit write failed", "action", ev.Action, "document_id", ev.DocumentID, "error", err)
	}
}

// ListByDocument returns the audit trail of a document to its owner.
func (s *AuditService) ListByDocument(ctx context.Context, actor Actor, documentID string) ([]*models.AuditEvent, error) {
	if err := checkID(documentID); err != nil {
		return nil, err
	}
	doc, err := s.repomanager.Documents(s.db).GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error getting document: %w", err)
	}
	if err := actor.authorizeOwner(doc); err != nil {
		return nil, err
	}

	events, err := s.repomanager.AuditLog(s.db).ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("error listing audit events: %w", err)
	}
	return events, nil
}
