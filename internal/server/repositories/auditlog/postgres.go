package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/pdfsigner/internal/dbx"
	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, ev *models.AuditEvent) error {
	var meta []byte
	if len(ev.Meta) > 0 {
		var err error
		if meta, err = json.Marshal(ev.Meta); err != nil {
			return fmt.Errorf("audit meta: %w", err)
		}
	}

	var userID sql.NullString
	if ev.UserID != "" {
		userID = sql.NullString{String: ev.UserID, Valid: true}
	}

	query :=
		`INSERT INTO audit_logs (user_id, document_id, action, ip, timestamp, meta)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		userID, ev.DocumentID, ev.Action, ev.IP, ev.Timestamp, meta).Scan(&ev.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByDocument(ctx context.Context, documentID string) ([]*models.AuditEvent, error) {
	query :=
		`SELECT id, user_id, document_id, action, ip, timestamp, meta
		 FROM audit_logs
		 WHERE document_id = $1
		 ORDER BY timestamp
		 `

	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	events := []*models.AuditEvent{}
	for rows.Next() {
		ev := &models.AuditEvent{}
		var userID sql.NullString
		var meta []byte
		if err := rows.Scan(&ev.ID, &userID, &ev.DocumentID, &ev.Action, &ev.IP, &ev.Timestamp, &meta); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ev.UserID = userID.String
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &ev.Meta); err != nil {
				return nil, fmt.Errorf("audit %s meta: %w", ev.ID, err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return events, nil
}
