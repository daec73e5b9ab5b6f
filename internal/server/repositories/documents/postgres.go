package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
	"github.com/dmitrijs2005/pdfsigner/internal/dbx"
	"github.com/dmitrijs2005/pdfsigner/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const documentColumns = `id, owner_id, file_name, storage_path, size, mime_type,
		uploaded_at, last_accessed_at, is_finalized, finalized_path, finalized_at,
		signature_count, meta_title, meta_author, meta_pages`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*models.Document, error) {
	d := &models.Document{}
	var finalizedPath sql.NullString
	var finalizedAt sql.NullTime

	err := s.Scan(&d.ID, &d.OwnerID, &d.FileName, &d.StoragePath, &d.Size, &d.MimeType,
		&d.UploadedAt, &d.LastAccessedAt, &d.IsFinalized, &finalizedPath, &finalizedAt,
		&d.SignatureCount, &d.Metadata.Title, &d.Metadata.Author, &d.Metadata.Pages)
	if err != nil {
		return nil, err
	}

	d.FinalizedPath = finalizedPath.String
	if finalizedAt.Valid {
		t := finalizedAt.Time
		d.FinalizedAt = &t
	}
	return d, nil
}

func (r *PostgresRepository) Create(ctx context.Context, doc *models.Document) (*models.Document, error) {
	query :=
		`INSERT INTO documents (owner_id, file_name, storage_path, size, mime_type, meta_title, meta_author, meta_pages)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, uploaded_at, last_accessed_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		doc.OwnerID, doc.FileName, doc.StoragePath, doc.Size, doc.MimeType,
		doc.Metadata.Title, doc.Metadata.Author, doc.Metadata.Pages,
	).Scan(&doc.ID, &doc.UploadedAt, &doc.LastAccessedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return doc, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	d, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE owner_id = $1 ORDER BY uploaded_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return docs, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, id string) error {
	query := `UPDATE documents SET last_accessed_at = now() WHERE id = $1`
	return r.execOne(ctx, query, id)
}

// Delete removes the document; its signatures go with it (ON DELETE CASCADE).
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM documents WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkFinalized(ctx context.Context, id, finalizedPath string, signatureCount int) (bool, error) {
	query :=
		`UPDATE documents
		 SET is_finalized = true, finalized_path = $2, signature_count = $3, finalized_at = now()
		 WHERE id = $1 AND is_finalized = false
		 `

	res, err := r.db.ExecContext(ctx, query, id, finalizedPath, signatureCount)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}
