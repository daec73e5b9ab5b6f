package signatures

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

const signatureColumns = `id, document_id, author_id, type, content, page, x, y, status, created_at, seq`

type scanner interface {
	Scan(dest ...any) error
}

func scanSignature(s scanner) (*models.Signature, error) {
	sig := &models.Signature{}
	var authorID sql.NullString
	var content []byte

	err := s.Scan(&sig.ID, &sig.DocumentID, &authorID, &sig.Type, &content,
		&sig.Page, &sig.X, &sig.Y, &sig.Status, &sig.CreatedAt, &sig.Seq)
	if err != nil {
		return nil, err
	}
	sig.AuthorID = authorID.String

	// A row whose content no longer decodes is still returned, with nil
	// Content, so one bad row does not hide the others.
	if c, err := models.DecodeContent(sig.Type, content); err == nil {
		sig.Content = c
	}
	return sig, nil
}

// Create inserts through a SELECT on the parent row so the finalized check
// and the insert happen in one statement. The row is share-locked, so a
// concurrent finalization either commits first or waits for the insert.
func (r *PostgresRepository) Create(ctx context.Context, sig *models.Signature) (*models.Signature, error) {
	content, err := models.EncodeContent(sig.Content)
	if err != nil {
		return nil, err
	}
	if sig.Status == "" {
		sig.Status = models.StatusPending
	}

	var authorID sql.NullString
	if sig.AuthorID != "" {
		authorID = sql.NullString{String: sig.AuthorID, Valid: true}
	}

	query :=
		`INSERT INTO signatures (document_id, author_id, type, content, page, x, y, status)
		 SELECT d.id, $2, $3, $4, $5, $6, $7, $8 FROM documents d
		 WHERE d.id = $1 AND d.is_finalized = false
		 FOR SHARE OF d
		 RETURNING id, created_at, seq
		 `

	err = r.db.QueryRowContext(ctx, query,
		sig.DocumentID, authorID, string(sig.Type), content, sig.Page, sig.X, sig.Y, string(sig.Status),
	).Scan(&sig.ID, &sig.CreatedAt, &sig.Seq)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrAlreadyFinalized
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return sig, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Signature, error) {
	query := `SELECT ` + signatureColumns + ` FROM signatures WHERE id = $1`

	sig, err := scanSignature(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return sig, nil
}

func (r *PostgresRepository) ListByDocument(ctx context.Context, documentID string) ([]*models.Signature, error) {
	query := `SELECT ` + signatureColumns + ` FROM signatures WHERE document_id = $1 ORDER BY created_at, seq`

	rows, err := r.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	sigs := []*models.Signature{}
	for rows.Next() {
		sig, err := scanSignature(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		sigs = append(sigs, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return sigs, nil
}

// Delete removes the signature only while its document is open. The
// document row is share-locked like in Create.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query :=
		`DELETE FROM signatures s
		 WHERE s.id = $1 AND EXISTS (
		   SELECT 1 FROM documents d
		   WHERE d.id = s.document_id AND d.is_finalized = false
		   FOR SHARE
		 )
		 `

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n > 0 {
		return nil
	}
	return r.deleteMiss(ctx, id)
}

// deleteMiss tells a missing signature from one on a finalized document.
func (r *PostgresRepository) deleteMiss(ctx context.Context, id string) error {
	query :=
		`SELECT d.is_finalized FROM signatures s
		 JOIN documents d ON d.id = s.document_id
		 WHERE s.id = $1
		 `

	var finalized bool
	err := r.db.QueryRowContext(ctx, query, id).Scan(&finalized)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return common.ErrorNotFound
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case finalized:
		return common.ErrAlreadyFinalized
	}
	return common.ErrorNotFound
}

func (r *PostgresRepository) MarkSigned(ctx context.Context, documentID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query :=
		`UPDATE signatures
		 SET status = $2
		 WHERE document_id = $1 AND status = $3 AND id = ANY($4::uuid[])
		 `

	res, err := r.db.ExecContext(ctx, query, documentID, string(models.StatusSigned), string(models.StatusPending), ids)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
