// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"folio/internal/models"
)

// VariantStore handles database operations for derived image sizes.
type VariantStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewVariantStore creates a new VariantStore with the given database connection.
func NewVariantStore(db *sql.DB) *VariantStore {
	return &VariantStore{db: db, sb: builder()}
}

var variantColumns = []string{
	"id", "media_id", "name", "width", "height", "mime_type", "filesize", "s3_key", "created_at",
}

func scanVariant(row rowScanner) (*models.MediaVariant, error) {
	var v models.MediaVariant
	err := row.Scan(
		&v.ID, &v.MediaID, &v.Name, &v.Width, &v.Height,
		&v.MimeType, &v.Filesize, &v.S3Key, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// insert writes one variant inside the caller's transaction.
func (s *VariantStore) insert(ctx context.Context, tx *sql.Tx, v *models.MediaVariant) error {
	sqlStr, args, err := s.sb.Insert("media_variants").
		Columns("media_id", "name", "width", "height", "mime_type", "filesize", "s3_key").
		Values(v.MediaID, v.Name, v.Width, v.Height, v.MimeType, v.Filesize, v.S3Key).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert variant: %w", err)
	}
	if err := tx.QueryRowContext(ctx, sqlStr, args...).Scan(&v.ID, &v.CreatedAt); err != nil {
		return fmt.Errorf("insert variant %s: %w", v.Name, err)
	}
	return nil
}

// FindByMediaIDs returns variants for several media items at once, keyed by
// media ID and ordered by width.
func (s *VariantStore) FindByMediaIDs(ctx context.Context, mediaIDs []uuid.UUID) (map[uuid.UUID][]models.MediaVariant, error) {
	result := make(map[uuid.UUID][]models.MediaVariant)
	if len(mediaIDs) == 0 {
		return result, nil
	}

	sqlStr, args, err := s.sb.Select(variantColumns...).
		From("media_variants").
		Where(sq.Eq{"media_id": mediaIDs}).
		OrderBy("media_id", "width ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find variants: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("find variants by media ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		result[v.MediaID] = append(result[v.MediaID], *v)
	}
	return result, rows.Err()
}
