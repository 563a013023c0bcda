// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"folio/internal/models"
	"folio/internal/query"
)

// MediaStore handles all media-related database operations.
type MediaStore struct {
	db       *sql.DB
	sb       sq.StatementBuilderType
	variants *VariantStore
}

// NewMediaStore creates a new MediaStore with the given database connection.
func NewMediaStore(db *sql.DB) *MediaStore {
	return &MediaStore{db: db, sb: builder(), variants: NewVariantStore(db)}
}

var mediaColumns = []string{
	"id", "filename", "alt_text", "mime_type", "filesize", "width", "height", "s3_key", "created_at", "updated_at",
}

func scanMedia(row rowScanner) (*models.Media, error) {
	var m models.Media
	err := row.Scan(
		&m.ID, &m.Filename, &m.AltText, &m.MimeType, &m.Filesize,
		&m.Width, &m.Height, &m.S3Key, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a media record and its derived variants in one transaction.
func (s *MediaStore) Create(ctx context.Context, m *models.Media, variants []models.MediaVariant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create media: %w", err)
	}
	defer tx.Rollback()

	sqlStr, args, err := s.sb.Insert("media").
		Columns("filename", "alt_text", "mime_type", "filesize", "width", "height", "s3_key").
		Values(m.Filename, m.AltText, m.MimeType, m.Filesize, m.Width, m.Height, m.S3Key).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create media: %w", err)
	}
	if err := tx.QueryRowContext(ctx, sqlStr, args...).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return fmt.Errorf("create media: %w", err)
	}

	for i := range variants {
		variants[i].MediaID = m.ID
		if err := s.variants.insert(ctx, tx, &variants[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create media: %w", err)
	}

	m.Sizes = make(map[string]models.MediaVariant, len(variants))
	for _, v := range variants {
		m.Sizes[v.Name] = v
	}
	return nil
}

// FindByID retrieves a media item and its variants. Returns nil if not found.
func (s *MediaStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	sqlStr, args, err := s.sb.Select(mediaColumns...).From("media").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find media: %w", err)
	}
	m, err := scanMedia(s.db.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find media by id: %w", err)
	}

	variants, err := s.variants.FindByMediaIDs(ctx, []uuid.UUID{m.ID})
	if err != nil {
		return nil, err
	}
	m.Sizes = sizesOf(variants[m.ID])
	return m, nil
}

// List returns one page of media matching q and the total match count.
func (s *MediaStore) List(ctx context.Context, q *query.Query) ([]models.Media, int, error) {
	countB, err := q.ApplyCount(s.sb.Select("COUNT(*)").From("media"))
	if err != nil {
		return nil, 0, err
	}
	countSQL, countArgs, err := countB.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count media: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count media: %w", err)
	}
	if total == 0 {
		return []models.Media{}, 0, nil
	}

	listB, err := q.Apply(s.sb.Select(mediaColumns...).From("media"))
	if err != nil {
		return nil, 0, err
	}
	listSQL, args, err := listB.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list media: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	items := []models.Media{}
	var ids []uuid.UUID
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, *m)
		ids = append(ids, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	variants, err := s.variants.FindByMediaIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i].Sizes = sizesOf(variants[items[i].ID])
	}
	return items, total, nil
}

// UpdateAltText changes the alt text of a media item.
func (s *MediaStore) UpdateAltText(ctx context.Context, id uuid.UUID, alt string) error {
	sqlStr, args, err := s.sb.Update("media").
		Set("alt_text", alt).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update media: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("update media alt text: %w", err)
	}
	return nil
}

// Delete removes a media record. Variants are removed by the foreign key
// cascade; their storage keys are returned so the caller can delete the
// objects from the bucket.
func (s *MediaStore) Delete(ctx context.Context, id uuid.UUID) ([]string, error) {
	m, err := s.FindByID(ctx, id)
	if err != nil || m == nil {
		return nil, err
	}

	sqlStr, args, err := s.sb.Delete("media").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete media: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("delete media: %w", err)
	}

	keys := []string{m.S3Key}
	for _, v := range m.Sizes {
		keys = append(keys, v.S3Key)
	}
	return keys, nil
}

func sizesOf(variants []models.MediaVariant) map[string]models.MediaVariant {
	if len(variants) == 0 {
		return nil
	}
	out := make(map[string]models.MediaVariant, len(variants))
	for _, v := range variants {
		out[v.Name] = v
	}
	return out
}
