package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"folio/internal/models"
	"folio/internal/query"
)

// PostStore handles all post-related database operations.
type PostStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewPostStore creates a new PostStore with the given database connection.
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db, sb: builder()}
}

var postColumns = []string{
	"id", "title", "slug", "kind", "featured", "tags", "excerpt", "content_html",
	"video_url", "audio_url", "gallery", "date", "created_at", "updated_at",
}

func scanPost(row rowScanner) (*models.Post, error) {
	var (
		p       models.Post
		tags    []byte
		gallery []byte
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Kind, &p.Featured, &tags, &p.Excerpt, &p.ContentHTML,
		&p.VideoURL, &p.AudioURL, &gallery, &p.Date, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tags, &p.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal(gallery, &p.Gallery); err != nil {
		return nil, fmt.Errorf("decode gallery: %w", err)
	}
	return &p, nil
}

// List returns one page of posts matching q and the total match count.
func (s *PostStore) List(ctx context.Context, q *query.Query) ([]models.Post, int, error) {
	countB, err := q.ApplyCount(s.sb.Select("COUNT(*)").From("posts"))
	if err != nil {
		return nil, 0, err
	}
	countSQL, countArgs, err := countB.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count posts: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}
	if total == 0 {
		return []models.Post{}, 0, nil
	}

	listB, err := q.Apply(s.sb.Select(postColumns...).From("posts"))
	if err != nil {
		return nil, 0, err
	}
	listSQL, args, err := listB.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list posts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, total, rows.Err()
}

// FindByID retrieves a post by its UUID. Returns nil if not found.
func (s *PostStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	return s.findOne(ctx, sq.Eq{"id": id}, "find post by id")
}

// FindBySlug retrieves a post by its slug. Returns nil if not found.
func (s *PostStore) FindBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.findOne(ctx, sq.Eq{"slug": slug}, "find post by slug")
}

func (s *PostStore) findOne(ctx context.Context, where sq.Eq, op string) (*models.Post, error) {
	sqlStr, args, err := s.sb.Select(postColumns...).From("posts").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", op, err)
	}
	p, err := scanPost(s.db.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Create inserts a new post and fills in its generated fields. Returns
// ErrSlugTaken if another post already uses the slug.
func (s *PostStore) Create(ctx context.Context, p *models.Post) error {
	tags, gallery, err := encodePostLists(p)
	if err != nil {
		return err
	}

	sqlStr, args, err := s.sb.Insert("posts").
		Columns("title", "slug", "kind", "featured", "tags", "excerpt", "content_html",
			"video_url", "audio_url", "gallery", "date").
		Values(p.Title, p.Slug, string(p.Kind), p.Featured, sq.Expr("?::jsonb", tags), p.Excerpt, p.ContentHTML,
			p.VideoURL, p.AudioURL, sq.Expr("?::jsonb", gallery), p.Date).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create post: %w", err)
	}

	err = s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// Update saves every field of an existing post. Kind-specific fields are
// written as given; changing the kind does not clear them.
func (s *PostStore) Update(ctx context.Context, p *models.Post) error {
	tags, gallery, err := encodePostLists(p)
	if err != nil {
		return err
	}

	sqlStr, args, err := s.sb.Update("posts").
		Set("title", p.Title).
		Set("slug", p.Slug).
		Set("kind", string(p.Kind)).
		Set("featured", p.Featured).
		Set("tags", sq.Expr("?::jsonb", tags)).
		Set("excerpt", p.Excerpt).
		Set("content_html", p.ContentHTML).
		Set("video_url", p.VideoURL).
		Set("audio_url", p.AudioURL).
		Set("gallery", sq.Expr("?::jsonb", gallery)).
		Set("date", p.Date).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": p.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update post: %w", err)
	}

	err = s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update post %s: %w", p.ID, sql.ErrNoRows)
	}
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

// Delete removes a post by ID.
func (s *PostStore) Delete(ctx context.Context, id uuid.UUID) error {
	sqlStr, args, err := s.sb.Delete("posts").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete post: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

func encodePostLists(p *models.Post) (string, string, error) {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Gallery == nil {
		p.Gallery = []models.GalleryItem{}
	}
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return "", "", fmt.Errorf("encode tags: %w", err)
	}
	gallery, err := json.Marshal(p.Gallery)
	if err != nil {
		return "", "", fmt.Errorf("encode gallery: %w", err)
	}
	return string(tags), string(gallery), nil
}
