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

// PageStore handles all page-related database operations.
type PageStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewPageStore creates a new PageStore with the given database connection.
func NewPageStore(db *sql.DB) *PageStore {
	return &PageStore{db: db, sb: builder()}
}

var pageColumns = []string{"id", "title", "slug", "layout_html", "created_at", "updated_at"}

func scanPage(row rowScanner) (*models.Page, error) {
	var p models.Page
	if err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.LayoutHTML, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns one page of pages matching q and the total match count.
func (s *PageStore) List(ctx context.Context, q *query.Query) ([]models.Page, int, error) {
	countB, err := q.ApplyCount(s.sb.Select("COUNT(*)").From("pages"))
	if err != nil {
		return nil, 0, err
	}
	countSQL, countArgs, err := countB.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count pages: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pages: %w", err)
	}
	if total == 0 {
		return []models.Page{}, 0, nil
	}

	listB, err := q.Apply(s.sb.Select(pageColumns...).From("pages"))
	if err != nil {
		return nil, 0, err
	}
	listSQL, args, err := listB.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list pages: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	pages := []models.Page{}
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, *p)
	}
	return pages, total, rows.Err()
}

// FindByID retrieves a page by its UUID. Returns nil if not found.
func (s *PageStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	return s.findOne(ctx, sq.Eq{"id": id}, "find page by id")
}

// FindBySlug retrieves a page by its slug. Returns nil if not found.
func (s *PageStore) FindBySlug(ctx context.Context, slug string) (*models.Page, error) {
	return s.findOne(ctx, sq.Eq{"slug": slug}, "find page by slug")
}

func (s *PageStore) findOne(ctx context.Context, where sq.Eq, op string) (*models.Page, error) {
	sqlStr, args, err := s.sb.Select(pageColumns...).From("pages").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", op, err)
	}
	p, err := scanPage(s.db.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Create inserts a new page. Returns ErrSlugTaken if the slug is in use.
func (s *PageStore) Create(ctx context.Context, p *models.Page) error {
	sqlStr, args, err := s.sb.Insert("pages").
		Columns("title", "slug", "layout_html").
		Values(p.Title, p.Slug, p.LayoutHTML).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create page: %w", err)
	}

	err = s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	return nil
}

// Update saves the title, slug and layout of an existing page.
func (s *PageStore) Update(ctx context.Context, p *models.Page) error {
	sqlStr, args, err := s.sb.Update("pages").
		Set("title", p.Title).
		Set("slug", p.Slug).
		Set("layout_html", p.LayoutHTML).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": p.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update page: %w", err)
	}

	err = s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update page %s: %w", p.ID, sql.ErrNoRows)
	}
	if err != nil {
		return fmt.Errorf("update page: %w", err)
	}
	return nil
}

// UpdateLayout replaces only the serialized layout of a page.
func (s *PageStore) UpdateLayout(ctx context.Context, id uuid.UUID, layoutHTML string) error {
	sqlStr, args, err := s.sb.Update("pages").
		Set("layout_html", layoutHTML).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update layout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("update layout: %w", err)
	}
	return nil
}

// Delete removes a page by ID.
func (s *PageStore) Delete(ctx context.Context, id uuid.UUID) error {
	sqlStr, args, err := s.sb.Delete("pages").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete page: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return nil
}
