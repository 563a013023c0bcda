package store

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"folio/internal/models"
	"folio/internal/query"
	"folio/internal/schema"
)

func TestPageStoreList_HomeBySlug(t *testing.T) {
	db, mock := mockDB(t)
	s := NewPageStore(db)

	q, err := query.Parse(schema.Pages, url.Values{"where[slug][equals]": {"home"}})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM pages WHERE \(slug = \$1\)`).
		WithArgs("home").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`SELECT id, title, slug, layout_html, created_at, updated_at FROM pages WHERE \(slug = \$1\)`).
		WithArgs("home").
		WillReturnRows(sqlmock.NewRows(pageColumns).AddRow(id.String(), "Home", "home", "<!--layout:v1-->", now, now))

	pages, total, err := s.List(context.Background(), q)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(pages) != 1 {
		t.Fatalf("got %d pages (total %d)", len(pages), total)
	}
	if pages[0].LayoutHTML != "<!--layout:v1-->" {
		t.Errorf("layout = %q", pages[0].LayoutHTML)
	}
}

func TestPageStoreFindByID_NotFound(t *testing.T) {
	db, mock := mockDB(t)
	s := NewPageStore(db)

	id := uuid.New()
	mock.ExpectQuery(`SELECT .* FROM pages WHERE id = \$1 LIMIT 1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	p, err := s.FindByID(context.Background(), id)
	if err != nil || p != nil {
		t.Fatalf("FindByID = %v, %v; want nil, nil", p, err)
	}
}

func TestPageStoreUpdate_SlugTaken(t *testing.T) {
	db, mock := mockDB(t)
	s := NewPageStore(db)

	mock.ExpectQuery(`UPDATE pages SET title = \$1, slug = \$2, layout_html = \$3, updated_at = NOW\(\)`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := s.Update(context.Background(), &models.Page{ID: uuid.New(), Title: "About", Slug: "home"})
	if !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("err = %v, want ErrSlugTaken", err)
	}
}

func TestPageStoreUpdateLayout(t *testing.T) {
	db, mock := mockDB(t)
	s := NewPageStore(db)

	id := uuid.New()
	mock.ExpectExec(`UPDATE pages SET layout_html = \$1, updated_at = NOW\(\) WHERE id = \$2`).
		WithArgs("<div></div>", id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.UpdateLayout(context.Background(), id, "<div></div>"); err != nil {
		t.Fatalf("UpdateLayout: %v", err)
	}
}

func TestPageStoreCreateAndFind(t *testing.T) {
	db := testDB(t)
	s := NewPageStore(db)
	ctx := context.Background()

	slug := "store-test-page"
	t.Cleanup(func() { cleanSlugs(t, db, "pages", slug) })

	p := &models.Page{Title: "Store test", Slug: slug, LayoutHTML: "<!--layout:v1-->"}
	if err := s.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Fatal("expected generated id")
	}

	got, err := s.FindBySlug(ctx, slug)
	if err != nil || got == nil {
		t.Fatalf("FindBySlug: %v (page %v)", err, got)
	}
	if got.ID != p.ID {
		t.Errorf("id = %s, want %s", got.ID, p.ID)
	}

	if err := s.Create(ctx, &models.Page{Title: "Dup", Slug: slug}); !errors.Is(err, ErrSlugTaken) {
		t.Errorf("duplicate err = %v, want ErrSlugTaken", err)
	}
}
