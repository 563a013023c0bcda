// Package site renders the public portfolio: the home page with its
// designed layout and featured posts, and one page per post. Content is
// read from the CMS API; when the CMS is unreachable the last good
// responses are shown with a notice.
package site

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"folio/internal/cache"
	"folio/internal/models"
)

// FeaturedLimit is how many featured posts the home page lists.
const FeaturedLimit = 6

// ThemeCookie holds the visitor's theme choice, written by site.js.
const ThemeCookie = "theme"

const (
	unreachableNotice = "Unable to reach the CMS right now. Showing the latest saved layout and posts when available."
	postFailedNotice  = "Unable to reach the CMS right now. Please try again in a moment."
)

//go:embed templates/*.html
var templateFS embed.FS

// Source is where the site reads content from. *cmsclient.Client
// implements it.
type Source interface {
	HomePage(ctx context.Context) (*models.Page, error)
	FeaturedPosts(ctx context.Context, limit int) ([]models.Post, error)
	PostBySlug(ctx context.Context, slug string) (*models.Post, error)
}

// Site holds the renderer state shared across requests.
type Site struct {
	source Source
	pages  *cache.PageCache // may be nil

	homes *cache.Stale[*models.Page]
	lists *cache.Stale[[]models.Post]
	posts *cache.Stale[*models.Post]

	tmpl *template.Template
	now  func() time.Time
}

// New creates the site renderer. pages may be nil to disable the shared
// page cache; staleTTL bounds how old a fallback response may be.
func New(source Source, pages *cache.PageCache, staleTTL time.Duration) (*Site, error) {
	tmpl, err := template.New("site").Funcs(template.FuncMap{
		"trusted": func(s string) template.HTML { return template.HTML(s) },
		"date":    formatDate,
		"year":    func(t time.Time) int { return t.Year() },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse site templates: %w", err)
	}
	return &Site{
		source: source,
		pages:  pages,
		homes:  cache.NewStale[*models.Page](staleTTL),
		lists:  cache.NewStale[[]models.Post](staleTTL),
		posts:  cache.NewStale[*models.Post](staleTTL),
		tmpl:   tmpl,
		now:    time.Now,
	}, nil
}

type homeData struct {
	Page  *models.Page
	Posts []models.Post
}

// Home renders the home page. Both CMS calls always run to completion;
// a failure of either falls back to its last good response.
func (s *Site) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if body, ok := s.pages.Get(ctx, cache.HomeKey); ok {
		s.writePage(w, r, http.StatusOK, "Home", body)
		return
	}

	var (
		data             homeData
		pageErr, listErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		data.Page, pageErr = s.source.HomePage(ctx)
		return pageErr
	})
	g.Go(func() error {
		data.Posts, listErr = s.source.FeaturedPosts(ctx, FeaturedLimit)
		return listErr
	})
	if err := g.Wait(); err != nil {
		slog.Error("home fetch failed", "page_error", pageErr, "posts_error", listErr)
		NoticesFrom(ctx).Add("error", unreachableNotice)
	}

	if pageErr != nil {
		data.Page, _ = s.homes.Recall(cache.HomeKey)
	} else {
		s.homes.Remember(cache.HomeKey, data.Page)
	}
	if listErr != nil {
		data.Posts, _ = s.lists.Recall(cache.HomeKey)
	} else {
		s.lists.Remember(cache.HomeKey, data.Posts)
	}

	body, err := s.fragment("home", data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if pageErr == nil && listErr == nil {
		s.pages.Set(ctx, cache.HomeKey, body)
	}
	s.writePage(w, r, http.StatusOK, "Home", body)
}

// Post renders one post by slug, or the not-found page.
func (s *Site) Post(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")
	key := cache.PostKey(slug)
	if body, ok := s.pages.Get(ctx, key); ok {
		s.writePage(w, r, http.StatusOK, "", body)
		return
	}

	post, err := s.source.PostBySlug(ctx, slug)
	cached := err == nil
	if err != nil {
		slog.Error("post fetch failed", "slug", slug, "error", err)
		var ok bool
		if post, ok = s.posts.Recall(key); !ok {
			NoticesFrom(ctx).Add("error", postFailedNotice)
			s.render(w, r, http.StatusServiceUnavailable, "Unavailable", "unavailable", nil)
			return
		}
		NoticesFrom(ctx).Add("error", unreachableNotice)
	}
	if post == nil {
		s.NotFound(w, r)
		return
	}
	if cached {
		s.posts.Remember(key, post)
	}

	body, err := s.fragment("post", post)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if cached {
		s.pages.Set(ctx, key, body)
	}
	s.writePage(w, r, http.StatusOK, post.Title, body)
}

// NotFound renders the 404 page.
func (s *Site) NotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "Not found", "notfound", nil)
}

func (s *Site) render(w http.ResponseWriter, r *http.Request, status int, title, name string, data any) {
	body, err := s.fragment(name, data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writePage(w, r, status, title, body)
}

// fragment renders the main content of a page. Fragments are what the
// page cache stores; the shell around them depends on the visitor.
func (s *Site) fragment(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

type shellData struct {
	Title   string
	Theme   string
	Notices []Notice
	Main    template.HTML
	Now     time.Time
}

func (s *Site) writePage(w http.ResponseWriter, r *http.Request, status int, title string, body []byte) {
	var buf bytes.Buffer
	err := s.tmpl.ExecuteTemplate(&buf, "layout", shellData{
		Title:   title,
		Theme:   themeFrom(r),
		Notices: NoticesFrom(r.Context()).Items(),
		Main:    template.HTML(body),
		Now:     s.now(),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Site) fail(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("render site page", "path", r.URL.Path, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

// themeFrom returns the stored theme, or "" to follow the system setting.
func themeFrom(r *http.Request) string {
	c, err := r.Cookie(ThemeCookie)
	if err != nil {
		return ""
	}
	switch c.Value {
	case "light", "dark":
		return c.Value
	}
	return ""
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}
