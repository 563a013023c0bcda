package site

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redismock/v9"

	"folio/internal/cache"
	"folio/internal/metrics"
	"folio/internal/models"
	"folio/internal/offline"
)

type fakeSource struct {
	page    *models.Page
	posts   []models.Post
	bySlug  map[string]*models.Post
	pageErr error
	listErr error
	postErr error
	calls   atomic.Int32
}

func (f *fakeSource) HomePage(context.Context) (*models.Page, error) {
	f.calls.Add(1)
	return f.page, f.pageErr
}

func (f *fakeSource) FeaturedPosts(_ context.Context, limit int) ([]models.Post, error) {
	f.calls.Add(1)
	if limit != FeaturedLimit {
		return nil, errors.New("unexpected limit")
	}
	return f.posts, f.listErr
}

func (f *fakeSource) PostBySlug(_ context.Context, slug string) (*models.Post, error) {
	f.calls.Add(1)
	if f.postErr != nil {
		return nil, f.postErr
	}
	return f.bySlug[slug], nil
}

func newTestSite(t *testing.T, src Source, pc *cache.PageCache) *Site {
	t.Helper()
	s, err := New(src, pc, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func get(t *testing.T, h http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func router(s *Site) http.Handler {
	r := chi.NewRouter()
	r.Use(WithNotices)
	r.Get("/", s.Home)
	r.Get("/posts/{slug}", s.Post)
	r.NotFound(s.NotFound)
	return r
}

func TestHome(t *testing.T) {
	src := &fakeSource{
		page:  &models.Page{Slug: "home", LayoutHTML: `<div class="bento-container"><article class="bento-item stats-card"></article></div>`},
		posts: []models.Post{{Title: "First", Slug: "first", Kind: models.KindArticle, Excerpt: "Hello"}},
	}
	w := get(t, router(newTestSite(t, src, nil)), "/")

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`<article class="bento-item stats-card">`,
		`href="/posts/first"`,
		"Hello",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, "empty-state") {
		t.Error("no empty state expected")
	}
	if strings.Contains(body, "Unable to reach the CMS") {
		t.Error("no notice expected")
	}
}

func TestHome_EmptyStates(t *testing.T) {
	src := &fakeSource{posts: []models.Post{}}
	body := get(t, router(newTestSite(t, src, nil)), "/").Body.String()

	if !strings.Contains(body, "Design your homepage in the admin") {
		t.Error("missing layout empty state")
	}
	if !strings.Contains(body, "Mark posts as featured") {
		t.Error("missing featured posts empty state")
	}
}

func TestHome_CMSDownFallsBack(t *testing.T) {
	src := &fakeSource{
		page:  &models.Page{Slug: "home", LayoutHTML: "<p>saved layout</p>"},
		posts: []models.Post{{Title: "Kept", Slug: "kept", Kind: models.KindNotes}},
	}
	s := newTestSite(t, src, nil)
	h := router(s)

	if w := get(t, h, "/"); w.Code != http.StatusOK {
		t.Fatalf("warm-up status: got %d", w.Code)
	}

	src.pageErr = errors.New("dial tcp: connection refused")
	src.listErr = errors.New("dial tcp: connection refused")
	src.calls.Store(0)

	w := get(t, h, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if got := src.calls.Load(); got != 2 {
		t.Errorf("both fetches should run, got %d calls", got)
	}
	body := w.Body.String()
	for _, want := range []string{"Unable to reach the CMS right now", "<p>saved layout</p>", `href="/posts/kept"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if n := strings.Count(body, "Unable to reach the CMS"); n != 1 {
		t.Errorf("notice should appear once, got %d", n)
	}
}

func TestHome_CMSDownWithoutHistory(t *testing.T) {
	src := &fakeSource{posts: []models.Post{}, listErr: errors.New("timeout")}
	body := get(t, router(newTestSite(t, src, nil)), "/").Body.String()

	if !strings.Contains(body, "Unable to reach the CMS right now") {
		t.Error("missing notice")
	}
	if !strings.Contains(body, "Mark posts as featured") {
		t.Error("failed list should render as empty")
	}
}

func TestTheme(t *testing.T) {
	s := newTestSite(t, &fakeSource{}, nil)
	tests := []struct {
		name   string
		cookie *http.Cookie
		want   string
		absent bool
	}{
		{name: "dark persists", cookie: &http.Cookie{Name: ThemeCookie, Value: "dark"}, want: `<html lang="en" data-theme="dark">`},
		{name: "light", cookie: &http.Cookie{Name: ThemeCookie, Value: "light"}, want: `<html lang="en" data-theme="light">`},
		{name: "no cookie follows system", want: `<html lang="en">`},
		{name: "junk ignored", cookie: &http.Cookie{Name: ThemeCookie, Value: `x" onload="`}, want: `<html lang="en">`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cookies []*http.Cookie
			if tt.cookie != nil {
				cookies = append(cookies, tt.cookie)
			}
			body := get(t, router(s), "/", cookies...).Body.String()
			if !strings.Contains(body, tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
		})
	}
}

func TestPost_KindGates(t *testing.T) {
	src := &fakeSource{bySlug: map[string]*models.Post{
		"video": {Title: "V", Slug: "video", Kind: models.KindVideo, VideoURL: "https://www.youtube.com/embed/abc"},
		"article-with-video": {Title: "A", Slug: "article-with-video", Kind: models.KindArticle,
			VideoURL: "https://www.youtube.com/embed/abc", ContentHTML: "<p><strong>trusted</strong></p>"},
		"video-no-url": {Title: "N", Slug: "video-no-url", Kind: models.KindVideo},
		"audio":        {Title: "Au", Slug: "audio", Kind: models.KindAudio, AudioURL: "https://cdn.example/a.mp3"},
		"gallery": {Title: "G", Slug: "gallery", Kind: models.KindGallery, Gallery: []models.GalleryItem{
			{ImageURL: "https://cdn.example/1.jpg", Alt: "one"},
			{ImageURL: "https://cdn.example/2.jpg", Alt: "two"},
			{ImageURL: "https://cdn.example/3.jpg", Alt: "three"},
		}},
	}}
	h := router(newTestSite(t, src, nil))

	body := get(t, h, "/posts/video").Body.String()
	if !strings.Contains(body, `<iframe src="https://www.youtube.com/embed/abc"`) {
		t.Error("video post should embed the video")
	}

	body = get(t, h, "/posts/article-with-video").Body.String()
	if strings.Contains(body, "<iframe") {
		t.Error("only Video posts embed a video")
	}
	if !strings.Contains(body, "<p><strong>trusted</strong></p>") {
		t.Error("content HTML should be injected as is")
	}

	if strings.Contains(get(t, h, "/posts/video-no-url").Body.String(), "<iframe") {
		t.Error("no embed without a URL")
	}

	if !strings.Contains(get(t, h, "/posts/audio").Body.String(), `<audio controls src="https://cdn.example/a.mp3">`) {
		t.Error("audio post should render a player")
	}

	body = get(t, h, "/posts/gallery").Body.String()
	if n := strings.Count(body, "<img src=\"https://cdn.example/"); n != 3 {
		t.Errorf("gallery images: got %d, want 3", n)
	}
	one, two, three := strings.Index(body, "1.jpg"), strings.Index(body, "2.jpg"), strings.Index(body, "3.jpg")
	if !(one < two && two < three) {
		t.Error("gallery images should keep their stored order")
	}
}

func TestPost_NotFound(t *testing.T) {
	h := router(newTestSite(t, &fakeSource{}, nil))

	w := get(t, h, "/posts/missing")
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Page not found") {
		t.Error("missing not-found page")
	}

	if w := get(t, h, "/no/such/route"); w.Code != http.StatusNotFound {
		t.Errorf("unknown route: got %d, want 404", w.Code)
	}
}

func TestPost_CMSDown(t *testing.T) {
	src := &fakeSource{postErr: errors.New("connection refused")}
	w := get(t, router(newTestSite(t, src, nil)), "/posts/any")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
}

func TestHome_ServedFromPageCache(t *testing.T) {
	client, mock := redismock.NewClientMock()
	pc := cache.NewPageCache(client, time.Minute)
	mock.ExpectGet("page:home").SetVal(`<p class="from-cache">cached</p>`)

	src := &fakeSource{}
	w := get(t, router(newTestSite(t, src, pc)), "/", &http.Cookie{Name: ThemeCookie, Value: "dark"})

	body := w.Body.String()
	if !strings.Contains(body, `<p class="from-cache">cached</p>`) {
		t.Error("cached fragment should be served")
	}
	if !strings.Contains(body, `data-theme="dark"`) {
		t.Error("the shell is rendered per visitor")
	}
	if src.calls.Load() != 0 {
		t.Error("a cache hit should not call the CMS")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestNotices(t *testing.T) {
	var n Notices
	n.Add("error", "a")
	n.Add("error", "a")
	n.Add("info", "b")
	if got := n.Items(); len(got) != 2 || got[1].Message != "b" {
		t.Errorf("Items() = %+v", got)
	}
	if NoticesFrom(context.Background()) == nil {
		t.Error("NoticesFrom should never return nil")
	}
}

func TestRoutes(t *testing.T) {
	var beacons atomic.Int32
	analytics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		beacons.Add(1)
		w.WriteHeader(http.StatusAccepted)
	})
	r, err := newTestSite(t, &fakeSource{}, nil).Routes(metrics.New("site_test"), offline.Default(), analytics)
	if err != nil {
		t.Fatalf("Routes: %v", err)
	}

	tests := []struct {
		target string
		status int
		want   string
	}{
		{"/health", http.StatusOK, `"ok"`},
		{"/sw.js", http.StatusOK, "folio-v1"},
		{"/offline.html", http.StatusOK, "offline"},
		{"/manifest.json", http.StatusOK, `"start_url"`},
		{"/static/css/site.css", http.StatusOK, ".bento-container"},
		{"/no/such/page", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		w := get(t, r, tt.target)
		if w.Code != tt.status {
			t.Errorf("%s: status %d, want %d", tt.target, w.Code, tt.status)
		}
		if !strings.Contains(w.Body.String(), tt.want) {
			t.Errorf("%s: body missing %q", tt.target, tt.want)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/analytics", strings.NewReader(`{"events":[]}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted || beacons.Load() != 1 {
		t.Errorf("analytics beacon: status %d, calls %d", w.Code, beacons.Load())
	}
}
