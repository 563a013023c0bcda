// handler_test.go provides in-memory repositories and request helpers for
// the handler tests. Nothing here touches PostgreSQL, Valkey or S3.
package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"folio/internal/auth"
	"folio/internal/blocks"
	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/query"
	"folio/internal/render"
	"folio/internal/session"
	"folio/internal/store"
)

// --------------------------------------------------------------------------
// Repositories
// --------------------------------------------------------------------------

type memPosts struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*models.Post
}

func (m *memPosts) List(_ context.Context, q *query.Query) ([]models.Post, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Post{}
	for _, p := range m.docs {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *memPosts) FindByID(_ context.Context, id uuid.UUID) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.docs[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memPosts) slugTaken(slug string, except uuid.UUID) bool {
	for id, p := range m.docs {
		if p.Slug == slug && id != except {
			return true
		}
	}
	return false
}

func (m *memPosts) Create(_ context.Context, p *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slugTaken(p.Slug, uuid.Nil) {
		return store.ErrSlugTaken
	}
	p.ID = uuid.New()
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	cp := *p
	m.docs[p.ID] = &cp
	return nil
}

func (m *memPosts) Update(_ context.Context, p *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[p.ID]; !ok {
		return sql.ErrNoRows
	}
	if m.slugTaken(p.Slug, p.ID) {
		return store.ErrSlugTaken
	}
	cp := *p
	m.docs[p.ID] = &cp
	return nil
}

func (m *memPosts) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

type memPages struct {
	mu      sync.Mutex
	docs    map[uuid.UUID]*models.Page
	layouts int
}

func (m *memPages) List(_ context.Context, q *query.Query) ([]models.Page, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Page{}
	for _, p := range m.docs {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (m *memPages) FindByID(_ context.Context, id uuid.UUID) (*models.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.docs[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memPages) Create(_ context.Context, p *models.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.docs {
		if other.Slug == p.Slug {
			return store.ErrSlugTaken
		}
	}
	p.ID = uuid.New()
	cp := *p
	m.docs[p.ID] = &cp
	return nil
}

func (m *memPages) Update(_ context.Context, p *models.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[p.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *p
	m.docs[p.ID] = &cp
	return nil
}

func (m *memPages) UpdateLayout(_ context.Context, id uuid.UUID, layoutHTML string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.docs[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.LayoutHTML = layoutHTML
	m.layouts++
	return nil
}

func (m *memPages) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

type memUsers struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*models.User
	hash map[uuid.UUID]string
}

func (m *memUsers) List(_ context.Context, q *query.Query) ([]models.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, u := range m.docs {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *memUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.docs[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.docs {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) Create(_ context.Context, email, password, name string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.docs {
		if u.Email == email {
			return nil, store.ErrEmailTaken
		}
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{ID: uuid.New(), Email: email, Name: name, CreatedAt: time.Now()}
	m.docs[u.ID] = u
	m.hash[u.ID] = string(h)
	cp := *u
	return &cp, nil
}

func (m *memUsers) Update(_ context.Context, u *models.User, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.docs[u.ID] = &cp
	if password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			return err
		}
		m.hash[u.ID] = string(h)
	}
	return nil
}

func (m *memUsers) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *memUsers) CheckPassword(u *models.User, password string) bool {
	m.mu.Lock()
	h := m.hash[u.ID]
	m.mu.Unlock()
	return bcrypt.CompareHashAndPassword([]byte(h), []byte(password)) == nil
}

func (m *memUsers) SetTOTPSecret(_ context.Context, id uuid.UUID, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id].TOTPSecret = &secret
	return nil
}

func (m *memUsers) EnableTOTP(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id].TOTPEnabled = true
	return nil
}

func (m *memUsers) ResetTOTP(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id].TOTPEnabled = false
	m.docs[id].TOTPSecret = nil
	return nil
}

type memMedia struct {
	mu       sync.Mutex
	docs     map[uuid.UUID]*models.Media
	variants map[uuid.UUID][]models.MediaVariant
}

func (m *memMedia) List(_ context.Context, q *query.Query) ([]models.Media, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Media{}
	for _, d := range m.docs {
		out = append(out, *d)
	}
	return out, len(out), nil
}

func (m *memMedia) FindByID(_ context.Context, id uuid.UUID) (*models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (m *memMedia) Create(_ context.Context, d *models.Media, variants []models.MediaVariant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.New()
	cp := *d
	m.docs[d.ID] = &cp
	m.variants[d.ID] = variants
	return nil
}

func (m *memMedia) UpdateAltText(_ context.Context, id uuid.UUID, alt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	d.AltText = alt
	return nil
}

func (m *memMedia) Delete(_ context.Context, id uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.docs[id]
	keys := []string{d.S3Key}
	for _, v := range m.variants[id] {
		keys = append(keys, v.S3Key)
	}
	delete(m.docs, id)
	delete(m.variants, id)
	return keys, nil
}

// memObjects is an in-memory bucket.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut string // key suffix whose Put fails
}

func (o *memObjects) Put(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failPut != "" && strings.HasSuffix(key, o.failPut) {
		return io.ErrUnexpectedEOF
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	o.objects[key] = b
	return nil
}

func (o *memObjects) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	return nil
}

func (o *memObjects) URL(key string) string { return "https://cdn.test/" + key }

func (o *memObjects) keys() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.objects))
	for k := range o.objects {
		out = append(out, k)
	}
	return out
}

// --------------------------------------------------------------------------
// Environment
// --------------------------------------------------------------------------

type testEnv struct {
	Posts   *memPosts
	Pages   *memPages
	Users   *memUsers
	Media   *memMedia
	Objects *memObjects
	Content *Content
	Issuer  *auth.Issuer
	API     *API
	Admin   *Admin
	Router  chi.Router

	// AdminID is the user the admin helper signs requests in as.
	AdminID uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		Posts:   &memPosts{docs: map[uuid.UUID]*models.Post{}},
		Pages:   &memPages{docs: map[uuid.UUID]*models.Page{}},
		Users:   &memUsers{docs: map[uuid.UUID]*models.User{}, hash: map[uuid.UUID]string{}},
		Media:   &memMedia{docs: map[uuid.UUID]*models.Media{}, variants: map[uuid.UUID][]models.MediaVariant{}},
		Objects: &memObjects{objects: map[string][]byte{}},
		Issuer:  auth.NewIssuer("test-secret", time.Hour),
		AdminID: uuid.New(),
	}
	env.Content = NewContent(env.Posts, env.Pages, env.Users, env.Media, env.Objects, nil)
	env.Content.now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }

	renderer, err := render.New()
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	registry := blocks.Default()
	env.API = NewAPI(env.Content, env.Issuer, registry, nil, 5<<20)
	env.Admin = NewAdmin(renderer, env.Content, registry, 5<<20)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.LoadToken(env.Issuer))
		r.Post("/users/login", env.API.Login)
		r.Get("/users/me", env.API.Me)
		r.Get("/blocks", env.API.Blocks)
		r.Get("/{collection}", env.API.List)
		r.Get("/{collection}/{id}", env.API.Find)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAPIUser)
			r.Post("/{collection}", env.API.Create)
			r.Patch("/{collection}/{id}", env.API.Update)
			r.Delete("/{collection}/{id}", env.API.Delete)
		})
	})
	r.Route("/admin", func(r chi.Router) {
		r.Get("/pages/{id}/layout", env.Admin.LayoutEditor)
		r.Post("/pages/{id}/layout/{op}", env.Admin.LayoutOp)
		r.Post("/users/{id}/reset-2fa", env.Admin.ResetTwoFA)
		r.Get("/", env.Admin.Dashboard)
		r.Get("/{collection}", env.Admin.List)
		r.Get("/{collection}/new", env.Admin.New)
		r.Post("/{collection}", env.Admin.Save)
		r.Get("/{collection}/{id}", env.Admin.Edit)
		r.Post("/{collection}/{id}", env.Admin.Save)
		r.Delete("/{collection}/{id}", env.Admin.Delete)
	})
	env.Router = r
	return env
}

// createUser adds an account with password "correct horse".
func (env *testEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := env.Users.Create(context.Background(), email, "correct horse", "Test User")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// token issues an API token for a fresh user.
func (env *testEnv) token(t *testing.T) string {
	t.Helper()
	u := env.createUser(t, uuid.NewString()+"@folio.test")
	tok, _, err := env.Issuer.Issue(u)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (env *testEnv) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "JWT "+token)
	}
	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, req)
	return rec
}

// admin sends a form as a signed-in admin.
func (env *testEnv) admin(t *testing.T, method, target string, form url.Values, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if form != nil {
		rd = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, rd)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	sess := &session.Data{UserID: env.AdminID, Email: "admin@folio.test", Name: "Admin", TwoFADone: true}
	req = req.WithContext(middleware.WithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, req)
	return rec
}

// errorBody decodes the {"errors": [...]} envelope.
func errorBody(t *testing.T, rec *httptest.ResponseRecorder) []apiError {
	t.Helper()
	var body struct {
		Errors []apiError `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Errors
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status: got %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}
