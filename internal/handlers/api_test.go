package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"folio/internal/models"
	"folio/internal/query"
)

type postResponse struct {
	Doc     models.Post `json:"doc"`
	Message string      `json:"message"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// --------------------------------------------------------------------------
// Create
// --------------------------------------------------------------------------

func TestCreatePost_AppliesDefaults(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/posts", env.token(t), map[string]any{
		"title":           "Hello World",
		"tags":            []string{" go ", "", "web"},
		"contentMarkdown": "Some *emphasis*.",
	})
	expectStatus(t, rec, http.StatusCreated)

	got := decode[postResponse](t, rec)
	if got.Message != "Post successfully created." {
		t.Errorf("message: got %q", got.Message)
	}
	p := got.Doc
	if p.Slug != "hello-world" {
		t.Errorf("slug: got %q, want hello-world", p.Slug)
	}
	if p.Kind != models.KindArticle {
		t.Errorf("kind: got %q, want Article", p.Kind)
	}
	if !p.Date.Equal(env.Content.now()) {
		t.Errorf("date: got %v, want the creation time", p.Date)
	}
	if strings.Join(p.Tags, ",") != "go,web" {
		t.Errorf("tags: got %v", p.Tags)
	}
	if !strings.Contains(p.ContentHTML, "<em>emphasis</em>") {
		t.Errorf("markdown not rendered: %q", p.ContentHTML)
	}
	if p.ContentMarkdown != "" {
		t.Error("contentMarkdown must not be echoed back")
	}
}

func TestCreatePost_DuplicateSlugConflicts(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t)

	body := map[string]any{"title": "First", "slug": "same"}
	expectStatus(t, env.do(t, http.MethodPost, "/api/posts", tok, body), http.StatusCreated)

	rec := env.do(t, http.MethodPost, "/api/posts", tok, map[string]any{"title": "Second", "slug": "same"})
	expectStatus(t, rec, http.StatusConflict)
	errs := errorBody(t, rec)
	if len(errs) != 1 || errs[0].Field != "slug" {
		t.Errorf("errors: got %+v", errs)
	}
}

func TestCreatePost_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/posts", env.token(t), map[string]any{
		"title":    "Bad",
		"kind":     "Podcast",
		"videoUrl": "not a url",
	})
	expectStatus(t, rec, http.StatusBadRequest)

	errs := errorBody(t, rec)
	if len(errs) != 1 {
		t.Fatalf("errors: got %+v", errs)
	}
	fields := map[string]bool{}
	for _, fe := range errs[0].Data {
		fields[fe.Field] = true
	}
	if !fields["kind"] || !fields["videoUrl"] {
		t.Errorf("field errors: got %+v", errs[0].Data)
	}
}

func TestCreatePost_UnknownField(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/posts", env.token(t), map[string]any{"title": "x", "colour": "red"})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestWrites_RequireAuthentication(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct{ method, target string }{
		{http.MethodPost, "/api/posts"},
		{http.MethodPatch, "/api/posts/00000000-0000-0000-0000-000000000001"},
		{http.MethodDelete, "/api/pages/00000000-0000-0000-0000-000000000001"},
	}
	for _, tt := range tests {
		rec := env.do(t, tt.method, tt.target, "", map[string]any{"title": "x"})
		expectStatus(t, rec, http.StatusUnauthorized)
		if errs := errorBody(t, rec); len(errs) != 1 {
			t.Errorf("%s %s: errors %+v", tt.method, tt.target, errs)
		}
	}

	rec := env.do(t, http.MethodPost, "/api/posts", "not-a-token", map[string]any{"title": "x"})
	expectStatus(t, rec, http.StatusUnauthorized)
}

// --------------------------------------------------------------------------
// Read
// --------------------------------------------------------------------------

func TestList_Envelope(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t)
	for _, title := range []string{"One", "Two"} {
		expectStatus(t, env.do(t, http.MethodPost, "/api/posts", tok, map[string]any{"title": title}), http.StatusCreated)
	}

	rec := env.do(t, http.MethodGet, "/api/posts?limit=10&sort=-date", "", nil)
	expectStatus(t, rec, http.StatusOK)
	res := decode[query.Result[models.Post]](t, rec)
	if res.TotalDocs != 2 || len(res.Docs) != 2 || res.Limit != 10 || res.Page != 1 {
		t.Errorf("result: %+v", res)
	}
}

func TestList_InvalidQuery(t *testing.T) {
	env := newTestEnv(t)
	for _, target := range []string{
		"/api/posts?where[nope][equals]=1",
		"/api/posts?where[title][resembles]=x",
		"/api/posts?limit=-1",
		"/api/posts?sort=nope",
	} {
		rec := env.do(t, http.MethodGet, target, "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", target, rec.Code)
		}
	}
}

func TestFind_NotFound(t *testing.T) {
	env := newTestEnv(t)
	for _, target := range []string{
		"/api/posts/00000000-0000-0000-0000-000000000001",
		"/api/posts/not-a-uuid",
		"/api/widgets",
	} {
		rec := env.do(t, http.MethodGet, target, "", nil)
		expectStatus(t, rec, http.StatusNotFound)
	}
}

func TestUsers_HiddenFromAnonymousReaders(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t)

	expectStatus(t, env.do(t, http.MethodGet, "/api/users", "", nil), http.StatusUnauthorized)

	rec := env.do(t, http.MethodGet, "/api/users", tok, nil)
	expectStatus(t, rec, http.StatusOK)
	if strings.Contains(rec.Body.String(), "password") || strings.Contains(rec.Body.String(), "totpSecret") {
		t.Errorf("user documents leak secrets: %s", rec.Body.String())
	}
}

// --------------------------------------------------------------------------
// Update and delete
// --------------------------------------------------------------------------

func TestUpdatePost_Partial(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t)
	created := decode[postResponse](t, env.do(t, http.MethodPost, "/api/posts", tok, map[string]any{
		"title": "Keep me", "kind": "Video", "videoUrl": "https://video.example/1",
	}))

	rec := env.do(t, http.MethodPatch, "/api/posts/"+created.Doc.ID.String(), tok, map[string]any{"excerpt": "New excerpt"})
	expectStatus(t, rec, http.StatusOK)
	got := decode[postResponse](t, rec).Doc
	if got.Title != "Keep me" || got.Excerpt != "New excerpt" || got.VideoURL != "https://video.example/1" {
		t.Errorf("patched post: %+v", got)
	}
	if msg := decode[postResponse](t, rec).Message; msg != "Updated successfully." {
		t.Errorf("message: %q", msg)
	}
}

func TestUpdatePost_Markdown(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t)
	created := decode[postResponse](t, env.do(t, http.MethodPost, "/api/posts", tok, map[string]any{
		"title": "Rewritten", "contentHtml": "<p>old body</p>",
	}))
	target := "/api/posts/" + created.Doc.ID.String()

	tests := []struct {
		name    string
		patch   map[string]any
		want    string
		wantNot string
	}{
		{
			name:    "markdown alone replaces the html",
			patch:   map[string]any{"contentMarkdown": "New *text*."},
			want:    "<em>text</em>",
			wantNot: "old body",
		},
		{
			name:    "html in the same patch wins",
			patch:   map[string]any{"contentMarkdown": "Ignored *md*.", "contentHtml": "<p>explicit</p>"},
			want:    "<p>explicit</p>",
			wantNot: "<em>md</em>",
		},
		{
			name:  "other fields leave the body alone",
			patch: map[string]any{"excerpt": "Short"},
			want:  "<p>explicit</p>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPatch, target, tok, tt.patch)
			expectStatus(t, rec, http.StatusOK)
			got := decode[postResponse](t, rec).Doc
			if !strings.Contains(got.ContentHTML, tt.want) {
				t.Errorf("contentHtml %q, want it to contain %q", got.ContentHTML, tt.want)
			}
			if tt.wantNot != "" && strings.Contains(got.ContentHTML, tt.wantNot) {
				t.Errorf("contentHtml %q still contains %q", got.ContentHTML, tt.wantNot)
			}
			if got.ContentMarkdown != "" {
				t.Error("contentMarkdown must not be echoed back")
			}
		})
	}
}

func TestDeletePost_ReturnsDocument(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t)
	created := decode[postResponse](t, env.do(t, http.MethodPost, "/api/posts", tok, map[string]any{"title": "Doomed"}))
	target := "/api/posts/" + created.Doc.ID.String()

	rec := env.do(t, http.MethodDelete, target, tok, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[postResponse](t, rec).Doc; got.Slug != "doomed" {
		t.Errorf("deleted doc: %+v", got)
	}
	expectStatus(t, env.do(t, http.MethodGet, target, "", nil), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodDelete, target, tok, nil), http.StatusNotFound)
}

// --------------------------------------------------------------------------
// Login
// --------------------------------------------------------------------------

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "editor@folio.test")

	rec := env.do(t, http.MethodPost, "/api/users/login", "", map[string]string{"email": "editor@folio.test", "password": "wrong"})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = env.do(t, http.MethodPost, "/api/users/login", "", map[string]string{"email": " Editor@Folio.test ", "password": "correct horse"})
	expectStatus(t, rec, http.StatusOK)
	login := decode[struct {
		Token string `json:"token"`
		Exp   int64  `json:"exp"`
	}](t, rec)
	if login.Token == "" || login.Exp <= time.Now().Unix() {
		t.Fatalf("login: %+v", login)
	}

	rec = env.do(t, http.MethodGet, "/api/users/me", login.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	me := decode[struct {
		User *models.User `json:"user"`
	}](t, rec)
	if me.User == nil || me.User.ID != u.ID {
		t.Errorf("me: %+v", me.User)
	}

	rec = env.do(t, http.MethodGet, "/api/users/me", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"user":null`) {
		t.Errorf("anonymous me: %s", rec.Body.String())
	}
}

func TestLogin_RequiresTOTPOnceEnrolled(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "secure@folio.test")
	key, err := totp.Generate(totp.GenerateOpts{Issuer: totpIssuer, AccountName: u.Email})
	if err != nil {
		t.Fatal(err)
	}
	ctx := t.Context()
	_ = env.Users.SetTOTPSecret(ctx, u.ID, key.Secret())
	_ = env.Users.EnableTOTP(ctx, u.ID)

	creds := map[string]string{"email": u.Email, "password": "correct horse"}
	expectStatus(t, env.do(t, http.MethodPost, "/api/users/login", "", creds), http.StatusUnauthorized)

	creds["code"] = "not-a-code"
	expectStatus(t, env.do(t, http.MethodPost, "/api/users/login", "", creds), http.StatusUnauthorized)

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	creds["code"] = code
	expectStatus(t, env.do(t, http.MethodPost, "/api/users/login", "", creds), http.StatusOK)
}

// --------------------------------------------------------------------------
// Media
// --------------------------------------------------------------------------

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartUpload(t *testing.T, target, filename string, data []byte, alt string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if alt != "" {
		_ = mw.WriteField("altText", alt)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadMedia(t *testing.T) {
	env := newTestEnv(t)
	req := multipartUpload(t, "/api/media", "photo.png", pngBytes(t, 1200, 900), "A red line")
	req.Header.Set("Authorization", "Bearer "+env.token(t))
	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusCreated)

	got := decode[struct {
		Doc models.Media `json:"doc"`
	}](t, rec).Doc
	if got.MimeType != "image/png" || got.Width != 1200 || got.Height != 900 {
		t.Errorf("media: %+v", got)
	}
	if !strings.HasPrefix(got.URL, "https://cdn.test/media/2026/03/") {
		t.Errorf("url: %q", got.URL)
	}
	keys := env.Objects.keys()
	if len(keys) != 2 {
		t.Fatalf("stored objects: %v", keys)
	}
	var sawCard bool
	for _, k := range keys {
		sawCard = sawCard || strings.HasSuffix(k, "-800x600.png")
	}
	if !sawCard {
		t.Errorf("no card crop among %v", keys)
	}
}

func TestUploadMedia_Rejections(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t)

	tests := []struct {
		name     string
		filename string
		data     []byte
		alt      string
		status   int
	}{
		{"missing alt text", "a.png", pngBytes(t, 10, 10), "", http.StatusBadRequest},
		{"disallowed type", "a.txt", []byte("plain text"), "alt", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := multipartUpload(t, "/api/media", tt.filename, tt.data, tt.alt)
			req.Header.Set("Authorization", "JWT "+tok)
			rec := httptest.NewRecorder()
			env.Router.ServeHTTP(rec, req)
			expectStatus(t, rec, tt.status)
		})
	}
	if keys := env.Objects.keys(); len(keys) != 0 {
		t.Errorf("rejected uploads left objects: %v", keys)
	}
}

func TestUploadMedia_CleansUpOnFailure(t *testing.T) {
	env := newTestEnv(t)
	env.Objects.failPut = "-800x600.png"

	req := multipartUpload(t, "/api/media", "photo.png", pngBytes(t, 100, 100), "alt")
	req.Header.Set("Authorization", "JWT "+env.token(t))
	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusInternalServerError)

	if keys := env.Objects.keys(); len(keys) != 0 {
		t.Errorf("orphaned objects: %v", keys)
	}
	if len(env.Media.docs) != 0 {
		t.Error("metadata stored for a failed upload")
	}
}

func TestUploadMedia_StorageDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.Content.Objects = nil

	req := multipartUpload(t, "/api/media", "photo.png", pngBytes(t, 10, 10), "alt")
	req.Header.Set("Authorization", "JWT "+env.token(t))
	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusServiceUnavailable)
}

// --------------------------------------------------------------------------
// Blocks
// --------------------------------------------------------------------------

func TestBlocks(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/blocks", "", nil)
	expectStatus(t, rec, http.StatusOK)

	var body struct {
		Blocks []struct {
			ID     string            `json:"id"`
			Traits []json.RawMessage `json:"traits"`
		} `json:"blocks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Blocks) != 16 {
		t.Fatalf("blocks: got %d, want 16", len(body.Blocks))
	}
	traits := map[string]int{}
	for _, b := range body.Blocks {
		if b.Traits == nil {
			t.Errorf("%s: traits must be an array", b.ID)
		}
		traits[b.ID] = len(b.Traits)
	}
	if traits["bento-stats"] == 0 {
		t.Error("bento-stats should expose traits")
	}
	if traits["logo-tile"] != 0 {
		t.Error("static tiles have no traits")
	}
}
