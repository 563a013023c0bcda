package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	"folio/internal/auth"
	"folio/internal/blocks"
	"folio/internal/layout"
	"folio/internal/metrics"
	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/query"
	"folio/internal/schema"
)

// API serves the collection REST endpoints under /api.
type API struct {
	content   *Content
	issuer    *auth.Issuer
	blocks    *blocks.Registry
	metrics   *metrics.Metrics
	maxUpload int64
}

// NewAPI creates the API handlers. maxUpload is the largest accepted
// media file in bytes.
func NewAPI(content *Content, issuer *auth.Issuer, registry *blocks.Registry, m *metrics.Metrics, maxUpload int64) *API {
	return &API{content: content, issuer: issuer, blocks: registry, metrics: m, maxUpload: maxUpload}
}

// collectionFromURL resolves {collection}. Users are only visible to
// signed-in callers.
func (a *API) collectionFromURL(w http.ResponseWriter, r *http.Request) (*schema.Collection, bool) {
	c, ok := schema.Get(chi.URLParam(r, "collection"))
	if !ok {
		writeMessage(w, http.StatusNotFound, "The requested resource was not found.")
		return nil, false
	}
	if c.Auth && !signedIn(r) {
		writeMessage(w, http.StatusUnauthorized, "You are not allowed to perform this action.")
		return nil, false
	}
	return c, true
}

func idFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusNotFound, "The requested resource was not found.")
		return uuid.Nil, false
	}
	return id, true
}

func signedIn(r *http.Request) bool {
	if middleware.ClaimsFromCtx(r.Context()) != nil {
		return true
	}
	sess := middleware.SessionFromCtx(r.Context())
	return sess != nil && sess.TwoFADone
}

func list[T any](ctx context.Context, q *query.Query, fn func(context.Context, *query.Query) ([]T, int, error)) (query.Result[T], error) {
	docs, total, err := fn(ctx, q)
	if err != nil {
		return query.Result[T]{}, err
	}
	return query.NewResult(docs, total, q), nil
}

// List handles GET /api/{collection}.
func (a *API) List(w http.ResponseWriter, r *http.Request) {
	c, ok := a.collectionFromURL(w, r)
	if !ok {
		return
	}
	q, err := query.Parse(c, r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	var result any
	switch c.Slug {
	case schema.PostsSlug:
		result, err = list(ctx, q, a.content.Posts.List)
	case schema.PagesSlug:
		result, err = list(ctx, q, a.content.Pages.List)
	case schema.UsersSlug:
		result, err = list(ctx, q, a.content.Users.List)
	case schema.MediaSlug:
		var res query.Result[models.Media]
		res, err = list(ctx, q, a.content.Media.List)
		for i := range res.Docs {
			a.content.FillMediaURLs(&res.Docs[i])
		}
		result = res
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Find handles GET /api/{collection}/{id}.
func (a *API) Find(w http.ResponseWriter, r *http.Request) {
	c, ok := a.collectionFromURL(w, r)
	if !ok {
		return
	}
	id, ok := idFromURL(w, r)
	if !ok {
		return
	}

	doc, err := a.find(r.Context(), c, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (a *API) find(ctx context.Context, c *schema.Collection, id uuid.UUID) (any, error) {
	switch c.Slug {
	case schema.PostsSlug:
		return found(a.content.Posts.FindByID(ctx, id))
	case schema.PagesSlug:
		return found(a.content.Pages.FindByID(ctx, id))
	case schema.UsersSlug:
		return found(a.content.Users.FindByID(ctx, id))
	case schema.MediaSlug:
		m, err := found(a.content.Media.FindByID(ctx, id))
		if err != nil {
			return nil, err
		}
		a.content.FillMediaURLs(m)
		return m, nil
	}
	return nil, ErrNotFound
}

// found turns the stores' (nil, nil) not-found result into ErrNotFound.
func found[T any](v *T, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

type docResponse struct {
	Doc     any    `json:"doc"`
	Message string `json:"message"`
}

// Create handles POST /api/{collection}.
func (a *API) Create(w http.ResponseWriter, r *http.Request) {
	c, ok := a.collectionFromURL(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	var doc any
	var err error
	switch c.Slug {
	case schema.PostsSlug:
		var p models.Post
		if err = decodeJSON(w, r, &p); err == nil {
			p.ID = uuid.Nil
			err = a.content.SavePost(ctx, &p, "")
			doc = &p
		}
	case schema.PagesSlug:
		var p models.Page
		if err = decodeJSON(w, r, &p); err == nil {
			p.ID = uuid.Nil
			err = a.content.SavePage(ctx, &p)
			doc = &p
		}
	case schema.UsersSlug:
		var in UserInput
		if err = decodeJSON(w, r, &in); err == nil {
			doc, err = a.content.CreateUser(ctx, in)
		}
	case schema.MediaSlug:
		doc, err = a.upload(w, r)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, docResponse{Doc: doc, Message: c.Singular + " successfully created."})
}

func (a *API) upload(w http.ResponseWriter, r *http.Request) (*models.Media, error) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, ValidationErrors{{Field: "file", Message: "The upload could not be read or is too large."}}
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, ValidationErrors{{Field: "file", Message: "This field is required."}}
	}
	defer file.Close()

	if header.Size > a.maxUpload {
		return nil, ValidationErrors{{Field: "file", Message: "The file is too large."}}
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	return a.content.Upload(r.Context(), header.Filename, sniff(data, header.Filename), data, r.FormValue("altText"))
}

// sniff detects the content type from the bytes, treating XML files named
// *.svg as SVG.
func sniff(data []byte, filename string) string {
	ct := http.DetectContentType(data)
	if strings.HasSuffix(strings.ToLower(filename), ".svg") &&
		(strings.Contains(ct, "xml") || strings.HasPrefix(ct, "text/plain")) {
		return "image/svg+xml"
	}
	ct, _, _ = strings.Cut(ct, ";")
	return ct
}

// postPatch decodes a partial post update. contentHtml is tracked
// separately so that a contentMarkdown sent alone replaces the stored HTML.
type postPatch struct {
	*models.Post
	ContentHTML *string `json:"contentHtml"`
}

func (pp *postPatch) apply() {
	switch {
	case pp.ContentHTML != nil:
		pp.Post.ContentHTML = *pp.ContentHTML
	case pp.Post.ContentMarkdown != "":
		pp.Post.ContentHTML = ""
	}
}

// Update handles PATCH /api/{collection}/{id}. Only the fields present in
// the body change.
func (a *API) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := a.collectionFromURL(w, r)
	if !ok {
		return
	}
	id, ok := idFromURL(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	var doc any
	var err error
	switch c.Slug {
	case schema.PostsSlug:
		var p *models.Post
		if p, err = found(a.content.Posts.FindByID(ctx, id)); err == nil {
			prev := p.Slug
			patch := postPatch{Post: p}
			if err = decodeJSON(w, r, &patch); err == nil {
				patch.apply()
				p.ID = id
				err = a.content.SavePost(ctx, p, prev)
			}
			doc = p
		}
	case schema.PagesSlug:
		var p *models.Page
		if p, err = found(a.content.Pages.FindByID(ctx, id)); err == nil {
			if err = decodeJSON(w, r, p); err == nil {
				p.ID = id
				err = a.content.SavePage(ctx, p)
			}
			doc = p
		}
	case schema.UsersSlug:
		var u *models.User
		if u, err = found(a.content.Users.FindByID(ctx, id)); err == nil {
			in := UserInput{Email: u.Email, Name: u.Name}
			if err = decodeJSON(w, r, &in); err == nil {
				err = a.content.UpdateUser(ctx, u, in)
			}
			doc = u
		}
	case schema.MediaSlug:
		var m *models.Media
		if m, err = found(a.content.Media.FindByID(ctx, id)); err == nil {
			var in struct {
				AltText string `json:"altText" validate:"required,max=300"`
			}
			if err = decodeJSON(w, r, &in); err == nil {
				if err = validate(&in); err == nil {
					err = a.content.Media.UpdateAltText(ctx, id, in.AltText)
					m.AltText = in.AltText
				}
			}
			a.content.FillMediaURLs(m)
			doc = m
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docResponse{Doc: doc, Message: "Updated successfully."})
}

// Delete handles DELETE /api/{collection}/{id}.
func (a *API) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := a.collectionFromURL(w, r)
	if !ok {
		return
	}
	id, ok := idFromURL(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	var doc any
	var err error
	switch c.Slug {
	case schema.PostsSlug:
		doc, err = a.content.DeletePost(ctx, id)
	case schema.PagesSlug:
		doc, err = a.content.DeletePage(ctx, id)
	case schema.UsersSlug:
		var u *models.User
		if u, err = found(a.content.Users.FindByID(ctx, id)); err == nil {
			err = a.content.Users.Delete(ctx, id)
			doc = u
		}
	case schema.MediaSlug:
		doc, err = a.content.DeleteMedia(ctx, id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docResponse{Doc: doc, Message: "Deleted successfully."})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

// Login handles POST /api/users/login. Accounts with 2FA enabled must
// also send a current TOTP code.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := a.content.Users.FindByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user == nil || !a.content.Users.CheckPassword(user, req.Password) {
		writeMessage(w, http.StatusUnauthorized, "The email or password provided is incorrect.")
		return
	}
	if user.TOTPEnabled && (user.TOTPSecret == nil || !totp.Validate(strings.TrimSpace(req.Code), *user.TOTPSecret)) {
		writeMessage(w, http.StatusUnauthorized, "A valid two-factor code is required.")
		return
	}

	token, exp, err := a.issuer.Issue(user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Auth Passed",
		"token":   token,
		"exp":     exp.Unix(),
		"user":    user,
	})
}

// Me handles GET /api/users/me.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	var id uuid.UUID
	var exp int64
	if claims := middleware.ClaimsFromCtx(r.Context()); claims != nil {
		id, _ = claims.UserID()
		if claims.ExpiresAt != nil {
			exp = claims.ExpiresAt.Unix()
		}
	} else if sess := middleware.SessionFromCtx(r.Context()); sess != nil && sess.TwoFADone {
		id = sess.UserID
	}
	if id == uuid.Nil {
		writeJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}

	user, err := a.content.Users.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "exp": exp})
}

type blockView struct {
	blocks.Block
	Traits []layout.Trait `json:"traits"`
}

// Blocks handles GET /api/blocks: the layout editor palette.
func (a *API) Blocks(w http.ResponseWriter, r *http.Request) {
	all := a.blocks.All()
	out := make([]blockView, 0, len(all))
	for _, b := range all {
		v := blockView{Block: b, Traits: []layout.Trait{}}
		if tile, err := a.blocks.New(b.ID); err == nil {
			v.Traits = append(v.Traits, tile.Traits()...)
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": out})
}
