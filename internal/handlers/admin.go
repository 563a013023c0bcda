// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"folio/internal/blocks"
	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/query"
	"folio/internal/render"
	"folio/internal/schema"
	"folio/internal/store"
)

// Admin serves the schema-driven admin UI.
type Admin struct {
	renderer  *render.Renderer
	content   *Content
	blocks    *blocks.Registry
	maxUpload int64
}

// NewAdmin creates the admin handlers.
func NewAdmin(renderer *render.Renderer, content *Content, registry *blocks.Registry, maxUpload int64) *Admin {
	return &Admin{renderer: renderer, content: content, blocks: registry, maxUpload: maxUpload}
}

type listRow struct {
	ID    uuid.UUID
	Cells []string
}

// Dashboard shows document counts per collection.
func (a *Admin) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := &query.Query{Limit: 1, Page: 1}
	counts := make(map[string]int)

	var err error
	if _, counts[schema.PostsSlug], err = a.content.Posts.List(ctx, q); err != nil {
		slog.Error("dashboard count posts", "error", err)
	}
	if _, counts[schema.PagesSlug], err = a.content.Pages.List(ctx, q); err != nil {
		slog.Error("dashboard count pages", "error", err)
	}
	if _, counts[schema.MediaSlug], err = a.content.Media.List(ctx, q); err != nil {
		slog.Error("dashboard count media", "error", err)
	}
	if _, counts[schema.UsersSlug], err = a.content.Users.List(ctx, q); err != nil {
		slog.Error("dashboard count users", "error", err)
	}

	a.renderer.Page(w, r, "dashboard", &render.PageData{
		Title:   "Dashboard",
		Section: "dashboard",
		Data:    map[string]any{"Counts": counts},
	})
}

func (a *Admin) collection(w http.ResponseWriter, r *http.Request) (*schema.Collection, bool) {
	c, ok := schema.Get(chi.URLParam(r, "collection"))
	if !ok {
		http.NotFound(w, r)
		return nil, false
	}
	return c, true
}

// List shows one page of a collection.
func (a *Admin) List(w http.ResponseWriter, r *http.Request) {
	c, ok := a.collection(w, r)
	if !ok {
		return
	}
	v := r.URL.Query()
	if v.Get("sort") == "" {
		v.Set("sort", c.DefaultSort)
	}
	q, err := query.Parse(c, v)
	if err != nil {
		q, _ = query.Parse(c, url.Values{"sort": {c.DefaultSort}})
	}

	ctx := r.Context()
	var rows []listRow
	var total int
	columns := c.ListColumns()
	addRow := func(id uuid.UUID, values map[string]string) {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = values[col.Name]
		}
		rows = append(rows, listRow{ID: id, Cells: cells})
	}

	switch c.Slug {
	case schema.PostsSlug:
		var docs []models.Post
		docs, total, err = a.content.Posts.List(ctx, q)
		for i := range docs {
			values, _ := postValues(&docs[i])
			addRow(docs[i].ID, values)
		}
	case schema.PagesSlug:
		var docs []models.Page
		docs, total, err = a.content.Pages.List(ctx, q)
		for i := range docs {
			addRow(docs[i].ID, pageValues(&docs[i]))
		}
	case schema.UsersSlug:
		var docs []models.User
		docs, total, err = a.content.Users.List(ctx, q)
		for i := range docs {
			addRow(docs[i].ID, userValues(&docs[i]))
		}
	case schema.MediaSlug:
		var docs []models.Media
		docs, total, err = a.content.Media.List(ctx, q)
		for i := range docs {
			addRow(docs[i].ID, mediaValues(&docs[i]))
		}
	}
	if err != nil {
		slog.Error("admin list", "collection", c.Slug, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	a.renderer.Page(w, r, "list", &render.PageData{
		Title:   c.Label,
		Section: c.Slug,
		Data: map[string]any{
			"Collection": c,
			"Columns":    columns,
			"Rows":       rows,
			"Result":     query.NewResult(rows, total, q),
		},
	})
}

// New shows an empty form.
func (a *Admin) New(w http.ResponseWriter, r *http.Request) {
	c, ok := a.collection(w, r)
	if !ok {
		return
	}
	a.form(w, r, http.StatusOK, c, uuid.Nil, map[string]string{}, nil, nil)
}

// Edit shows the form of an existing document.
func (a *Admin) Edit(w http.ResponseWriter, r *http.Request) {
	c, ok := a.collection(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()
	var values map[string]string
	var rows map[string][]map[string]string
	var extra map[string]any
	switch c.Slug {
	case schema.PostsSlug:
		var p *models.Post
		if p, err = found(a.content.Posts.FindByID(ctx, id)); err == nil {
			values, rows = postValues(p)
		}
	case schema.PagesSlug:
		var p *models.Page
		if p, err = found(a.content.Pages.FindByID(ctx, id)); err == nil {
			values = pageValues(p)
		}
	case schema.UsersSlug:
		var u *models.User
		if u, err = found(a.content.Users.FindByID(ctx, id)); err == nil {
			values = userValues(u)
		}
	case schema.MediaSlug:
		var m *models.Media
		if m, err = found(a.content.Media.FindByID(ctx, id)); err == nil {
			a.content.FillMediaURLs(m)
			values = mediaValues(m)
			extra = map[string]any{"Media": m}
		}
	}
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("admin edit", "collection", c.Slug, "id", id, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	a.form(w, r, http.StatusOK, c, id, values, rows, extra)
}

// form renders the edit form. A non-nil errs re-renders a failed submit.
func (a *Admin) form(w http.ResponseWriter, r *http.Request, status int, c *schema.Collection, id uuid.UUID, values map[string]string, rows map[string][]map[string]string, extra map[string]any, flashes ...render.Flash) {
	errs, _ := extra["Errors"].(ValidationErrors)

	title := "New " + c.Singular
	if id != uuid.Nil {
		title = "Edit " + c.Singular
	}
	data := map[string]any{
		"Collection": c,
		"ID":         id,
		"IsNew":      id == uuid.Nil,
		"Fields":     buildForm(c, values, rows, errs),
	}
	for k, v := range extra {
		data[k] = v
	}
	a.renderer.PageStatus(w, r, status, "form", &render.PageData{
		Title:   title,
		Section: c.Slug,
		Data:    data,
		Flashes: flashes,
	})
}

// Save creates or updates a document from the submitted form.
func (a *Admin) Save(w http.ResponseWriter, r *http.Request) {
	c, ok := a.collection(w, r)
	if !ok {
		return
	}
	id := uuid.Nil
	if raw := chi.URLParam(r, "id"); raw != "" {
		var err error
		if id, err = uuid.Parse(raw); err != nil {
			http.NotFound(w, r)
			return
		}
	}

	if c.Slug == schema.MediaSlug && id == uuid.Nil {
		a.upload(w, r, c)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var values map[string]string
	var rows map[string][]map[string]string
	var saved uuid.UUID
	var err error

	switch c.Slug {
	case schema.PostsSlug:
		p := &models.Post{}
		prev := ""
		if id != uuid.Nil {
			if p, err = found(a.content.Posts.FindByID(ctx, id)); err != nil {
				break
			}
			prev = p.Slug
		}
		if err = postFromForm(r, p); err == nil {
			err = a.content.SavePost(ctx, p, prev)
		}
		values, rows = postValues(p)
		saved = p.ID
	case schema.PagesSlug:
		p := &models.Page{}
		if id != uuid.Nil {
			if p, err = found(a.content.Pages.FindByID(ctx, id)); err != nil {
				break
			}
		}
		pageFromForm(r, p)
		err = a.content.SavePage(ctx, p)
		values = pageValues(p)
		saved = p.ID
	case schema.UsersSlug:
		in := userFromForm(r)
		values = map[string]string{"email": in.Email, "name": in.Name}
		if id == uuid.Nil {
			var u *models.User
			if u, err = a.content.CreateUser(ctx, in); err == nil {
				saved = u.ID
			}
		} else {
			var u *models.User
			if u, err = found(a.content.Users.FindByID(ctx, id)); err == nil {
				err = a.content.UpdateUser(ctx, u, in)
				saved = u.ID
				values = userValues(u)
			}
		}
	case schema.MediaSlug:
		alt := r.PostFormValue("altText")
		in := struct {
			AltText string `json:"altText" validate:"required,max=300"`
		}{alt}
		if err = validate(&in); err == nil {
			err = a.content.Media.UpdateAltText(ctx, id, alt)
		}
		values = map[string]string{"altText": alt}
		saved = id
	}

	if err != nil {
		a.saveFailed(w, r, c, id, values, rows, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/admin/%s/%s?saved=1", c.Slug, saved), http.StatusSeeOther)
}

func (a *Admin) saveFailed(w http.ResponseWriter, r *http.Request, c *schema.Collection, id uuid.UUID, values map[string]string, rows map[string][]map[string]string, err error) {
	var verrs ValidationErrors
	var msg string
	switch {
	case errors.As(err, &verrs):
		msg = "Please fix the highlighted fields."
	case errors.Is(err, store.ErrSlugTaken):
		verrs = ValidationErrors{{Field: "slug", Message: "This slug is already in use."}}
		msg = "Another document already uses this slug."
	case errors.Is(err, store.ErrEmailTaken):
		verrs = ValidationErrors{{Field: "email", Message: "This email is already registered."}}
		msg = "Another user already uses this email."
	case errors.Is(err, ErrNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, ErrStorageDisabled):
		msg = "Object storage is not configured."
	default:
		slog.Error("admin save", "collection", c.Slug, "id", id, "error", err)
		msg = "Saving failed. Please try again."
	}
	a.form(w, r, http.StatusUnprocessableEntity, c, id, values, rows,
		map[string]any{"Errors": verrs},
		render.Flash{Type: "error", Message: msg})
}

func (a *Admin) upload(w http.ResponseWriter, r *http.Request, c *schema.Collection) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload+1<<20)
	values := map[string]string{}
	fail := func(err error) {
		a.saveFailed(w, r, c, uuid.Nil, values, nil, err)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		fail(ValidationErrors{{Field: "file", Message: "The upload could not be read or is too large."}})
		return
	}
	values["altText"] = r.FormValue("altText")

	file, header, err := r.FormFile("file")
	if err != nil {
		fail(ValidationErrors{{Field: "file", Message: "This field is required."}})
		return
	}
	defer file.Close()
	if header.Size > a.maxUpload {
		fail(ValidationErrors{{Field: "file", Message: fmt.Sprintf("Files may be at most %d MiB.", a.maxUpload>>20)}})
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		fail(err)
		return
	}

	m, err := a.content.Upload(r.Context(), header.Filename, sniff(data, header.Filename), data, values["altText"])
	if err != nil {
		fail(err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/admin/%s/%s?saved=1", c.Slug, m.ID), http.StatusSeeOther)
}

// Delete removes a document and returns to the list.
func (a *Admin) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := a.collection(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()
	switch c.Slug {
	case schema.PostsSlug:
		_, err = a.content.DeletePost(ctx, id)
	case schema.PagesSlug:
		_, err = a.content.DeletePage(ctx, id)
	case schema.MediaSlug:
		_, err = a.content.DeleteMedia(ctx, id)
	case schema.UsersSlug:
		if sess := middleware.SessionFromCtx(ctx); sess != nil && sess.UserID == id {
			http.Error(w, "You cannot delete your own account.", http.StatusBadRequest)
			return
		}
		err = a.content.Users.Delete(ctx, id)
	}
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("admin delete", "collection", c.Slug, "id", id, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/admin/"+c.Slug)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/admin/"+c.Slug, http.StatusSeeOther)
}

// ResetTwoFA clears a user's TOTP enrollment so they set it up again on
// their next login.
func (a *Admin) ResetTwoFA(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := a.content.Users.ResetTOTP(r.Context(), id); err != nil {
		slog.Error("reset 2fa", "user", id, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	slog.Info("2fa reset", "user", id)
	http.Redirect(w, r, fmt.Sprintf("/admin/%s/%s?saved=1", schema.UsersSlug, id), http.StatusSeeOther)
}
