package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"folio/internal/blocks"
	"folio/internal/editor"
	"folio/internal/layout"
	"folio/internal/models"
	"folio/internal/render"
)

// traitPrefix marks trait inputs in the tile forms, e.g. trait.title.
const traitPrefix = "trait."

type tileView struct {
	Index  int
	Label  string
	Kind   layout.Kind
	Traits []layout.Trait
	Last   bool
}

// LayoutEditor shows the page canvas with the block palette.
func (a *Admin) LayoutEditor(w http.ResponseWriter, r *http.Request) {
	page, ok := a.layoutPage(w, r)
	if !ok {
		return
	}
	ed := editor.New(a.blocks, page.LayoutHTML, nil)
	a.renderLayout(w, r, http.StatusOK, page, ed)
}

// LayoutOp applies one editor operation and saves the resulting layout.
func (a *Admin) LayoutOp(w http.ResponseWriter, r *http.Request) {
	page, ok := a.layoutPage(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	var saveErr error
	ed := editor.New(a.blocks, page.LayoutHTML, func(doc string) {
		saveErr = a.content.SaveLayout(ctx, page, doc)
	})

	err := applyOp(ed, chi.URLParam(r, "op"), r)
	if err == nil {
		err = saveErr
	}
	if err != nil {
		status := http.StatusUnprocessableEntity
		msg := err.Error()
		switch {
		case errors.Is(err, errUnknownOp):
			status = http.StatusNotFound
		case errors.Is(err, editor.ErrOutOfRange), errors.Is(err, blocks.ErrUnknownBlock),
			errors.Is(err, layout.ErrInvalidTrait), errors.Is(err, layout.ErrUnknownTrait):
		default:
			slog.Error("layout save failed", "page", page.ID, "error", err)
			status = http.StatusInternalServerError
			msg = "The layout could not be saved."
		}
		a.renderLayout(w, r, status, page, ed, render.Flash{Type: "error", Message: msg})
		return
	}

	if r.Header.Get("HX-Request") != "true" {
		http.Redirect(w, r, fmt.Sprintf("/admin/pages/%s/layout", page.ID), http.StatusSeeOther)
		return
	}
	a.renderLayout(w, r, http.StatusOK, page, ed, render.Flash{Type: "success", Message: "Layout saved."})
}

var errUnknownOp = errors.New("unknown layout operation")

func applyOp(ed *editor.Editor, op string, r *http.Request) error {
	switch op {
	case "add":
		_, err := ed.Add(r.PostFormValue("block"))
		return err
	case "insert":
		i, err := formInt(r, "index")
		if err != nil {
			return err
		}
		return ed.Insert(i, r.PostFormValue("block"))
	case "update":
		i, err := formInt(r, "index")
		if err != nil {
			return err
		}
		traits := make(map[string]string)
		for key, vals := range r.PostForm {
			if name, ok := strings.CutPrefix(key, traitPrefix); ok && len(vals) > 0 {
				traits[name] = strings.TrimSpace(vals[0])
			}
		}
		return ed.Update(i, traits)
	case "move":
		from, err := formInt(r, "from")
		if err != nil {
			return err
		}
		to, err := formInt(r, "to")
		if err != nil {
			return err
		}
		return ed.Move(from, to)
	case "remove":
		i, err := formInt(r, "index")
		if err != nil {
			return err
		}
		return ed.Remove(i)
	case "style":
		ed.SetStyle(r.PostFormValue("css"))
		return nil
	case "store":
		ed.Store()
		return nil
	}
	return fmt.Errorf("%w: %q", errUnknownOp, op)
}

func formInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(r.PostFormValue(name))
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a tile index", editor.ErrOutOfRange, name)
	}
	return n, nil
}

func (a *Admin) layoutPage(w http.ResponseWriter, r *http.Request) (*models.Page, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	page, err := found(a.content.Pages.FindByID(r.Context(), id))
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		slog.Error("layout page lookup", "page", id, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	return page, true
}

func (a *Admin) renderLayout(w http.ResponseWriter, r *http.Request, status int, page *models.Page, ed *editor.Editor, flashes ...render.Flash) {
	tiles := ed.Tiles()
	views := make([]tileView, len(tiles))
	for i, t := range tiles {
		views[i] = tileView{
			Index:  i,
			Label:  a.tileLabel(t),
			Kind:   t.Kind(),
			Traits: t.Traits(),
			Last:   i == len(tiles)-1,
		}
	}

	a.renderer.PageStatus(w, r, status, "layout", &render.PageData{
		Title:   "Layout: " + page.Title,
		Section: "pages",
		Flashes: flashes,
		Data: map[string]any{
			"Page":    page,
			"Palette": a.blocks.All(),
			"Tiles":   views,
			"CSS":     ed.CSS(),
			"Preview": previewDoc(ed.Layout()),
		},
	})
}

func (a *Admin) tileLabel(t layout.Tile) string {
	switch t := t.(type) {
	case *layout.Static:
		if b, ok := a.blocks.Lookup(t.Block); ok {
			return b.Label
		}
		return t.Block
	case *layout.Raw:
		return "Custom HTML"
	}
	for _, b := range a.blocks.All() {
		if b.Kind == t.Kind() {
			return b.Label
		}
	}
	return string(t.Kind())
}

// previewDoc wraps a layout in a document for the preview iframe.
func previewDoc(layoutHTML string) string {
	return `<!doctype html><html><head><meta charset="utf-8">` +
		`<link rel="stylesheet" href="/static/css/site.css">` +
		`<link rel="stylesheet" href="https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.5.1/css/all.min.css">` +
		`</head><body class="layout-preview">` + layoutHTML + `</body></html>`
}
