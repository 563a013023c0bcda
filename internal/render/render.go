// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package render renders the admin interface. Pages are paired with a base
// layout; HTMX requests get only the "content" block.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"folio/internal/middleware"
	"folio/internal/schema"
	"folio/internal/session"
)

//go:embed templates/admin/*.html
var adminFS embed.FS

// PageData is passed to every admin template.
type PageData struct {
	Title       string
	Section     string // collection slug or "dashboard"
	Session     *session.Data
	CSRFToken   string
	Collections []*schema.Collection
	Data        map[string]any
	Flashes     []Flash
}

// Flash is a one-time notice shown above the content.
type Flash struct {
	Type    string // "success", "error", "info"
	Message string
}

// Renderer holds the parsed admin templates.
type Renderer struct {
	templates map[string]*template.Template
}

var standalone = map[string]bool{
	"login":      true,
	"2fa_setup":  true,
	"2fa_verify": true,
}

var funcs = template.FuncMap{
	"activeClass": func(current, target string) string {
		if current == target {
			return "active"
		}
		return ""
	},
	"join": strings.Join,
	"add":  func(a, b int) int { return a + b },
	"sub":  func(a, b int) int { return a - b },
}

// New parses every embedded admin template.
func New() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template)}

	names, err := fs.Glob(adminFS, "templates/admin/*.html")
	if err != nil {
		return nil, fmt.Errorf("glob templates: %w", err)
	}
	for _, file := range names {
		base := path.Base(file)
		if base == "base.html" {
			continue
		}
		name := strings.TrimSuffix(base, ".html")

		var tmpl *template.Template
		if standalone[name] {
			tmpl, err = template.New(base).Funcs(funcs).ParseFS(adminFS, file)
		} else {
			tmpl, err = template.New("base.html").Funcs(funcs).ParseFS(adminFS, "templates/admin/base.html", file)
		}
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", base, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// Page renders a full admin page, or only its content block for HTMX.
// Output is buffered so a template error never sends half a page.
func (rn *Renderer) Page(w http.ResponseWriter, r *http.Request, name string, data *PageData) {
	rn.PageStatus(w, r, http.StatusOK, name, data)
}

// PageStatus is Page with an explicit status code.
func (rn *Renderer) PageStatus(w http.ResponseWriter, r *http.Request, status int, name string, data *PageData) {
	tmpl, ok := rn.templates[name]
	if !ok {
		http.Error(w, fmt.Sprintf("template %q not found", name), http.StatusInternalServerError)
		return
	}

	data.CSRFToken = middleware.CSRFTokenFromCtx(r.Context())
	if data.Session == nil {
		data.Session = middleware.SessionFromCtx(r.Context())
	}
	if data.Collections == nil {
		data.Collections = schema.All()
	}

	exec := "base.html"
	switch {
	case standalone[name]:
		exec = name + ".html"
	case r.Header.Get("HX-Request") == "true":
		exec = "content"
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, exec, data); err != nil {
		slog.Error("render admin template", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
