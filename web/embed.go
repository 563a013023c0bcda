// Package web embeds the static assets shared by the CMS admin and the
// public site: stylesheets, client scripts, the offline page and the web
// app manifest.
package web

import "embed"

// StaticFS holds the web/static/ tree. Files are served under /static/;
// offline.html and manifest.json are also served from the site root.
//
//go:embed all:static
var StaticFS embed.FS
