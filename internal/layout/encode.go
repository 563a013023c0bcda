package layout

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// recognition maps each bento tile kind to the CSS class that identifies
// it in stored markup.
var recognition = map[Kind]string{
	KindFeatured:   "featured-post",
	KindRecent:     "recent-post",
	KindStats:      "stats-card",
	KindMedia:      "media-post",
	KindAbout:      "about-card",
	KindNewsletter: "newsletter-card",
	KindTopics:     "topics-card",
	KindAnalytics:  "analytics-card",
	KindActivity:   "activity-card",
}

const open = `<article class="bento-item {{.V.size}} {{.Class}}" role="region"{{.Attrs}}>`

var tileTemplates = template.Must(template.New("tiles").Parse(`
{{- define "bento-featured" -}}
` + open + `
<div class="bento-content"><span class="post-category">{{.V.badge}}</span><h3>{{.V.title}}</h3><p>{{.V.excerpt}}</p>
<div class="post-meta"><span class="post-date"><i class="far fa-calendar"></i> {{.V.date}}</span><span class="post-reading"><i class="far fa-clock"></i> {{.V.read}} min read</span></div></div>
<div class="bento-media"><div class="placeholder-img {{.V.gradient}}"><i class="fas fa-robot"></i></div></div></article>
{{- end -}}

{{- define "bento-recent" -}}
` + open + `
<div class="bento-content"><span class="post-category">{{.V.category}}</span><h4>{{.V.title}}</h4><p>{{.V.teaser}}</p>
<div class="post-meta"><span class="post-date"><i class="far fa-calendar"></i> {{.V.date}}</span></div></div>
<div class="bento-media"><div class="placeholder-img {{.V.gradient}}"><i class="{{.V.icon}}"></i></div></div></article>
{{- end -}}

{{- define "bento-stats" -}}
` + open + `
<div class="bento-content"><div class="stat-number">{{.V.number}}</div><div class="stat-label">{{.V.label}}</div><div class="stat-growth">{{.V.growth}}</div></div></article>
{{- end -}}

{{- define "bento-media" -}}
` + open + `
<div class="bento-content"><span class="post-category">{{.V.category}}</span><h4>{{.V.title}}</h4><p>{{.V.desc}}</p>
<div class="play-button"><i class="fas fa-play"></i></div></div>
<div class="bento-media"><div class="placeholder-img {{.V.gradient}}"><i class="{{.V.icon}}"></i></div></div></article>
{{- end -}}

{{- define "bento-about" -}}
` + open + `
<div class="bento-content"><div class="avatar"><i class="fas fa-user"></i></div><h4>{{.V.title}}</h4><p>{{.V.bio}}</p>
<div class="social-links"><a href="{{.V.gh}}"><i class="fab fa-github"></i></a><a href="{{.V.li}}"><i class="fab fa-linkedin"></i></a><a href="{{.V.tw}}"><i class="fab fa-twitter"></i></a></div></div></article>
{{- end -}}

{{- define "bento-newsletter" -}}
` + open + `
<div class="bento-content"><h4>{{.V.headline}}</h4><p>{{.V.subcopy}}</p>
<form class="newsletter-form"><input type="email" placeholder="you@example.com" class="email-input"><button type="submit" class="subscribe-btn"><i class="fas fa-paper-plane"></i></button></form>
<div class="subscriber-count"><i class="fas fa-users"></i> {{.V.count}} subscribers</div></div></article>
{{- end -}}

{{- define "bento-topics" -}}
` + open + `
<div class="bento-content"><h4>{{.V.title}}</h4><div class="topic-tags">{{range .Tags}}<span class="tag">{{.}}</span>{{end}}</div></div></article>
{{- end -}}

{{- define "bento-analytics" -}}
` + open + `
<div class="bento-content"><h4>This Month</h4><div class="analytics-grid">
<div class="metric"><span class="metric-value">{{.V.m1}}</span><span class="metric-label">{{.V.l1}}</span></div>
<div class="metric"><span class="metric-value">{{.V.m2}}</span><span class="metric-label">{{.V.l2}}</span></div></div></div></article>
{{- end -}}

{{- define "bento-activity" -}}
` + open + `
<div class="bento-content"><h4>{{.V.title}}</h4><div class="activity-list">
<div class="activity-item"><div class="activity-icon"><i class="fas fa-edit"></i></div><div class="activity-text"><span>Updated article</span><time>2 hours ago</time></div></div>
<div class="activity-item"><div class="activity-icon"><i class="fas fa-heart"></i></div><div class="activity-text"><span>Received likes</span><time>1 day ago</time></div></div></div></div></article>
{{- end -}}
`))

// tileView is the template data of one bento tile. Attrs mirrors the set
// traits onto data-* attributes; V holds the values to display after
// defaults are applied.
type tileView struct {
	Class string
	Attrs template.HTMLAttr
	V     map[string]string
	Tags  []string
}

func newTileView(t Tile) tileView {
	view := tileView{
		Class: recognition[t.Kind()],
		V:     make(map[string]string),
	}
	var attrs strings.Builder
	for _, tr := range t.Traits() {
		if tr.Value != "" {
			writeAttr(&attrs, tr.Attr(), tr.Value)
		}
		switch tr.Type {
		case TraitSelect:
			view.V[tr.Name] = choice(tr.Value, tr.Options, tr.Default)
		default:
			view.V[tr.Name] = text(tr.Value, tr.Default)
		}
	}
	switch t := t.(type) {
	case *Topics:
		view.Tags = t.RenderTags()
	case *Media:
		if t.URL != "" {
			writeAttr(&attrs, "data-video-url", t.URL)
		}
	}
	view.Attrs = template.HTMLAttr(attrs.String())
	return view
}

// writeAttr appends an escaped attribute. Data attributes are written
// directly because html/template treats names such as data-icon or
// data-url as URLs and would rewrite their values.
func writeAttr(b *strings.Builder, name, value string) {
	b.WriteString(" ")
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(html.EscapeString(value))
	b.WriteString(`"`)
}

// escapeCSS keeps the stylesheet inside its <style> element. CSS reads
// "\/" as "/", so the rules are unchanged.
func escapeCSS(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}

func unescapeCSS(css string) string {
	return strings.ReplaceAll(css, `<\/`, "</")
}

// Encode serialises doc into a versioned layout string.
func Encode(doc *Document) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%d-->", markerPrefix, Version)
	b.WriteString("<style>")
	b.WriteString(escapeCSS(doc.CSS))
	b.WriteString("</style>")
	b.WriteString(`<div class="bento-container">`)
	for i, t := range doc.Tiles {
		if err := EncodeTile(&b, t); err != nil {
			return "", fmt.Errorf("encode tile %d: %w", i, err)
		}
	}
	b.WriteString("</div>")
	return b.String(), nil
}

// EncodeTile writes the markup of a single tile.
func EncodeTile(w io.Writer, t Tile) error {
	switch t := t.(type) {
	case *Static:
		_, err := io.WriteString(w, t.HTML)
		return err
	case *Raw:
		_, err := io.WriteString(w, t.HTML)
		return err
	}
	return tileTemplates.ExecuteTemplate(w, string(t.Kind()), newTileView(t))
}
