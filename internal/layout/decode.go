package layout

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// staticBlocks are the classes of the non-interactive palette tiles.
var staticBlocks = []string{
	"logo-tile", "typography-tile", "toast-tile", "kpi-tile",
	"imagery-tile", "links-tile", "phone-tile",
}

// Decode parses a stored layout back into tiles. Decoding is all or
// nothing: if any recognised tile carries a trait value that cannot be
// parsed, or the version marker is unknown, an error is returned and no
// document is produced.
func Decode(s string) (*Document, error) {
	_, body, err := splitVersion(s)
	if err != nil {
		return nil, err
	}

	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(body), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	doc := &Document{}
	var css []string
	for _, n := range nodes {
		switch {
		case n.Type == html.ElementNode && n.DataAtom == atom.Style:
			css = append(css, unescapeCSS(textContent(n)))
		case hasClass(n, "bento-container"):
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if err := doc.appendNode(c); err != nil {
					return nil, err
				}
			}
		default:
			if err := doc.appendNode(n); err != nil {
				return nil, err
			}
		}
	}
	doc.CSS = strings.Join(css, "\n")
	return doc, nil
}

func (d *Document) appendNode(n *html.Node) error {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" {
			return nil
		}
	case html.CommentNode, html.ElementNode:
	default:
		return nil
	}

	t, err := decodeTile(n)
	if err != nil {
		return err
	}
	d.Tiles = append(d.Tiles, t)
	return nil
}

func decodeTile(n *html.Node) (Tile, error) {
	if n.Type == html.ElementNode {
		if t := recognise(n); t != nil {
			for _, tr := range t.Traits() {
				v, ok := attr(n, tr.Attr())
				if !ok {
					continue
				}
				if err := t.SetTrait(tr.Name, v); err != nil {
					return nil, fmt.Errorf("decode %s: %w", t.Kind(), err)
				}
			}
			// Size is the first trait of every bento tile.
			if _, ok := attr(n, "data-size"); !ok {
				if s := sizeFromClass(n); s != "" && string(s) != t.Traits()[0].Default {
					t.SetTrait("size", string(s))
				}
			}
			return t, nil
		}
		for _, block := range staticBlocks {
			if hasClass(n, block) {
				return &Static{Block: block, HTML: render(n)}, nil
			}
		}
	}
	return &Raw{HTML: render(n)}, nil
}

// recognise returns an empty tile of the kind whose class n carries.
func recognise(n *html.Node) Tile {
	for _, k := range []Kind{
		KindFeatured, KindRecent, KindStats, KindMedia, KindAbout,
		KindNewsletter, KindTopics, KindAnalytics, KindActivity,
	} {
		if hasClass(n, recognition[k]) {
			return NewTile(k)
		}
	}
	return nil
}

// NewTile returns a tile of kind k with every trait unset, or nil for
// kinds that are not bento tiles.
func NewTile(k Kind) Tile {
	switch k {
	case KindFeatured:
		return &Featured{}
	case KindRecent:
		return &Recent{}
	case KindStats:
		return &Stats{}
	case KindMedia:
		return &Media{}
	case KindAbout:
		return &About{}
	case KindNewsletter:
		return &Newsletter{}
	case KindTopics:
		return &Topics{}
	case KindAnalytics:
		return &Analytics{}
	case KindActivity:
		return &Activity{}
	}
	return nil
}

// sizeFromClass reads the size of a tile whose data-size attribute is
// missing, which is how layouts saved before the trait existed look.
func sizeFromClass(n *html.Node) Size {
	for _, s := range []Size{SizeSmall, SizeMedium, SizeLarge} {
		if hasClass(n, string(s)) {
			return s
		}
	}
	return ""
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	v, _ := attr(n, "class")
	return slices.Contains(strings.Fields(v), class)
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func render(n *html.Node) string {
	var b strings.Builder
	// Render only fails on write errors, which strings.Builder never returns.
	_ = html.Render(&b, n)
	return b.String()
}
