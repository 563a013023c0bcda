// Package layout encodes and decodes the page layouts produced by the
// visual editor. A layout is a single HTML string:
//
//	<!--layout:v1--><style>css</style><div class="bento-container">tiles</div>
//
// Tiles are a closed set of Go types. Each carries its traits as typed
// fields, is recognised on decode by its CSS class and is written back with
// its traits mirrored onto data-* attributes.
package layout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Version is the layout format written by Encode.
const Version = 1

const markerPrefix = "<!--layout:v"

var (
	// ErrUnknownVersion is returned when a layout carries a version marker
	// this package does not understand.
	ErrUnknownVersion = errors.New("unknown layout version")

	// ErrUnknownTrait is returned when setting a trait a tile does not have.
	ErrUnknownTrait = errors.New("unknown trait")

	// ErrInvalidTrait is returned when a trait value cannot be parsed into
	// the trait's type.
	ErrInvalidTrait = errors.New("invalid trait value")
)

// Kind identifies a tile type.
type Kind string

const (
	KindFeatured   Kind = "bento-featured"
	KindRecent     Kind = "bento-recent"
	KindStats      Kind = "bento-stats"
	KindMedia      Kind = "bento-media"
	KindAbout      Kind = "bento-about"
	KindNewsletter Kind = "bento-newsletter"
	KindTopics     Kind = "bento-topics"
	KindAnalytics  Kind = "bento-analytics"
	KindActivity   Kind = "bento-activity"
	KindStatic     Kind = "static"
	KindRaw        Kind = "raw"
)

// TraitType is the editor input type of a trait.
type TraitType string

const (
	TraitText   TraitType = "text"
	TraitNumber TraitType = "number"
	TraitSelect TraitType = "select"
)

// Option is one choice of a select trait.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Trait describes one configurable value of a tile together with its
// current value. An empty Value means the tile renders its default.
type Trait struct {
	Name    string    `json:"name"`
	Label   string    `json:"label"`
	Type    TraitType `json:"type"`
	Options []Option  `json:"options,omitempty"`
	Default string    `json:"default"`
	Value   string    `json:"value"`
}

// Attr returns the data attribute the trait is stored in.
func (t Trait) Attr() string {
	return "data-" + t.Name
}

// Tile is one component on the layout canvas.
type Tile interface {
	Kind() Kind
	Traits() []Trait
	SetTrait(name, value string) error
	isTile()
}

// Document is a decoded layout.
type Document struct {
	CSS   string
	Tiles []Tile
}

// Size is the grid footprint of a bento tile.
type Size string

const (
	SizeSmall  Size = "bento-small"
	SizeMedium Size = "bento-medium"
	SizeLarge  Size = "bento-large"
)

var sizeOptions = []Option{
	{ID: string(SizeSmall), Name: "Small"},
	{ID: string(SizeMedium), Name: "Medium"},
	{ID: string(SizeLarge), Name: "Large"},
}

// Gradient is the placeholder background of a post tile.
type Gradient string

const (
	GradientAI    Gradient = "ai-gradient"
	GradientTech  Gradient = "tech-gradient"
	GradientVideo Gradient = "video-gradient"
)

var gradientOptions = []Option{
	{ID: string(GradientAI), Name: "AI"},
	{ID: string(GradientTech), Name: "Tech"},
	{ID: string(GradientVideo), Name: "Video"},
}

// splitVersion strips the version marker from a layout and reports the
// version found. Layouts written before the marker existed are version 0.
func splitVersion(s string) (int, string, error) {
	trimmed := strings.TrimLeft(s, " \t\r\n")
	if !strings.HasPrefix(trimmed, markerPrefix) {
		return 0, s, nil
	}
	rest := trimmed[len(markerPrefix):]
	end := strings.Index(rest, "-->")
	if end < 0 {
		return 0, "", fmt.Errorf("%w: unterminated marker", ErrUnknownVersion)
	}
	v, err := strconv.Atoi(rest[:end])
	if err != nil || v < 1 || v > Version {
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownVersion, rest[:end])
	}
	return v, rest[end+3:], nil
}

// text returns v, or def when v is blank.
func text(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// choice returns v when it is one of opts, otherwise def.
func choice(v string, opts []Option, def string) string {
	for _, o := range opts {
		if o.ID == v {
			return v
		}
	}
	return def
}

// number parses an integer trait. An empty value clears it.
func number(name, v string) (*int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidTrait, name, v)
	}
	return &n, nil
}

func formatNumber(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

// Int returns a pointer to n, for building numeric traits.
func Int(n int) *int {
	return &n
}

func unknownTrait(k Kind, name string) error {
	return fmt.Errorf("%w: %s has no trait %q", ErrUnknownTrait, k, name)
}
