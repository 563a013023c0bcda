// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// PostKind is the closed set of post formats.
type PostKind string

const (
	KindArticle PostKind = "Article"
	KindVideo   PostKind = "Video"
	KindAudio   PostKind = "Audio"
	KindGallery PostKind = "Gallery"
	KindNotes   PostKind = "Notes"
)

// PostKinds lists every valid kind in display order.
var PostKinds = []PostKind{KindArticle, KindVideo, KindAudio, KindGallery, KindNotes}

// Valid reports whether k is one of the known kinds.
func (k PostKind) Valid() bool {
	for _, known := range PostKinds {
		if k == known {
			return true
		}
	}
	return false
}

// GalleryItem is one image in a Gallery post.
type GalleryItem struct {
	ImageURL string `json:"imageUrl" validate:"required,max=2048"`
	Alt      string `json:"alt" validate:"max=300"`
}

// Post is a piece of published content. The kind-specific fields (VideoURL,
// AudioURL, Gallery) are stored whatever the kind is; readers decide which
// ones to show based on Kind.
type Post struct {
	ID          uuid.UUID     `json:"id"`
	Title       string        `json:"title" validate:"required,max=300"`
	Slug        string        `json:"slug" validate:"required,max=300"`
	Kind        PostKind      `json:"kind" validate:"required,oneof=Article Video Audio Gallery Notes"`
	Featured    bool          `json:"featured"`
	Tags        []string      `json:"tags" validate:"max=50,dive,required,max=100"`
	Excerpt     string        `json:"excerpt" validate:"max=1000"`
	ContentHTML string        `json:"contentHtml" validate:"max=500000"`
	VideoURL    string        `json:"videoUrl" validate:"omitempty,url,max=2048"`
	AudioURL    string        `json:"audioUrl" validate:"omitempty,url,max=2048"`
	Gallery     []GalleryItem `json:"gallery" validate:"max=100,dive"`
	Date        time.Time     `json:"date"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`

	// ContentMarkdown is write-only: when set and ContentHTML is empty, it
	// is rendered into ContentHTML before the post is saved.
	ContentMarkdown string `json:"contentMarkdown,omitempty" validate:"max=500000"`
}

// ShowsVideo reports whether the post should render a video embed.
func (p *Post) ShowsVideo() bool {
	return p.Kind == KindVideo && p.VideoURL != ""
}

// ShowsAudio reports whether the post should render an audio player.
func (p *Post) ShowsAudio() bool {
	return p.Kind == KindAudio && p.AudioURL != ""
}

// ShowsGallery reports whether the post should render its gallery.
func (p *Post) ShowsGallery() bool {
	return p.Kind == KindGallery && len(p.Gallery) > 0
}

// ApplyDefaults fills the fields a new post gets when the author leaves
// them blank.
func (p *Post) ApplyDefaults(now time.Time) {
	if p.Kind == "" {
		p.Kind = KindArticle
	}
	if p.Date.IsZero() {
		p.Date = now
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Gallery == nil {
		p.Gallery = []GalleryItem{}
	}
}

// Page is a designable page. LayoutHTML holds the serialized visual layout
// and is treated as an opaque string by everything except the layout codec.
type Page struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title" validate:"required,max=300"`
	Slug       string    `json:"slug" validate:"required,max=300"`
	LayoutHTML string    `json:"layoutHtml" validate:"max=1000000"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
