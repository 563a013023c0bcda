// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Media represents a file uploaded to S3-compatible object storage.
// Metadata is stored in PostgreSQL; the file itself lives in the bucket.
type Media struct {
	ID        uuid.UUID               `json:"id"`
	Filename  string                  `json:"filename"`
	AltText   string                  `json:"altText" validate:"required,max=300"`
	MimeType  string                  `json:"mimeType"`
	Filesize  int64                   `json:"filesize"`
	Width     int                     `json:"width,omitempty"`
	Height    int                     `json:"height,omitempty"`
	S3Key     string                  `json:"-"`
	URL       string                  `json:"url"`
	Sizes     map[string]MediaVariant `json:"sizes,omitempty"`
	CreatedAt time.Time               `json:"createdAt"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

// MediaVariant is a derived image size (for example the "card" crop).
type MediaVariant struct {
	ID        uuid.UUID `json:"-"`
	MediaID   uuid.UUID `json:"-"`
	Name      string    `json:"-"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	MimeType  string    `json:"mimeType"`
	Filesize  int64     `json:"filesize"`
	S3Key     string    `json:"-"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"-"`
}

// IsImage returns true if the media item is an image type.
func (m *Media) IsImage() bool {
	return strings.HasPrefix(m.MimeType, "image/")
}

// HumanSize returns a human-readable file size string.
func (m *Media) HumanSize() string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	switch {
	case m.Filesize >= mb:
		return fmt.Sprintf("%.1f MB", float64(m.Filesize)/float64(mb))
	case m.Filesize >= kb:
		return fmt.Sprintf("%.0f KB", float64(m.Filesize)/float64(kb))
	default:
		return fmt.Sprintf("%d B", m.Filesize)
	}
}
