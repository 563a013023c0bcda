// Package handlers contains the HTTP handlers of the CMS: the collection
// REST API, API token login, media uploads, the block catalog, analytics
// ingest and the admin UI. Write rules shared by the API and the admin
// live on Content so both surfaces behave the same.
package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"folio/internal/cache"
	"folio/internal/imaging"
	"folio/internal/markdown"
	"folio/internal/models"
	"folio/internal/query"
	"folio/internal/schema"
	"folio/internal/slug"
	"folio/internal/storage"
)

// ErrNotFound is returned when the document addressed by a write is gone.
var ErrNotFound = errors.New("not found")

// ErrStorageDisabled is returned for uploads when no bucket is configured.
var ErrStorageDisabled = errors.New("object storage is not configured")

// PostRepo is the post persistence the handlers need.
type PostRepo interface {
	List(ctx context.Context, q *query.Query) ([]models.Post, int, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	Create(ctx context.Context, p *models.Post) error
	Update(ctx context.Context, p *models.Post) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PageRepo is the page persistence the handlers need.
type PageRepo interface {
	List(ctx context.Context, q *query.Query) ([]models.Page, int, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Page, error)
	Create(ctx context.Context, p *models.Page) error
	Update(ctx context.Context, p *models.Page) error
	UpdateLayout(ctx context.Context, id uuid.UUID, layoutHTML string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserRepo is the user persistence the handlers need.
type UserRepo interface {
	List(ctx context.Context, q *query.Query) ([]models.User, int, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, email, password, name string) (*models.User, error)
	Update(ctx context.Context, u *models.User, password string) error
	Delete(ctx context.Context, id uuid.UUID) error
	CheckPassword(u *models.User, password string) bool
	SetTOTPSecret(ctx context.Context, id uuid.UUID, secret string) error
	EnableTOTP(ctx context.Context, id uuid.UUID) error
	ResetTOTP(ctx context.Context, id uuid.UUID) error
}

// MediaRepo is the media persistence the handlers need.
type MediaRepo interface {
	List(ctx context.Context, q *query.Query) ([]models.Media, int, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Media, error)
	Create(ctx context.Context, m *models.Media, variants []models.MediaVariant) error
	UpdateAltText(ctx context.Context, id uuid.UUID, alt string) error
	Delete(ctx context.Context, id uuid.UUID) ([]string, error)
}

// Content applies defaults, validation, persistence and cache
// invalidation for every write.
type Content struct {
	Posts   PostRepo
	Pages   PageRepo
	Users   UserRepo
	Media   MediaRepo
	Objects storage.Objects // nil disables uploads
	Cache   *cache.PageCache

	now func() time.Time
}

// NewContent wires the write rules to their repositories. objects and pc
// may be nil.
func NewContent(posts PostRepo, pages PageRepo, users UserRepo, media MediaRepo, objects storage.Objects, pc *cache.PageCache) *Content {
	return &Content{
		Posts:   posts,
		Pages:   pages,
		Users:   users,
		Media:   media,
		Objects: objects,
		Cache:   pc,
		now:     time.Now,
	}
}

// SavePost creates p when it has no ID and updates it otherwise. prevSlug
// is the slug before the edit, used to evict the old page from the cache.
func (c *Content) SavePost(ctx context.Context, p *models.Post, prevSlug string) error {
	p.Title = strings.TrimSpace(p.Title)
	p.Slug = strings.TrimSpace(p.Slug)
	if p.Slug == "" {
		p.Slug = slug.Generate(p.Title)
	}
	p.ApplyDefaults(c.now())
	p.Tags = cleanTags(p.Tags)

	if p.ContentMarkdown != "" && p.ContentHTML == "" {
		html, err := markdown.ToHTML(p.ContentMarkdown)
		if err != nil {
			return err
		}
		p.ContentHTML = html
	}
	if err := validate(p); err != nil {
		return err
	}
	p.ContentMarkdown = ""

	var err error
	if p.ID == uuid.Nil {
		err = c.Posts.Create(ctx, p)
	} else {
		err = c.Posts.Update(ctx, p)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	c.Cache.InvalidatePost(ctx, prevSlug, p.Slug)
	return nil
}

// DeletePost removes a post and returns it as it was.
func (c *Content) DeletePost(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	p, err := c.Posts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	if err := c.Posts.Delete(ctx, id); err != nil {
		return nil, err
	}
	c.Cache.InvalidatePost(ctx, p.Slug)
	return p, nil
}

// SavePage creates or updates a page.
func (c *Content) SavePage(ctx context.Context, p *models.Page) error {
	p.Title = strings.TrimSpace(p.Title)
	p.Slug = strings.TrimSpace(p.Slug)
	if p.Slug == "" {
		p.Slug = slug.Generate(p.Title)
	}
	if err := validate(p); err != nil {
		return err
	}

	var err error
	if p.ID == uuid.Nil {
		err = c.Pages.Create(ctx, p)
	} else {
		err = c.Pages.Update(ctx, p)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	c.Cache.InvalidateAll(ctx)
	return nil
}

// SaveLayout stores a new serialized layout for a page.
func (c *Content) SaveLayout(ctx context.Context, p *models.Page, layoutHTML string) error {
	if err := c.Pages.UpdateLayout(ctx, p.ID, layoutHTML); err != nil {
		return err
	}
	p.LayoutHTML = layoutHTML
	if p.Slug == "home" {
		c.Cache.Invalidate(ctx, cache.HomeKey)
	}
	return nil
}

// DeletePage removes a page and returns it as it was.
func (c *Content) DeletePage(ctx context.Context, id uuid.UUID) (*models.Page, error) {
	p, err := c.Pages.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	if err := c.Pages.Delete(ctx, id); err != nil {
		return nil, err
	}
	c.Cache.InvalidateAll(ctx)
	return p, nil
}

// UserInput is the writable part of a user document.
type UserInput struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Name     string `json:"name" validate:"max=200"`
	Password string `json:"password" validate:"omitempty,min=8,max=200"`
}

// CreateUser validates in and creates the account. A password is required.
func (c *Content) CreateUser(ctx context.Context, in UserInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Password == "" {
		return nil, ValidationErrors{{Field: "password", Message: "This field is required."}}
	}
	if err := validate(&in); err != nil {
		return nil, err
	}
	return c.Users.Create(ctx, in.Email, in.Password, strings.TrimSpace(in.Name))
}

// UpdateUser applies in to u. An empty password keeps the current one.
func (c *Content) UpdateUser(ctx context.Context, u *models.User, in UserInput) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate(&in); err != nil {
		return err
	}
	u.Email = in.Email
	u.Name = strings.TrimSpace(in.Name)
	return c.Users.Update(ctx, u, in.Password)
}

// Upload stores a file and its derived sizes and records the metadata.
// Objects already written are removed again when a later step fails.
func (c *Content) Upload(ctx context.Context, filename, contentType string, data []byte, alt string) (*models.Media, error) {
	if c.Objects == nil {
		return nil, ErrStorageDisabled
	}

	m := &models.Media{
		Filename: path.Base(filename),
		AltText:  strings.TrimSpace(alt),
		MimeType: contentType,
		Filesize: int64(len(data)),
	}
	if err := validate(m); err != nil {
		return nil, err
	}
	if !slices.Contains(schema.Media.Upload.MimeTypes, contentType) {
		return nil, ValidationErrors{{Field: "file", Message: fmt.Sprintf("File type %q is not allowed.", contentType)}}
	}

	now := c.now()
	id := uuid.New().String()
	prefix := fmt.Sprintf("media/%d/%02d/%s", now.Year(), now.Month(), id)
	m.S3Key = prefix + path.Ext(m.Filename)

	var variants []models.MediaVariant
	var crops []*imaging.Variant
	if m.IsImage() && contentType != "image/svg+xml" {
		info, err := imaging.Probe(data)
		if err != nil {
			return nil, ValidationErrors{{Field: "file", Message: "The file is not a readable image."}}
		}
		m.Width, m.Height = info.Width, info.Height

		for _, size := range schema.Media.Upload.ImageSizes {
			v, err := imaging.Crop(data, size)
			if err != nil {
				return nil, err
			}
			crops = append(crops, v)
			variants = append(variants, models.MediaVariant{
				Name:     v.Name,
				Width:    v.Width,
				Height:   v.Height,
				MimeType: v.ContentType,
				Filesize: int64(len(v.Data)),
				S3Key:    fmt.Sprintf("%s-%dx%d%s", prefix, v.Width, v.Height, extFor(v.ContentType)),
			})
		}
	}

	written := make([]string, 0, 1+len(crops))
	cleanup := func() {
		for _, key := range written {
			if err := c.Objects.Delete(context.WithoutCancel(ctx), key); err != nil {
				slog.Warn("orphaned upload", "key", key, "error", err)
			}
		}
	}

	if err := c.Objects.Put(ctx, m.S3Key, contentType, bytes.NewReader(data), m.Filesize); err != nil {
		return nil, err
	}
	written = append(written, m.S3Key)
	for i, v := range crops {
		if err := c.Objects.Put(ctx, variants[i].S3Key, v.ContentType, bytes.NewReader(v.Data), int64(len(v.Data))); err != nil {
			cleanup()
			return nil, err
		}
		written = append(written, variants[i].S3Key)
	}

	if err := c.Media.Create(ctx, m, variants); err != nil {
		cleanup()
		return nil, err
	}
	c.FillMediaURLs(m)
	return m, nil
}

// DeleteMedia removes the metadata and then every stored object.
func (c *Content) DeleteMedia(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	m, err := c.Media.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound
	}
	keys, err := c.Media.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Objects != nil {
		for _, key := range keys {
			if err := c.Objects.Delete(ctx, key); err != nil {
				slog.Warn("delete media object failed", "key", key, "error", err)
			}
		}
	}
	c.FillMediaURLs(m)
	return m, nil
}

// FillMediaURLs sets the public URLs of m and its sizes.
func (c *Content) FillMediaURLs(m *models.Media) {
	if c.Objects == nil {
		return
	}
	m.URL = c.Objects.URL(m.S3Key)
	for name, v := range m.Sizes {
		v.URL = c.Objects.URL(v.S3Key)
		m.Sizes[name] = v
	}
}

func extFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".jpg"
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
