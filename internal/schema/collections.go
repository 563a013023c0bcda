package schema

import "folio/internal/models"

// Collection slugs.
const (
	UsersSlug = "users"
	PostsSlug = "posts"
	PagesSlug = "pages"
	MediaSlug = "media"
)

// CardSize is the derived crop every image upload gets.
var CardSize = ImageSize{Name: "card", Width: 800, Height: 600, Position: "centre"}

func kindOptions() []Option {
	opts := make([]Option, 0, len(models.PostKinds))
	for _, k := range models.PostKinds {
		opts = append(opts, Option{Value: string(k), Label: string(k)})
	}
	return opts
}

var Users = register(&Collection{
	Slug:        UsersSlug,
	Label:       "Users",
	Singular:    "User",
	Table:       "users",
	UseAsTitle:  "email",
	DefaultSort: "email",
	Auth:        true,
	Fields: []Field{
		{Name: "email", Column: "email", Label: "Email", Type: Email, Required: true, Unique: true, Queryable: true},
		{Name: "name", Column: "name", Label: "Name", Type: Text, Queryable: true},
		{Name: "password", Label: "Password", Type: Password, Hidden: true, Help: "Leave blank to keep the current password."},
		{Name: "totpEnabled", Column: "totp_enabled", Label: "2FA", Type: Checkbox, Queryable: true},
	},
})

var Posts = register(&Collection{
	Slug:        PostsSlug,
	Label:       "Posts",
	Singular:    "Post",
	Table:       "posts",
	UseAsTitle:  "title",
	DefaultSort: "-date",
	Fields: []Field{
		{Name: "title", Column: "title", Label: "Title", Type: Text, Required: true, Queryable: true},
		{Name: "slug", Column: "slug", Label: "Slug", Type: Text, Required: true, Unique: true, Queryable: true,
			Help: "Derived from the title when left blank."},
		{Name: "kind", Column: "kind", Label: "Kind", Type: Select, Required: true, Queryable: true,
			Options: kindOptions(), Default: string(models.KindArticle)},
		{Name: "featured", Column: "featured", Label: "Featured", Type: Checkbox, Queryable: true, Default: "false"},
		{Name: "tags", Column: "tags", Label: "Tags", Type: Tags, Queryable: true, Hidden: true},
		{Name: "excerpt", Column: "excerpt", Label: "Excerpt", Type: Textarea, Hidden: true},
		{Name: "contentHtml", Column: "content_html", Label: "Content (HTML)", Type: Code, Hidden: true},
		{Name: "videoUrl", Column: "video_url", Label: "Video URL", Type: Text, Hidden: true, Queryable: true,
			Condition: &Condition{Field: "kind", Equals: string(models.KindVideo)}},
		{Name: "audioUrl", Column: "audio_url", Label: "Audio URL", Type: Text, Hidden: true, Queryable: true,
			Condition: &Condition{Field: "kind", Equals: string(models.KindAudio)}},
		{Name: "gallery", Column: "gallery", Label: "Gallery", Type: Array, Hidden: true,
			Condition: &Condition{Field: "kind", Equals: string(models.KindGallery)},
			Fields: []Field{
				{Name: "imageUrl", Label: "Image URL", Type: Text, Required: true},
				{Name: "alt", Label: "Alt text", Type: Text},
			}},
		{Name: "date", Column: "date", Label: "Date", Type: Date, Queryable: true, Help: "Defaults to now."},
	},
})

var Pages = register(&Collection{
	Slug:        PagesSlug,
	Label:       "Pages",
	Singular:    "Page",
	Table:       "pages",
	UseAsTitle:  "title",
	DefaultSort: "title",
	Fields: []Field{
		{Name: "title", Column: "title", Label: "Title", Type: Text, Required: true, Queryable: true},
		{Name: "slug", Column: "slug", Label: "Slug", Type: Text, Required: true, Unique: true, Queryable: true},
		{Name: "layoutHtml", Column: "layout_html", Label: "Layout", Type: Layout, Hidden: true},
	},
})

var Media = register(&Collection{
	Slug:        MediaSlug,
	Label:       "Media",
	Singular:    "Media",
	Table:       "media",
	UseAsTitle:  "filename",
	DefaultSort: "-createdAt",
	Upload: &UploadConfig{
		StaticURL:  "/uploads",
		MimeTypes:  []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/svg+xml", "audio/mpeg", "video/mp4"},
		ImageSizes: []ImageSize{CardSize},
	},
	Fields: []Field{
		{Name: "filename", Column: "filename", Label: "Filename", Type: Text, Queryable: true},
		{Name: "altText", Column: "alt_text", Label: "Alt text", Type: Text, Required: true, Queryable: true},
		{Name: "mimeType", Column: "mime_type", Label: "Type", Type: Text, Queryable: true},
		{Name: "file", Label: "File", Type: Upload, Required: true, Hidden: true},
	},
})
