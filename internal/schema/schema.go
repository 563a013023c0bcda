// Package schema declares the CMS collections (users, posts, pages, media)
// as data. The declarations drive the admin forms, the REST query
// whitelist and the conditional visibility of kind-specific post fields.
package schema

import (
	"fmt"
	"slices"
)

// FieldType selects the input widget and the value coercion for a field.
type FieldType string

const (
	Text     FieldType = "text"
	Textarea FieldType = "textarea"
	Email    FieldType = "email"
	Password FieldType = "password"
	Select   FieldType = "select"
	Checkbox FieldType = "checkbox"
	Date     FieldType = "date"
	Code     FieldType = "code"  // raw HTML, edited as text
	Tags     FieldType = "tags"  // ordered list of strings
	Array    FieldType = "array" // ordered list of groups described by Fields
	Layout   FieldType = "layout"
	Upload   FieldType = "upload"
	Number   FieldType = "number"
)

// Option is one choice of a Select field.
type Option struct {
	Value string
	Label string
}

// Condition shows a field only when another field holds a given value.
type Condition struct {
	Field  string
	Equals string
}

// Field describes one attribute of a collection document.
type Field struct {
	Name      string // JSON name used by the API
	Column    string // SQL column; empty when the field is not stored
	Label     string
	Type      FieldType
	Required  bool
	Unique    bool
	Options   []Option
	Default   string
	Fields    []Field // sub-fields of an Array
	Condition *Condition
	Queryable bool // may be used in where[...] filters and sort
	Hidden    bool // never shown in admin lists
	Help      string
}

// Visible reports whether the field should be shown for a document whose
// current values are given. Fields without a condition are always visible.
func (f Field) Visible(values map[string]string) bool {
	if f.Condition == nil {
		return true
	}
	return values[f.Condition.Field] == f.Condition.Equals
}

// ImageSize is a derived variant produced on upload.
type ImageSize struct {
	Name     string
	Width    int
	Height   int
	Position string // crop anchor, "centre" is the only supported value
}

// UploadConfig marks a collection as storing files.
type UploadConfig struct {
	StaticURL  string
	MimeTypes  []string
	ImageSizes []ImageSize
}

// Collection is a named set of documents with a fixed field list.
type Collection struct {
	Slug        string
	Label       string
	Singular    string
	Table       string
	UseAsTitle  string
	DefaultSort string
	Auth        bool
	Upload      *UploadConfig
	Fields      []Field
}

// Field returns the named top-level field.
func (c *Collection) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// QueryField returns a field that may be used in filters and sort.
// The built-in id/createdAt/updatedAt fields are always queryable.
func (c *Collection) QueryField(name string) (Field, error) {
	switch name {
	case "id":
		return Field{Name: "id", Column: "id", Type: Text, Queryable: true}, nil
	case "createdAt":
		return Field{Name: "createdAt", Column: "created_at", Type: Date, Queryable: true}, nil
	case "updatedAt":
		return Field{Name: "updatedAt", Column: "updated_at", Type: Date, Queryable: true}, nil
	}
	f, ok := c.Field(name)
	if !ok || !f.Queryable || f.Column == "" {
		return Field{}, fmt.Errorf("field %q is not queryable on %s", name, c.Slug)
	}
	return f, nil
}

// ListColumns returns the fields shown as columns in the admin list view.
func (c *Collection) ListColumns() []Field {
	var out []Field
	for _, f := range c.Fields {
		if f.Hidden {
			continue
		}
		switch f.Type {
		case Text, Email, Select, Checkbox, Date:
			out = append(out, f)
		}
	}
	return out
}

// HasOption reports whether value is one of the field's select options.
func (f Field) HasOption(value string) bool {
	return slices.ContainsFunc(f.Options, func(o Option) bool { return o.Value == value })
}

var registry = map[string]*Collection{}
var order []string

func register(c *Collection) *Collection {
	registry[c.Slug] = c
	order = append(order, c.Slug)
	return c
}

// Get returns the collection with the given slug.
func Get(slug string) (*Collection, bool) {
	c, ok := registry[slug]
	return c, ok
}

// All returns every collection in declaration order.
func All() []*Collection {
	out := make([]*Collection, 0, len(order))
	for _, slug := range order {
		out = append(out, registry[slug])
	}
	return out
}
