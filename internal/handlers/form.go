package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"folio/internal/models"
	"folio/internal/schema"
)

const dateLayout = "2006-01-02T15:04"

// formField is one schema field prepared for the admin form template.
type formField struct {
	schema.Field
	Value    string
	Checked  bool
	Visible  bool
	ShowWhen string // "field=value" for conditional fields
	Error    string
	Rows     []map[string]string // Array fields, plus one blank row
}

// buildForm lays out the fields of c with the given values. rows holds the
// groups of Array fields keyed by field name.
func buildForm(c *schema.Collection, values map[string]string, rows map[string][]map[string]string, errs ValidationErrors) []formField {
	out := make([]formField, 0, len(c.Fields))
	for _, f := range c.Fields {
		ff := formField{
			Field:   f,
			Value:   values[f.Name],
			Visible: f.Visible(values),
			Error:   errs.For(f.Name),
		}
		if ff.Value == "" && f.Default != "" {
			ff.Value = f.Default
		}
		if f.Condition != nil {
			ff.ShowWhen = f.Condition.Field + "=" + f.Condition.Equals
		}
		if f.Type == schema.Checkbox {
			ff.Checked = ff.Value == "true"
		}
		if f.Type == schema.Array {
			blank := make(map[string]string, len(f.Fields))
			for _, sub := range f.Fields {
				blank[sub.Name] = ""
			}
			ff.Rows = append(append([]map[string]string{}, rows[f.Name]...), blank)
			if ff.Error == "" {
				for _, fe := range errs {
					if strings.HasPrefix(fe.Field, f.Name+".") {
						ff.Error = fe.Field + ": " + fe.Message
						break
					}
				}
			}
		}
		out = append(out, ff)
	}
	return out
}

func postValues(p *models.Post) (map[string]string, map[string][]map[string]string) {
	values := map[string]string{
		"title":       p.Title,
		"slug":        p.Slug,
		"kind":        string(p.Kind),
		"featured":    strconv.FormatBool(p.Featured),
		"tags":        strings.Join(p.Tags, ", "),
		"excerpt":     p.Excerpt,
		"contentHtml": p.ContentHTML,
		"videoUrl":    p.VideoURL,
		"audioUrl":    p.AudioURL,
	}
	if !p.Date.IsZero() {
		values["date"] = p.Date.Local().Format(dateLayout)
	}
	gallery := make([]map[string]string, 0, len(p.Gallery))
	for _, g := range p.Gallery {
		gallery = append(gallery, map[string]string{"imageUrl": g.ImageURL, "alt": g.Alt})
	}
	return values, map[string][]map[string]string{"gallery": gallery}
}

// postFromForm copies the submitted form onto p. Kind-specific fields are
// copied whatever the kind, matching what the API stores.
func postFromForm(r *http.Request, p *models.Post) error {
	if err := r.ParseForm(); err != nil {
		return ValidationErrors{{Field: "body", Message: "The form could not be read."}}
	}
	p.Title = r.PostFormValue("title")
	p.Slug = r.PostFormValue("slug")
	p.Kind = models.PostKind(r.PostFormValue("kind"))
	p.Featured = r.PostFormValue("featured") == "true"
	p.Tags = strings.Split(r.PostFormValue("tags"), ",")
	p.Excerpt = r.PostFormValue("excerpt")
	p.ContentHTML = r.PostFormValue("contentHtml")
	p.VideoURL = strings.TrimSpace(r.PostFormValue("videoUrl"))
	p.AudioURL = strings.TrimSpace(r.PostFormValue("audioUrl"))

	p.Gallery = p.Gallery[:0]
	for i := 0; ; i++ {
		key := fmt.Sprintf("gallery.%d.", i)
		if _, ok := r.PostForm[key+"imageUrl"]; !ok {
			break
		}
		img := strings.TrimSpace(r.PostFormValue(key + "imageUrl"))
		if img == "" {
			continue
		}
		p.Gallery = append(p.Gallery, models.GalleryItem{ImageURL: img, Alt: r.PostFormValue(key + "alt")})
	}

	p.Date = time.Time{}
	if raw := strings.TrimSpace(r.PostFormValue("date")); raw != "" {
		d, err := time.ParseInLocation(dateLayout, raw, time.Local)
		if err != nil {
			return ValidationErrors{{Field: "date", Message: "Please enter a valid date."}}
		}
		p.Date = d
	}
	return nil
}

func pageValues(p *models.Page) map[string]string {
	return map[string]string{"title": p.Title, "slug": p.Slug, "layoutHtml": p.LayoutHTML}
}

func pageFromForm(r *http.Request, p *models.Page) {
	p.Title = r.PostFormValue("title")
	p.Slug = r.PostFormValue("slug")
}

func userValues(u *models.User) map[string]string {
	return map[string]string{"email": u.Email, "name": u.Name, "totpEnabled": strconv.FormatBool(u.TOTPEnabled)}
}

func userFromForm(r *http.Request) UserInput {
	return UserInput{
		Email:    r.PostFormValue("email"),
		Name:     r.PostFormValue("name"),
		Password: r.PostFormValue("password"),
	}
}

func mediaValues(m *models.Media) map[string]string {
	return map[string]string{"filename": m.Filename, "altText": m.AltText, "mimeType": m.MimeType}
}
