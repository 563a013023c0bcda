package layout

import (
	"strings"
)

func sizeTrait(v Size, def Size) Trait {
	return Trait{Name: "size", Label: "Size", Type: TraitSelect, Options: sizeOptions, Default: string(def), Value: string(v)}
}

func textTrait(name, label, def, v string) Trait {
	return Trait{Name: name, Label: label, Type: TraitText, Default: def, Value: v}
}

func gradientTrait(v Gradient, def Gradient) Trait {
	return Trait{Name: "gradient", Label: "Gradient", Type: TraitSelect, Options: gradientOptions, Default: string(def), Value: string(v)}
}

// Featured is the large featured-post tile.
type Featured struct {
	Size     Size
	Badge    string
	Title    string
	Excerpt  string
	Date     string
	Read     *int
	Gradient Gradient
}

func (*Featured) Kind() Kind { return KindFeatured }
func (*Featured) isTile()    {}

func (t *Featured) Traits() []Trait {
	return []Trait{
		sizeTrait(t.Size, SizeLarge),
		textTrait("badge", "Badge", "Featured", t.Badge),
		textTrait("title", "Title", "Featured title", t.Title),
		textTrait("excerpt", "Excerpt", "Short excerpt...", t.Excerpt),
		textTrait("date", "Date", "Sep 1, 2025", t.Date),
		{Name: "read", Label: "Read (min)", Type: TraitNumber, Default: "5", Value: formatNumber(t.Read)},
		gradientTrait(t.Gradient, GradientAI),
	}
}

func (t *Featured) SetTrait(name, value string) error {
	switch name {
	case "size":
		t.Size = Size(value)
	case "badge":
		t.Badge = value
	case "title":
		t.Title = value
	case "excerpt":
		t.Excerpt = value
	case "date":
		t.Date = value
	case "read":
		n, err := number(name, value)
		if err != nil {
			return err
		}
		t.Read = n
	case "gradient":
		t.Gradient = Gradient(value)
	default:
		return unknownTrait(t.Kind(), name)
	}
	return nil
}

// Recent is a medium tile teasing a recent post.
type Recent struct {
	Size     Size
	Category string
	Title    string
	Teaser   string
	Date     string
	Gradient Gradient
	Icon     string
}

func (*Recent) Kind() Kind { return KindRecent }
func (*Recent) isTile()    {}

func (t *Recent) Traits() []Trait {
	return []Trait{
		sizeTrait(t.Size, SizeMedium),
		textTrait("category", "Category", "Tech", t.Category),
		textTrait("title", "Title", "Recent post title", t.Title),
		textTrait("teaser", "Teaser", "Short teaser...", t.Teaser),
		textTrait("date", "Date", "Sep 1, 2025", t.Date),
		gradientTrait(t.Gradient, GradientTech),
		textTrait("icon", "FA Icon (fas fa-code)", "fas fa-code", t.Icon),
	}
}

func (t *Recent) SetTrait(name, value string) error {
	switch name {
	case "size":
		t.Size = Size(value)
	case "category":
		t.Category = value
	case "title":
		t.Title = value
	case "teaser":
		t.Teaser = value
	case "date":
		t.Date = value
	case "gradient":
		t.Gradient = Gradient(value)
	case "icon":
		t.Icon = value
	default:
		return unknownTrait(t.Kind(), name)
	}
	return nil
}

// Stats is a small tile showing one number with a label and trend.
type Stats struct {
	Size   Size
	Number *int
	Label  string
	Growth string
}

func (*Stats) Kind() Kind { return KindStats }
func (*Stats) isTile()    {}

func (t *Stats) Traits() []Trait {
	return []Trait{
		sizeTrait(t.Size, SizeSmall),
		{Name: "number", Label: "Number", Type: TraitNumber, Default: "47", Value: formatNumber(t.Number)},
		textTrait("label", "Label", "Metric", t.Label),
		textTrait("growth", "Growth", "↗ +0", t.Growth),
	}
}

func (t *Stats) SetTrait(name, value string) error {
	switch name {
	case "size":
		t.Size = Size(value)
	case "number":
		n, err := number(name, value)
		if err != nil {
			return err
		}
		t.Number = n
	case "label":
		t.Label = value
	case "growth":
		t.Growth = value
	default:
		return unknownTrait(t.Kind(), name)
	}
	return nil
}

// Media is a video tile with a play button.
type Media struct {
	Size     Size
	Category string
	Title    string
	Desc     string
	Gradient Gradient
	Icon     string
	URL      string
}

func (*Media) Kind() Kind { return KindMedia }
func (*Media) isTile()    {}

func (t *Media) Traits() []Trait {
	return []Trait{
		sizeTrait(t.Size, SizeMedium),
		textTrait("category", "Category", "Video", t.Category),
		textTrait("title", "Title", "Media title", t.Title),
		textTrait("desc", "Description", "Short description...", t.Desc),
		gradientTrait(t.Gradient, GradientVideo),
		textTrait("icon", "FA Icon (fas fa-video)", "fas fa-video", t.Icon),
		textTrait("url", "Video URL (embed)", "", t.URL),
	}
}

func (t *Media) SetTrait(name, value string) error {
	switch name {
	case "size":
		t.Size = Size(value)
	case "category":
		t.Category = value
	case "title":
		t.Title = value
	case "desc":
		t.Desc = value
	case "gradient":
		t.Gradient = Gradient(value)
	case "icon":
		t.Icon = value
	case "url":
		t.URL = value
	default:
		return unknownTrait(t.Kind(), name)
	}
	return nil
}

// About is the author bio tile with social links.
type About struct {
	Size     Size
	Title    string
	Bio      string
	GitHub   string
	LinkedIn string
	Twitter  string
}

func (*About) Kind() Kind { return KindAbout }
func (*About) isTile()    {}

func (t *About) Traits() []Trait {
	return []Trait{
		sizeTrait(t.Size, SizeSmall),
		textTrait("title", "Title", "About Me", t.Title),
		textTrait("bio", "Bio", "Short bio...", t.Bio),
		textTrait("gh", "GitHub URL", "#", t.GitHub),
		textTrait("li", "LinkedIn URL", "#", t.LinkedIn),
		textTrait("tw", "Twitter/X URL", "#", t.Twitter),
	}
}

func (t *About) SetTrait(name, value string) error {
	switch name {
	case "size":
		t.Size = Size(value)
	case "title":
		t.Title = value
	case "bio":
		t.Bio = value
	case "gh":
		t.GitHub = value
	case "li":
		t.LinkedIn = value
	case "tw":
		t.Twitter = value
	default:
		return unknownTrait(t.Kind(), name)
	}
	return nil
}

// Newsletter is the subscribe tile.
type Newsletter struct {
	Size     Size
	Headline string
	Subcopy  string
	Count    *int
}

func (*Newsletter) Kind() Kind { return KindNewsletter }
func (*Newsletter) isTile()    {}

func (t *Newsletter) Traits() []Trait {
	return []Trait{
		sizeTrait(t.Size, SizeMedium),
		textTrait("headline", "Headline", "Stay Updated", t.Headline),
		textTrait("subcopy", "Sub copy", "Get notified about new posts", t.Subcopy),
		{Name: "count", Label: "Subscriber count", Type: TraitNumber, Default: "0", Value: formatNumber(t.Count)},
	}
}

func (t *Newsletter) SetTrait(name, value string) error {
	switch name {
	case "size":
		t.Size = Size(value)
	case "headline":
		t.Headline = value
	case "subcopy":
		t.Subcopy = value
	case "count":
		n, err := number(name, value)
		if err != nil {
			return err
		}
		t.Count = n
	default:
		return unknownTrait(t.Kind(), name)
	}
	return nil
}

// Topics lists popular tags.
type Topics struct {
	Size  Size
	Title string
	Tags  []string
}

func (*Topics) Kind() Kind { return KindTopics }
func (*Topics) isTile()    {}

func (t *Topics) Traits() []Trait {
	return []Trait{
		sizeTrait(t.Size, SizeSmall),
		textTrait("title", "Title", "Popular Topics", t.Title),
		textTrait("tags", "Tags (comma-separated)", "AI/ML,WebDev", strings.Join(t.Tags, ",")),
	}
}

func (t *Topics) SetTrait(name, value string) error {
	switch name {
	case "size":
		t.Size = Size(value)
	case "title":
		t.Title = value
	case "tags":
		t.Tags = splitTags(value)
	default:
		return unknownTrait(t.Kind(), name)
	}
	return nil
}

// RenderTags returns the tags to display, falling back to the defaults.
func (t *Topics) RenderTags() []string {
	if len(t.Tags) == 0 {
		return []string{"AI/ML", "WebDev"}
	}
	return t.Tags
}

func splitTags(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Analytics shows two headline metrics.
type Analytics struct {
	Size   Size
	Value1 string
	Label1 string
	Value2 string
	Label2 string
}

func (*Analytics) Kind() Kind { return KindAnalytics }
func (*Analytics) isTile()    {}

func (t *Analytics) Traits() []Trait {
	return []Trait{
		sizeTrait(t.Size, SizeSmall),
		textTrait("m1", "Metric 1 value", "12.4K", t.Value1),
		textTrait("l1", "Metric 1 label", "Views", t.Label1),
		textTrait("m2", "Metric 2 value", "86%", t.Value2),
		textTrait("l2", "Metric 2 label", "Engagement", t.Label2),
	}
}

func (t *Analytics) SetTrait(name, value string) error {
	switch name {
	case "size":
		t.Size = Size(value)
	case "m1":
		t.Value1 = value
	case "l1":
		t.Label1 = value
	case "m2":
		t.Value2 = value
	case "l2":
		t.Label2 = value
	default:
		return unknownTrait(t.Kind(), name)
	}
	return nil
}

// Activity is the recent activity feed tile.
type Activity struct {
	Size  Size
	Title string
}

func (*Activity) Kind() Kind { return KindActivity }
func (*Activity) isTile()    {}

func (t *Activity) Traits() []Trait {
	return []Trait{
		sizeTrait(t.Size, SizeMedium),
		textTrait("title", "Title", "Recent Activity", t.Title),
	}
}

func (t *Activity) SetTrait(name, value string) error {
	switch name {
	case "size":
		t.Size = Size(value)
	case "title":
		t.Title = value
	default:
		return unknownTrait(t.Kind(), name)
	}
	return nil
}

// Static is a non-interactive tile from the palette. Its markup is kept
// as authored.
type Static struct {
	Block string
	HTML  string
}

func (*Static) Kind() Kind      { return KindStatic }
func (*Static) isTile()         {}
func (*Static) Traits() []Trait { return nil }

func (t *Static) SetTrait(name, _ string) error {
	return unknownTrait(t.Kind(), name)
}

// Raw holds markup that is not a recognised tile. It is written back
// unchanged.
type Raw struct {
	HTML string
}

func (*Raw) Kind() Kind      { return KindRaw }
func (*Raw) isTile()         {}
func (*Raw) Traits() []Trait { return nil }

func (t *Raw) SetTrait(name, _ string) error {
	return unknownTrait(t.Kind(), name)
}
