package blocks

import "folio/internal/layout"

var bento = []Block{
	{ID: string(layout.KindFeatured), Label: "Featured Post", Kind: layout.KindFeatured},
	{ID: string(layout.KindRecent), Label: "Recent Post", Kind: layout.KindRecent},
	{ID: string(layout.KindStats), Label: "Stats Card", Kind: layout.KindStats},
	{ID: string(layout.KindMedia), Label: "Media (Video)", Kind: layout.KindMedia},
	{ID: string(layout.KindAbout), Label: "About Card", Kind: layout.KindAbout},
	{ID: string(layout.KindNewsletter), Label: "Newsletter", Kind: layout.KindNewsletter},
	{ID: string(layout.KindTopics), Label: "Topics", Kind: layout.KindTopics},
	{ID: string(layout.KindAnalytics), Label: "Analytics", Kind: layout.KindAnalytics},
	{ID: string(layout.KindActivity), Label: "Activity", Kind: layout.KindActivity},
}

var static = []Block{
	{
		ID: "logo-tile", Label: "Logo Tile",
		Static: `<section class="tile logo-tile"><h1>Douglas Mitchell</h1><p>Design • Code • Media</p></section>`,
	},
	{
		ID: "typography-tile", Label: "Typography Tile",
		Static: `<section class="tile typography-tile"><blockquote>“Great UX feels inevitable.”</blockquote></section>`,
	},
	{
		ID: "toast-tile", Label: "Toast / Notice",
		Static: `<section class="tile toast-tile"><div class="toast">🔔 New comment on “Bento Grids”.</div></section>`,
	},
	{
		ID: "kpi-tile", Label: "KPI Tile",
		Static: `<section class="tile kpi-tile"><div class="value">128</div><div class="label">Posts</div></section>`,
	},
	{
		ID: "imagery-tile", Label: "Vivid Imagery",
		Static: `<figure class="tile imagery-tile" style="background-image:url('/media/gradient-1.svg');"><figcaption>Hero Imagery</figcaption></figure>`,
	},
	{
		ID: "links-tile", Label: "Quick Links",
		Static: `<nav class="tile links-tile"><ul><li><a href="/">Home</a></li><li><a href="/posts/notes-bento-tips">Notes</a></li><li><a href="/posts/microinteractions-video">Video</a></li></ul></nav>`,
	},
	{
		ID: "phone-tile", Label: "Phone Mockup",
		Static: `<section class="tile phone-tile"><div class="phone"><img alt="Phone" src="/media/phone-frame.svg" /><ul class="feed"><li>Designing with Bento Grids</li><li>Motion Micro‑interactions</li><li>Ambient Study Mix</li></ul></div></section>`,
	},
}

// Default returns a registry holding the full palette.
func Default() *Registry {
	r := NewRegistry()
	for _, b := range bento {
		mustRegister(r, b)
	}
	for _, b := range static {
		b.Kind = layout.KindStatic
		mustRegister(r, b)
	}
	return r
}

func mustRegister(r *Registry, b Block) {
	if err := r.Register(b); err != nil {
		panic(err)
	}
}
