package devserver

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"seasoning/internal/formset"
	"seasoning/internal/logging"
	"seasoning/internal/page"
	"seasoning/internal/widgets/autocomplete"
	"seasoning/internal/widgets/markup"
	"seasoning/internal/widgets/navmenu"
	"seasoning/internal/widgets/slideshow"
	"seasoning/internal/widgets/typetoggle"
)

// SessionMetaName is the meta element carrying the session id of a page.
const SessionMetaName = "seasoning-session"

// Widgets configures the behaviour installed on every page.
type Widgets struct {
	AddLabel      string
	TypeToggle    typetoggle.Options
	SlideInterval time.Duration
	Autocomplete  autocomplete.Options
	// AutocompleteBaseURL is the server ingredient lookups go to. Empty means
	// this server.
	AutocompleteBaseURL string
	Markup              markup.Settings
	Previewer           *markup.Previewer
	HTTPClient          *http.Client
}

// builder turns page documents into ready pages.
type builder struct {
	widgets Widgets
	logger  logging.Logger
	baseURL string
}

// build parses doc, installs every widget and runs the ready hooks. The
// returned cancel stops background work such as slideshow autoplay. Ready
// failures are logged by the page and returned alongside the page, which
// stays usable.
func (b builder) build(doc []byte) (*page.Page, context.CancelFunc, error) {
	p, err := page.Parse(bytes.NewReader(doc), page.Options{Logger: b.logger})
	if err != nil {
		return nil, nil, err
	}

	w := b.widgets
	lookups := b.client()
	formset.Install(p, formset.InstallOptions{
		AddLabel: w.AddLabel,
		Logger:   b.logger,
		OnAppend: func(prefix string, index int, group *goquery.Selection) {
			b.logger.Printf("formset %s: added form %d", prefix, index)
			autocomplete.Bind(p, group, w.Autocomplete, lookups)
		},
	})
	typetoggle.Install(p, w.TypeToggle)
	navmenu.Install(p)
	autocomplete.Install(p, w.Autocomplete, lookups)

	settings := w.Markup
	if len(settings.MarkupSet) == 0 {
		settings = markup.DefaultSettings()
	}
	markup.Install(p, settings, w.Previewer)

	show := slideshow.Install(p, slideshow.Options{Interval: w.SlideInterval})

	readyErr := p.Ready()

	ctx, cancel := context.WithCancel(context.Background())
	if w.SlideInterval > 0 && show.Len() > 0 {
		go show.Run(ctx)
	}
	return p, cancel, readyErr
}

// client returns the ingredient lookup client, or nil when no server is
// known.
func (b builder) client() *autocomplete.Client {
	baseURL := b.widgets.AutocompleteBaseURL
	if baseURL == "" {
		baseURL = b.baseURL
	}
	if baseURL == "" {
		return nil
	}
	return &autocomplete.Client{
		BaseURL: baseURL,
		HTTP:    b.widgets.HTTPClient,
		Options: b.widgets.Autocomplete,
	}
}

// stampSession records the session id in the page head.
func stampSession(p *page.Page, id string) error {
	return p.Do(func(doc *goquery.Document) error {
		head := doc.Find("head")
		head.Find(`meta[name="` + SessionMetaName + `"]`).Remove()
		head.AppendHtml(`<meta name="` + SessionMetaName + `" content="` + id + `">`)
		return nil
	})
}
