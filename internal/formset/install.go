package formset

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"seasoning/internal/logging"
	"seasoning/internal/page"
)

// DefaultAddLabel is the inner HTML of the add control when none is configured.
const DefaultAddLabel = `<span class="formset-add-icon" aria-hidden="true">+</span> Toevoegen`

// InstallOptions configures how formsets are bound to a page.
type InstallOptions struct {
	AddLabel string
	Logger   logging.Logger
	// OnAppend, when set, is told about every successfully added form. group
	// is the new form, already in the document.
	OnAppend func(prefix string, index int, group *goquery.Selection)
}

// Install discovers the formsets of p once it is ready, gives each an add
// control and binds the control's click to AppendGroup.
func Install(p *page.Page, opts InstallOptions) {
	label := opts.AddLabel
	if label == "" {
		label = DefaultAddLabel
	}
	logger := opts.Logger
	if logger == nil {
		logger = p.Logger()
	}

	p.OnReady(func(doc *goquery.Document) error {
		reg, err := Discover(doc)
		if err != nil {
			logger.Printf("formset discovery failed: %v", err)
			return err
		}
		if err := reg.BindControls(label); err != nil {
			logger.Printf("formset binding failed: %v", err)
			return err
		}
		for _, prefix := range reg.Prefixes() {
			c, _ := reg.Lookup(prefix)
			p.On(AddControlID(prefix), page.Click, addHandler(c, logger, opts.OnAppend))
		}
		logger.Printf("formsets bound: %v", reg.Prefixes())
		return nil
	})
}

func addHandler(c *Container, logger logging.Logger, onAppend func(string, int, *goquery.Selection)) page.Handler {
	return func(ev *page.Event) error {
		ev.PreventDefault()
		index, err := c.AppendGroup()
		if err != nil {
			logger.Printf("formset %s: %v", c.Prefix, err)
			return fmt.Errorf("add form to %s: %w", c.Prefix, err)
		}
		if onAppend != nil {
			onAppend(c.Prefix, index, c.template.Prev())
		}
		return nil
	}
}
