// Package typetoggle shows the fieldsets that belong to the ingredient type
// currently chosen in a select and hides the others.
package typetoggle

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"seasoning/internal/page"
)

// DefaultSelectID is the id Django gives the ingredient type field.
const DefaultSelectID = "id_type"

// Rule ties a select value to the class of the fieldset shown for it.
type Rule struct {
	Value    string
	Fieldset string
}

// NumericRules match the admin form, whose type choices are stored as numbers.
var NumericRules = []Rule{
	{Value: "1", Fieldset: "VE-fieldset"},
	{Value: "2", Fieldset: "FI-fieldset"},
}

// CodeRules match the public ingredient form, which uses two-letter codes.
var CodeRules = []Rule{
	{Value: "VE", Fieldset: "VE-fieldset"},
	{Value: "FI", Fieldset: "FI-fieldset"},
}

// Options configures the toggle.
type Options struct {
	SelectID string
	Rules    []Rule
}

func (o Options) withDefaults() Options {
	if o.SelectID == "" {
		o.SelectID = DefaultSelectID
	}
	if len(o.Rules) == 0 {
		o.Rules = CodeRules
	}
	return o
}

// RulesFor returns the rule set registered under name ("numeric" or "code").
func RulesFor(name string) ([]Rule, error) {
	switch name {
	case "", "code":
		return CodeRules, nil
	case "numeric":
		return NumericRules, nil
	default:
		return nil, fmt.Errorf("unknown type toggle rules %q", name)
	}
}

// Install applies the toggle when p becomes ready and again on every change of the select.
func Install(p *page.Page, opts Options) {
	opts = opts.withDefaults()
	p.OnReady(func(doc *goquery.Document) error {
		if doc.Find(`[id="` + opts.SelectID + `"]`).Length() == 0 {
			return nil
		}
		Apply(doc, opts)
		p.On(opts.SelectID, page.Change, func(ev *page.Event) error {
			Apply(ev.Document(), opts)
			return nil
		})
		return nil
	})
}

// Apply shows the fieldsets whose rule matches the select's current value and
// hides the fieldsets of every other rule.
func Apply(doc *goquery.Document, opts Options) {
	opts = opts.withDefaults()
	sel := doc.Find(`[id="` + opts.SelectID + `"]`).First()
	current := page.Value(sel)
	for _, rule := range opts.Rules {
		fieldsets := doc.Find("." + rule.Fieldset)
		if sel.Length() > 0 && current == rule.Value {
			fieldsets.RemoveAttr("hidden")
		} else {
			fieldsets.SetAttr("hidden", "")
		}
	}
}
