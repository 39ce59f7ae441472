package formset

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

var formsetMatcher = cascadia.MustCompile("form .formset")

const (
	addControlSuffix = "-addbtn"
	addControlClass  = "formset-add"
)

// Registry maps each formset prefix on a page to its resolved Container.
type Registry struct {
	doc        *goquery.Document
	containers map[string]*Container
	order      []string
}

// Discover resolves every formset inside a form of doc. Any formset that does
// not follow the markup contract fails the whole discovery so problems surface
// at setup time instead of on the first click.
func Discover(doc *goquery.Document) (*Registry, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is required", ErrStructural)
	}
	reg := &Registry{doc: doc, containers: make(map[string]*Container)}

	var firstErr error
	doc.FindMatcher(formsetMatcher).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		id := strings.TrimSpace(el.AttrOr("id", ""))
		prefix, ok := strings.CutSuffix(id, containerSuffix)
		if !ok || prefix == "" {
			firstErr = fmt.Errorf("%w: formset element with id %q does not end in %s", ErrStructural, id, containerSuffix)
			return false
		}
		if _, dup := reg.containers[prefix]; dup {
			firstErr = fmt.Errorf("%w: %s: prefix used by more than one formset", ErrStructural, prefix)
			return false
		}
		if err := validatePrefix(prefix); err != nil {
			firstErr = err
			return false
		}
		c, err := resolveRoot(doc.Find(idSelector(id)), prefix)
		if err != nil {
			firstErr = err
			return false
		}
		reg.containers[prefix] = c
		reg.order = append(reg.order, prefix)
		return true
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return reg, nil
}

// Lookup returns the container registered for prefix.
func (r *Registry) Lookup(prefix string) (*Container, bool) {
	c, ok := r.containers[prefix]
	return c, ok
}

// Prefixes lists the discovered prefixes in document order.
func (r *Registry) Prefixes() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len reports how many formsets were discovered.
func (r *Registry) Len() int {
	return len(r.order)
}

// AddControlID returns the id of the add control bound to prefix.
func AddControlID(prefix string) string {
	return prefix + addControlSuffix
}

// BindControls appends an add control to the button slot of every formset.
// label is inserted as the control's inner HTML.
func (r *Registry) BindControls(label string) error {
	for _, prefix := range r.order {
		id := AddControlID(prefix)
		if r.doc.Find(idSelector(id)).Length() > 0 {
			return fmt.Errorf("%w: %s: element %s already exists", ErrStructural, prefix, id)
		}
	}
	for _, prefix := range r.order {
		c := r.containers[prefix]
		c.buttonSlot.AppendHtml(fmt.Sprintf(`<a href="#" id="%s" class="%s">%s</a>`, AddControlID(prefix), addControlClass, label))
	}
	return nil
}
