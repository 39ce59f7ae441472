package formset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	containerSuffix   = "-formset"
	templateClass     = "empty"
	buttonSlotClass   = "formset-button-container"
	totalFormsPattern = "id_%s-TOTAL_FORMS"
)

// Container holds the elements of one formset, resolved once so later
// operations never re-query the document by class or id.
type Container struct {
	Prefix string

	root       *goquery.Selection
	template   *goquery.Selection
	counter    *goquery.Selection
	buttonSlot *goquery.Selection
}

// Resolve locates the formset identified by prefix inside doc.
func Resolve(doc *goquery.Document, prefix string) (*Container, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is required", ErrStructural)
	}
	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}
	root := doc.Find(idSelector(prefix + containerSuffix))
	return resolveRoot(root, prefix)
}

func resolveRoot(root *goquery.Selection, prefix string) (*Container, error) {
	if err := expectOne(root, prefix, "container "+prefix+containerSuffix); err != nil {
		return nil, err
	}

	template := root.Find("." + templateClass)
	if err := expectOne(template, prefix, "empty form"); err != nil {
		return nil, err
	}

	counterID := fmt.Sprintf(totalFormsPattern, prefix)
	counter := root.Find(idSelector(counterID))
	if err := expectOne(counter, prefix, counterID); err != nil {
		return nil, err
	}

	slot := root.Find("." + buttonSlotClass)
	switch slot.Length() {
	case 0:
		slot = root
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s: found %d button containers", ErrStructural, prefix, slot.Length())
	}

	return &Container{
		Prefix:     prefix,
		root:       root,
		template:   template,
		counter:    counter,
		buttonSlot: slot,
	}, nil
}

// Count returns the value held by the TOTAL_FORMS field: plain base-10
// digits, surrounding whitespace ignored. Signs are rejected, as is a count
// that leaves no room for another form.
func (c *Container) Count() (int, error) {
	raw, ok := c.counter.Attr("value")
	if !ok {
		return 0, fmt.Errorf("%w: %s: TOTAL_FORMS has no value", ErrParse, c.Prefix)
	}
	digits := strings.TrimSpace(raw)
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return 0, fmt.Errorf("%w: %s: TOTAL_FORMS value %q", ErrParse, c.Prefix, raw)
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: TOTAL_FORMS value %q out of range", ErrParse, c.Prefix, raw)
	}
	if n == math.MaxInt {
		return 0, fmt.Errorf("%w: %s: TOTAL_FORMS value %d cannot grow", ErrParse, c.Prefix, n)
	}
	return n, nil
}

// AppendGroup clones the empty form, numbers it with the current count and
// inserts it right before the empty form, then bumps TOTAL_FORMS. It returns
// the index given to the new form. The document is untouched on error.
func (c *Container) AppendGroup() (int, error) {
	index, err := c.Count()
	if err != nil {
		return 0, err
	}

	group := c.template.Clone().RemoveClass(templateClass)
	if strings.TrimSpace(group.AttrOr("class", "")) == "" {
		group.RemoveAttr("class")
	}
	Reindex(group, index)

	c.template.BeforeSelection(group)
	c.counter.SetAttr("value", strconv.Itoa(index+1))
	return index, nil
}

// Instances returns the active forms: the siblings of the empty form sharing
// its element name and remaining classes.
func (c *Container) Instances() *goquery.Selection {
	tag := goquery.NodeName(c.template)
	classes := groupClasses(c.template)
	return c.template.Siblings().FilterFunction(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) != tag || s.HasClass(templateClass) {
			return false
		}
		for _, cls := range classes {
			if !s.HasClass(cls) {
				return false
			}
		}
		return true
	})
}

// Template exposes the empty form.
func (c *Container) Template() *goquery.Selection {
	return c.template
}

// Root exposes the element carrying the {prefix}-formset id.
func (c *Container) Root() *goquery.Selection {
	return c.root
}

func groupClasses(s *goquery.Selection) []string {
	var out []string
	for _, cls := range strings.Fields(s.AttrOr("class", "")) {
		if cls != templateClass {
			out = append(out, cls)
		}
	}
	return out
}

func expectOne(s *goquery.Selection, prefix, what string) error {
	switch n := s.Length(); n {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("%w: %s: %s not found", ErrStructural, prefix, what)
	default:
		return fmt.Errorf("%w: %s: found %d elements for %s", ErrStructural, prefix, n, what)
	}
}

func validatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("%w: prefix is required", ErrStructural)
	}
	for _, r := range prefix {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: invalid prefix %q", ErrStructural, prefix)
		}
	}
	return nil
}

func idSelector(id string) string {
	return `[id="` + id + `"]`
}
