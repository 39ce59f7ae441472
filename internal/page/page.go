// Package page hosts an HTML document and the event handlers bound to it.
//
// A Page plays the part a browser plays for page scripts: ready hooks run once,
// events are dispatched one at a time and every handler runs to completion
// while holding the page lock.
package page

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"seasoning/internal/logging"
)

// ErrUnknownTarget is returned by Dispatch when no element carries the event's target id.
var ErrUnknownTarget = errors.New("unknown event target")

// Event types understood by the page.
const (
	Click      = "click"
	Change     = "change"
	Input      = "input"
	KeyDown    = "keydown"
	MouseEnter = "mouseenter"
)

// Event describes one user interaction with an element of the page.
type Event struct {
	Type   string `json:"type"`
	Target string `json:"target"`
	Value  string `json:"value,omitempty"`
	// Checked is the state of a checkbox or radio button after a change.
	Checked *bool `json:"checked,omitempty"`
	// Key, Shift and Ctrl describe the key pressed in a keydown.
	Key   string `json:"key,omitempty"`
	Shift bool   `json:"shiftKey,omitempty"`
	Ctrl  bool   `json:"ctrlKey,omitempty"`

	doc              *goquery.Document
	element          *goquery.Selection
	defaultPrevented bool
}

// Document returns the document the event was dispatched on.
func (e *Event) Document() *goquery.Document { return e.doc }

// Element returns the event's target element.
func (e *Event) Element() *goquery.Selection { return e.element }

// PreventDefault suppresses the browser default action of the event.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// Handler reacts to an event. Returned errors are recorded in the dispatch
// result; they never abort the remaining handlers.
type Handler func(ev *Event) error

// ReadyFunc runs once when the page becomes ready.
type ReadyFunc func(doc *goquery.Document) error

// Result reports what a dispatch did.
type Result struct {
	Handled          bool
	DefaultPrevented bool
	Errors           []error
}

// Options configures a Page.
type Options struct {
	Logger logging.Logger
}

type handlerKey struct {
	target string
	event  string
}

// Page owns one parsed HTML document.
type Page struct {
	mu  sync.Mutex
	doc *goquery.Document

	hmu      sync.RWMutex
	handlers map[handlerKey][]Handler
	ready    []ReadyFunc
	isReady  bool

	logger  logging.Logger
	version atomic.Uint64
}

// Parse reads an HTML document and wraps it in a Page.
func Parse(r io.Reader, opts Options) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return New(doc, opts), nil
}

// New wraps an already parsed document.
func New(doc *goquery.Document, opts Options) *Page {
	logger := opts.Logger
	if logger == nil {
		logger = logging.New()
	}
	return &Page{
		doc:      doc,
		handlers: make(map[handlerKey][]Handler),
		logger:   logger,
	}
}

// Logger returns the logger diagnostics should be written to.
func (p *Page) Logger() logging.Logger {
	return p.logger
}

// OnReady registers fn to run when Ready is called. Hooks registered after the
// page became ready never run.
func (p *Page) OnReady(fn ReadyFunc) {
	if fn == nil {
		return
	}
	p.hmu.Lock()
	defer p.hmu.Unlock()
	p.ready = append(p.ready, fn)
}

// Ready runs the registered hooks in order. Subsequent calls are no-ops. A
// failing hook is logged and does not stop later hooks; the errors are joined
// into the return value.
func (p *Page) Ready() error {
	p.hmu.Lock()
	if p.isReady {
		p.hmu.Unlock()
		return nil
	}
	p.isReady = true
	hooks := p.ready
	p.ready = nil
	p.hmu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	defer p.version.Add(1)
	var errs []error
	for _, hook := range hooks {
		if err := p.runReady(hook); err != nil {
			p.logger.Printf("page ready hook failed: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Page) runReady(hook ReadyFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ready hook panic: %v", r)
		}
	}()
	return hook(p.doc)
}

// On binds handler to events of eventType on the element with id target.
func (p *Page) On(target, eventType string, handler Handler) {
	if handler == nil {
		return
	}
	key := handlerKey{target: target, event: eventType}
	p.hmu.Lock()
	defer p.hmu.Unlock()
	p.handlers[key] = append(p.handlers[key], handler)
}

// Dispatch delivers ev to the handlers bound to its target. Change and input
// events first store their value, or checked state, in the target element.
func (p *Page) Dispatch(ev Event) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := strings.TrimSpace(ev.Target)
	el := p.doc.Find(`[id="` + strings.ReplaceAll(target, `"`, `\"`) + `"]`)
	if target == "" || el.Length() == 0 {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTarget, ev.Target)
	}
	el = el.First()

	storesValue := ev.Type == Change || ev.Type == Input
	if storesValue {
		storeValue(p.doc, el, ev)
		defer p.version.Add(1)
	}

	p.hmu.RLock()
	handlers := append([]Handler(nil), p.handlers[handlerKey{target: target, event: ev.Type}]...)
	p.hmu.RUnlock()

	ev.Target = target
	ev.doc = p.doc
	ev.element = el
	var res Result
	if len(handlers) > 0 && !storesValue {
		defer p.version.Add(1)
	}
	for _, h := range handlers {
		res.Handled = true
		if err := p.runHandler(h, &ev); err != nil {
			p.logger.Printf("%s handler on #%s failed: %v", ev.Type, target, err)
			res.Errors = append(res.Errors, err)
		}
	}
	res.DefaultPrevented = ev.defaultPrevented
	return res, nil
}

func (p *Page) runHandler(h Handler, ev *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ev)
}

// Do runs fn against the document while holding the page lock. Timers and
// other callers outside event dispatch must go through Do.
func (p *Page) Do(fn func(doc *goquery.Document) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.version.Add(1)
	return fn(p.doc)
}

// Version increases every time the document may have changed. Watchers
// compare versions to decide whether to fetch the page again.
func (p *Page) Version() uint64 {
	return p.version.Load()
}

// Render writes the whole document.
func (p *Page) Render(w io.Writer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, node := range p.doc.Nodes {
		if err := html.Render(w, node); err != nil {
			return fmt.Errorf("render page: %w", err)
		}
	}
	return nil
}

// BodyHTML returns the inner HTML of the body element.
func (p *Page) BodyHTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	body := p.doc.Find("body")
	if body.Length() == 0 {
		var buf bytes.Buffer
		for _, node := range p.doc.Nodes {
			if err := html.Render(&buf, node); err != nil {
				return "", err
			}
		}
		return buf.String(), nil
	}
	return body.Html()
}

// Value reports the current value of a form control the way a browser would.
func Value(el *goquery.Selection) string {
	switch goquery.NodeName(el) {
	case "select":
		selected := el.Find("option[selected]").First()
		if selected.Length() == 0 {
			selected = el.Find("option").First()
		}
		return optionValue(selected)
	case "textarea":
		return el.Text()
	default:
		return el.AttrOr("value", "")
	}
}

// storeValue writes what the user entered into el. Checkboxes and radios keep
// their value attribute; only their checked state follows the event.
func storeValue(doc *goquery.Document, el *goquery.Selection, ev Event) {
	if isToggle(el) {
		if ev.Checked != nil {
			setChecked(doc, el, *ev.Checked)
		}
		return
	}
	setValue(el, ev.Value)
}

func isToggle(el *goquery.Selection) bool {
	if goquery.NodeName(el) != "input" {
		return false
	}
	switch strings.ToLower(el.AttrOr("type", "")) {
	case "checkbox", "radio":
		return true
	}
	return false
}

// setChecked checks or clears el. Checking a radio clears the other radios of
// its group in the same form.
func setChecked(doc *goquery.Document, el *goquery.Selection, checked bool) {
	if !checked {
		el.RemoveAttr("checked")
		return
	}
	if strings.EqualFold(el.AttrOr("type", ""), "radio") {
		if name, ok := el.Attr("name"); ok && name != "" {
			scope := el.Closest("form")
			if scope.Length() == 0 {
				scope = doc.Selection
			}
			scope.Find(`input[type="radio"]`).Each(func(_ int, other *goquery.Selection) {
				if other.AttrOr("name", "") == name {
					other.RemoveAttr("checked")
				}
			})
		}
	}
	el.SetAttr("checked", "checked")
}

func setValue(el *goquery.Selection, value string) {
	switch goquery.NodeName(el) {
	case "select":
		el.Find("option").Each(func(_ int, opt *goquery.Selection) {
			if optionValue(opt) == value {
				opt.SetAttr("selected", "selected")
			} else {
				opt.RemoveAttr("selected")
			}
		})
	case "textarea":
		el.SetText(value)
	default:
		el.SetAttr("value", value)
	}
}

func optionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(opt.Text())
}
