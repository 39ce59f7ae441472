// Package slideshow drives the homepage image carousel: one slide is active at
// a time, the previous/next controls and the dots switch slides by hand and an
// optional ticker advances it automatically.
package slideshow

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"seasoning/internal/page"
)

const (
	defaultContainerID = "slideshow"
	defaultSlideClass  = "slide"
	activeClass        = "active"
	dotClass           = "slideshow-dot"
)

// Options configures a slideshow.
type Options struct {
	ContainerID string
	SlideClass  string
	// Interval between automatic advances. Zero disables autoplay.
	Interval time.Duration
}

func (o Options) withDefaults() Options {
	if o.ContainerID == "" {
		o.ContainerID = defaultContainerID
	}
	if o.SlideClass == "" {
		o.SlideClass = defaultSlideClass
	}
	return o
}

// Slideshow tracks the active slide of one carousel.
type Slideshow struct {
	page *page.Page
	opts Options

	mu      sync.Mutex
	current int
	count   int

	reset chan struct{}
}

// Install binds the carousel controls of p once it is ready.
func Install(p *page.Page, opts Options) *Slideshow {
	s := &Slideshow{
		page:  p,
		opts:  opts.withDefaults(),
		reset: make(chan struct{}, 1),
	}
	p.OnReady(s.ready)
	return s
}

func (s *Slideshow) ready(doc *goquery.Document) error {
	slides := s.slides(doc)

	s.mu.Lock()
	s.count = slides.Length()
	s.current = 0
	slides.EachWithBreak(func(i int, slide *goquery.Selection) bool {
		if slide.HasClass(activeClass) {
			s.current = i
			return false
		}
		return true
	})
	s.mu.Unlock()
	s.apply(doc)

	id := s.opts.ContainerID
	s.page.On(id+"-prev", page.Click, s.manual(func(doc *goquery.Document) { s.step(doc, -1) }))
	s.page.On(id+"-next", page.Click, s.manual(func(doc *goquery.Document) { s.step(doc, 1) }))
	for i := 0; i < s.Len(); i++ {
		target := i
		s.page.On(id+"-dot-"+strconv.Itoa(i), page.Click, s.manual(func(doc *goquery.Document) { s.show(doc, target) }))
	}
	return nil
}

func (s *Slideshow) manual(move func(doc *goquery.Document)) page.Handler {
	return func(ev *page.Event) error {
		ev.PreventDefault()
		move(ev.Document())
		s.restart()
		return nil
	}
}

// Len returns the number of slides found when the page became ready.
func (s *Slideshow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Current returns the index of the active slide.
func (s *Slideshow) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Next activates the following slide, wrapping after the last one.
func (s *Slideshow) Next() {
	_ = s.page.Do(func(doc *goquery.Document) error {
		s.step(doc, 1)
		return nil
	})
}

// Prev activates the preceding slide, wrapping before the first one.
func (s *Slideshow) Prev() {
	_ = s.page.Do(func(doc *goquery.Document) error {
		s.step(doc, -1)
		return nil
	})
}

// Show activates slide i modulo the number of slides.
func (s *Slideshow) Show(i int) {
	_ = s.page.Do(func(doc *goquery.Document) error {
		s.show(doc, i)
		return nil
	})
}

// Run advances the slideshow every Interval until ctx is done. Manual
// navigation restarts the interval.
func (s *Slideshow) Run(ctx context.Context) {
	if s.opts.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reset:
			ticker.Reset(s.opts.Interval)
		case <-ticker.C:
			s.Next()
		}
	}
}

func (s *Slideshow) restart() {
	select {
	case s.reset <- struct{}{}:
	default:
	}
}

func (s *Slideshow) step(doc *goquery.Document, delta int) {
	s.mu.Lock()
	next := s.current + delta
	s.mu.Unlock()
	s.show(doc, next)
}

func (s *Slideshow) show(doc *goquery.Document, i int) {
	s.mu.Lock()
	if s.count == 0 {
		s.mu.Unlock()
		return
	}
	s.current = ((i % s.count) + s.count) % s.count
	s.mu.Unlock()
	s.apply(doc)
}

func (s *Slideshow) apply(doc *goquery.Document) {
	current := s.Current()
	s.slides(doc).Each(func(i int, slide *goquery.Selection) {
		if i == current {
			slide.AddClass(activeClass).SetAttr("aria-hidden", "false")
			return
		}
		slide.RemoveClass(activeClass).SetAttr("aria-hidden", "true")
	})
	doc.Find(`[id="` + s.opts.ContainerID + `"] .` + dotClass).Each(func(_ int, dot *goquery.Selection) {
		if dot.AttrOr("id", "") == s.opts.ContainerID+"-dot-"+strconv.Itoa(current) {
			dot.AddClass(activeClass)
			return
		}
		dot.RemoveClass(activeClass)
	})
}

func (s *Slideshow) slides(doc *goquery.Document) *goquery.Selection {
	return doc.Find(`[id="` + s.opts.ContainerID + `"] .` + s.opts.SlideClass)
}
