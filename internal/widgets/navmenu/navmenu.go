// Package navmenu opens the sub-navigation that belongs to the hovered main navigation link.
package navmenu

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"seasoning/internal/page"
)

const (
	linkClass    = "main-nav-link"
	linkIDPrefix = "main-nav-link-"
	subNavClass  = "sub-nav"
	subNavPrefix = "sub-nav-"
	activeClass  = "active"
)

// Install binds mouseenter on every main navigation link once p is ready.
func Install(p *page.Page) {
	p.OnReady(func(doc *goquery.Document) error {
		doc.Find("." + linkClass).Each(func(_ int, link *goquery.Selection) {
			id := link.AttrOr("id", "")
			name, ok := strings.CutPrefix(id, linkIDPrefix)
			if !ok || name == "" {
				return
			}
			p.On(id, page.MouseEnter, func(ev *page.Event) error {
				Activate(ev.Document(), name)
				return nil
			})
		})
		return nil
	})
}

// Activate marks the sub-navigation called name active and deactivates the rest.
func Activate(doc *goquery.Document, name string) {
	want := subNavPrefix + name
	doc.Find("." + subNavClass).Each(func(_ int, sub *goquery.Selection) {
		if sub.AttrOr("id", "") == want {
			sub.AddClass(activeClass)
			return
		}
		sub.RemoveClass(activeClass)
	})
}
