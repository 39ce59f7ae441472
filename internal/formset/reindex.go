package formset

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Placeholder is the token the server renders into the empty form in place of
// the form's ordinal number.
const Placeholder = "__prefix__"

var indexedAttrs = [...]string{"for", "id", "name"}

// Reindex substitutes index for every occurrence of Placeholder in the for, id
// and name attributes of every descendant of root. The root element itself and
// all other attributes are left alone.
func Reindex(root *goquery.Selection, index int) {
	replacement := strconv.Itoa(index)
	root.Find("*").Each(func(_ int, el *goquery.Selection) {
		for _, node := range el.Nodes {
			for i := range node.Attr {
				if !isIndexedAttr(node.Attr[i].Key) {
					continue
				}
				if strings.Contains(node.Attr[i].Val, Placeholder) {
					node.Attr[i].Val = strings.ReplaceAll(node.Attr[i].Val, Placeholder, replacement)
				}
			}
		}
	})
}

func isIndexedAttr(key string) bool {
	for _, attr := range indexedAttrs {
		if key == attr {
			return true
		}
	}
	return false
}
