// Package markup provides the recipe editor toolbar: the button set, the text
// edits each button performs and the markdown preview.
package markup

import (
	"encoding/json"
	"strings"
)

// DefaultPreviewPath is where the editor posts its text for a preview.
const DefaultPreviewPath = "/recipes/markdownpreview/"

// Button is one toolbar entry.
type Button struct {
	Name        string `json:"name,omitempty"`
	Key         string `json:"key,omitempty"`
	OpenWith    string `json:"openWith,omitempty"`
	CloseWith   string `json:"closeWith,omitempty"`
	PlaceHolder string `json:"placeHolder,omitempty"`
	ClassName   string `json:"className,omitempty"`
	Call        string `json:"call,omitempty"`
	Separator   bool   `json:"separator,omitempty"`
	// Numbered buttons prefix each selected line with its number.
	Numbered bool `json:"numbered,omitempty"`
	// MultiLine buttons wrap every selected line on its own.
	MultiLine bool `json:"multiline,omitempty"`
}

// Settings is the toolbar configuration embedded next to each editor.
type Settings struct {
	NameSpace         string   `json:"nameSpace"`
	PreviewParserPath string   `json:"previewParserPath"`
	OnShiftEnter      Button   `json:"onShiftEnter"`
	MarkupSet         []Button `json:"markupSet"`
}

// DefaultSettings returns the recipe editor toolbar.
func DefaultSettings() Settings {
	return Settings{
		NameSpace:         "markdown",
		PreviewParserPath: DefaultPreviewPath,
		OnShiftEnter:      Button{OpenWith: "\n\n"},
		MarkupSet: []Button{
			{Name: "Titel", Key: "1", OpenWith: "#### ", PlaceHolder: "Typ hier een titel..."},
			{Name: "Vetgedrukt", Key: "B", OpenWith: "**", CloseWith: "**"},
			{Name: "Schuingedrukt", Key: "I", OpenWith: "_", CloseWith: "_"},
			{Separator: true},
			{Name: "Ongenummerde lijst", OpenWith: "- ", MultiLine: true},
			{Name: "Genummerde lijst", Numbered: true, MultiLine: true},
			{Separator: true},
			{Name: "Toon/verberg voorbeeld", Call: "preview", ClassName: "preview"},
		},
	}
}

// JSON encodes the settings for embedding in a page.
func (s Settings) JSON() ([]byte, error) {
	return json.Marshal(s)
}

// ButtonForKey returns the button bound to the given access key. Keys match
// regardless of case, as browsers report ctrl+b as "b".
func (s Settings) ButtonForKey(key string) (Button, bool) {
	for _, b := range s.MarkupSet {
		if b.Key != "" && strings.EqualFold(b.Key, key) {
			return b, true
		}
	}
	return Button{}, false
}
