package markup

import (
	"fmt"
	"html"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"seasoning/internal/page"
)

const (
	editorSelector = "textarea.markitup"
	settingsID     = "markitup-settings"
	toolbarClass   = "markItUpHeader"
)

// ButtonID returns the id of toolbar button i of the editor with the given id.
func ButtonID(editorID string, i int) string {
	return editorID + "-markup-" + strconv.Itoa(i)
}

// PreviewID returns the id of the element showing the editor's preview.
func PreviewID(editorID string) string {
	return editorID + "-preview"
}

// Install gives every markdown editor of p a toolbar once p is ready. A
// toolbar click carries the editor selection as "start:end" in the event
// value; without one the edit happens at the end of the text. Key presses on
// the editor run shift+enter and the toolbar access keys the same way.
func Install(p *page.Page, settings Settings, previewer *Previewer) {
	if previewer == nil {
		previewer = NewPreviewer()
	}
	p.OnReady(func(doc *goquery.Document) error {
		editors := doc.Find(editorSelector)
		if editors.Length() == 0 {
			return nil
		}
		if doc.Find(`[id="`+settingsID+`"]`).Length() == 0 {
			raw, err := settings.JSON()
			if err != nil {
				return fmt.Errorf("encode toolbar settings: %w", err)
			}
			doc.Find("body").AppendHtml(`<script type="application/json" id="` + settingsID + `">` + string(raw) + `</script>`)
		}

		var err error
		editors.EachWithBreak(func(_ int, editor *goquery.Selection) bool {
			id := editor.AttrOr("id", "")
			if id == "" {
				err = fmt.Errorf("markdown editor %q has no id", editor.AttrOr("name", ""))
				return false
			}
			editor.BeforeHtml(toolbarHTML(id, settings))
			editor.AfterHtml(`<div class="markItUpPreview" id="` + PreviewID(id) + `" hidden></div>`)
			for i, b := range settings.MarkupSet {
				if b.Separator {
					continue
				}
				p.On(ButtonID(id, i), page.Click, toolbarHandler(id, b, previewer))
			}
			p.On(id, page.KeyDown, keyHandler(id, settings, previewer))
			return true
		})
		return err
	})
}

func toolbarHTML(editorID string, settings Settings) string {
	out := `<ul class="` + toolbarClass + `" data-namespace="` + html.EscapeString(settings.NameSpace) + `">`
	for i, b := range settings.MarkupSet {
		if b.Separator {
			out += `<li class="markItUpSeparator">---</li>`
			continue
		}
		class := "markItUpButton"
		if b.ClassName != "" {
			class += " " + b.ClassName
		}
		out += `<li class="` + html.EscapeString(class) + `"><a href="#" id="` + ButtonID(editorID, i) + `"`
		if b.Key != "" {
			out += ` accesskey="` + html.EscapeString(b.Key) + `"`
		}
		out += ` title="` + html.EscapeString(b.Name) + `">` + html.EscapeString(b.Name) + `</a></li>`
	}
	return out + `</ul>`
}

func toolbarHandler(editorID string, b Button, previewer *Previewer) page.Handler {
	return func(ev *page.Event) error {
		ev.PreventDefault()
		doc := ev.Document()
		editor := doc.Find(`[id="` + editorID + `"]`)
		text := editor.Text()

		if b.Call == "preview" {
			return togglePreview(doc, editorID, text, previewer)
		}

		edited, changed := Apply(b, editorState(text, ev.Value))
		if changed {
			store(editor, edited)
		}
		return nil
	}
}

// keyHandler handles shift+enter and ctrl+<access key> on an editor. Other
// keys pass through untouched.
func keyHandler(editorID string, settings Settings, previewer *Previewer) page.Handler {
	return func(ev *page.Event) error {
		editor := ev.Element()
		text := editor.Text()
		switch {
		case ev.Shift && ev.Key == "Enter":
			ev.PreventDefault()
			store(editor, ShiftEnter(settings, editorState(text, ev.Value)))
		case ev.Ctrl && ev.Key != "":
			b, ok := settings.ButtonForKey(ev.Key)
			if !ok {
				return nil
			}
			ev.PreventDefault()
			if b.Call == "preview" {
				return togglePreview(ev.Document(), editorID, text, previewer)
			}
			if edited, changed := Apply(b, editorState(text, ev.Value)); changed {
				store(editor, edited)
			}
		}
		return nil
	}
}

// editorState reads a "start:end" selection; without one the caret sits at
// the end of text.
func editorState(text, selection string) Editor {
	start, end, ok := parseSelection(selection)
	if !ok {
		n := len([]rune(text))
		start, end = n, n
	}
	return Editor{Text: text, SelStart: start, SelEnd: end}
}

func store(editor *goquery.Selection, e Editor) {
	editor.SetText(e.Text)
	editor.SetAttr("data-selection", strconv.Itoa(e.SelStart)+":"+strconv.Itoa(e.SelEnd))
}

func togglePreview(doc *goquery.Document, editorID, text string, previewer *Previewer) error {
	preview := doc.Find(`[id="` + PreviewID(editorID) + `"]`)
	if _, hidden := preview.Attr("hidden"); !hidden {
		preview.SetAttr("hidden", "")
		return nil
	}
	out, err := previewer.Render(text)
	if err != nil {
		return err
	}
	preview.SetHtml(out)
	preview.RemoveAttr("hidden")
	return nil
}
