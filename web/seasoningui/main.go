//go:build js && wasm

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"syscall/js"
	"time"
)

const (
	sessionMeta      = `meta[name="seasoning-session"]`
	markupInfix      = "-markup-"
	suggestionsInfix = "-suggestions"
	editorSelector   = "textarea.markitup"
	requestTimeout   = 8 * time.Second
)

type event struct {
	Type    string `json:"type"`
	Target  string `json:"target"`
	Value   string `json:"value,omitempty"`
	Checked *bool  `json:"checked,omitempty"`
	Key     string `json:"key,omitempty"`
	Shift   bool   `json:"shiftKey,omitempty"`
	Ctrl    bool   `json:"ctrlKey,omitempty"`
}

type eventResult struct {
	Handled          bool     `json:"handled"`
	DefaultPrevented bool     `json:"defaultPrevented"`
	Errors           []string `json:"errors"`
	Body             string   `json:"body"`
	Version          uint64   `json:"version"`
}

var (
	document  = js.Global().Get("document")
	console   = js.Global().Get("console")
	sessionID string
	version   uint64
	listeners []js.Func
	client    = &http.Client{Timeout: requestTimeout}
	inflight  = make(chan struct{}, 1)
)

func main() {
	meta := document.Call("querySelector", sessionMeta)
	if !meta.Truthy() {
		console.Call("warn", "seasoning: page has no session, widgets stay inert")
		return
	}
	sessionID = meta.Call("getAttribute", "content").String()

	listen("click", onClick)
	listen("change", onChange)
	listen("input", onInput)
	listen("keydown", onKeyDown)
	listen("mouseover", onMouseOver)
	listen("beforeunload", func(js.Value) { closeSession() })
	watch()

	select {}
}

func listen(kind string, fn func(ev js.Value)) {
	cb := js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) > 0 {
			fn(args[0])
		}
		return nil
	})
	listeners = append(listeners, cb)
	target := document
	if kind == "beforeunload" {
		target = js.Global()
	}
	target.Call("addEventListener", kind, cb)
}

// targetWithID walks up from the DOM event target to the nearest element
// carrying an id, since handlers are bound by id.
func targetWithID(ev js.Value) js.Value {
	el := ev.Get("target")
	for el.Truthy() && el.Get("nodeType").Int() == 1 {
		if id := el.Get("id").String(); id != "" {
			return el
		}
		el = el.Get("parentElement")
	}
	return js.Null()
}

func onClick(ev js.Value) {
	el := targetWithID(ev)
	if !el.Truthy() {
		return
	}
	if strings.EqualFold(el.Get("tagName").String(), "a") && el.Call("getAttribute", "href").String() == "#" {
		ev.Call("preventDefault")
	}
	id := el.Get("id").String()
	click := event{Type: "click", Target: id, Value: selectionFor(id)}
	if editor := editorFor(id); editor.Truthy() {
		sync := syncEvent(editor)
		go func() {
			send(sync)
			send(click)
		}()
		return
	}
	go send(click)
}

func onChange(ev js.Value) {
	el := targetWithID(ev)
	if !el.Truthy() {
		return
	}
	out := event{Type: "change", Target: el.Get("id").String(), Value: el.Get("value").String()}
	if isToggle(el) {
		checked := el.Get("checked").Bool()
		out.Checked = &checked
	}
	go send(out)
}

func isToggle(el js.Value) bool {
	if !strings.EqualFold(el.Get("tagName").String(), "input") {
		return false
	}
	kind := strings.ToLower(el.Get("type").String())
	return kind == "checkbox" || kind == "radio"
}

// onInput asks for suggestions while the user types in an input bound to a
// suggestion list.
func onInput(ev js.Value) {
	el := ev.Get("target")
	if !el.Truthy() || !strings.EqualFold(el.Get("tagName").String(), "input") || !el.Call("hasAttribute", "list").Bool() {
		return
	}
	id := el.Get("id").String()
	if id == "" {
		return
	}
	go sendInput(event{Type: "input", Target: id, Value: el.Get("value").String()})
}

// onKeyDown forwards shift+enter and ctrl+<access key> on markdown editors.
func onKeyDown(ev js.Value) {
	el := ev.Get("target")
	if !el.Truthy() || !el.Call("matches", editorSelector).Bool() {
		return
	}
	id := el.Get("id").String()
	key := ev.Get("key").String()
	shift := ev.Get("shiftKey").Bool()
	ctrl := ev.Get("ctrlKey").Bool()
	switch {
	case shift && key == "Enter":
	case ctrl && hasAccessKey(id, key):
	default:
		return
	}
	ev.Call("preventDefault")
	sync := syncEvent(el)
	press := event{Type: "keydown", Target: id, Value: selection(el), Key: key, Shift: shift, Ctrl: ctrl}
	go func() {
		send(sync)
		send(press)
	}()
}

func hasAccessKey(editorID, key string) bool {
	if key == "" {
		return false
	}
	buttons := document.Call("querySelectorAll", `[id^="`+editorID+markupInfix+`"][accesskey]`)
	for i := 0; i < buttons.Length(); i++ {
		if strings.EqualFold(buttons.Index(i).Call("getAttribute", "accesskey").String(), key) {
			return true
		}
	}
	return false
}

// syncEvent carries the editor text so the server edits what the user sees.
func syncEvent(editor js.Value) event {
	return event{Type: "change", Target: editor.Get("id").String(), Value: editor.Get("value").String()}
}

func editorFor(buttonID string) js.Value {
	i := strings.LastIndex(buttonID, markupInfix)
	if i <= 0 {
		return js.Null()
	}
	editor := document.Call("getElementById", buttonID[:i])
	if !editor.Truthy() || editor.Get("selectionStart").IsUndefined() {
		return js.Null()
	}
	return editor
}

func selection(editor js.Value) string {
	return fmt.Sprintf("%d:%d", editor.Get("selectionStart").Int(), editor.Get("selectionEnd").Int())
}

func onMouseOver(ev js.Value) {
	el := targetWithID(ev)
	if !el.Truthy() {
		return
	}
	related := ev.Get("relatedTarget")
	if related.Truthy() && el.Call("contains", related).Bool() {
		return
	}
	go send(event{Type: "mouseenter", Target: el.Get("id").String()})
}

// selectionFor returns "start:end" of the editor a toolbar button belongs to.
func selectionFor(buttonID string) string {
	editor := editorFor(buttonID)
	if !editor.Truthy() {
		return ""
	}
	return selection(editor)
}

func send(ev event) {
	result, ok := post(ev)
	if ok && result.Handled {
		render(result.Body, result.Version)
	}
}

// sendInput patches only the suggestion list of the input so typing is not
// interrupted by a body swap.
func sendInput(ev event) {
	result, ok := post(ev)
	if !ok || !result.Handled {
		return
	}
	listID := ev.Target + suggestionsInfix
	parsed := js.Global().Get("DOMParser").New().Call("parseFromString", result.Body, "text/html")
	fresh := parsed.Call("getElementById", listID)
	current := document.Call("getElementById", listID)
	if fresh.Truthy() && current.Truthy() {
		current.Set("innerHTML", fresh.Get("innerHTML"))
	}
	if result.Version > version {
		version = result.Version
	}
}

func post(ev event) (eventResult, bool) {
	inflight <- struct{}{}
	defer func() { <-inflight }()

	var result eventResult
	payload, err := json.Marshal(ev)
	if err != nil {
		return result, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/sessions/"+sessionID+"/events", bytes.NewReader(payload))
	if err != nil {
		return result, false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		console.Call("error", "seasoning: event failed", err.Error())
		return result, false
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnprocessableEntity:
		// Element missing from the server copy.
		return result, false
	case http.StatusNotFound:
		console.Call("warn", "seasoning: session expired, reload the page")
		return result, false
	default:
		console.Call("error", "seasoning: event rejected", resp.Status)
		return result, false
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		console.Call("error", "seasoning: bad event response", err.Error())
		return result, false
	}
	for _, msg := range result.Errors {
		console.Call("error", "seasoning:", msg)
	}
	return result, true
}

func render(body string, v uint64) {
	if v != 0 && v <= version {
		return
	}
	version = v
	active := document.Get("activeElement")
	focusID := ""
	if active.Truthy() {
		focusID = active.Get("id").String()
	}
	document.Get("body").Set("innerHTML", body)
	if focusID == "" {
		return
	}
	el := document.Call("getElementById", focusID)
	if !el.Truthy() {
		return
	}
	el.Call("focus")
	if start, end, ok := storedSelection(el); ok {
		el.Call("setSelectionRange", start, end)
	}
}

// storedSelection reads the "start:end" an editor edit left behind.
func storedSelection(el js.Value) (int, int, bool) {
	if !el.Call("matches", editorSelector).Bool() {
		return 0, 0, false
	}
	raw := el.Call("getAttribute", "data-selection")
	if raw.IsNull() {
		return 0, 0, false
	}
	var start, end int
	if _, err := fmt.Sscanf(raw.String(), "%d:%d", &start, &end); err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// watch follows server-side changes such as slideshow autoplay.
func watch() {
	source := js.Global().Get("EventSource").New("/sessions/" + sessionID + "/watch")
	onChangeEvent := js.FuncOf(func(this js.Value, args []js.Value) any {
		go refresh()
		return nil
	})
	onClosed := js.FuncOf(func(this js.Value, args []js.Value) any {
		source.Call("close")
		console.Call("warn", "seasoning: session closed by the server")
		return nil
	})
	listeners = append(listeners, onChangeEvent, onClosed)
	source.Call("addEventListener", "change", onChangeEvent)
	source.Call("addEventListener", "closed", onClosed)
}

func refresh() {
	inflight <- struct{}{}
	defer func() { <-inflight }()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/sessions/"+sessionID+"/body", nil)
	if err != nil {
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return
	}
	var result eventResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return
	}
	render(result.Body, result.Version)
}

func closeSession() {
	req, err := http.NewRequest(http.MethodDelete, "/sessions/"+sessionID, nil)
	if err != nil {
		return
	}
	go func() {
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
		}
	}()
}
