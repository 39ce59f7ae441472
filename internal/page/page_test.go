package page

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
)

type testLogger struct {
	logs []string
}

func (l *testLogger) Printf(format string, args ...any) {
	l.logs = append(l.logs, fmt.Sprintf(format, args...))
}

const form = `<!DOCTYPE html><html><head><title>t</title></head><body>
<a href="#" id="go">go</a>
<input id="name" name="name" value="">
<textarea id="notes"></textarea>
<select id="id_type"><option value="1">Vegetal</option><option value="2" selected>Vis</option></select>
</body></html>`

func mustPage(t *testing.T) (*Page, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	p, err := Parse(strings.NewReader(form), Options{Logger: logger})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return p, logger
}

func TestReadyRunsHooksOnceInOrder(t *testing.T) {
	p, _ := mustPage(t)
	var calls []string
	p.OnReady(func(*goquery.Document) error { calls = append(calls, "first"); return nil })
	p.OnReady(func(*goquery.Document) error { calls = append(calls, "second"); return nil })

	if err := p.Ready(); err != nil {
		t.Fatalf("ready: %v", err)
	}
	if err := p.Ready(); err != nil {
		t.Fatalf("second ready: %v", err)
	}
	if diff := cmp.Diff([]string{"first", "second"}, calls); diff != "" {
		t.Fatalf("hook calls mismatch (-want +got):\n%s", diff)
	}
}

func TestReadyContinuesAfterFailingHook(t *testing.T) {
	p, logger := mustPage(t)
	boom := errors.New("boom")
	ran := false
	p.OnReady(func(*goquery.Document) error { return boom })
	p.OnReady(func(*goquery.Document) error { panic("worse") })
	p.OnReady(func(*goquery.Document) error { ran = true; return nil })

	err := p.Ready()
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to contain boom, got %v", err)
	}
	if !ran {
		t.Fatalf("later hooks must still run")
	}
	if len(logger.logs) != 2 {
		t.Fatalf("expected two diagnostics, got %q", logger.logs)
	}
}

func TestReadyHooksCanBindHandlers(t *testing.T) {
	p, _ := mustPage(t)
	p.OnReady(func(*goquery.Document) error {
		p.On("go", Click, func(ev *Event) error { ev.PreventDefault(); return nil })
		return nil
	})
	if err := p.Ready(); err != nil {
		t.Fatalf("ready: %v", err)
	}
	res, err := p.Dispatch(Event{Type: Click, Target: "go"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !res.Handled || !res.DefaultPrevented {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDispatchUnknownTarget(t *testing.T) {
	p, _ := mustPage(t)
	for _, target := range []string{"", "missing"} {
		if _, err := p.Dispatch(Event{Type: Click, Target: target}); !errors.Is(err, ErrUnknownTarget) {
			t.Fatalf("target %q: expected ErrUnknownTarget, got %v", target, err)
		}
	}
}

func TestDispatchWithoutHandlers(t *testing.T) {
	p, _ := mustPage(t)
	res, err := p.Dispatch(Event{Type: Click, Target: "go"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Handled || res.DefaultPrevented {
		t.Fatalf("expected untouched result, got %+v", res)
	}
}

func TestDispatchCapturesHandlerFailures(t *testing.T) {
	p, logger := mustPage(t)
	var order []int
	p.On("go", Click, func(*Event) error { order = append(order, 1); return errors.New("first failed") })
	p.On("go", Click, func(*Event) error { order = append(order, 2); panic("second panicked") })
	p.On("go", Click, func(*Event) error { order = append(order, 3); return nil })

	res, err := p.Dispatch(Event{Type: Click, Target: "go"})
	if err != nil {
		t.Fatalf("dispatch must not fail: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, order); diff != "" {
		t.Fatalf("handler order mismatch (-want +got):\n%s", diff)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected two recorded errors, got %v", res.Errors)
	}
	if len(logger.logs) != 2 {
		t.Fatalf("expected two diagnostics, got %q", logger.logs)
	}
}

func TestChangeStoresValueBeforeHandlers(t *testing.T) {
	p, _ := mustPage(t)
	var seen []string
	record := func(ev *Event) error {
		seen = append(seen, Value(ev.Element()))
		return nil
	}
	p.On("name", Change, record)
	p.On("notes", Change, record)
	p.On("id_type", Change, record)

	events := []Event{
		{Type: Change, Target: "name", Value: "Tomatensoep"},
		{Type: Change, Target: "notes", Value: "<b>heet</b> opdienen"},
		{Type: Change, Target: "id_type", Value: "1"},
	}
	for _, ev := range events {
		if _, err := p.Dispatch(ev); err != nil {
			t.Fatalf("dispatch %s: %v", ev.Target, err)
		}
	}
	want := []string{"Tomatensoep", "<b>heet</b> opdienen", "1"}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	var buf bytes.Buffer
	if err := p.Render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "<!DOCTYPE html>") {
		t.Fatalf("expected doctype to be rendered, got %q", out[:20])
	}
	if !strings.Contains(out, `<option value="1" selected="selected">`) || strings.Contains(out, `<option value="2" selected`) {
		t.Fatalf("expected selection to move to option 1 in %s", out)
	}
	if !strings.Contains(out, "&lt;b&gt;heet&lt;/b&gt; opdienen") {
		t.Fatalf("expected textarea text to be escaped in %s", out)
	}
}

func TestValueOfSelectWithoutSelection(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<select id="s"><option>VE</option><option>FI</option></select>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := Value(doc.Find("#s")); got != "VE" {
		t.Fatalf("expected first option text, got %q", got)
	}
}

func TestDoRunsUnderLock(t *testing.T) {
	p, _ := mustPage(t)
	err := p.Do(func(doc *goquery.Document) error {
		doc.Find("#name").SetAttr("value", "set by timer")
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	body, err := p.BodyHTML()
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if !strings.Contains(body, `value="set by timer"`) {
		t.Fatalf("expected mutation to be visible, got %s", body)
	}
}

func TestVersionTracksPossibleChanges(t *testing.T) {
	p, _ := mustPage(t)
	p.On("go", Click, func(ev *Event) error { return nil })
	if p.Version() != 0 {
		t.Fatalf("expected a fresh page at version 0")
	}
	if err := p.Ready(); err != nil {
		t.Fatalf("ready: %v", err)
	}
	afterReady := p.Version()
	if afterReady == 0 {
		t.Fatalf("expected ready to bump the version")
	}

	if _, err := p.Dispatch(Event{Type: MouseEnter, Target: "go"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if p.Version() != afterReady {
		t.Fatalf("unhandled events must not bump the version")
	}

	if _, err := p.Dispatch(Event{Type: Click, Target: "go"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := p.Dispatch(Event{Type: Change, Target: "name", Value: "ui"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if got := p.Version(); got != afterReady+2 {
		t.Fatalf("expected two bumps, got %d -> %d", afterReady, got)
	}
}

func TestChangeTogglesCheckedState(t *testing.T) {
	const doc = `<html><body><form>
<input type="checkbox" id="ok" name="ok">
<input type="radio" id="r1" name="kind" value="VE" checked>
<input type="radio" id="r2" name="kind" value="FI">
</form>
<input type="radio" id="other" name="kind" value="BA" checked>
</body></html>`
	p, err := Parse(strings.NewReader(doc), Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	on, off := true, false
	events := []Event{
		{Type: Change, Target: "ok", Value: "on", Checked: &on},
		{Type: Change, Target: "r2", Value: "FI", Checked: &on},
	}
	for _, ev := range events {
		if _, err := p.Dispatch(ev); err != nil {
			t.Fatalf("dispatch %s: %v", ev.Target, err)
		}
	}

	checked := func() map[string]bool {
		state := map[string]bool{}
		_ = p.Do(func(d *goquery.Document) error {
			d.Find("input").Each(func(_ int, s *goquery.Selection) {
				_, ok := s.Attr("checked")
				state[s.AttrOr("id", "")] = ok
			})
			return nil
		})
		return state
	}
	want := map[string]bool{"ok": true, "r1": false, "r2": true, "other": true}
	if diff := cmp.Diff(want, checked()); diff != "" {
		t.Fatalf("checked state mismatch (-want +got):\n%s", diff)
	}

	if _, err := p.Dispatch(Event{Type: Change, Target: "ok", Value: "on", Checked: &off}); err != nil {
		t.Fatalf("dispatch uncheck: %v", err)
	}
	if checked()["ok"] {
		t.Fatalf("expected checkbox to be cleared")
	}

	body, err := p.BodyHTML()
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if !strings.Contains(body, `id="r2" name="kind" value="FI"`) || strings.Contains(body, `value="on"`) {
		t.Fatalf("expected value attributes to stay untouched, got %s", body)
	}
}
