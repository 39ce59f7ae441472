package markup

import (
	"strconv"
	"strings"
)

// Editor is the text of an editor and its selection, in rune offsets.
type Editor struct {
	Text     string
	SelStart int
	SelEnd   int
}

func (e Editor) clamp() Editor {
	n := len([]rune(e.Text))
	if e.SelStart < 0 {
		e.SelStart = 0
	}
	if e.SelEnd > n || e.SelEnd < 0 {
		e.SelEnd = n
	}
	if e.SelStart > e.SelEnd {
		e.SelStart = e.SelEnd
	}
	return e
}

// Selection returns the selected text.
func (e Editor) Selection() string {
	e = e.clamp()
	return string([]rune(e.Text)[e.SelStart:e.SelEnd])
}

// Apply performs the edit of b on the editor. The returned editor selects the
// wrapped text. Separators and call buttons leave the editor untouched and
// report false.
func Apply(b Button, e Editor) (Editor, bool) {
	if b.Separator || b.Call != "" {
		return e, false
	}
	e = e.clamp()
	runes := []rune(e.Text)
	before := string(runes[:e.SelStart])
	after := string(runes[e.SelEnd:])

	selection := string(runes[e.SelStart:e.SelEnd])
	if selection == "" {
		selection = b.PlaceHolder
	}

	var wrapped string
	if b.MultiLine {
		lines := strings.Split(selection, "\n")
		for i, line := range lines {
			lines[i] = wrapLine(b, line, i+1)
		}
		wrapped = strings.Join(lines, "\n")
	} else {
		wrapped = wrapLine(b, selection, 1)
	}

	start := len([]rune(before))
	return Editor{
		Text:     before + wrapped + after,
		SelStart: start,
		SelEnd:   start + len([]rune(wrapped)),
	}, true
}

// ShiftEnter inserts the settings' shift+enter markup at the caret.
func ShiftEnter(s Settings, e Editor) Editor {
	e = e.clamp()
	runes := []rune(e.Text)
	insert := s.OnShiftEnter.OpenWith
	caret := e.SelEnd + len([]rune(insert))
	return Editor{
		Text:     string(runes[:e.SelEnd]) + insert + string(runes[e.SelEnd:]),
		SelStart: caret,
		SelEnd:   caret,
	}
}

func wrapLine(b Button, line string, number int) string {
	open := b.OpenWith
	if b.Numbered {
		open = strconv.Itoa(number) + ". "
	}
	return open + line + b.CloseWith
}

// parseSelection reads a "start:end" selection sent with a toolbar click.
func parseSelection(raw string) (int, int, bool) {
	startRaw, endRaw, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return 0, 0, false
	}
	start, err := strconv.Atoi(startRaw)
	if err != nil {
		return 0, 0, false
	}
	end, err := strconv.Atoi(endRaw)
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}
