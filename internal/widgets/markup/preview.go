package markup

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"net/http"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"seasoning/internal/logging"
)

const maxPreviewBytes = 256 << 10

// Previewer turns recipe markdown into HTML safe to show inline. Raw HTML in
// the source is shown as text, never passed through.
type Previewer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewPreviewer builds the renderer used by the toolbar preview.
func NewPreviewer() *Previewer {
	return &Previewer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
			goldmark.WithRendererOptions(
				goldmarkhtml.WithHardWraps(),
				renderer.WithNodeRenderers(util.Prioritized(rawHTMLAsText{}, 100)),
			),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// Render converts src to sanitised HTML.
func (p *Previewer) Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := p.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return p.policy.Sanitize(buf.String()), nil
}

// rawHTMLAsText renders inline and block HTML as escaped text. Code spans and
// autolinks keep their own rendering.
type rawHTMLAsText struct{}

func (rawHTMLAsText) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindRawHTML, renderRawHTML)
	reg.Register(ast.KindHTMLBlock, renderHTMLBlock)
}

func renderRawHTML(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkSkipChildren, nil
	}
	segments := node.(*ast.RawHTML).Segments
	for i := 0; i < segments.Len(); i++ {
		seg := segments.At(i)
		_, _ = w.WriteString(html.EscapeString(string(seg.Value(source))))
	}
	return ast.WalkSkipChildren, nil
}

func renderHTMLBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.HTMLBlock)
	if entering {
		_, _ = w.WriteString("<p>")
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			_, _ = w.WriteString(html.EscapeString(string(line.Value(source))))
		}
		return ast.WalkContinue, nil
	}
	if n.HasClosure() {
		_, _ = w.WriteString(html.EscapeString(string(n.ClosureLine.Value(source))))
	}
	_, _ = w.WriteString("</p>\n")
	return ast.WalkContinue, nil
}

// PreviewHandler answers the editor's preview requests: a POST carrying the
// raw text in the data field, answered with an HTML fragment.
func PreviewHandler(p *Previewer, logger logging.Logger) http.Handler {
	if p == nil {
		p = NewPreviewer()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxPreviewBytes)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form body", http.StatusBadRequest)
			return
		}
		out, err := p.Render(r.PostForm.Get("data"))
		if err != nil {
			if logger != nil {
				logger.Printf("markdown preview failed: %v", err)
			}
			http.Error(w, "preview failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, out)
	})
}
