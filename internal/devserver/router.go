// Package devserver serves the seasoning pages with their behaviour running
// on the server: each page view opens a session, and the browser bridge
// forwards user events to it.
package devserver

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"seasoning/internal/ingredients"
	"seasoning/internal/logging"
	"seasoning/internal/page"
	"seasoning/internal/ui"
	"seasoning/internal/widgets/autocomplete"
	"seasoning/internal/widgets/markup"
)

const (
	maxEventBytes    = 64 << 10
	suggestionLimit  = 20
	csrfField        = "csrfmiddlewaretoken"
	defaultMinLength = autocomplete.DefaultMinLength
)

// RuntimeInfo describes the pieces of server configuration that the UI exposes.
type RuntimeInfo struct {
	Name        string `json:"name"`
	Addr        string `json:"addr"`
	Port        string `json:"port"`
	ReadTimeout string `json:"readTimeout"`
	SessionTTL  string `json:"sessionTtl"`
	Ingredients int    `json:"ingredients"`
}

// PageSource provides the documents the server can open.
type PageSource interface {
	Pages() []string
	Page(name string) ([]byte, error)
}

type embeddedPages struct{}

func (embeddedPages) Pages() []string                  { return ui.Pages() }
func (embeddedPages) Page(name string) ([]byte, error) { return ui.Page(name) }

// Options configures the HTTP router.
type Options struct {
	Logger      logging.Logger
	RuntimeInfo RuntimeInfo
	Sessions    *Store
	Catalog     *ingredients.Catalog
	Pages       PageSource
	Widgets     Widgets
	// BaseURL is where this server listens, for example
	// "http://127.0.0.1:8080". Widget lookups go there unless
	// Widgets.AutocompleteBaseURL names another server. Without either,
	// ingredient inputs are only annotated.
	BaseURL string
	// Static serves /static/ with the prefix stripped. Defaults to the
	// embedded assets.
	Static http.Handler
	// WatchInterval is how often session watchers poll for changes.
	WatchInterval time.Duration
}

type server struct {
	logger   logging.Logger
	sessions *Store
	catalog  *ingredients.Catalog
	pages    PageSource
	builder  builder
	runtime  RuntimeInfo
}

// NewRouter constructs the HTTP router for the dev server.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	s := &server{
		logger:   logger,
		sessions: opts.Sessions,
		catalog:  opts.Catalog,
		pages:    opts.Pages,
		builder:  builder{widgets: opts.Widgets, logger: logger, baseURL: opts.BaseURL},
		runtime:  opts.RuntimeInfo,
	}
	if s.sessions == nil {
		s.sessions = NewStore(DefaultSessionTTL, logger)
	}
	if s.catalog == nil {
		s.catalog = ingredients.NewCatalog()
	}
	if s.pages == nil {
		s.pages = embeddedPages{}
	}
	static := opts.Static
	if static == nil {
		static = ui.Handler()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /pages/{name}", s.handlePage)
	mux.HandleFunc("POST /sessions/{id}/events", s.handleEvent)
	mux.HandleFunc("GET /sessions/{id}/body", s.handleBody)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleCloseSession)
	mux.Handle("GET /sessions/{id}/watch", sessionWatchHandler(sessionWatchOptions{
		Sessions:     s.sessions,
		Logger:       logger,
		PollInterval: opts.WatchInterval,
	}))
	mux.HandleFunc("GET /ingredients/ing_list/{$}", s.handleIngredientList)
	mux.HandleFunc("POST /ingredients/ing_page/{$}", s.handleIngredientPage)
	previewPath := opts.Widgets.Markup.PreviewParserPath
	if previewPath == "" {
		previewPath = markup.DefaultPreviewPath
	}
	mux.Handle(previewPath, markup.PreviewHandler(opts.Widgets.Previewer, logger))
	mux.HandleFunc("GET /api/server/config", func(w http.ResponseWriter, r *http.Request) {
		info := s.runtime
		info.Ingredients = s.catalog.Len()
		respondJSON(w, http.StatusOK, info)
	})
	mux.Handle("/static/", http.StripPrefix("/static", static))

	return logging.WithHTTPLogging(mux, logger)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="nl">
<head><meta charset="utf-8"><title>Seasoning</title><link rel="stylesheet" href="/static/styles.css"></head>
<body>
<h1>Seasoning</h1>
<ul class="page-list">{{range .}}
<li><a href="/pages/{{.}}">{{.}}</a></li>{{end}}
</ul>
</body>
</html>
`))

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, s.pages.Pages()); err != nil {
		s.logger.Printf("render index: %v", err)
	}
}

func (s *server) handlePage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	doc, err := s.pages.Page(name)
	if err != nil {
		if errors.Is(err, ui.ErrPageNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.Printf("load page %s: %v", name, err)
		http.Error(w, "failed to load page", http.StatusInternalServerError)
		return
	}

	p, cancel, err := s.builder.build(doc)
	if p == nil {
		s.logger.Printf("build page %s: %v", name, err)
		http.Error(w, "failed to build page", http.StatusInternalServerError)
		return
	}
	if err != nil {
		s.logger.Printf("page %s is partially interactive: %v", name, err)
	}

	sess := s.sessions.Add(name, p, cancel)
	if err := stampSession(p, sess.ID); err != nil {
		s.sessions.Remove(sess.ID)
		http.Error(w, "failed to build page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := p.Render(w); err != nil {
		s.logger.Printf("render page %s: %v", name, err)
	}
}

type eventResponse struct {
	Handled          bool     `json:"handled"`
	DefaultPrevented bool     `json:"defaultPrevented"`
	Errors           []string `json:"errors"`
	Body             string   `json:"body"`
	Version          uint64   `json:"version"`
}

func (s *server) handleEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	var ev page.Event
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err := dec.Decode(&ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid event payload")
		return
	}
	if strings.TrimSpace(ev.Type) == "" {
		respondError(w, http.StatusBadRequest, "event type is required")
		return
	}

	res, err := sess.Page.Dispatch(ev)
	if err != nil {
		if errors.Is(err, page.ErrUnknownTarget) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "dispatch failed")
		return
	}

	body, err := sess.Page.BodyHTML()
	if err != nil {
		s.logger.Printf("render session %s: %v", sess.ID, err)
		respondError(w, http.StatusInternalServerError, "render failed")
		return
	}
	out := eventResponse{
		Handled:          res.Handled,
		DefaultPrevented: res.DefaultPrevented,
		Errors:           make([]string, 0, len(res.Errors)),
		Body:             body,
		Version:          sess.Page.Version(),
	}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	respondJSON(w, http.StatusOK, out)
}

type bodyResponse struct {
	Body    string `json:"body"`
	Version uint64 `json:"version"`
}

func (s *server) handleBody(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	// Read the version first so a concurrent change is picked up by the next poll.
	version := sess.Page.Version()
	body, err := sess.Page.BodyHTML()
	if err != nil {
		s.logger.Printf("render session %s: %v", sess.ID, err)
		respondError(w, http.StatusInternalServerError, "render failed")
		return
	}
	respondJSON(w, http.StatusOK, bodyResponse{Body: body, Version: version})
}

func (s *server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Remove(r.PathValue("id")) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleIngredientList(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("term"))
	names := []string{}
	if len([]rune(term)) >= defaultMinLength {
		if found := s.catalog.Suggest(term, suggestionLimit); found != nil {
			names = found
		}
	}
	respondJSON(w, http.StatusOK, names)
}

var ingredientPageTemplate = template.Must(template.New("ing_page").Parse(`<ul class="ingredient-list">{{range .Items}}
<li class="ingredient"><span class="ingredient-name">{{.Name}}</span> <span class="ingredient-category">{{.Category}}</span> <span class="ingredient-footprint">{{printf "%.2f" .BaseFootprint}}</span></li>{{else}}
<li class="ingredient-none">Geen ingrediënten gevonden</li>{{end}}
</ul>
<p class="pagination">{{if .HasPrev}}<a href="#" class="page-prev" data-page="{{.Prev}}">Vorige</a> {{end}}<span class="page-current">Pagina {{.Number}}</span>{{if .HasNext}} <a href="#" class="page-next" data-page="{{.Next}}">Volgende</a>{{end}}</p>
`))

type ingredientPageView struct {
	ingredients.Page
	Prev int
	Next int
}

func (s *server) handleIngredientPage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEventBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}
	if r.PostForm.Get(csrfField) == "" && r.Header.Get("X-CSRFToken") == "" {
		http.Error(w, "csrf token missing", http.StatusForbidden)
		return
	}
	number := 1
	if raw := r.PostForm.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		number = n
	}

	result := s.catalog.Search(r.PostForm.Get("query"), number, ingredients.DefaultPageSize)
	view := ingredientPageView{Page: result, Prev: result.Number - 1, Next: result.Number + 1}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ingredientPageTemplate.Execute(w, view); err != nil {
		s.logger.Printf("render ingredient page: %v", err)
	}
}

