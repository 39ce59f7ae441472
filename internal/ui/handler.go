package ui

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"sort"
	"strings"

	"seasoning/internal/ingredients"
)

//go:embed dist
var content embed.FS

const (
	pagesDir     = "dist/pages"
	staticDir    = "dist/static"
	fixturesFile = "dist/fixtures/ingredients.yaml"
	pageExt      = ".html"
)

// ErrPageNotFound is returned for page names with no embedded document.
var ErrPageNotFound = errors.New("page not found")

// Handler serves the embedded static assets. Mount it with the /static/
// prefix stripped.
func Handler() http.Handler {
	sub, err := fs.Sub(content, staticDir)
	if err != nil {
		return http.NotFoundHandler()
	}
	fsys := http.FS(sub)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if p == "" || p == "." {
			http.NotFound(w, r)
			return
		}
		file, err := fsys.Open(p)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer file.Close()
		info, err := file.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, info.Name(), info.ModTime(), file)
	})
}

// Pages lists the embedded page names in sorted order.
func Pages() []string {
	entries, err := fs.ReadDir(content, pagesDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), pageExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), pageExt))
	}
	sort.Strings(names)
	return names
}

// Page returns the document of the named page.
func Page(name string) ([]byte, error) {
	if name == "" || strings.ContainsAny(name, `/\.`) {
		return nil, fmt.Errorf("%w: %q", ErrPageNotFound, name)
	}
	data, err := content.ReadFile(path.Join(pagesDir, name+pageExt))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrPageNotFound, name)
	}
	return data, err
}

// Ingredients loads the embedded ingredient fixtures.
func Ingredients() (*ingredients.Catalog, error) {
	f, err := content.Open(fixturesFile)
	if err != nil {
		return nil, fmt.Errorf("open embedded fixtures: %w", err)
	}
	defer f.Close()
	return ingredients.Load(f)
}
