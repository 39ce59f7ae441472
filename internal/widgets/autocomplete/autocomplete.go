// Package autocomplete wires ingredient inputs to the ingredient lookup endpoints.
package autocomplete

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tidwall/gjson"

	"seasoning/internal/formset"
	"seasoning/internal/page"
)

const (
	// DefaultSource is the ingredient name lookup queried while typing.
	DefaultSource = "/ingredients/ing_list/"

	// DefaultPageURL returns a rendered page of matching ingredients.
	DefaultPageURL = "/ingredients/ing_page/"

	// DefaultMinLength is the shortest term that triggers a lookup.
	DefaultMinLength = 2

	// DefaultResultsID is the element that receives the rendered ingredient page.
	DefaultResultsID = "ingredient-results"
)

const (
	inputSelector    = "input.autocomplete-ingredient"
	defaultTimeout   = 5 * time.Second
	maxResponseBytes = 1 << 20
	csrfField        = "csrfmiddlewaretoken"
	sourceAttr       = "data-autocomplete-source"
	minLengthAttr    = "data-autocomplete-min-length"
	pageURLAttr      = "data-autocomplete-page"
	suggestionsInfix = "-suggestions"
)

var (
	// ErrUpstream signals the lookup endpoint failed or answered nonsense.
	ErrUpstream = errors.New("autocomplete upstream error")

	fragmentPolicyOnce sync.Once
	fragmentPolicy     *bluemonday.Policy
)

// Options describes the endpoints an ingredient input talks to.
type Options struct {
	Source    string
	PageURL   string
	MinLength int
	ResultsID string
}

func (o Options) withDefaults() Options {
	if o.Source == "" {
		o.Source = DefaultSource
	}
	if o.PageURL == "" {
		o.PageURL = DefaultPageURL
	}
	if o.MinLength <= 0 {
		o.MinLength = DefaultMinLength
	}
	if o.ResultsID == "" {
		o.ResultsID = DefaultResultsID
	}
	return o
}

// Install annotates every ingredient input with its lookup endpoints once p is
// ready. With a client, typing in an input fills its suggestion list and
// changing it loads the first page of matching ingredients into the results
// element.
func Install(p *page.Page, opts Options, client *Client) {
	p.OnReady(func(doc *goquery.Document) error {
		Bind(p, doc.Selection, opts, client)
		return nil
	})
}

// SuggestionsID returns the id of the datalist holding suggestions for the
// input with the given id.
func SuggestionsID(inputID string) string {
	return inputID + suggestionsInfix
}

// Bind wires the ingredient inputs in root, root included. Formset templates
// only get their annotations: their ids are not final until the form is
// added, at which point the new form is bound on its own.
func Bind(p *page.Page, root *goquery.Selection, opts Options, client *Client) {
	opts = opts.withDefaults()
	inputs := root.Filter(inputSelector).AddSelection(root.Find(inputSelector))
	inputs.Each(func(_ int, input *goquery.Selection) {
		input.SetAttr(sourceAttr, opts.Source)
		input.SetAttr(minLengthAttr, strconv.Itoa(opts.MinLength))
		input.SetAttr(pageURLAttr, opts.PageURL)
		input.SetAttr("autocomplete", "off")

		id := input.AttrOr("id", "")
		if client == nil || id == "" || strings.Contains(id, formset.Placeholder) {
			return
		}
		listID := SuggestionsID(id)
		input.SetAttr("list", listID)
		if input.NextFiltered(`datalist[id="`+listID+`"]`).Length() == 0 {
			input.AfterHtml(`<datalist id="` + html.EscapeString(listID) + `"></datalist>`)
		}
		p.On(id, page.Input, func(ev *page.Event) error {
			return loadSuggestions(ev, client, listID)
		})
		p.On(id, page.Change, func(ev *page.Event) error {
			return loadResults(ev, client, opts)
		})
	})
}

func loadSuggestions(ev *page.Event, client *Client, listID string) error {
	list := ev.Document().Find(`datalist[id="` + listID + `"]`)
	if list.Length() == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	names, err := client.Suggest(ctx, ev.Value)
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, name := range names {
		b.WriteString(`<option value="` + html.EscapeString(name) + `"></option>`)
	}
	list.SetHtml(b.String())
	return nil
}

func loadResults(ev *page.Event, client *Client, opts Options) error {
	results := ev.Document().Find(`[id="` + opts.ResultsID + `"]`)
	if results.Length() == 0 {
		return nil
	}
	csrf := ev.Document().Find(`input[name="` + csrfField + `"]`).AttrOr("value", "")

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	fragment, err := client.Page(ctx, 1, ev.Value, csrf)
	if err != nil {
		return err
	}
	results.SetHtml(fragment)
	return nil
}

// Client queries the ingredient lookup endpoints.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Options Options
}

func (c Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: defaultTimeout}
}

func (c Client) resolve(path string) (string, error) {
	base, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Suggest returns ingredient names matching term. Terms shorter than the
// minimum length return nil without contacting the server.
func (c Client) Suggest(ctx context.Context, term string) ([]string, error) {
	opts := c.Options.withDefaults()
	term = strings.TrimSpace(term)
	if len([]rune(term)) < opts.MinLength {
		return nil, nil
	}

	endpoint, err := c.resolve(opts.Source)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("term", term)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return decodeSuggestions(body)
}

// Page posts a paged ingredient query and returns the sanitised HTML fragment.
func (c Client) Page(ctx context.Context, pageNumber int, query, csrfToken string) (string, error) {
	opts := c.Options.withDefaults()
	endpoint, err := c.resolve(opts.PageURL)
	if err != nil {
		return "", err
	}
	if pageNumber < 1 {
		pageNumber = 1
	}
	form := url.Values{}
	form.Set("page", strconv.Itoa(pageNumber))
	form.Set("query", query)
	if csrfToken != "" {
		form.Set(csrfField, csrfToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if csrfToken != "" {
		req.Header.Set("X-CSRFToken", csrfToken)
	}
	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	return SanitizeFragment(string(body)), nil
}

func (c Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s answered %d", ErrUpstream, req.URL.Path, resp.StatusCode)
	}
	return body, nil
}

// decodeSuggestions accepts a JSON array of strings or of {label, value} objects.
func decodeSuggestions(body []byte) ([]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrUpstream)
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("%w: expected a JSON array", ErrUpstream)
	}
	out := []string{}
	for _, item := range parsed.Array() {
		var name string
		switch {
		case item.Type == gjson.String:
			name = item.String()
		case item.IsObject():
			name = item.Get("label").String()
			if name == "" {
				name = item.Get("value").String()
			}
		}
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}

// SanitizeFragment strips scripts, handlers and unknown markup from a server
// fragment. Classes and data attributes survive so the page can style and
// paginate the results.
func SanitizeFragment(fragment string) string {
	fragmentPolicyOnce.Do(func() {
		fragmentPolicy = bluemonday.UGCPolicy()
		fragmentPolicy.AllowStyling()
		fragmentPolicy.AllowDataAttributes()
	})
	return fragmentPolicy.Sanitize(fragment)
}
