// Package ingredients holds the ingredient fixtures the dev server answers
// lookups from.
package ingredients

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultPageSize is the number of ingredients per results page.
const DefaultPageSize = 10

var (
	ErrDuplicateIngredient = errors.New("ingredient name already exists")
	ErrIngredientNotFound  = errors.New("ingredient not found")
	ErrInvalidIngredient   = errors.New("invalid ingredient")
)

// Unit is a unit an ingredient may be measured in.
type Unit struct {
	Name             string  `yaml:"name" json:"name"`
	Primary          bool    `yaml:"primary,omitempty" json:"primary,omitempty"`
	ConversionFactor float64 `yaml:"conversion_factor" json:"conversionFactor"`
}

// Availability is a country an ingredient can be sourced from.
type Availability struct {
	Country    string  `yaml:"country" json:"country"`
	From       string  `yaml:"from" json:"from"`
	Until      string  `yaml:"until" json:"until"`
	Footprint  float64 `yaml:"footprint" json:"footprint"`
	Production string  `yaml:"production,omitempty" json:"production,omitempty"`
}

// Ingredient is one fixture record.
type Ingredient struct {
	Name          string         `yaml:"name" json:"name"`
	PluralName    string         `yaml:"plural_name,omitempty" json:"pluralName,omitempty"`
	Type          string         `yaml:"type" json:"type"`
	Category      string         `yaml:"category" json:"category"`
	Veganism      string         `yaml:"veganism" json:"veganism"`
	BaseFootprint float64        `yaml:"base_footprint" json:"baseFootprint"`
	Synonyms      []string       `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Units         []Unit         `yaml:"units,omitempty" json:"units,omitempty"`
	AvailableIn   []Availability `yaml:"available_in,omitempty" json:"availableIn,omitempty"`
	Accepted      bool           `yaml:"accepted" json:"accepted"`
}

type fixtureFile struct {
	Ingredients []Ingredient `yaml:"ingredients"`
}

// Catalog is an in-memory, read-mostly set of ingredients.
type Catalog struct {
	mu     sync.RWMutex
	items  []Ingredient
	byName map[string]int
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]int)}
}

// Load decodes a YAML fixture document into a catalog.
func Load(r io.Reader) (*Catalog, error) {
	var file fixtureFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode ingredient fixtures: %w", err)
	}
	c := NewCatalog()
	for _, ing := range file.Ingredients {
		if _, err := c.Add(ing); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LoadFile reads fixtures from path.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return nil, errors.New("ingredients file path is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ingredient fixtures: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// NormaliseName folds a name for duplicate detection and lookups.
func NormaliseName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Add stores an ingredient. Names and synonyms share one namespace.
func (c *Catalog) Add(ing Ingredient) (Ingredient, error) {
	ing.Name = strings.TrimSpace(ing.Name)
	if ing.Name == "" {
		return Ingredient{}, fmt.Errorf("%w: name is required", ErrInvalidIngredient)
	}
	switch ing.Type {
	case "", "BA", "VE", "FI":
	default:
		return Ingredient{}, fmt.Errorf("%w: %s has unknown type %q", ErrInvalidIngredient, ing.Name, ing.Type)
	}
	if ing.Type == "" {
		ing.Type = "BA"
	}
	primaries := 0
	for _, u := range ing.Units {
		if u.Primary {
			primaries++
		}
	}
	if len(ing.Units) > 0 && primaries != 1 {
		return Ingredient{}, fmt.Errorf("%w: %s needs exactly one primary unit", ErrInvalidIngredient, ing.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	keys := append([]string{ing.Name}, ing.Synonyms...)
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		norm := NormaliseName(key)
		if _, exists := c.byName[norm]; exists || seen[norm] {
			return Ingredient{}, fmt.Errorf("%w: %s", ErrDuplicateIngredient, key)
		}
		seen[norm] = true
	}
	c.items = append(c.items, ing)
	for key := range seen {
		c.byName[key] = len(c.items) - 1
	}
	return ing, nil
}

// Lookup finds an ingredient by name or synonym.
func (c *Catalog) Lookup(name string) (Ingredient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byName[NormaliseName(name)]
	if !ok {
		return Ingredient{}, fmt.Errorf("%w: %s", ErrIngredientNotFound, name)
	}
	return c.items[i], nil
}

// List returns a copy of every ingredient in insertion order.
func (c *Catalog) List() []Ingredient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Ingredient, len(c.items))
	copy(out, c.items)
	return out
}

// Len reports the number of ingredients.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Suggest returns accepted names and synonyms containing term, prefix
// matches first, at most limit of them. A non-positive limit means no limit.
func (c *Catalog) Suggest(term string, limit int) []string {
	needle := NormaliseName(term)
	if needle == "" {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var prefix, contains []string
	for _, ing := range c.items {
		if !ing.Accepted {
			continue
		}
		for _, candidate := range append([]string{ing.Name}, ing.Synonyms...) {
			norm := NormaliseName(candidate)
			switch {
			case strings.HasPrefix(norm, needle):
				prefix = append(prefix, candidate)
			case strings.Contains(norm, needle):
				contains = append(contains, candidate)
			}
		}
	}
	sort.Strings(prefix)
	sort.Strings(contains)
	out := append(prefix, contains...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Page is one page of accepted ingredients matching a query.
type Page struct {
	Number  int
	Items   []Ingredient
	HasPrev bool
	HasNext bool
}

// Search filters accepted ingredients on name or synonym and returns the
// requested 1-based page, sorted by name. Pages past the end are empty.
func (c *Catalog) Search(query string, number, size int) Page {
	if number < 1 {
		number = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	needle := NormaliseName(query)

	c.mu.RLock()
	var matches []Ingredient
	for _, ing := range c.items {
		if ing.Accepted && matchesIngredient(ing, needle) {
			matches = append(matches, ing)
		}
	}
	c.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return NormaliseName(matches[i].Name) < NormaliseName(matches[j].Name)
	})

	page := Page{Number: number, HasPrev: number > 1}
	pages := len(matches) / size
	if len(matches)%size != 0 {
		pages++
	}
	if number > pages {
		return page
	}
	start := (number - 1) * size
	end := start + size
	if end > len(matches) {
		end = len(matches)
	}
	page.Items = matches[start:end]
	page.HasNext = end < len(matches)
	return page
}

func matchesIngredient(ing Ingredient, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(NormaliseName(ing.Name), needle) {
		return true
	}
	for _, syn := range ing.Synonyms {
		if strings.Contains(NormaliseName(syn), needle) {
			return true
		}
	}
	return false
}
