package ingredients

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const fixture = `
ingredients:
  - name: Ui
    plural_name: Uien
    type: VE
    category: Groenten
    veganism: Veganistisch
    base_footprint: 0.3
    synonyms: [Ajuin]
    units:
      - {name: gram, primary: true, conversion_factor: 1}
      - {name: stuk, conversion_factor: 150}
    accepted: true
  - name: Lente-ui
    type: VE
    category: Groenten
    veganism: Veganistisch
    base_footprint: 0.4
    accepted: true
  - name: Kabeljauw
    type: FI
    category: Vis
    veganism: Niet-Vegetarisch
    base_footprint: 3.2
    accepted: true
  - name: Truffelui
    type: BA
    category: Groenten
    veganism: Veganistisch
    base_footprint: 9
    accepted: false
`

func mustLoad(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return c
}

func TestLoadAndLookup(t *testing.T) {
	c := mustLoad(t)
	if c.Len() != 4 {
		t.Fatalf("expected 4 ingredients, got %d", c.Len())
	}
	ing, err := c.Lookup("  AJUIN ")
	if err != nil {
		t.Fatalf("lookup synonym: %v", err)
	}
	if ing.Name != "Ui" || len(ing.Units) != 2 || !ing.Units[0].Primary {
		t.Fatalf("unexpected ingredient %+v", ing)
	}
	if _, err := c.Lookup("prei"); !errors.Is(err, ErrIngredientNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListReturnsCopy(t *testing.T) {
	c := mustLoad(t)
	list := c.List()
	list[0].Name = "mutated"
	if c.List()[0].Name != "Ui" {
		t.Fatalf("list should return a copy")
	}
}

func TestAddRejectsDuplicatesAndInvalid(t *testing.T) {
	c := mustLoad(t)
	if _, err := c.Add(Ingredient{Name: "ajuin"}); !errors.Is(err, ErrDuplicateIngredient) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := c.Add(Ingredient{Name: "Prei", Synonyms: []string{"prei"}}); !errors.Is(err, ErrDuplicateIngredient) {
		t.Fatalf("expected duplicate synonym error, got %v", err)
	}
	if _, err := c.Add(Ingredient{Name: " "}); !errors.Is(err, ErrInvalidIngredient) {
		t.Fatalf("expected invalid error, got %v", err)
	}
	if _, err := c.Add(Ingredient{Name: "Prei", Type: "XX"}); !errors.Is(err, ErrInvalidIngredient) {
		t.Fatalf("expected invalid type error, got %v", err)
	}
	if _, err := c.Add(Ingredient{Name: "Prei", Units: []Unit{{Name: "gram"}}}); !errors.Is(err, ErrInvalidIngredient) {
		t.Fatalf("expected primary unit error, got %v", err)
	}
	added, err := c.Add(Ingredient{Name: "Prei"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.Type != "BA" {
		t.Fatalf("expected default type, got %q", added.Type)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	if _, err := Load(strings.NewReader("ingredients:\n  - name: Ui\n    colour: wit\n")); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestLoadEmptyDocument(t *testing.T) {
	c, err := Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty catalog")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingredients.yaml")
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if c.Len() != 4 {
		t.Fatalf("expected 4 ingredients, got %d", c.Len())
	}
	if _, err := LoadFile(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestSuggestOrdersPrefixMatchesFirst(t *testing.T) {
	c := mustLoad(t)
	got := c.Suggest("ui", 0)
	if diff := cmp.Diff([]string{"Ui", "Ajuin", "Lente-ui"}, got); diff != "" {
		t.Fatalf("suggestions mismatch (-want +got):\n%s", diff)
	}
	if got := c.Suggest("ui", 1); len(got) != 1 {
		t.Fatalf("expected limit to apply, got %v", got)
	}
	if got := c.Suggest(" ", 0); got != nil {
		t.Fatalf("expected no suggestions for blank term, got %v", got)
	}
}

func TestSearchPaginates(t *testing.T) {
	c := NewCatalog()
	for i := 0; i < 23; i++ {
		if _, err := c.Add(Ingredient{Name: fmt.Sprintf("Kruid %02d", i), Accepted: true}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	first := c.Search("kruid", 1, 0)
	if len(first.Items) != DefaultPageSize || first.HasPrev || !first.HasNext {
		t.Fatalf("unexpected first page %+v", first)
	}
	if first.Items[0].Name != "Kruid 00" {
		t.Fatalf("expected sorted results, got %q", first.Items[0].Name)
	}

	last := c.Search("kruid", 3, 0)
	if len(last.Items) != 3 || !last.HasPrev || last.HasNext {
		t.Fatalf("unexpected last page %+v", last)
	}

	beyond := c.Search("kruid", 9, 0)
	if len(beyond.Items) != 0 || beyond.HasNext {
		t.Fatalf("expected empty page, got %+v", beyond)
	}

	huge := c.Search("kruid", math.MaxInt, 0)
	if len(huge.Items) != 0 || huge.HasNext || !huge.HasPrev || huge.Number != math.MaxInt {
		t.Fatalf("expected empty page for a huge page number, got %+v", huge)
	}
	wide := c.Search("kruid", 2, math.MaxInt)
	if len(wide.Items) != 0 || wide.HasNext {
		t.Fatalf("expected empty second page for a huge page size, got %+v", wide)
	}
	if all := c.Search("kruid", 1, math.MaxInt); len(all.Items) != 23 || all.HasNext {
		t.Fatalf("expected every match on one page, got %d items", len(all.Items))
	}
}

func TestSearchSkipsUnacceptedAndMatchesSynonyms(t *testing.T) {
	c := mustLoad(t)
	page := c.Search("ajuin", 1, 10)
	if len(page.Items) != 1 || page.Items[0].Name != "Ui" {
		t.Fatalf("expected synonym match, got %+v", page.Items)
	}
	for _, ing := range c.Search("", 0, 10).Items {
		if ing.Name == "Truffelui" {
			t.Fatalf("unaccepted ingredient listed")
		}
	}
}
