package lexicon

import (
	"sort"
	"strings"
)

// UnitTable resolves unit surface forms ("inches", "ft.") to their
// canonical unit. Lookups are case-insensitive.
type UnitTable struct {
	byVariant map[string]*Unit
	words     []string
}

func NewUnitTable(units []Unit) *UnitTable {
	t := &UnitTable{
		byVariant: make(map[string]*Unit),
	}
	seen := make(map[string]bool)
	for i := range units {
		unit := &units[i]
		// The canonical form is always resolvable but only variants are
		// matchable. This keeps "30-37 in" renderable without turning the
		// preposition "in" into a unit.
		key := strings.ToLower(unit.Canonical)
		if _, ok := t.byVariant[key]; !ok {
			t.byVariant[key] = unit
		}
		for _, variant := range unit.Variants {
			key := strings.ToLower(variant)
			if _, ok := t.byVariant[key]; !ok {
				t.byVariant[key] = unit
			}
			if !seen[key] {
				seen[key] = true
				t.words = append(t.words, key)
			}
		}
	}
	// Longest first so alternations prefer "inches" over "in."
	sort.Slice(t.words, func(i, j int) bool {
		if len(t.words[i]) != len(t.words[j]) {
			return len(t.words[i]) > len(t.words[j])
		}
		return t.words[i] < t.words[j]
	})
	return t
}

// Resolve returns the unit a surface form belongs to.
func (t *UnitTable) Resolve(variant string) (*Unit, bool) {
	u, ok := t.byVariant[strings.ToLower(strings.TrimSpace(variant))]
	return u, ok
}

// SameDimension reports whether two surface forms resolve to units of the
// same dimension. Unknown forms never agree.
func (t *UnitTable) SameDimension(a, b string) bool {
	ua, ok := t.Resolve(a)
	if !ok {
		return false
	}
	ub, ok := t.Resolve(b)
	if !ok {
		return false
	}
	return ua.Dimension == ub.Dimension
}

// Variants returns all known surface forms, longest first.
func (t *UnitTable) Variants() []string {
	return t.words
}

// Len returns the number of known surface forms.
func (t *UnitTable) Len() int {
	return len(t.byVariant)
}
