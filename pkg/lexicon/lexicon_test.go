package lexicon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefault(t *testing.T) {
	library, err := LoadDefault()
	require.NoError(t, err)

	assert.Contains(t, library.Packs(), "us_states")
	assert.Contains(t, library.Packs(), "units")
	assert.NotZero(t, library.EntryCount())

	var texas *Entry
	entries := library.Entries()
	for i := range entries {
		if entries[i].Canonical == "Texas" {
			texas = &entries[i]
			break
		}
	}
	require.NotNil(t, texas, "embedded gazetteer must include Texas")
	assert.Equal(t, "location", texas.Type)
	assert.Contains(t, texas.Variants, "TX")
}

func TestLoadPack(t *testing.T) {
	doc := `
schema_version: "1.2.0"
name: "test"
entities:
  - canonical: "Acme Corp"
    type: "organization"
    variants: ["Acme", "ACME"]
units:
  - canonical: "psi"
    dimension: "pressure"
    variants: ["psi"]
`
	pack, err := LoadPack(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "test", pack.Name)
	require.Len(t, pack.Entities, 1)
	assert.Equal(t, "Acme Corp", pack.Entities[0].Canonical)
	require.Len(t, pack.Units, 1)
	assert.Equal(t, "pressure", pack.Units[0].Dimension)
}

func TestLoadPackUnknownField(t *testing.T) {
	doc := `
schema_version: "1.0.0"
name: "test"
entries:
  - canonical: "oops"
`
	_, err := LoadPack(strings.NewReader(doc))
	assert.Error(t, err, "misspelled keys must not be silently dropped")
}

func TestAddPackSchemaGate(t *testing.T) {
	testCases := []struct {
		version string
		wantErr bool
	}{
		{"1.0.0", false},
		{"1.4.2", false},
		{"2.0.0", true},
		{"0.9.0", true},
		{"", true},
		{"not-a-version", true},
	}

	for _, tc := range testCases {
		t.Run("version_"+tc.version, func(t *testing.T) {
			library := NewLibrary()
			err := library.AddPack(&Pack{
				SchemaVersion: tc.version,
				Name:          "test",
			})
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUnitTable(t *testing.T) {
	table := NewUnitTable([]Unit{
		{Canonical: "in", Dimension: "length", Variants: []string{"inch", "inches", "in."}},
		{Canonical: "ft", Dimension: "length", Variants: []string{"ft", "feet"}},
		{Canonical: "s", Dimension: "time", Variants: []string{"seconds"}},
	})

	unit, ok := table.Resolve("Inches")
	require.True(t, ok)
	assert.Equal(t, "in", unit.Canonical)

	// canonical forms resolve without being matchable variants
	unit, ok = table.Resolve("in")
	require.True(t, ok)
	assert.Equal(t, "in", unit.Canonical)
	assert.NotContains(t, table.Variants(), "in")

	assert.True(t, table.SameDimension("inches", "feet"))
	assert.False(t, table.SameDimension("inches", "seconds"))
	assert.False(t, table.SameDimension("inches", "furlongs"))

	// longest variants come first for alternation building
	variants := table.Variants()
	require.NotEmpty(t, variants)
	for i := 1; i < len(variants); i++ {
		assert.GreaterOrEqual(t, len(variants[i-1]), len(variants[i]))
	}
}
