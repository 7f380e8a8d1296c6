package lexicon

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/getentag/entag/internal"
)

var log = internal.GetLogger()

// SchemaConstraint is the range of pack schema versions this build accepts.
const SchemaConstraint = "^1"

// Entry is one gazetteer term: a canonical form plus the surface variants
// that should resolve to it.
type Entry struct {
	Canonical string   `yaml:"canonical"`
	Type      string   `yaml:"type"`
	Variants  []string `yaml:"variants"`
}

// Unit is a measurement unit. Canonical is the short form used in
// normalized values ("in", "ft"); Dimension groups compatible units.
type Unit struct {
	Canonical string   `yaml:"canonical"`
	Dimension string   `yaml:"dimension"`
	Variants  []string `yaml:"variants"`
}

// Pack is one lexicon file: a named, versioned set of gazetteer entries
// and units.
type Pack struct {
	SchemaVersion string  `yaml:"schema_version"`
	Name          string  `yaml:"name"`
	Entities      []Entry `yaml:"entities"`
	Units         []Unit  `yaml:"units"`
}

// Library is the merged view over all loaded packs. Packs load in order;
// later entries add to, and never replace, earlier ones.
type Library struct {
	packs   []string
	entries []Entry
	units   []Unit
	table   *UnitTable
}

func NewLibrary() *Library {
	return &Library{}
}

// AddPack validates a pack's schema version and merges its contents.
func (l *Library) AddPack(pack *Pack) error {
	if pack == nil {
		return errors.New("pack is nil")
	}
	if pack.Name == "" {
		return errors.New("pack name is required")
	}
	if err := checkSchemaVersion(pack.SchemaVersion); err != nil {
		return fmt.Errorf("pack %s: %w", pack.Name, err)
	}

	l.packs = append(l.packs, pack.Name)
	l.entries = append(l.entries, pack.Entities...)
	l.units = append(l.units, pack.Units...)
	// invalidate the derived table
	l.table = nil

	log.Debugf(
		"loaded lexicon pack %s: %d entries, %d units",
		pack.Name,
		len(pack.Entities),
		len(pack.Units),
	)

	return nil
}

// Packs returns the names of the loaded packs in load order.
func (l *Library) Packs() []string {
	return l.packs
}

// Entries returns all gazetteer entries across packs.
func (l *Library) Entries() []Entry {
	return l.entries
}

// Units returns the merged unit table. The table is rebuilt after packs
// are added.
func (l *Library) Units() *UnitTable {
	if l.table == nil {
		l.table = NewUnitTable(l.units)
	}
	return l.table
}

// EntryCount returns the number of gazetteer entries across packs.
func (l *Library) EntryCount() int {
	return len(l.entries)
}

func checkSchemaVersion(version string) error {
	if version == "" {
		return errors.New("schema_version is required")
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid schema_version %q: %w", version, err)
	}
	c, err := semver.NewConstraint(SchemaConstraint)
	if err != nil {
		return fmt.Errorf("error parsing schema constraint: %w", err)
	}
	if !c.Check(v) {
		return fmt.Errorf(
			"schema_version %s is outside the supported range %s",
			version,
			SchemaConstraint,
		)
	}
	return nil
}
