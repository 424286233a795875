package schema

import (
	"regexp"
	"strconv"

	"github.com/ipvc/tabx/errors"
)

// ColumnSpec describes one column of a dataset.
type ColumnSpec struct {
	// Name is the XML-safe normalized column name, unique within a schema.
	Name string
	// Kind is the inferred semantic type.
	Kind Kind
	// Nullable is true iff at least one sampled value was empty/missing.
	Nullable bool
	// Unique is a heuristic: true iff every sampled value was distinct
	// and the column is not nullable.
	Unique bool
	// Position is stable insertion order, never renumbered.
	Position int
	// Stats are computed once at analysis time and immutable afterward.
	Stats ColumnStats
}

// ColumnStats carries per-column analysis statistics. SampleValues is a
// bounded sample of raw values for UI/debug display; generation logic
// never reads it.
type ColumnStats struct {
	NullCount    int
	UniqueCount  int
	SampleValues []string
}

// Schema is the ordered column definitions describing a dataset's
// structure. It is shared by the importer, the XSD generator, the XML
// serializer and the query layer; all three generated representations
// must stay consistent with it.
type Schema struct {
	Columns []ColumnSpec
}

// Column returns the spec for the named column.
func (s *Schema) Column(name string) (ColumnSpec, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// Names returns the column names in position order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Validate checks the schema invariants: at least one column, unique
// XML-safe names, positions matching insertion order.
func (s *Schema) Validate() error {
	if len(s.Columns) == 0 {
		return errors.New("schema has no columns")
	}
	seen := make(map[string]bool, len(s.Columns))
	for i, c := range s.Columns {
		if c.Name == "" {
			return errors.Newf("column %d has empty name", i)
		}
		if c.Name != NormalizeXMLName(c.Name) {
			return errors.Newf("column name %q is not XML-safe", c.Name)
		}
		if seen[c.Name] {
			return errors.Newf("duplicate column name %q", c.Name)
		}
		seen[c.Name] = true
		if c.Position != i {
			return errors.Newf("column %q position %d does not match order %d", c.Name, c.Position, i)
		}
	}
	return nil
}

var nonWordRune = regexp.MustCompile(`[^0-9A-Za-z_]`)
var startsWithLetter = regexp.MustCompile(`^[A-Za-z_]`)

// NormalizeXMLName rewrites a raw column name into a valid XML element
// name: non-word characters become underscores and a leading digit (or
// other non-letter) gets an underscore prefix. Empty names become a
// single underscore.
func NormalizeXMLName(name string) string {
	normalized := nonWordRune.ReplaceAllString(name, "_")
	if normalized == "" {
		return "_"
	}
	if !startsWithLetter.MatchString(normalized) {
		normalized = "_" + normalized
	}
	return normalized
}

// UniqueNames normalizes every raw header name and disambiguates
// collisions by suffixing _2, _3, ... in first-seen order, keeping the
// schema invariant that names are unique.
func UniqueNames(raw []string) []string {
	out := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	for i, r := range raw {
		name := NormalizeXMLName(r)
		if used[name] {
			for n := 2; ; n++ {
				candidate := name + "_" + strconv.Itoa(n)
				if !used[candidate] {
					name = candidate
					break
				}
			}
		}
		used[name] = true
		out[i] = name
	}
	return out
}
