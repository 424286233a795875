package schema

// Record is one row of schema-typed values, aligned to the owning
// schema's column order. Every component (importer, serializer, query
// engine) reads rows through this shape; records are never mutated in
// place.
type Record struct {
	RowNumber int
	Values    []Value
}

// Value returns the tagged value at the named column, resolved through
// the schema's position order.
func (r Record) Value(s *Schema, name string) (Value, bool) {
	for i, c := range s.Columns {
		if c.Name == name && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return Value{}, false
}
