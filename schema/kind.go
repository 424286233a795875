// Package schema defines the in-memory contract describing a dataset's
// structure: the ordered column definitions, their inferred semantic
// types, and the closed tagged value variant every downstream component
// (importer, XSD generator, XML serializer, query engine) reads through.
package schema

// Kind is the semantic type of a column. Kinds form a total order of
// generality (Bool < Int < Float < Date < DateTime < String) used for
// monotonic widening during inference: a type never narrows once widened.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindDate
	KindDateTime
	KindString
)

var kindNames = [...]string{
	KindBool:     "boolean",
	KindInt:      "integer",
	KindFloat:    "float",
	KindDate:     "date",
	KindDateTime: "datetime",
	KindString:   "string",
}

func (k Kind) String() string {
	if k < KindBool || k > KindString {
		return "string"
	}
	return kindNames[k]
}

// ParseKind maps a stored type name back to its Kind. Unknown names map
// to KindString, mirroring the inference fallback.
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return Kind(k)
		}
	}
	return KindString
}

// Widen returns the more general of two kinds.
func Widen(a, b Kind) Kind {
	if b > a {
		return b
	}
	return a
}

// Kinds returns all kinds narrowest-first, the order candidate types are
// tried during inference.
func Kinds() []Kind {
	return []Kind{KindBool, KindInt, KindFloat, KindDate, KindDateTime, KindString}
}
