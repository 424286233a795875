package analyze

import (
	"github.com/ipvc/tabx/schema"
)

// InferColumn classifies a column's raw text values into one semantic
// kind plus a nullable flag. Candidates are tried narrowest to widest
// (boolean → integer → float → date → datetime → string); the column's
// kind is the narrowest candidate that parses 100% of non-null values.
// This never fails: unparseable columns fall back to string, and a
// column with no non-null values is a nullable string.
func InferColumn(values []string) (schema.Kind, bool) {
	nullable := false
	nonNull := values[:0:0]
	for _, v := range values {
		if v == "" {
			nullable = true
			continue
		}
		nonNull = append(nonNull, v)
	}

	if len(nonNull) == 0 {
		return schema.KindString, true
	}

	for _, kind := range schema.Kinds() {
		if matchesAll(kind, nonNull) {
			return kind, nullable
		}
	}
	return schema.KindString, nullable
}

func matchesAll(kind schema.Kind, values []string) bool {
	for _, v := range values {
		if !schema.MatchesKind(kind, v) {
			return false
		}
	}
	return true
}
