package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ipvc/tabx/schema"
)

func TestInferMonotonicWidening(t *testing.T) {
	values := []string{"1", "2", "3"}
	kind, _ := InferColumn(values)
	assert.Equal(t, schema.KindInt, kind)

	values = append(values, "2.5")
	kind, _ = InferColumn(values)
	assert.Equal(t, schema.KindFloat, kind)

	values = append(values, "abc")
	kind, _ = InferColumn(values)
	assert.Equal(t, schema.KindString, kind)
}

func TestInferBoolean(t *testing.T) {
	kind, nullable := InferColumn([]string{"true", "False", "TRUE"})
	assert.Equal(t, schema.KindBool, kind)
	assert.False(t, nullable)

	// 0/1 flags are boolean until another digit appears
	kind, _ = InferColumn([]string{"0", "1", "1"})
	assert.Equal(t, schema.KindBool, kind)

	kind, _ = InferColumn([]string{"0", "1", "2"})
	assert.Equal(t, schema.KindInt, kind)
}

func TestInferDates(t *testing.T) {
	kind, _ := InferColumn([]string{"2016-08-11", "2017-01-02"})
	assert.Equal(t, schema.KindDate, kind)

	kind, _ = InferColumn([]string{"2016-08-11T10:30:00", "2017-01-02 08:00:00"})
	assert.Equal(t, schema.KindDateTime, kind)

	// Non-ISO dates fail all patterns and widen to string
	kind, _ = InferColumn([]string{"11/08/2016", "12/08/2016"})
	assert.Equal(t, schema.KindString, kind)
}

func TestInferNullable(t *testing.T) {
	kind, nullable := InferColumn([]string{"1", "", "3"})
	assert.Equal(t, schema.KindInt, kind)
	assert.True(t, nullable)

	kind, nullable = InferColumn([]string{"", ""})
	assert.Equal(t, schema.KindString, kind)
	assert.True(t, nullable)
}

func TestInferNeverFails(t *testing.T) {
	kind, _ := InferColumn([]string{"\x00weird", "∆∆∆", "1;2;3"})
	assert.Equal(t, schema.KindString, kind)
}

func TestInferMixedNumericAndDate(t *testing.T) {
	// A date column with one stray number widens to string: numbers are
	// not dates and dates are not numbers, string is the only kind
	// parsing 100% of values.
	kind, _ := InferColumn([]string{"2016-08-11", "42"})
	assert.Equal(t, schema.KindString, kind)
}
