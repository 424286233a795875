package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeXMLName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"State Name", "State_Name"},
		{"Crop_Year", "Crop_Year"},
		{"price/kg", "price_kg"},
		{"2020_sales", "_2020_sales"},
		{"Área", "_rea"},
		{"_hidden", "_hidden"},
		{"", "_"},
		{"a.b.c", "a_b_c"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeXMLName(c.in), "input %q", c.in)
	}
}

func TestUniqueNamesDisambiguates(t *testing.T) {
	names := UniqueNames([]string{"State Name", "State_Name", "State-Name", "other"})
	assert.Equal(t, []string{"State_Name", "State_Name_2", "State_Name_3", "other"}, names)
}

func TestSchemaValidate(t *testing.T) {
	s := &Schema{Columns: []ColumnSpec{
		{Name: "State_Name", Kind: KindString, Position: 0},
		{Name: "Area", Kind: KindFloat, Position: 1},
	}}
	require.NoError(t, s.Validate())

	dup := &Schema{Columns: []ColumnSpec{
		{Name: "A", Kind: KindString, Position: 0},
		{Name: "A", Kind: KindString, Position: 1},
	}}
	assert.Error(t, dup.Validate())

	unsafe := &Schema{Columns: []ColumnSpec{
		{Name: "State Name", Kind: KindString, Position: 0},
	}}
	assert.Error(t, unsafe.Validate())

	empty := &Schema{}
	assert.Error(t, empty.Validate())

	badPos := &Schema{Columns: []ColumnSpec{
		{Name: "A", Kind: KindString, Position: 1},
	}}
	assert.Error(t, badPos.Validate())
}

func TestColumnLookup(t *testing.T) {
	s := &Schema{Columns: []ColumnSpec{
		{Name: "Season", Kind: KindString, Position: 0},
	}}
	col, ok := s.Column("Season")
	require.True(t, ok)
	assert.Equal(t, KindString, col.Kind)

	_, ok = s.Column("missing")
	assert.False(t, ok)
}

func TestKindOrderAndWiden(t *testing.T) {
	assert.True(t, KindBool < KindInt)
	assert.True(t, KindInt < KindFloat)
	assert.True(t, KindFloat < KindDate)
	assert.True(t, KindDate < KindDateTime)
	assert.True(t, KindDateTime < KindString)

	assert.Equal(t, KindFloat, Widen(KindInt, KindFloat))
	assert.Equal(t, KindFloat, Widen(KindFloat, KindInt))
	assert.Equal(t, KindString, Widen(KindDate, KindString))
}

func TestParseKindRoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		assert.Equal(t, k, ParseKind(k.String()))
	}
	assert.Equal(t, KindString, ParseKind("mystery"))
}
