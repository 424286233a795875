package xmlvalid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipvc/tabx/schema"
	"github.com/ipvc/tabx/xmlgen"
	"github.com/ipvc/tabx/xsd"
)

func cropSchema() schema.Schema {
	return schema.Schema{Columns: []schema.ColumnSpec{
		{Name: "State_Name", Kind: schema.KindString, Position: 0},
		{Name: "Crop_Year", Kind: schema.KindInt, Position: 1},
		{Name: "Area", Kind: schema.KindFloat, Nullable: true, Position: 2},
		{Name: "Sown", Kind: schema.KindDate, Position: 3},
	}}
}

func cropRecords(t *testing.T) []schema.Record {
	t.Helper()
	sown, err := time.Parse("2006-01-02", "2016-08-11")
	require.NoError(t, err)
	return []schema.Record{
		{RowNumber: 1, Values: []schema.Value{
			schema.StringValue("Kerala"),
			schema.IntValue(2016),
			schema.FloatValue(1200.5),
			schema.DateValue(sown),
		}},
		{RowNumber: 2, Values: []schema.Value{
			schema.StringValue("Goa"),
			schema.IntValue(2017),
			schema.Null(schema.KindFloat),
			schema.DateValue(sown),
		}},
	}
}

func generate(t *testing.T, s schema.Schema, records []schema.Record) (xmlDoc, xsdDoc []byte) {
	t.Helper()
	xsdDoc, err := xsd.Generate("crops", s)
	require.NoError(t, err)
	xmlDoc, err = xmlgen.Serialize("crops", s, records, 0)
	require.NoError(t, err)
	return xmlDoc, xsdDoc
}

func TestValidateRoundTrip(t *testing.T) {
	xmlDoc, xsdDoc := generate(t, cropSchema(), cropRecords(t))

	res, err := Validate(xmlDoc, xsdDoc)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Violations)
}

func TestValidateStringDatesRoundTrip(t *testing.T) {
	// A non-ISO date column widens to string during analysis, so the
	// document still validates cleanly against its own schema.
	s := schema.Schema{Columns: []schema.ColumnSpec{
		{Name: "Sown", Kind: schema.KindString},
	}}
	recs := []schema.Record{{RowNumber: 1, Values: []schema.Value{
		schema.StringValue("11/08/2016"),
	}}}
	xmlDoc, xsdDoc := generate(t, s, recs)

	res, err := Validate(xmlDoc, xsdDoc)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
}

func TestValidateWrongRoot(t *testing.T) {
	_, xsdDoc := generate(t, cropSchema(), nil)
	res, err := Validate([]byte(`<other></other>`), xsdDoc)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	require.Len(t, res.Violations, 1)
	assert.Contains(t, res.Violations[0].Reason, `"other"`)
}

func TestValidateBadContent(t *testing.T) {
	_, xsdDoc := generate(t, cropSchema(), nil)
	doc := []byte(`<?xml version='1.0' encoding='UTF-8'?>
<crops xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <record>
    <State_Name>Kerala</State_Name>
    <Crop_Year>not a year</Crop_Year>
    <Area>12.5</Area>
    <Sown>2016-08-11</Sown>
  </record>
  <record>
    <State_Name>Goa</State_Name>
    <Crop_Year>2017</Crop_Year>
    <Area>nope</Area>
    <Sown>2016-13-99</Sown>
  </record>
</crops>`)

	res, err := Validate(doc, xsdDoc)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	require.Len(t, res.Violations, 3, "every violation is collected, not just the first")
	assert.Equal(t, "/crops/record[1]/Crop_Year", res.Violations[0].Location)
	assert.Equal(t, "/crops/record[2]/Area", res.Violations[1].Location)
	assert.Equal(t, "/crops/record[2]/Sown", res.Violations[2].Location)
}

func TestValidateMissingRequiredField(t *testing.T) {
	_, xsdDoc := generate(t, cropSchema(), nil)
	doc := []byte(`<crops>
  <record>
    <State_Name>Kerala</State_Name>
    <Sown>2016-08-11</Sown>
  </record>
</crops>`)

	res, err := Validate(doc, xsdDoc)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	require.Len(t, res.Violations, 1)
	assert.Contains(t, res.Violations[0].Reason, `"Crop_Year"`)
}

func TestValidateOptionalFieldMayBeAbsent(t *testing.T) {
	_, xsdDoc := generate(t, cropSchema(), nil)
	doc := []byte(`<crops>
  <record>
    <State_Name>Kerala</State_Name>
    <Crop_Year>2016</Crop_Year>
    <Sown>2016-08-11</Sown>
  </record>
</crops>`)

	res, err := Validate(doc, xsdDoc)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
}

func TestValidateNilOnNonNillableField(t *testing.T) {
	_, xsdDoc := generate(t, cropSchema(), nil)
	doc := []byte(`<crops xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <record>
    <State_Name xsi:nil="true"/>
    <Crop_Year>2016</Crop_Year>
    <Area xsi:nil="true"/>
    <Sown>2016-08-11</Sown>
  </record>
</crops>`)

	res, err := Validate(doc, xsdDoc)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "/crops/record[1]/State_Name", res.Violations[0].Location)
	assert.Contains(t, res.Violations[0].Reason, "not nillable")
}

func TestValidateUnknownAndOutOfOrderFields(t *testing.T) {
	_, xsdDoc := generate(t, cropSchema(), nil)
	doc := []byte(`<crops>
  <record>
    <Crop_Year>2016</Crop_Year>
    <State_Name>Kerala</State_Name>
    <Mystery>x</Mystery>
    <Sown>2016-08-11</Sown>
  </record>
</crops>`)

	res, err := Validate(doc, xsdDoc)
	require.NoError(t, err)
	assert.False(t, res.IsValid)

	var reasons []string
	for _, viol := range res.Violations {
		reasons = append(reasons, viol.Reason)
	}
	assert.Contains(t, reasons, `element "State_Name" is out of sequence or repeated`)
	assert.Contains(t, reasons, `element "Mystery" is not declared in the schema`)
}

func TestValidateMalformedXMLIsInvalidNotError(t *testing.T) {
	_, xsdDoc := generate(t, cropSchema(), nil)
	res, err := Validate([]byte(`<crops><record>`), xsdDoc)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "/", res.Violations[0].Location)
}

func TestValidateBadXSDIsError(t *testing.T) {
	_, err := Validate([]byte(`<crops/>`), []byte(`garbage`))
	assert.Error(t, err)
}

func TestLexicalMatch(t *testing.T) {
	cases := []struct {
		typ, text string
		ok        bool
	}{
		{"xs:integer", "42", true},
		{"xs:integer", "-7", true},
		{"xs:integer", "2.5", false},
		{"xs:decimal", "2.5", true},
		{"xs:decimal", "-0.5", true},
		{"xs:decimal", "1e3", false},
		{"xs:boolean", "true", true},
		{"xs:boolean", "0", true},
		{"xs:boolean", "yes", false},
		{"xs:date", "2016-08-11", true},
		{"xs:date", "11/08/2016", false},
		{"xs:dateTime", "2016-08-11T10:30:00", true},
		{"xs:dateTime", "2016-08-11", false},
		{"xs:string", "anything at all", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, lexicalMatch(tc.typ, tc.text), "%s %q", tc.typ, tc.text)
	}
}
