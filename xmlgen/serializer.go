// Package xmlgen projects a schema and its records into an XML
// document honoring the generated XSD. Null values are emitted as
// empty elements carrying xsi:nil="true", preserving the null versus
// empty-string distinction on round-trip.
package xmlgen

import (
	"bytes"
	"encoding/xml"

	"github.com/ipvc/tabx/schema"
)

// XSINamespace is the XML Schema instance namespace used for nil
// signaling.
const XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"

// Serialize emits a root element named after the dataset containing up
// to limit (all when limit <= 0) record elements in record order. Each
// field becomes a child element named per the normalized column name;
// values use their canonical textual representation, so the same
// record always serializes identically.
func Serialize(datasetName string, s schema.Schema, records []schema.Record, limit int) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	root := schema.NormalizeXMLName(datasetName)

	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	var b bytes.Buffer
	b.WriteString("<?xml version='1.0' encoding='UTF-8'?>\n")
	b.WriteString("<" + root + ` xmlns:xsi="` + XSINamespace + `">` + "\n")
	for _, rec := range records {
		b.WriteString("  <record>\n")
		for _, col := range s.Columns {
			v, ok := rec.Value(&s, col.Name)
			if !ok {
				v = schema.Null(col.Kind)
			}
			writeField(&b, col.Name, v)
		}
		b.WriteString("  </record>\n")
	}
	b.WriteString("</" + root + ">\n")
	return b.Bytes(), nil
}

func writeField(b *bytes.Buffer, name string, v schema.Value) {
	if v.IsNull() {
		b.WriteString("    <" + name + ` xsi:nil="true"/>` + "\n")
		return
	}
	b.WriteString("    <" + name + ">")
	xml.EscapeText(b, []byte(v.Text()))
	b.WriteString("</" + name + ">\n")
}
