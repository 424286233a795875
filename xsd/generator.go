// Package xsd projects a Schema into an XML Schema Definition document
// and reads such documents back for validation. Generation is a pure
// function of the schema: identical input yields byte-identical output.
package xsd

import (
	"bytes"
	"encoding/xml"

	"github.com/ipvc/tabx/schema"
)

// XMLSchemaNS is the W3C XML Schema namespace.
const XMLSchemaNS = "http://www.w3.org/2001/XMLSchema"

// typeNames is the fixed semantic→XSD type mapping.
var typeNames = map[schema.Kind]string{
	schema.KindString:   "xs:string",
	schema.KindInt:      "xs:integer",
	schema.KindFloat:    "xs:decimal",
	schema.KindBool:     "xs:boolean",
	schema.KindDate:     "xs:date",
	schema.KindDateTime: "xs:dateTime",
}

// TypeName returns the XSD type for a semantic kind.
func TypeName(kind schema.Kind) string {
	if name, ok := typeNames[kind]; ok {
		return name
	}
	return "xs:string"
}

// Generate produces the validating schema for a dataset: one root
// element named after the dataset containing a repeating record complex
// type, each column an element declaration in position order. Nullable
// columns get minOccurs="0" and nillable="true".
func Generate(datasetName string, s schema.Schema) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	root := schema.NormalizeXMLName(datasetName)

	var b bytes.Buffer
	b.WriteString("<?xml version='1.0' encoding='UTF-8'?>\n")
	b.WriteString(`<xs:schema xmlns:xs="` + XMLSchemaNS + `" elementFormDefault="qualified" attributeFormDefault="unqualified">` + "\n")
	b.WriteString(`  <xs:element name="` + escapeAttr(root) + `">` + "\n")
	b.WriteString("    <xs:complexType>\n")
	b.WriteString("      <xs:sequence>\n")
	b.WriteString(`        <xs:element name="record" minOccurs="0" maxOccurs="unbounded">` + "\n")
	b.WriteString("          <xs:complexType>\n")
	b.WriteString("            <xs:sequence>\n")
	for _, col := range s.Columns {
		b.WriteString(`              <xs:element name="` + escapeAttr(col.Name) + `" type="` + TypeName(col.Kind) + `"`)
		if col.Nullable {
			b.WriteString(` minOccurs="0" nillable="true"`)
		}
		b.WriteString("/>\n")
	}
	b.WriteString("            </xs:sequence>\n")
	b.WriteString("          </xs:complexType>\n")
	b.WriteString("        </xs:element>\n")
	b.WriteString("      </xs:sequence>\n")
	b.WriteString("    </xs:complexType>\n")
	b.WriteString("  </xs:element>\n")
	b.WriteString("</xs:schema>\n")
	return b.Bytes(), nil
}

func escapeAttr(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
