package xsd

import (
	"bytes"
	"encoding/xml"
	"io"

	"github.com/ipvc/tabx/errors"
)

// Doc is the parsed form of a validating schema in the shape this
// system generates: a named root holding repeating records of typed
// field elements. Externally supplied XSDs are accepted as long as they
// follow that shape.
type Doc struct {
	RootName string
	Fields   []Field
}

// Field is one column element declaration.
type Field struct {
	Name     string
	Type     string
	Optional bool // minOccurs="0"
	Nillable bool
}

// Field returns the declaration for the named field.
func (d *Doc) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

type xsdElement struct {
	Name      string       `xml:"name,attr"`
	Type      string       `xml:"type,attr"`
	MinOccurs string       `xml:"minOccurs,attr"`
	MaxOccurs string       `xml:"maxOccurs,attr"`
	Nillable  string       `xml:"nillable,attr"`
	Complex   *xsdComplex  `xml:"complexType"`
}

type xsdComplex struct {
	Sequence xsdSequence `xml:"sequence"`
}

type xsdSequence struct {
	Elements []xsdElement `xml:"element"`
}

type xsdSchema struct {
	XMLName  xml.Name     `xml:"schema"`
	Elements []xsdElement `xml:"element"`
}

// Parse reads an XSD document into its Doc form. Fails with a plain
// error (not a ValidationFailure) when the document is not XML or does
// not follow the generated shape.
func Parse(doc []byte) (*Doc, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))

	var parsed xsdSchema
	if err := dec.Decode(&parsed); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "parse XSD document")
	}
	if len(parsed.Elements) != 1 {
		return nil, errors.Newf("XSD must declare exactly one root element, found %d", len(parsed.Elements))
	}

	root := parsed.Elements[0]
	if root.Complex == nil || len(root.Complex.Sequence.Elements) != 1 {
		return nil, errors.New("XSD root must contain a single repeating record element")
	}
	record := root.Complex.Sequence.Elements[0]
	if record.Name != "record" || record.MaxOccurs != "unbounded" {
		return nil, errors.New("XSD root sequence must be a repeating record element")
	}
	if record.Complex == nil {
		return nil, errors.New("XSD record element has no field sequence")
	}

	out := &Doc{RootName: root.Name}
	for _, el := range record.Complex.Sequence.Elements {
		out.Fields = append(out.Fields, Field{
			Name:     el.Name,
			Type:     el.Type,
			Optional: el.MinOccurs == "0",
			Nillable: el.Nillable == "true",
		})
	}
	if len(out.Fields) == 0 {
		return nil, errors.New("XSD record declares no fields")
	}
	return out, nil
}
