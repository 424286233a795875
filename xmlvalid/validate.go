// Package xmlvalid checks an XML document against the XSD shape this
// system generates. Invalid content is a normal reported result
// carrying every violation found, never an error.
package xmlvalid

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/ipvc/tabx/errors"
	"github.com/ipvc/tabx/xsd"
)

// Violation is one schema violation with an XPath-like location.
type Violation struct {
	Location string `json:"location"`
	Reason   string `json:"reason"`
}

// Result reports the outcome of a validation run. IsValid is true iff
// Violations is empty.
type Result struct {
	IsValid    bool        `json:"is_valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// Validate checks xmlDoc against xsdDoc and collects every violation
// rather than stopping at the first. A malformed XSD is a caller error;
// a malformed or non-conforming XML document is an invalid Result.
func Validate(xmlDoc, xsdDoc []byte) (*Result, error) {
	doc, err := xsd.Parse(xsdDoc)
	if err != nil {
		return nil, errors.Wrap(err, "validating schema")
	}

	v := &validator{doc: doc}
	root, err := parseDocument(xmlDoc)
	if err != nil {
		v.add("/", "document is not well-formed XML: %v", err)
		return v.result(), nil
	}
	v.checkRoot(root)
	return v.result(), nil
}

type validator struct {
	doc        *xsd.Doc
	violations []Violation
}

func (v *validator) add(location, format string, args ...interface{}) {
	v.violations = append(v.violations, Violation{
		Location: location,
		Reason:   fmt.Sprintf(format, args...),
	})
}

func (v *validator) result() *Result {
	return &Result{IsValid: len(v.violations) == 0, Violations: v.violations}
}

func (v *validator) checkRoot(root *element) {
	loc := "/" + root.name
	if root.name != v.doc.RootName {
		v.add(loc, "root element is %q, schema expects %q", root.name, v.doc.RootName)
		return
	}
	for i, child := range root.children {
		if child.name != "record" {
			v.add(fmt.Sprintf("%s/%s[%d]", loc, child.name, i+1), "unexpected element %q, only record elements are allowed", child.name)
			continue
		}
		v.checkRecord(fmt.Sprintf("%s/record[%d]", loc, i+1), child)
	}
}

// checkRecord walks the record's children against the field sequence:
// every declared field appears at most once, in declaration order, and
// required fields may not be skipped.
func (v *validator) checkRecord(loc string, rec *element) {
	next := 0
	for _, child := range rec.children {
		idx := fieldIndex(v.doc, child.name)
		if idx < 0 {
			v.add(loc+"/"+child.name, "element %q is not declared in the schema", child.name)
			continue
		}
		if idx < next {
			v.add(loc+"/"+child.name, "element %q is out of sequence or repeated", child.name)
			continue
		}
		for skipped := next; skipped < idx; skipped++ {
			if !v.doc.Fields[skipped].Optional {
				v.add(loc, "required element %q is missing", v.doc.Fields[skipped].Name)
			}
		}
		v.checkField(loc+"/"+child.name, v.doc.Fields[idx], child)
		next = idx + 1
	}
	for skipped := next; skipped < len(v.doc.Fields); skipped++ {
		if !v.doc.Fields[skipped].Optional {
			v.add(loc, "required element %q is missing", v.doc.Fields[skipped].Name)
		}
	}
}

func (v *validator) checkField(loc string, f xsd.Field, el *element) {
	if len(el.children) > 0 {
		v.add(loc, "field elements must not contain child elements")
		return
	}
	if el.isNil {
		if !f.Nillable {
			v.add(loc, "element %q is not nillable", f.Name)
		}
		if strings.TrimSpace(el.text) != "" {
			v.add(loc, "nil element must be empty")
		}
		return
	}
	if !lexicalMatch(f.Type, el.text) {
		v.add(loc, "%q is not a valid %s", el.text, f.Type)
	}
}

func fieldIndex(doc *xsd.Doc, name string) int {
	for i, f := range doc.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

var (
	integerPattern = regexp.MustCompile(`^[+-]?[0-9]+$`)
	decimalPattern = regexp.MustCompile(`^[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)$`)
)

// lexicalMatch checks a text value against an XSD built-in type's
// lexical space. Unknown types accept anything, matching permissive
// validator behavior for schemas richer than the ones generated here.
func lexicalMatch(xsdType, text string) bool {
	if xsdType != "xs:string" {
		// whiteSpace facet is collapse for every non-string type here
		text = strings.TrimSpace(text)
	}
	switch xsdType {
	case "xs:string":
		return true
	case "xs:integer":
		return integerPattern.MatchString(text)
	case "xs:decimal":
		return decimalPattern.MatchString(text)
	case "xs:boolean":
		return text == "true" || text == "false" || text == "1" || text == "0"
	case "xs:date":
		_, err := time.Parse("2006-01-02", text)
		return err == nil
	case "xs:dateTime":
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
			if _, err := time.Parse(layout, text); err == nil {
				return true
			}
		}
		return false
	}
	return true
}

// element is a minimal parsed XML element. Only the shape validation
// needs is kept: name, nil flag, direct text, and child elements.
type element struct {
	name     string
	isNil    bool
	text     string
	children []*element
}

const xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

func parseDocument(doc []byte) (*element, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))

	var stack []*element
	var root *element
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local}
			for _, attr := range t.Attr {
				if attr.Name.Local == "nil" && (attr.Name.Space == xsiNamespace || attr.Name.Space == "xsi") && attr.Value == "true" {
					el.isNil = true
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("document has no root element")
	}
	return root, nil
}
