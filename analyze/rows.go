package analyze

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/ipvc/tabx/errors"
)

// Rows is a lazy row stream over a delimited file, used by batch import
// so the whole file never has to sit in memory. The header row is
// consumed on open.
type Rows struct {
	reader *csv.Reader
	header []string
}

// NewRows opens a row stream with a known delimiter and encoding (both
// from a prior Analyze of the same file).
func NewRows(r io.Reader, delim rune, encoding string) (*Rows, error) {
	if encoding == "latin-1" {
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}
	cr := newCSVReader(r, delim)

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(errors.ErrMalformedInput, "file has no header row")
	}
	return &Rows{reader: cr, header: header}, nil
}

// Header returns the raw (unnormalized) header row.
func (r *Rows) Header() []string {
	return r.header
}

// Next returns the next data row, padded or truncated to the header
// width so every row aligns with the schema. Returns io.EOF at end.
func (r *Rows) Next() ([]string, error) {
	row, err := r.reader.Read()
	if err != nil {
		return nil, err
	}
	if len(row) == len(r.header) {
		return row, nil
	}
	out := make([]string, len(r.header))
	copy(out, row)
	return out, nil
}
