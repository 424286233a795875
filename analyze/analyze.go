// Package analyze inspects raw tabular file bytes: it detects the field
// delimiter and encoding, normalizes header names, and infers a Schema
// with per-column statistics over a bounded sample of rows.
package analyze

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/ipvc/tabx/errors"
	"github.com/ipvc/tabx/logger"
	"github.com/ipvc/tabx/schema"
)

// Delimiter candidates in tie-break priority order.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// delimiterSampleLines bounds how many lines the delimiter probe reads.
const delimiterSampleLines = 20

// Options bound the cost of analysis on large inputs.
type Options struct {
	// SampleRows is the maximum number of data rows read for inference
	// and statistics (default 1000).
	SampleRows int
	// SampleValues caps the per-column raw value sample (default 5).
	SampleValues int
	// FallbackEncoding is assumed when the UTF-8 probe fails.
	// Only "latin-1" is understood; anything else means bytes pass
	// through untouched.
	FallbackEncoding string
}

func (o *Options) withDefaults() Options {
	out := Options{SampleRows: 1000, SampleValues: 5, FallbackEncoding: "latin-1"}
	if o == nil {
		return out
	}
	if o.SampleRows > 0 {
		out.SampleRows = o.SampleRows
	}
	if o.SampleValues > 0 {
		out.SampleValues = o.SampleValues
	}
	if o.FallbackEncoding != "" {
		out.FallbackEncoding = o.FallbackEncoding
	}
	return out
}

// Analysis is the result of structural analysis of one file.
type Analysis struct {
	Schema      schema.Schema
	RawHeader   []string
	Delimiter   rune
	Encoding    string
	SampledRows int
}

// Analyze detects delimiter and encoding, reads the header row, and
// builds a Schema by running type inference per column over a bounded
// row sample. Fails with ErrMalformedInput when no delimiter candidate
// yields a consistent column count or the file has zero data rows.
func Analyze(data []byte, opts *Options, log *zap.SugaredLogger) (*Analysis, error) {
	if log == nil {
		log = logger.Named("analyze")
	}
	o := opts.withDefaults()

	text, encoding := decode(data, o.FallbackEncoding)

	delim, err := DetectDelimiter(text)
	if err != nil {
		return nil, err
	}
	log.Debugw("Detected structure", "delimiter", string(delim), "encoding", encoding)

	reader := newCSVReader(strings.NewReader(text), delim)

	header, err := reader.Read()
	if err != nil {
		return nil, errors.NewMalformedInput("file has no header row")
	}

	names := schema.UniqueNames(header)

	// Bounded sample: column-major cells for inference and stats.
	columns := make([][]string, len(names))
	sampled := 0
	for sampled < o.SampleRows {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewMalformedInput("row %d: %v", sampled+2, err)
		}
		for i := range names {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			columns[i] = append(columns[i], cell)
		}
		sampled++
	}

	if sampled == 0 {
		return nil, errors.NewMalformedInput("file has zero data rows")
	}

	s := schema.Schema{Columns: make([]schema.ColumnSpec, len(names))}
	for i, name := range names {
		kind, nullable := InferColumn(columns[i])
		stats := columnStats(columns[i], o.SampleValues)
		s.Columns[i] = schema.ColumnSpec{
			Name:     name,
			Kind:     kind,
			Nullable: nullable,
			Unique:   stats.UniqueCount == sampled && !nullable,
			Position: i,
			Stats:    stats,
		}
	}

	log.Infow("Analysis complete",
		"columns", len(names),
		"sampled_rows", sampled,
	)

	return &Analysis{
		Schema:      s,
		RawHeader:   header,
		Delimiter:   delim,
		Encoding:    encoding,
		SampledRows: sampled,
	}, nil
}

// DetectDelimiter probes the fixed candidate set against a bounded line
// sample and returns the candidate producing the most consistent column
// count, ties broken by candidate priority (comma, semicolon, tab,
// pipe). A candidate is consistent when every sampled line parses to
// the same field count of at least two.
func DetectDelimiter(text string) (rune, error) {
	sample := headLines(text, delimiterSampleLines)

	best := rune(0)
	bestScore := 0
	for _, cand := range delimiterCandidates {
		cols, rows, ok := probeDelimiter(sample, cand)
		if !ok || cols < 2 {
			continue
		}
		// Consistent candidates score by how much structure they
		// explain; a later candidate must strictly beat an earlier one.
		score := cols * rows
		if score > bestScore {
			best = cand
			bestScore = score
		}
	}

	if best == 0 {
		return 0, errors.NewMalformedInput(
			"no delimiter candidate produced a consistent column count")
	}
	return best, nil
}

// probeDelimiter parses the sample with one candidate and reports the
// uniform field count, the number of parsed rows, and whether every row
// had that same count.
func probeDelimiter(sample string, delim rune) (cols, rows int, ok bool) {
	r := newCSVReader(strings.NewReader(sample), delim)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, 0, false
		}
		if rows == 0 {
			cols = len(row)
		} else if len(row) != cols {
			return 0, 0, false
		}
		rows++
	}
	return cols, rows, rows > 0
}

// decode returns the file content as UTF-8 text plus the encoding used.
// UTF-8 validity probe first; otherwise the declared fallback.
func decode(data []byte, fallback string) (string, string) {
	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})), "utf-8"
	}
	if fallback == "latin-1" {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err == nil {
			return string(decoded), "latin-1"
		}
	}
	return string(data), fallback
}

func newCSVReader(r io.Reader, delim rune) *csv.Reader {
	c := csv.NewReader(r)
	c.Comma = delim
	c.FieldsPerRecord = -1 // column-count consistency is checked by callers
	return c
}

func headLines(text string, n int) string {
	idx := 0
	for i := 0; i < n; i++ {
		next := strings.IndexByte(text[idx:], '\n')
		if next < 0 {
			return text
		}
		idx += next + 1
	}
	return text[:idx]
}

func columnStats(cells []string, sampleCap int) schema.ColumnStats {
	stats := schema.ColumnStats{}
	seen := make(map[string]bool)
	for _, cell := range cells {
		if cell == "" {
			stats.NullCount++
			continue
		}
		if !seen[cell] {
			seen[cell] = true
			if len(stats.SampleValues) < sampleCap {
				stats.SampleValues = append(stats.SampleValues, cell)
			}
		}
	}
	stats.UniqueCount = len(seen)
	return stats
}
