package store

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ipvc/tabx/errors"
	"github.com/ipvc/tabx/schema"
)

// Records returns a dataset's records in row order as schema-tagged
// values. limit <= 0 means all records.
func (s *Store) Records(ds *Dataset, limit int) ([]schema.Record, error) {
	query := `SELECT row_number, data FROM data_records WHERE dataset_id = ? ORDER BY row_number`
	args := []interface{}{ds.ID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "load records")
	}
	defer rows.Close()

	var out []schema.Record
	for rows.Next() {
		var (
			rec schema.Record
			raw string
		)
		if err := rows.Scan(&rec.RowNumber, &raw); err != nil {
			return nil, errors.Wrap(err, "scan record")
		}
		rec.Values, err = decodeRecord(ds.Schema, raw)
		if err != nil {
			return nil, errors.Wrapf(err, "record %d", rec.RowNumber)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// decodeRecord rebuilds tagged values from the stored JSON row.
// json.Number keeps int64 precision through the round trip.
func decodeRecord(s schema.Schema, raw string) ([]schema.Value, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var data map[string]interface{}
	if err := dec.Decode(&data); err != nil {
		return nil, errors.Wrap(err, "decode record data")
	}

	values := make([]schema.Value, len(s.Columns))
	for i, col := range s.Columns {
		values[i] = schema.FromNative(col.Kind, normalizeNumber(col.Kind, data[col.Name]))
	}
	return values, nil
}

func normalizeNumber(kind schema.Kind, v interface{}) interface{} {
	num, ok := v.(json.Number)
	if !ok {
		return v
	}
	if kind == schema.KindInt {
		if i, err := strconv.ParseInt(num.String(), 10, 64); err == nil {
			return i
		}
	}
	if f, err := num.Float64(); err == nil {
		return f
	}
	return num.String()
}
