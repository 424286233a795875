package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"

	"github.com/ipvc/tabx/errors"
	"github.com/ipvc/tabx/schema"
)

// DefaultBatchSize is the record count committed per batch when the
// caller does not specify one.
const DefaultBatchSize = 1000

// RowSource is a lazy sequence of raw rows aligned to the schema's
// column order. Next returns io.EOF at end of input.
type RowSource interface {
	Next() ([]string, error)
}

// ImportParams describes one import run.
type ImportParams struct {
	Name        string
	Description string
	SourceFile  string
	Schema      schema.Schema
	BatchSize   int
}

// ImportResult reports what an import run did.
type ImportResult struct {
	DatasetID     string
	Imported      int
	Batches       int
	FallbackCells int
	Logs          []LogEntry
}

// ImportDataset consumes the row stream and commits records in
// fixed-size batches inside a single transaction: either the whole
// batch sequence commits or none of it does, so a half-imported dataset
// is never served. Re-import replaces the previous record generation.
//
// A cell that fails to coerce under the committed schema is stored as
// the widened string fallback and logged; it never aborts the import.
// ctx is checked between batches, the import's natural cancellation
// points.
func (s *Store) ImportDataset(ctx context.Context, params ImportParams, rows RowSource) (*ImportResult, error) {
	if err := params.Schema.Validate(); err != nil {
		return nil, errors.Wrap(err, "import schema")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin import transaction")
	}
	defer tx.Rollback()

	datasetID, err := s.prepareDataset(tx, params)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{DatasetID: datasetID}
	logSink := func(level, message string, details map[string]interface{}) error {
		entry := LogEntry{Level: level, Message: message, Details: details}
		result.Logs = append(result.Logs, entry)
		return insertLog(tx, datasetID, entry)
	}

	if err := logSink(LevelInfo, "Starting import", map[string]interface{}{
		"source_file": params.SourceFile,
	}); err != nil {
		return nil, err
	}

	stmt, err := tx.Prepare(recordInsertQuery)
	if err != nil {
		return nil, errors.Wrap(err, "prepare record insert")
	}
	defer stmt.Close()

	inBatch := 0
	for {
		raw, err := rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrMalformedInput, err.Error())
		}

		data, fallbacks := coerceRow(params.Schema, raw)
		result.FallbackCells += fallbacks
		if fallbacks > 0 {
			s.log.Warnw("Cells defaulted to string",
				"dataset", params.Name,
				"row", result.Imported+1,
				"cells", fallbacks,
			)
		}

		payload, err := json.Marshal(data)
		if err != nil {
			return nil, errors.Wrap(err, "marshal record")
		}
		if _, err := stmt.Exec(datasetID, result.Imported+1, string(payload)); err != nil {
			return nil, errors.Wrap(err, "insert record")
		}

		result.Imported++
		inBatch++
		if inBatch >= batchSize {
			result.Batches++
			inBatch = 0
			// Batch boundary: the only place an import may observe
			// cancellation.
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "import cancelled")
			}
			if err := logSink(LevelInfo, "Batch committed", map[string]interface{}{
				"imported": result.Imported,
			}); err != nil {
				return nil, err
			}
		}
	}
	if inBatch > 0 {
		result.Batches++
	}

	if result.Imported == 0 {
		return nil, errors.Wrap(errors.ErrMalformedInput, "file has zero data rows")
	}

	if result.FallbackCells > 0 {
		if err := logSink(LevelWarning, "Some cells defaulted to string", map[string]interface{}{
			"fallback_cells": result.FallbackCells,
		}); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(`
		UPDATE datasets
		SET total_rows = ?, status = ?, imported_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		result.Imported, StatusCompleted, datasetID); err != nil {
		return nil, errors.Wrap(err, "finalize dataset")
	}

	if err := logSink(LevelSuccess, "Import completed", map[string]interface{}{
		"imported": result.Imported,
		"batches":  result.Batches,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit import")
	}

	s.log.Infow("Import completed",
		"dataset", params.Name,
		"rows", result.Imported,
		"batches", result.Batches,
		"fallback_cells", result.FallbackCells,
	)
	return result, nil
}

// prepareDataset creates the dataset row, or resets an existing dataset
// of the same name for re-import: records and columns from the previous
// generation are dropped and the artifact generation advances so stale
// XML/XSD pairs and cached parses cannot be served.
func (s *Store) prepareDataset(tx *sql.Tx, params ImportParams) (string, error) {
	var id string
	err := tx.QueryRow(`SELECT id FROM datasets WHERE name = ?`, params.Name).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		id = newDatasetID()
		if _, err := tx.Exec(datasetInsertQuery,
			id, params.Name, params.Description, params.SourceFile,
			len(params.Schema.Columns), StatusProcessing); err != nil {
			return "", errors.Wrap(err, "create dataset")
		}
	case err != nil:
		return "", errors.Wrap(err, "look up dataset")
	default:
		if _, err := tx.Exec(`DELETE FROM data_records WHERE dataset_id = ?`, id); err != nil {
			return "", errors.Wrap(err, "drop previous records")
		}
		if _, err := tx.Exec(`DELETE FROM dataset_columns WHERE dataset_id = ?`, id); err != nil {
			return "", errors.Wrap(err, "drop previous columns")
		}
		if _, err := tx.Exec(`
			UPDATE datasets
			SET description = ?, source_file = ?, total_columns = ?, status = ?,
			    xml_path = '', xsd_path = '', generation = generation + 1,
			    updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			params.Description, params.SourceFile, len(params.Schema.Columns),
			StatusProcessing, id); err != nil {
			return "", errors.Wrap(err, "reset dataset")
		}
	}

	for _, col := range params.Schema.Columns {
		samples, err := json.Marshal(col.Stats.SampleValues)
		if err != nil {
			return "", errors.Wrap(err, "marshal sample values")
		}
		if _, err := tx.Exec(columnInsertQuery,
			id, col.Name, col.Kind.String(), col.Nullable, col.Unique,
			col.Position, col.Stats.NullCount, col.Stats.UniqueCount,
			string(samples)); err != nil {
			return "", errors.Wrapf(err, "insert column %s", col.Name)
		}
	}
	return id, nil
}

// coerceRow converts one raw row into the JSON-native record shape,
// falling back to string for cells that do not coerce under the
// committed schema.
func coerceRow(s schema.Schema, raw []string) (map[string]interface{}, int) {
	data := make(map[string]interface{}, len(s.Columns))
	fallbacks := 0
	for i, col := range s.Columns {
		cell := ""
		if i < len(raw) {
			cell = raw[i]
		}
		v, err := schema.Parse(col.Kind, cell)
		if err != nil {
			v = schema.StringValue(cell)
			fallbacks++
		}
		data[col.Name] = v.Native()
	}
	return data, fallbacks
}

// MarkFailed records a failed import outside any transaction: sets the
// dataset status (when the dataset exists) and appends an error log
// entry. Best effort; errors are logged, not returned.
func (s *Store) MarkFailed(name, reason string) {
	var id string
	if err := s.db.QueryRow(`SELECT id FROM datasets WHERE name = ?`, name).Scan(&id); err != nil {
		return
	}
	if _, err := s.db.Exec(`UPDATE datasets SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		StatusFailed, id); err != nil {
		s.log.Warnw("Failed to mark dataset failed", "dataset", name, "error", err)
		return
	}
	if err := s.AppendLog(id, LogEntry{
		Level:   LevelError,
		Message: "Import failed: " + reason,
	}); err != nil {
		s.log.Warnw("Failed to append failure log", "dataset", name, "error", err)
	}
}
