// Package store persists datasets, their schema snapshots, imported
// records, and the append-only import log in SQLite. A dataset
// exclusively owns its schema, records and generated-artifact
// references; re-import replaces the record generation atomically.
package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ipvc/tabx/errors"
	"github.com/ipvc/tabx/logger"
	"github.com/ipvc/tabx/schema"
)

// Dataset status values.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Query constants
const (
	datasetSelectColumns = `
		SELECT id, name, description, source_file, total_rows, total_columns,
		       status, xml_path, xsd_path, generation, created_at, updated_at, imported_at
		FROM datasets`

	datasetInsertQuery = `
		INSERT INTO datasets (id, name, description, source_file, total_columns, status)
		VALUES (?, ?, ?, ?, ?, ?)`

	columnInsertQuery = `
		INSERT INTO dataset_columns
			(dataset_id, name, data_type, nullable, is_unique, position, null_count, unique_count, sample_values)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	recordInsertQuery = `
		INSERT INTO data_records (dataset_id, row_number, data)
		VALUES (?, ?, ?)`

	importLogInsertQuery = `
		INSERT INTO import_logs (dataset_id, level, message, details)
		VALUES (?, ?, ?, ?)`
)

// Store provides dataset persistence on top of a migrated SQLite
// connection (see the db package).
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// New creates a Store. If log is nil the shared logger is used.
func New(conn *sql.DB, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = logger.Named("store")
	}
	return &Store{db: conn, log: log}
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB { return s.db }

// Dataset is the stored metadata for one imported source file plus its
// schema snapshot and generated-artifact references. The XML/XSD pair
// is valid only for the generation it was produced under.
type Dataset struct {
	ID           string
	Name         string
	Description  string
	SourceFile   string
	TotalRows    int
	TotalColumns int
	Status       string
	XMLPath      string
	XSDPath      string
	Generation   int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ImportedAt   *time.Time
	Schema       schema.Schema
}

// GetByID loads a dataset and its schema snapshot.
func (s *Store) GetByID(id string) (*Dataset, error) {
	return s.getWhere("WHERE id = ?", id)
}

// GetByName loads a dataset by its unique name.
func (s *Store) GetByName(name string) (*Dataset, error) {
	return s.getWhere("WHERE name = ?", name)
}

func (s *Store) getWhere(where string, arg interface{}) (*Dataset, error) {
	row := s.db.QueryRow(datasetSelectColumns+" "+where, arg)
	ds, err := scanDataset(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "dataset %v", arg)
	}
	if err != nil {
		return nil, errors.Wrap(err, "load dataset")
	}
	if err := s.loadSchema(ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// List returns all datasets newest-first, without schema snapshots.
func (s *Store) List() ([]*Dataset, error) {
	rows, err := s.db.Query(datasetSelectColumns + " ORDER BY created_at DESC, name")
	if err != nil {
		return nil, errors.Wrap(err, "list datasets")
	}
	defer rows.Close()

	var out []*Dataset
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan dataset")
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// Delete removes a dataset; columns, records and logs cascade.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM datasets WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "delete dataset")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "dataset %s", id)
	}
	return nil
}

// SetArtifacts records the generated XML/XSD paths for the dataset's
// current generation.
func (s *Store) SetArtifacts(id, xmlPath, xsdPath string) error {
	_, err := s.db.Exec(
		`UPDATE datasets SET xml_path = ?, xsd_path = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		xmlPath, xsdPath, id)
	return errors.Wrap(err, "set artifacts")
}

// BumpGeneration advances the artifact generation counter, invalidating
// any XML/XSD pair (and dependent caches) produced under the previous
// generation. Returns the new generation.
func (s *Store) BumpGeneration(id string) (int64, error) {
	_, err := s.db.Exec(
		`UPDATE datasets SET generation = generation + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return 0, errors.Wrap(err, "bump generation")
	}
	var gen int64
	if err := s.db.QueryRow(`SELECT generation FROM datasets WHERE id = ?`, id).Scan(&gen); err != nil {
		return 0, errors.Wrap(err, "read generation")
	}
	return gen, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDataset(r rowScanner) (*Dataset, error) {
	ds := &Dataset{}
	var importedAt sql.NullTime
	err := r.Scan(&ds.ID, &ds.Name, &ds.Description, &ds.SourceFile,
		&ds.TotalRows, &ds.TotalColumns, &ds.Status,
		&ds.XMLPath, &ds.XSDPath, &ds.Generation,
		&ds.CreatedAt, &ds.UpdatedAt, &importedAt)
	if err != nil {
		return nil, err
	}
	if importedAt.Valid {
		t := importedAt.Time
		ds.ImportedAt = &t
	}
	return ds, nil
}

func (s *Store) loadSchema(ds *Dataset) error {
	rows, err := s.db.Query(`
		SELECT name, data_type, nullable, is_unique, position, null_count, unique_count, sample_values
		FROM dataset_columns WHERE dataset_id = ? ORDER BY position`, ds.ID)
	if err != nil {
		return errors.Wrap(err, "load schema")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			col        schema.ColumnSpec
			typeName   string
			samplesRaw string
		)
		if err := rows.Scan(&col.Name, &typeName, &col.Nullable, &col.Unique,
			&col.Position, &col.Stats.NullCount, &col.Stats.UniqueCount, &samplesRaw); err != nil {
			return errors.Wrap(err, "scan column")
		}
		col.Kind = schema.ParseKind(typeName)
		if err := json.Unmarshal([]byte(samplesRaw), &col.Stats.SampleValues); err != nil {
			// sample values are display-only; a corrupt blob should not
			// make the dataset unloadable
			col.Stats.SampleValues = nil
		}
		ds.Schema.Columns = append(ds.Schema.Columns, col)
	}
	return rows.Err()
}

func newDatasetID() string {
	return uuid.NewString()
}
