package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ipvc/tabx/errors"
)

// Import log levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelSuccess = "success"
)

// LogEntry is one append-only import log record. Entries are never
// rewritten.
type LogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details"`
	Timestamp time.Time              `json:"timestamp"`
}

// AppendLog appends an entry to a dataset's import log.
func (s *Store) AppendLog(datasetID string, entry LogEntry) error {
	return insertLog(s.db, datasetID, entry)
}

// Logs returns a dataset's import log entries newest-first.
func (s *Store) Logs(datasetID string) ([]LogEntry, error) {
	rows, err := s.db.Query(`
		SELECT level, message, details, timestamp
		FROM import_logs WHERE dataset_id = ?
		ORDER BY timestamp DESC, id DESC`, datasetID)
	if err != nil {
		return nil, errors.Wrap(err, "load import logs")
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var (
			entry      LogEntry
			detailsRaw string
		)
		if err := rows.Scan(&entry.Level, &entry.Message, &detailsRaw, &entry.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scan log entry")
		}
		if err := json.Unmarshal([]byte(detailsRaw), &entry.Details); err != nil {
			entry.Details = map[string]interface{}{"raw": detailsRaw}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func insertLog(e execer, datasetID string, entry LogEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return errors.Wrap(err, "marshal log details")
	}
	if _, err := e.Exec(importLogInsertQuery, datasetID, entry.Level, entry.Message, string(payload)); err != nil {
		return errors.Wrap(err, "insert log entry")
	}
	return nil
}
