package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Failure-path coverage with an injected driver: a record insert that
// fails mid-import must roll the whole transaction back.
func TestImportRollsBackOnInsertFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM datasets WHERE name").
		WithArgs("crops").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO datasets").
		WillReturnResult(sqlmock.NewResult(1, 1))
	for range cropSchema().Columns {
		mock.ExpectExec("INSERT INTO dataset_columns").
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectExec("INSERT INTO import_logs").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectPrepare("INSERT INTO data_records").
		ExpectExec().
		WillReturnError(assertableErr("disk I/O error"))
	mock.ExpectRollback()

	s := New(mockDB, nil)
	_, err = s.ImportDataset(context.Background(), ImportParams{
		Name:   "crops",
		Schema: cropSchema(),
	}, &sliceRows{rows: [][]string{{"Kharif", "1", "2016"}}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert record")
	assert.NoError(t, mock.ExpectationsWereMet())
}

type assertableErr string

func (e assertableErr) Error() string { return string(e) }
