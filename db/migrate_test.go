package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateFreshDatabase(t *testing.T) {
	conn, err := OpenInMemory()
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, Migrate(conn, nil))

	for _, table := range []string{"schema_migrations", "datasets", "dataset_columns", "data_records", "import_logs"} {
		var name string
		err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := OpenInMemory()
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, Migrate(conn, nil))
	require.NoError(t, Migrate(conn, nil))

	var count int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 2, count, "each migration recorded exactly once")
}

func TestCascadeDelete(t *testing.T) {
	conn, err := OpenInMemory()
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, Migrate(conn, nil))

	_, err = conn.Exec(`INSERT INTO datasets (id, name) VALUES ('d1', 'crops')`)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO data_records (dataset_id, row_number, data) VALUES ('d1', 1, '{}')`)
	require.NoError(t, err)

	_, err = conn.Exec(`DELETE FROM datasets WHERE id = 'd1'`)
	require.NoError(t, err)

	var count int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM data_records").Scan(&count))
	assert.Zero(t, count, "records cascade with their dataset")
}
