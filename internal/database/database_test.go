package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestDSN(t *testing.T) {
	dsn := Config{Path: "./data/fleet.db"}.DSN()
	assert.True(t, strings.HasPrefix(dsn, "file:./data/fleet.db?"))
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "busy_timeout%285000%29")
}

func TestOpenAppliesMigrations(t *testing.T) {
	conn := openTestDB(t)

	for _, table := range []string{"vehicles", "vehicle_status_history", "vehicle_status_segments", "daily_vehicle_stats"} {
		var name string
		err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
	}

	var count int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count))
	assert.Equal(t, 4, count)

	// Running again is a no-op
	require.NoError(t, NewMigrationManager(conn).RunMigrations(context.Background()))
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count))
	assert.Equal(t, 4, count)
}

func TestSingleOpenSegmentIndex(t *testing.T) {
	conn := openTestDB(t)

	_, err := conn.Exec("INSERT INTO vehicle_status_segments (vehicle_id, status, start_time) VALUES ('V1', '作业中', 100)")
	require.NoError(t, err)
	_, err = conn.Exec("INSERT INTO vehicle_status_segments (vehicle_id, status, start_time) VALUES ('V1', '待命', 200)")
	assert.Error(t, err)

	_, err = conn.Exec("INSERT INTO vehicle_status_segments (vehicle_id, status, start_time) VALUES ('V2', '待命', 200)")
	assert.NoError(t, err)
}

func TestTransactionRollsBack(t *testing.T) {
	conn := openTestDB(t)
	boom := errors.New("boom")

	err := Transaction(context.Background(), conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO vehicle_status_history (vehicle_id, status, timestamp) VALUES ('V1', '待命', 1)"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM vehicle_status_history").Scan(&count))
	assert.Zero(t, count)
}

func TestTransactionCancelledContext(t *testing.T) {
	conn := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Transaction(ctx, conn, func(tx *sql.Tx) error { return nil })
	assert.Error(t, err)
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (x INT);\n-- comment; here\nCREATE INDEX i ON a(x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a(x)"}, stmts)
}
