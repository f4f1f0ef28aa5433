package basic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	appErrors "gobank/errors"
	core "gobank/storage/database"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), core.DBConfig{Driver: "sqlite", Database: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(context.Background(), `CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func countItems(t *testing.T, db core.IDatabase) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(context.Background(), `SELECT COUNT(*) FROM items`).Scan(&n))
	return n
}

func TestDB_ExecAndQuery(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	assert.Equal(t, "sqlite", db.Driver())
	require.NoError(t, db.Ping(ctx))

	for _, name := range []string{"a", "b", "c"} {
		_, err := db.Exec(ctx, `INSERT INTO items (name) VALUES (?)`, name)
		require.NoError(t, err)
	}

	q, args := NewSelect("name").From("items").Where("id > ?", 1).OrderBy("id", true).Build()
	rows, err := db.Query(ctx, q, args...)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"c", "b"}, names)
}

func TestInTx_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	err := InTx(ctx, db, func(tx core.ITransaction) error {
		_, err := tx.Exec(ctx, `INSERT INTO items (name) VALUES (?)`, "kept")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countItems(t, db))

	boom := errors.New("abort")
	err = InTx(ctx, db, func(tx core.ITransaction) error {
		if _, err := tx.Exec(ctx, `INSERT INTO items (name) VALUES (?)`, "dropped"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, countItems(t, db))
}

func TestTx_NestedNotSupported(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.Begin(ctx)
	assert.True(t, appErrors.IsErrorCode(err, appErrors.ErrCodeDatabase))
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), core.DBConfig{Driver: "nope", Database: "x"})
	assert.True(t, appErrors.IsErrorCode(err, appErrors.ErrCodeDatabase))
}

func TestSelectBuilder(t *testing.T) {
	q, args := NewSelect().From("journal").Where("").Where("account_id = ?", int64(3)).Where("kind = ?", "k").
		OrderBy("seq", false).Limit(10).Build()

	assert.Equal(t, "SELECT * FROM journal WHERE account_id = ? AND kind = ? ORDER BY seq LIMIT 10", q)
	assert.Equal(t, []any{int64(3), "k"}, args)
}
