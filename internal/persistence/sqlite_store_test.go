package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_PutGetDelete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "current_job")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "current_job", "first"))
	require.NoError(t, store.Put(ctx, "current_job", "second"))

	value, ok, err := store.Get(ctx, "current_job")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", value)

	require.NoError(t, store.Delete(ctx, "current_job"))
	require.NoError(t, store.Delete(ctx, "current_job"))
	_, ok, err = store.Get(ctx, "current_job")
	require.NoError(t, err)
	assert.False(t, ok)

	require.Error(t, store.Put(ctx, " ", "x"))
}

func TestSQLiteStore_ListPrefix(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "inbox:/a.pdf", "id-a"))
	require.NoError(t, store.Put(ctx, "inbox:/b.pdf", "id-b"))
	require.NoError(t, store.Put(ctx, "inbox_other", "x"))
	require.NoError(t, store.Put(ctx, "job:1", "{}"))

	got, err := store.ListPrefix(ctx, "inbox:")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"inbox:/a.pdf": "id-a", "inbox:/b.pdf": "id-b"}, got)

	got, err = store.ListPrefix(ctx, "missing:")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStore_RecentNewestFirst(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	for _, key := range []string{"inbox:1", "inbox:2", "inbox:3"} {
		require.NoError(t, store.Put(ctx, key, key))
		time.Sleep(2 * time.Millisecond)
	}

	entries, err := store.Recent(ctx, "inbox:", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "inbox:3", entries[0].Key)
	assert.Equal(t, "inbox:2", entries[1].Key)
	assert.WithinDuration(t, time.Now(), entries[0].UpdatedAt, time.Minute)
}

func TestSQLiteStore_ReopenKeepsDataAndMigrations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "current_job", "abc"))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	value, ok, err := store.Get(ctx, "current_job")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", value)

	var applied int
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 2, applied)
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("  ")
	require.Error(t, err)
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, 1, migrationVersion("001_init.sql"))
	assert.Equal(t, 12, migrationVersion("012_more.sql"))
	assert.Equal(t, 0, migrationVersion("init.sql"))
}
