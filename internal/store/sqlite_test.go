package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgm-ocak/ocak-map/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))

	names, err := migrationFiles("sqlite")
	require.NoError(t, err)

	var applied int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT count(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, len(names), applied)
}

func TestSQLite_WALEnabled(t *testing.T) {
	s := newTestSQLiteStore(t)

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestSQLite_DeletedIDsAreNotReused(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := s.CreateQuarry(ctx, quarryInput("A", "39.0000000", "32.0000000"))
	require.NoError(t, err)
	require.NoError(t, s.DeleteQuarry(ctx, a.ID))

	b, err := s.CreateQuarry(ctx, quarryInput("B", "39.0000000", "32.0000000"))
	require.NoError(t, err)
	assert.Greater(t, b.ID, a.ID)
}

func TestSQLite_CreateQuarriesChunked(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	in := make([]model.QuarryInput, 1500)
	for i := range in {
		in[i] = quarryInput("Bulk", "40.0000000", "30.0000000")
	}
	n, err := s.CreateQuarries(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 1500, n)

	count, err := s.CountQuarries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1500, count)
}

func TestSQLite_UpsertProvinceUpdatesCoordinates(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.UpsertProvinces(ctx, []model.Province{{Name: "Bolu", Latitude: "40.0000000", Longitude: "31.0000000"}})
	require.NoError(t, err)
	_, err = s.UpsertProvinces(ctx, []model.Province{{Name: "Bolu", Latitude: "40.7355000", Longitude: "31.6061000"}})
	require.NoError(t, err)

	provinces, err := s.ListProvinces(ctx)
	require.NoError(t, err)
	require.Len(t, provinces, 1)
	assert.Equal(t, "40.7355000", provinces[0].Latitude)
	assert.Equal(t, "31.6061000", provinces[0].Longitude)
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeLike(tt.in), tt.in)
	}
}

func TestFoldCase(t *testing.T) {
	assert.Equal(t, foldCase("şanlıurfa"), foldCase("Şanlıurfa"))
	assert.Equal(t, foldCase("çankaya"), foldCase("ÇANKAYA"))
	assert.Equal(t, `%100\% ocağı%`, foldCase(`%100\% OCAĞı%`))
}

func TestSQLite_FoldFunction(t *testing.T) {
	s := newTestSQLiteStore(t)

	var got string
	require.NoError(t, s.db.QueryRow(`SELECT ocak_fold('ŞANLIURFA')`).Scan(&got))
	assert.Equal(t, "şanliurfa", got)

	var null sql.NullString
	require.NoError(t, s.db.QueryRow(`SELECT ocak_fold(NULL)`).Scan(&null))
	assert.False(t, null.Valid)
}
