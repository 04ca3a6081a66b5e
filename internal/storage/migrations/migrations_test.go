package migrations

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpguard/internal/storage/sqlite"
)

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(`
-- movements
CREATE TABLE a (x Int64);

-- probes
CREATE TABLE b (y String);
`)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x Int64)", stmts[0])
	assert.Equal(t, "CREATE TABLE b (y String)", stmts[1])
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings("SELECT 'it''s'; SELECT 1;"))
	assert.Error(t, validateNoSemicolonInStrings("SELECT 'a;b'"))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default@localhost:9000/pumpguard")
	require.NoError(t, err)
	assert.Equal(t, "pumpguard", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

func TestEmbeddedClickhouseMigrationsSplit(t *testing.T) {
	data, err := ClickhouseFS.ReadFile("clickhouse/001_init.sql")
	require.NoError(t, err)
	require.NoError(t, validateNoSemicolonInStrings(string(data)))
	assert.Len(t, splitStatements(string(data)), 2)
}

func TestRunSqliteMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "pumpguard.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunSqliteMigrations(ctx, db))
	require.NoError(t, RunSqliteMigrations(ctx, db))

	var n int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('tokens','movements','wallets','alerts','liquidity_probes')`,
	).Scan(&n))
	assert.Equal(t, 5, n)

	var versions []string
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var v string
		require.NoError(t, rows.Scan(&v))
		versions = append(versions, v)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"001_init"}, versions)
}

type fakeLedger struct {
	done     map[string]bool
	executed []string
	failOn   string
}

func (l *fakeLedger) ensure(context.Context) error { return nil }

func (l *fakeLedger) applied(context.Context) (map[string]bool, error) {
	out := make(map[string]bool, len(l.done))
	for k, v := range l.done {
		out[k] = v
	}
	return out, nil
}

func (l *fakeLedger) exec(_ context.Context, stmt string) error {
	if stmt == l.failOn {
		return errors.New("syntax error")
	}
	l.executed = append(l.executed, stmt)
	return nil
}

func (l *fakeLedger) record(_ context.Context, version string) error {
	l.done[version] = true
	return nil
}

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"pg/002_more.sql":  {Data: []byte("CREATE TABLE b (y TEXT);\nCREATE TABLE c (z TEXT);")},
		"pg/001_init.sql":  {Data: []byte("CREATE TABLE a (x TEXT);")},
		"pg/README.md":     {Data: []byte("not sql")},
		"pg/003_empty.sql": {Data: []byte("  \n")},
	}

	migs, err := load(fsys, "pg", false)
	require.NoError(t, err)
	require.Len(t, migs, 3)
	assert.Equal(t, "001_init", migs[0].Version)
	assert.Equal(t, "002_more", migs[1].Version)
	assert.Len(t, migs[1].Statements, 1, "unsplit files run whole")
	assert.Empty(t, migs[2].Statements)

	migs, err = load(fsys, "pg", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATE TABLE b (y TEXT)", "CREATE TABLE c (z TEXT)"}, migs[1].Statements)

	_, err = load(fstest.MapFS{"ch/001.sql": {Data: []byte("SELECT 'a;b';")}}, "ch", true)
	assert.ErrorContains(t, err, "validate migration 001.sql")
}

func TestApply_SkipsRecordedVersions(t *testing.T) {
	ctx := context.Background()
	migs := []Migration{
		{Version: "001_init", Statements: []string{"A"}},
		{Version: "002_more", Statements: []string{"B", "C"}},
		{Version: "003_last", Statements: []string{"D"}},
	}
	l := &fakeLedger{done: map[string]bool{"001_init": true}, failOn: "D"}

	applied, err := apply(ctx, l, migs)
	require.ErrorContains(t, err, "apply migration 003_last")
	assert.Equal(t, []string{"002_more"}, applied)
	assert.Equal(t, []string{"B", "C"}, l.executed)
	assert.False(t, l.done["003_last"], "failed migration is not recorded")

	l.failOn = ""
	applied, err = apply(ctx, l, migs)
	require.NoError(t, err)
	assert.Equal(t, []string{"003_last"}, applied)
	assert.Equal(t, []string{"B", "C", "D"}, l.executed)

	applied, err = apply(ctx, l, migs)
	require.NoError(t, err)
	assert.Empty(t, applied)
}
