package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name: "comments dropped",
			input: `-- header; not a statement
CREATE TABLE a (x UInt64) ENGINE = MergeTree() ORDER BY x;
/* block; comment */
CREATE TABLE b (y String) ENGINE = MergeTree() ORDER BY y;
`,
			want: []string{
				"CREATE TABLE a (x UInt64) ENGINE = MergeTree() ORDER BY x",
				"CREATE TABLE b (y String) ENGINE = MergeTree() ORDER BY y",
			},
		},
		{
			name:  "semicolons in literals",
			input: `SELECT 'a;b', 'it''s;', "c;d"; SELECT 1`,
			want:  []string{`SELECT 'a;b', 'it''s;', "c;d"`, "SELECT 1"},
		},
		{
			name:  "escaped quote",
			input: `SELECT 'a\';b'; SELECT 2;`,
			want:  []string{`SELECT 'a\';b'`, "SELECT 2"},
		},
		{
			name:  "empty",
			input: "-- nothing\n;\n",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitStatements(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitStatements_Unterminated(t *testing.T) {
	_, err := splitStatements("SELECT 'open;")
	assert.Error(t, err)

	_, err = splitStatements("SELECT 1 /* open")
	assert.Error(t, err)
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:@localhost:9000/analytics")
	require.NoError(t, err)
	assert.Equal(t, "analytics", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "`analytics`", quoteIdent("analytics"))
	assert.Equal(t, "`a``b`", quoteIdent("a`b"))
}

func TestPending(t *testing.T) {
	all, err := pending("postgres", nil)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Equal(t, "001_ledger.sql", all[0])

	rest, err := pending("postgres", map[string]bool{"001_ledger.sql": true})
	require.NoError(t, err)
	assert.Len(t, rest, len(all)-1)

	ch, err := pending("clickhouse", nil)
	require.NoError(t, err)
	for _, version := range ch {
		body, err := files.ReadFile("clickhouse/" + version)
		require.NoError(t, err)
		stmts, err := splitStatements(string(body))
		require.NoError(t, err, version)
		assert.NotEmpty(t, stmts, version)
	}
}
