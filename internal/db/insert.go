package db

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// DefaultChunkRows bounds how many rows go into one INSERT so large batches
// stay under the bind-parameter limits of both Postgres and SQLite.
const DefaultChunkRows = 1000

// InsertConfig describes a multi-row INSERT, optionally an upsert.
type InsertConfig struct {
	Table   string   // target table (e.g., "quarries")
	Columns []string // columns being inserted, in row order

	// ConflictKeys turns the insert into an upsert on that unique key.
	ConflictKeys []string
	// UpdateCols are set from EXCLUDED on conflict; nil = all non-conflict columns.
	UpdateCols []string

	// Placeholder defaults to squirrel.Dollar.
	Placeholder squirrel.PlaceholderFormat
	// ChunkRows caps rows per statement; <= 0 uses DefaultChunkRows.
	ChunkRows int
}

// Statement is one built SQL statement with its bind arguments.
type Statement struct {
	SQL  string
	Args []any
}

// BuildInserts renders rows into one or more multi-row INSERT statements.
// Every row must have exactly len(cfg.Columns) values.
func BuildInserts(cfg InsertConfig, rows [][]any) ([]Statement, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	if cfg.Table == "" {
		return nil, eris.New("db: insert: no table specified")
	}
	if len(cfg.Columns) == 0 {
		return nil, eris.New("db: insert: no columns specified")
	}

	suffix, err := conflictClause(cfg)
	if err != nil {
		return nil, err
	}

	placeholder := cfg.Placeholder
	if placeholder == nil {
		placeholder = squirrel.Dollar
	}
	chunk := cfg.ChunkRows
	if chunk <= 0 {
		chunk = DefaultChunkRows
	}

	cols := quoteAll(cfg.Columns)
	var stmts []Statement
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))

		b := squirrel.Insert(sanitizeTable(cfg.Table)).
			Columns(cols...).
			PlaceholderFormat(placeholder)
		for i, row := range rows[start:end] {
			if len(row) != len(cfg.Columns) {
				return nil, eris.Errorf("db: insert: row %d has %d values, want %d", start+i, len(row), len(cfg.Columns))
			}
			b = b.Values(row...)
		}
		if suffix != "" {
			b = b.Suffix(suffix)
		}

		sql, args, err := b.ToSql()
		if err != nil {
			return nil, eris.Wrapf(err, "db: insert: build %s", cfg.Table)
		}
		stmts = append(stmts, Statement{SQL: sql, Args: args})
	}
	return stmts, nil
}

// conflictClause renders ON CONFLICT ... DO UPDATE. Both Postgres and
// SQLite (3.24+) accept the same syntax.
func conflictClause(cfg InsertConfig) (string, error) {
	if len(cfg.ConflictKeys) == 0 {
		return "", nil
	}

	updateCols := cfg.UpdateCols
	if updateCols == nil {
		conflictSet := make(map[string]bool, len(cfg.ConflictKeys))
		for _, k := range cfg.ConflictKeys {
			conflictSet[k] = true
		}
		for _, c := range cfg.Columns {
			if !conflictSet[c] {
				updateCols = append(updateCols, c)
			}
		}
	}

	if len(updateCols) == 0 {
		return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", quoteAndJoin(cfg.ConflictKeys)), nil
	}

	setClauses := make([]string, len(updateCols))
	for i, col := range updateCols {
		q := pgx.Identifier{col}.Sanitize()
		setClauses[i] = fmt.Sprintf("%s = excluded.%s", q, q)
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s",
		quoteAndJoin(cfg.ConflictKeys), strings.Join(setClauses, ", ")), nil
}

// sanitizeTable handles schema-qualified table names like "public.quarries".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAll(cols []string) []string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return quoted
}

func quoteAndJoin(cols []string) string {
	return strings.Join(quoteAll(cols), ", ")
}
