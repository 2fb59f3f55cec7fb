package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// #region sql-types
// recordRow is one knowledge-base row: the record key and its attribute map
// serialized as JSON.
type recordRow struct {
	Key        string `db:"record_key"`
	Attributes string `db:"attributes"`
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// #endregion sql-types

// #region open
// OpenSQL connects to a "sqlite" or "postgres" knowledge-base database.
func OpenSQL(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("open kb: unsupported driver %q", driver)
	}
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open kb: %w", err)
	}
	return db, nil
}

// #endregion open

// #region load
// LoadSQL reads every record from table.
func LoadSQL(ctx context.Context, db *sqlx.DB, table string) (dialogue.Results, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("load kb: invalid table name %q", table)
	}
	var rows []recordRow
	q := fmt.Sprintf(`SELECT record_key, attributes FROM %s ORDER BY record_key`, table)
	if err := db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("load kb: %w", err)
	}
	out := make(dialogue.Results, len(rows))
	for _, r := range rows {
		var rec dialogue.Record
		if err := json.Unmarshal([]byte(r.Attributes), &rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", r.Key, err)
		}
		out[r.Key] = rec
	}
	return out, nil
}

// #endregion load

// #region seed
// SeedSQL creates table if needed and upserts every record. Returns the
// number of rows written.
func SeedSQL(ctx context.Context, db *sqlx.DB, table string, records dialogue.Results) (int, error) {
	if !tableName.MatchString(table) {
		return 0, fmt.Errorf("seed kb: invalid table name %q", table)
	}
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		record_key TEXT PRIMARY KEY,
		attributes TEXT NOT NULL
	)`, table)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return 0, fmt.Errorf("seed kb schema: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	upsert := fmt.Sprintf(`INSERT INTO %s (record_key, attributes) VALUES (:record_key, :attributes)
		ON CONFLICT (record_key) DO UPDATE SET attributes = excluded.attributes`, table)
	n := 0
	for _, key := range records.Keys() {
		attrs, err := json.Marshal(records[key])
		if err != nil {
			return 0, fmt.Errorf("encode record %s: %w", key, err)
		}
		if _, err := tx.NamedExecContext(ctx, upsert, recordRow{Key: key, Attributes: string(attrs)}); err != nil {
			return 0, fmt.Errorf("upsert record %s: %w", key, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// #endregion seed
