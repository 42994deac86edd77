// Package bundles reads the externally produced bundle-membership database.
// It is queried, never mutated: a bundle is a named aggregation of
// observations (by ctime) sharing a null-split property.
package bundles

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

// DB is a read-only handle on a bundle database.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens the bundle database read-only. A missing file is a
// configuration error raised before any work begins.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("bundle db file does not exist: %s", path)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening bundle db: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &DB{db: db, path: path}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ctimes lists the ctimes belonging to a bundle, optionally restricted to a
// null-split property value such as "pwv_low". The property column is named
// by the value's prefix before the first underscore.
func (d *DB) Ctimes(bundleID int, nullPropVal string) ([]int64, error) {
	query := "SELECT ctime FROM bundles WHERE bundle_id = ?"
	args := []any{bundleID}
	if nullPropVal != "" {
		col := nullPropCol(nullPropVal)
		if !validIdent(col) {
			return nil, fmt.Errorf("invalid null-split property value %q", nullPropVal)
		}
		query += fmt.Sprintf(" AND %s = ?", col)
		args = append(args, nullPropVal)
	}
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bundle db: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var ct int64
		if err := rows.Scan(&ct); err != nil {
			return nil, fmt.Errorf("scanning ctime: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func nullPropCol(val string) string {
	if i := strings.IndexByte(val, '_'); i > 0 {
		return val[:i]
	}
	return val
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
