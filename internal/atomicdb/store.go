package atomicdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ObsWafer is the (observation id, wafer) pair returned by the driver's
// point query.
type ObsWafer struct {
	ObsID string
	Wafer string
}

// Store wraps the atomic catalog database.
type Store struct {
	db   *sql.DB
	path string
}

// Create opens the catalog for writing, creating the file and the atomic
// table as needed.
func Create(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	// Single-writer use; WAL keeps concurrent read-only openers happy.
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

// Open opens an existing catalog read-only. The file must already exist.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("atomic db file does not exist: %s", path)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema() error {
	cols := make([]string, len(Schema))
	for i, c := range Schema {
		cols[i] = c.Name + " " + string(c.Type)
	}
	_, err := s.db.Exec(fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS atomic (%s)", strings.Join(cols, ", ")))
	return err
}

// Reset drops and recreates the atomic table.
func (s *Store) Reset() error {
	if _, err := s.db.Exec("DROP TABLE IF EXISTS atomic"); err != nil {
		return fmt.Errorf("dropping table: %w", err)
	}
	return s.initSchema()
}

// Insert appends one record. There is no upsert: re-inserting the same unit
// yields a duplicate row.
func (s *Store) Insert(rec *Record) error {
	ph := strings.TrimSuffix(strings.Repeat("?, ", len(Schema)), ", ")
	_, err := s.db.Exec(
		fmt.Sprintf("INSERT INTO atomic VALUES (%s)", ph), rec.values()...)
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	return nil
}

// InsertBatch appends records inside a single transaction.
func (s *Store) InsertBatch(recs []*Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	ph := strings.TrimSuffix(strings.Repeat("?, ", len(Schema)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO atomic VALUES (%s)", ph))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()
	for _, rec := range recs {
		if _, err := stmt.Exec(rec.values()...); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting record: %w", err)
		}
	}
	return tx.Commit()
}

// All returns every row matching the given SQL boolean-expression fragments,
// ANDed together, in storage order. With no fragments it returns the whole
// table.
func (s *Store) All(fragments ...string) ([]Record, error) {
	names := make([]string, len(Schema))
	for i, c := range Schema {
		names[i] = c.Name
	}
	query := "SELECT " + strings.Join(names, ", ") + " FROM atomic"
	if len(fragments) > 0 {
		query += " WHERE " + strings.Join(fragments, " AND ")
	}
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying atomic table: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(rec.fields()...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ObsWafers returns the (obs_id, wafer) pairs recorded for one frequency
// channel and ctime.
func (s *Store) ObsWafers(freq string, ctime int64) ([]ObsWafer, error) {
	rows, err := s.db.Query(
		"SELECT obs_id, wafer FROM atomic WHERE freq_channel = ? AND ctime = ?",
		freq, ctime)
	if err != nil {
		return nil, fmt.Errorf("querying atomic table: %w", err)
	}
	defer rows.Close()

	var out []ObsWafer
	for rows.Next() {
		var ow ObsWafer
		if err := rows.Scan(&ow.ObsID, &ow.Wafer); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, ow)
	}
	return out, rows.Err()
}
