package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2"
)

const journalFile = "prioschedd.duckdb"

// NewDB opens a DuckDB database. path may be ":memory:".
func NewDB(path string) (*sql.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to duckdb %q: %w", path, err)
	}
	return db, nil
}

// NewDBInFolder opens the journal file inside folder, creating the folder if
// needed. An empty folder opens an in-memory database.
func NewDBInFolder(folder string) (*sql.DB, error) {
	if folder == "" {
		return NewDB(":memory:")
	}
	if err := os.MkdirAll(folder, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data folder: %w", err)
	}
	return NewDB(filepath.Join(folder, journalFile))
}
