// Package duckdb persists per-sample expression tables and site
// consistency reports in a DuckDB database, so results accumulate across
// sample runs and stay queryable (per-feature counts across samples,
// suspicious sites, and so on).
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for result persistence.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create results directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS expression (
			sample VARCHAR,
			granularity VARCHAR,
			feature VARCHAR,
			count BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS site_consistency (
			sample VARCHAR,
			site VARCHAR,
			chrom VARCHAR,
			pos BIGINT,
			ref VARCHAR,
			alts VARCHAR,
			genotype VARCHAR,
			consistent BIGINT,
			inconsistent BIGINT,
			rate DOUBLE,
			suspicious BOOLEAN
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ClearSample removes previously stored rows for a sample, so re-running
// a sample replaces rather than duplicates its results.
func (s *Store) ClearSample(sample string) error {
	if _, err := s.db.Exec(`DELETE FROM expression WHERE sample = ?`, sample); err != nil {
		return fmt.Errorf("clear expression rows: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM site_consistency WHERE sample = ?`, sample); err != nil {
		return fmt.Errorf("clear consistency rows: %w", err)
	}
	return nil
}
