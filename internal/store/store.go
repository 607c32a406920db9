// Package store provides read-only access to the regcat catalog database.
package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/wesm/regcat/internal/query"
)

//go:embed schema.sql
var schemaFS embed.FS

// Store wraps a read-only connection to the catalog.
type Store struct {
	db     *sql.DB
	dbPath string
}

// mode=ro makes SQLite refuse writes at the file level; query_only rejects
// them at the connection level as well.
const readOnlyParams = "?mode=ro&_query_only=true&_busy_timeout=5000"

// isSQLiteError checks if err is a sqlite3.Error with a message containing substr.
// Handles both value (sqlite3.Error) and pointer (*sqlite3.Error) forms.
func isSQLiteError(err error, substr string) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return strings.Contains(sqliteErr.Error(), substr)
	}
	var sqliteErrPtr *sqlite3.Error
	if errors.As(err, &sqliteErrPtr) && sqliteErrPtr != nil {
		return strings.Contains(sqliteErrPtr.Error(), substr)
	}
	return false
}

// Open opens the catalog at dbPath read-only. The file must already exist.
func Open(dbPath string) (*Store, error) {
	if strings.HasPrefix(dbPath, "postgresql://") || strings.HasPrefix(dbPath, "postgres://") {
		return nil, fmt.Errorf("only SQLite catalogs are supported")
	}
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("catalog database: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+dbPath+readOnlyParams)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Schema returns the catalog DDL. The server never executes it; it documents
// the layout the query layer expects and seeds test databases.
func Schema() (string, error) {
	b, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return "", fmt.Errorf("read schema.sql: %w", err)
	}
	return string(b), nil
}

// ownedEngine is a query engine that closes its store on Close.
type ownedEngine struct {
	*query.SQLiteEngine
	store *Store
}

func (e *ownedEngine) Close() error {
	return e.store.Close()
}

// OpenEngine opens the catalog and returns an engine that owns the connection.
func OpenEngine(dbPath string) (query.Engine, error) {
	s, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &ownedEngine{SQLiteEngine: query.NewSQLiteEngine(s.db), store: s}, nil
}

// Stats holds catalog row counts.
type Stats struct {
	ClassCount     int64 `json:"classes"`
	CourseCount    int64 `json:"courses"`
	CrossListCount int64 `json:"crosslistings"`
	ProfessorCount int64 `json:"professors"`
	DatabaseSize   int64 `json:"database_size_bytes"`
}

// GetStats returns row counts for the catalog tables. Missing tables count as zero.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM classes", &stats.ClassCount},
		{"SELECT COUNT(*) FROM courses", &stats.CourseCount},
		{"SELECT COUNT(*) FROM crosslistings", &stats.CrossListCount},
		{"SELECT COUNT(*) FROM profs", &stats.ProfessorCount},
	}

	for _, q := range queries {
		if err := s.db.QueryRow(q.query).Scan(q.dest); err != nil {
			if isSQLiteError(err, "no such table") {
				continue
			}
			return nil, fmt.Errorf("get stats %q: %w", q.query, err)
		}
	}

	if info, err := os.Stat(s.dbPath); err == nil {
		stats.DatabaseSize = info.Size()
	}

	return stats, nil
}
