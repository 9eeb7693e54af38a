package deps

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// RegistryFile is the database name inside the tools directory.
const RegistryFile = "tools.db"

const registrySchema = `
CREATE TABLE IF NOT EXISTS tools (
    name         TEXT PRIMARY KEY,
    path         TEXT NOT NULL,
    source_url   TEXT NOT NULL,
    sha256       TEXT NOT NULL,
    size         INTEGER NOT NULL,
    installed_at TEXT NOT NULL
)`

// Installed describes one downloaded tool.
type Installed struct {
	Name        Tool
	Path        string
	SourceURL   string
	SHA256      string
	Size        int64
	InstalledAt time.Time
}

// Registry records downloaded tools in a SQLite database.
type Registry struct {
	db   *sql.DB
	path string
}

// OpenRegistry opens or creates the registry in dir.
func OpenRegistry(dir string) (*Registry, error) {
	dbPath := filepath.Join(dir, RegistryFile)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, stmt := range []string{"PRAGMA busy_timeout = 5000", registrySchema} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init registry %s: %w", dbPath, err)
		}
	}
	return &Registry{db: db, path: dbPath}, nil
}

// Path returns the database file location.
func (r *Registry) Path() string { return r.path }

// Close closes the underlying database connection.
func (r *Registry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Record inserts or replaces an installed tool entry.
func (r *Registry) Record(ctx context.Context, entry Installed) error {
	if entry.InstalledAt.IsZero() {
		entry.InstalledAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tools (name, path, source_url, sha256, size, installed_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET
            path = excluded.path,
            source_url = excluded.source_url,
            sha256 = excluded.sha256,
            size = excluded.size,
            installed_at = excluded.installed_at`,
		string(entry.Name), entry.Path, entry.SourceURL, entry.SHA256, entry.Size,
		entry.InstalledAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record tool %s: %w", entry.Name, err)
	}
	return nil
}

// Lookup returns the entry for name; ok is false when it was never installed.
func (r *Registry) Lookup(ctx context.Context, name Tool) (entry Installed, ok bool, err error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT name, path, source_url, sha256, size, installed_at FROM tools WHERE name = ?`, string(name))
	entry, err = scanInstalled(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Installed{}, false, nil
	}
	if err != nil {
		return Installed{}, false, fmt.Errorf("lookup tool %s: %w", name, err)
	}
	return entry, true, nil
}

// List returns every installed tool ordered by name.
func (r *Registry) List(ctx context.Context) ([]Installed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, path, source_url, sha256, size, installed_at FROM tools ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defer rows.Close()
	var out []Installed
	for rows.Next() {
		entry, err := scanInstalled(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tool: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInstalled(s scanner) (Installed, error) {
	var (
		entry     Installed
		name      string
		installed string
	)
	if err := s.Scan(&name, &entry.Path, &entry.SourceURL, &entry.SHA256, &entry.Size, &installed); err != nil {
		return Installed{}, err
	}
	entry.Name = Tool(name)
	if ts, err := time.Parse(time.RFC3339Nano, installed); err == nil {
		entry.InstalledAt = ts
	}
	return entry, nil
}
