package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/taskvault/taskvault/internal/db/driver"
)

// schemaVault is the migration prefix for the vault schema.
const schemaVault = "vault"

// VaultDB is the vault database holding projects, epics, stories,
// verifications, and archives.
type VaultDB struct {
	*DB
}

// DefaultPath returns the default vault database path (~/.taskvault/vault.db).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".taskvault", "vault.db"), nil
}

// OpenVault opens the vault database at the given path using SQLite
// and applies pending migrations.
func OpenVault(path string) (*VaultDB, error) {
	d, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(schemaVault); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("migrate vault db: %w", err)
	}
	return &VaultDB{DB: d}, nil
}

// OpenVaultDSN opens the vault database with an explicit dialect and DSN.
func OpenVaultDSN(dsn string, dialect driver.Dialect) (*VaultDB, error) {
	d, err := OpenWithDialect(dsn, dialect)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(schemaVault); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("migrate vault db: %w", err)
	}
	return &VaultDB{DB: d}, nil
}

// OpenVaultInMemory opens an in-memory vault database with migrations
// applied. Intended for tests.
func OpenVaultInMemory() (*VaultDB, error) {
	d, err := OpenInMemory()
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(schemaVault); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("migrate vault db: %w", err)
	}
	return &VaultDB{DB: d}, nil
}

// Project represents a project registered in the vault.
type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaveProject creates or updates a project.
func (v *VaultDB) SaveProject(p *Project) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := v.Exec(`
		INSERT INTO projects (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.CreatedAt.Format(time.RFC3339), now)
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID. Returns nil if not found.
func (v *VaultDB) GetProject(id string) (*Project, error) {
	row := v.QueryRow(`
		SELECT id, name, created_at, updated_at
		FROM projects WHERE id = ?
	`, id)

	var p Project
	var createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.Name, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get project %s: %w", id, err)
	}
	p.CreatedAt = parseDBTime(createdAt)
	p.UpdatedAt = parseDBTime(updatedAt)
	return &p, nil
}

// ListProjects returns all registered projects, newest first.
func (v *VaultDB) ListProjects() ([]Project, error) {
	rows, err := v.Query(`
		SELECT id, name, created_at, updated_at
		FROM projects ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []Project
	for rows.Next() {
		var p Project
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.CreatedAt = parseDBTime(createdAt)
		p.UpdatedAt = parseDBTime(updatedAt)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

// DeleteProject removes a project and everything under it.
func (v *VaultDB) DeleteProject(id string) error {
	if _, err := v.Exec("DELETE FROM projects WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// parseDBTime parses timestamps as stored by either dialect.
func parseDBTime(s string) time.Time {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts
	}
	if ts, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return ts
	}
	return time.Time{}
}
