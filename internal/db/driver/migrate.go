package driver

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// applyPending applies schema files under dir whose names start with
// schemaType and whose version has not been recorded in _migrations.
// Each file runs in its own transaction. The caller supplies the
// dialect-appropriate INSERT for recording a version.
func applyPending(ctx context.Context, db *sql.DB, schemaFS SchemaFS, dir, schemaType, recordStmt string) error {
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	entries, err := schemaFS.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read schema dir %s: %w", dir, err)
	}

	prefix := schemaType + "_"
	var migrations []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".sql") {
			migrations = append(migrations, e.Name())
		}
	}
	sort.Strings(migrations)

	for _, name := range migrations {
		version := migrationVersion(name, prefix)
		if applied[version] {
			continue
		}

		content, err := schemaFS.ReadFile(dir + "/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := tx.ExecContext(ctx, recordStmt, version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}

	return nil
}

// appliedVersions returns the set of migration versions already recorded.
func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	applied := make(map[int]bool)
	rows, err := db.QueryContext(ctx, "SELECT version FROM _migrations")
	if err != nil {
		return nil, fmt.Errorf("query migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migrations: %w", err)
	}
	return applied, nil
}

// migrationVersion extracts the version number from a migration filename.
// e.g., "project_001.sql" with prefix "project_" returns 1.
func migrationVersion(name, prefix string) int {
	s := strings.TrimPrefix(name, prefix)
	s = strings.TrimSuffix(s, ".sql")
	var v int
	_, _ = fmt.Sscanf(s, "%d", &v)
	return v
}
