package db

import (
	"testing"
)

// NewTestVaultDB creates an in-memory vault database for testing.
// Migrations are applied and the database is closed via t.Cleanup.
func NewTestVaultDB(t testing.TB) *VaultDB {
	t.Helper()

	vdb, err := OpenVaultInMemory()
	if err != nil {
		t.Fatalf("create test vault db: %v", err)
	}

	t.Cleanup(func() {
		_ = vdb.Close()
	})

	return vdb
}
