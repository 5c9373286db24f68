// Package testutil opens the PostgreSQL database used by integration tests.
package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/mroshb/reward_engine/internal/database"
	"gorm.io/gorm"
)

// DSNEnv names the variable holding the test database DSN.
const DSNEnv = "TEST_DATABASE_DSN"

// NewDB returns a migrated, empty database or skips the test when
// TEST_DATABASE_DSN is not set. Every table is truncated, so the database
// must be dedicated to tests.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set, skipping integration test", DSNEnv)
	}

	db, err := database.Open(dsn, false)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	if err := Truncate(db); err != nil {
		t.Fatalf("truncate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// Truncate empties every migrated table and resets identities.
func Truncate(db *gorm.DB) error {
	var tables []string
	for _, m := range database.Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return fmt.Errorf("parse %T: %w", m, err)
		}
		tables = append(tables, stmt.Schema.Table)
	}
	return db.Exec("TRUNCATE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE").Error
}

