// Package migration plans, writes and applies the DDL for the schema graph.
//
// The planner creates tables parents first and drops them children first;
// foreign keys carry their ON DELETE / ON UPDATE actions so PostgreSQL
// cascades natively.
package migration

import (
	"slices"
	"time"

	"github.com/marshallshelly/conduit/pkg/schema"
)

// Migration represents a database migration.
type Migration struct {
	Version   string    // Version/timestamp (e.g., "20240101120000")
	Name      string    // Migration name (e.g., "create_users_table")
	UpSQL     string    // SQL for applying the migration
	DownSQL   string    // SQL for rolling back the migration
	AppliedAt time.Time // When the migration was applied
}

// MigrationFile represents a migration file on disk.
type MigrationFile struct {
	Version  string // Version/timestamp
	Name     string // Migration name
	UpPath   string // Path to .up.sql file
	DownPath string // Path to .down.sql file
}

// SchemaDiff lists the tables a migration creates, parents first.
type SchemaDiff struct {
	TablesAdded []*schema.TableMetadata
}

// HasChanges returns true if there are any schema differences.
func (d *SchemaDiff) HasChanges() bool {
	return len(d.TablesAdded) > 0
}

// Diff returns the tables of g missing from existing, in creation order.
func Diff(g *schema.Graph, existing []string) *SchemaDiff {
	diff := &SchemaDiff{}
	for _, t := range g.Tables() {
		if !slices.Contains(existing, t.Name) {
			diff.TablesAdded = append(diff.TablesAdded, t)
		}
	}
	return diff
}

// MigrationStatus represents the status of a migration.
type MigrationStatus string

const (
	// StatusPending means the migration has not been applied.
	StatusPending MigrationStatus = "pending"
	// StatusApplied means the migration has been applied.
	StatusApplied MigrationStatus = "applied"
	// StatusFailed means the migration failed to apply.
	StatusFailed MigrationStatus = "failed"
)

// MigrationRecord represents a migration in the tracking table.
type MigrationRecord struct {
	Version   string          `json:"version"`
	Name      string          `json:"name"`
	Status    MigrationStatus `json:"status"`
	AppliedAt *time.Time      `json:"applied_at,omitempty"`
	Error     *string         `json:"error,omitempty"`
}

// GenerateVersion generates a timestamp-based version string.
// Format: YYYYMMDDHHmmss (e.g., "20240101120000")
func GenerateVersion() string {
	return time.Now().UTC().Format("20060102150405")
}

// GenerateFileName generates a migration filename.
// Format: {version}_{name}.{up|down}.sql
func GenerateFileName(version, name, direction string) string {
	return version + "_" + name + "." + direction + ".sql"
}
