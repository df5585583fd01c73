// Package schema turns tagged Go structs into table metadata and models the
// foreign-key dependency graph between tables.
package schema

import (
	"reflect"
	"slices"
)

// ReferenceAction is the action taken on referencing rows when a referenced
// row is deleted or its key changes.
type ReferenceAction string

const (
	NoAction   ReferenceAction = "NO ACTION"
	Restrict   ReferenceAction = "RESTRICT"
	Cascade    ReferenceAction = "CASCADE"
	SetNull    ReferenceAction = "SET NULL"
	SetDefault ReferenceAction = "SET DEFAULT"
)

// IdentityGeneration selects GENERATED ALWAYS or GENERATED BY DEFAULT.
type IdentityGeneration string

const (
	IdentityAlways    IdentityGeneration = "ALWAYS"
	IdentityByDefault IdentityGeneration = "BY DEFAULT"
)

// ConstraintType identifies a table-level constraint.
type ConstraintType string

const (
	UniqueConstraint ConstraintType = "UNIQUE"
	CheckConstraint  ConstraintType = "CHECK"
)

// TableMetadata describes one table.
type TableMetadata struct {
	Name        string
	GoType      reflect.Type
	Columns     []ColumnMetadata
	PrimaryKey  *PrimaryKeyMetadata
	ForeignKeys []ForeignKeyMetadata
	Indexes     []IndexMetadata
	Constraints []ConstraintMetadata
}

// ColumnMetadata describes one column and the struct field it maps to.
type ColumnMetadata struct {
	Name     string
	GoField  string
	GoType   reflect.Type
	SQLType  string
	Nullable bool
	Default  *string
	Unique   bool
	Identity *IdentityColumn
	Position int
}

// IdentityColumn marks a column whose value is generated by the store.
type IdentityColumn struct {
	Generation IdentityGeneration
}

// PrimaryKeyMetadata lists the primary key columns in declaration order.
type PrimaryKeyMetadata struct {
	Name    string
	Columns []string
}

// ForeignKeyMetadata describes a foreign key from Columns to
// ReferencedTable(ReferencedColumns).
type ForeignKeyMetadata struct {
	Name              string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	OnDelete          ReferenceAction
	OnUpdate          ReferenceAction
}

// IndexMetadata describes a secondary index.
type IndexMetadata struct {
	Name    string
	Columns []string
	Unique  bool
}

// ConstraintMetadata describes a UNIQUE or CHECK constraint.
type ConstraintMetadata struct {
	Name       string
	Type       ConstraintType
	Columns    []string
	Expression string
}

// Column returns the column with the given name.
func (t *TableMetadata) Column(name string) (*ColumnMetadata, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// ColumnNames returns all column names in declaration order.
func (t *TableMetadata) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// PrimaryKeyColumns returns the primary key columns, or nil if the table has none.
func (t *TableMetadata) PrimaryKeyColumns() []string {
	if t.PrimaryKey == nil {
		return nil
	}
	return t.PrimaryKey.Columns
}

// IsPrimaryKey reports whether column is part of the primary key.
func (t *TableMetadata) IsPrimaryKey(column string) bool {
	return slices.Contains(t.PrimaryKeyColumns(), column)
}

// UniqueColumnSets returns every column set that must be unique apart from
// the primary key: single unique columns and multi-column UNIQUE constraints.
func (t *TableMetadata) UniqueColumnSets() [][]string {
	var sets [][]string
	for _, col := range t.Columns {
		if col.Unique && !t.IsPrimaryKey(col.Name) {
			sets = append(sets, []string{col.Name})
		}
	}
	for _, c := range t.Constraints {
		if c.Type == UniqueConstraint && len(c.Columns) > 0 {
			sets = append(sets, c.Columns)
		}
	}
	return sets
}
