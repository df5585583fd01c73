package schema

import (
	"database/sql"
	"reflect"
	"time"
)

// TypeMapper handles mapping between Go types and PostgreSQL types.
type TypeMapper struct {
	customMappings map[reflect.Type]string
}

// NewTypeMapper creates a new TypeMapper instance.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{
		customMappings: make(map[reflect.Type]string),
	}
}

// RegisterType registers a custom type mapping.
func (tm *TypeMapper) RegisterType(goType reflect.Type, pgType string) {
	tm.customMappings[goType] = pgType
}

// GoTypeToPostgreSQL maps a Go type to its PostgreSQL equivalent.
// Returns empty string when the type is unknown and the tag must name one.
func (tm *TypeMapper) GoTypeToPostgreSQL(t reflect.Type) string {
	if pgType, ok := tm.customMappings[t]; ok {
		return pgType
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t {
	case reflect.TypeFor[time.Time](), reflect.TypeFor[sql.NullTime]():
		return "timestamp with time zone"
	case reflect.TypeFor[sql.NullString]():
		return "text"
	case reflect.TypeFor[sql.NullInt64]():
		return "bigint"
	case reflect.TypeFor[sql.NullInt32]():
		return "integer"
	case reflect.TypeFor[sql.NullBool]():
		return "boolean"
	case reflect.TypeFor[sql.NullFloat64]():
		return "double precision"
	}

	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int8, reflect.Int16, reflect.Uint8:
		return "smallint"
	case reflect.Int32, reflect.Int, reflect.Uint16:
		return "integer"
	case reflect.Int64, reflect.Uint32, reflect.Uint64:
		return "bigint"
	case reflect.Float32:
		return "real"
	case reflect.Float64:
		return "double precision"
	case reflect.String:
		return "text"
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "bytea"
		}
		if elem := tm.GoTypeToPostgreSQL(t.Elem()); elem != "" {
			return elem + "[]"
		}
	}
	return ""
}

// IsNullable checks if a Go type can hold NULL.
func IsNullable(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		return true
	}
	switch t {
	case reflect.TypeFor[sql.NullString](),
		reflect.TypeFor[sql.NullInt64](),
		reflect.TypeFor[sql.NullInt32](),
		reflect.TypeFor[sql.NullFloat64](),
		reflect.TypeFor[sql.NullBool](),
		reflect.TypeFor[sql.NullTime]():
		return true
	}
	return false
}

// DefaultTypeMapper is the global type mapper instance.
var DefaultTypeMapper = NewTypeMapper()
