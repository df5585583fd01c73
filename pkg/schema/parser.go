package schema

import (
	"fmt"
	"reflect"
	"strings"
)

const (
	// StructTagKey is the key used in struct tags (e.g., `po:"..."`).
	StructTagKey = "po"
)

// TableNamer lets a model choose its own table name.
type TableNamer interface {
	TableName() string
}

// Parser parses struct definitions to extract table metadata.
type Parser struct {
	typeMapper *TypeMapper
	cache      map[reflect.Type]*TableMetadata
}

// NewParser creates a new Parser instance.
func NewParser() *Parser {
	return &Parser{
		typeMapper: DefaultTypeMapper,
		cache:      make(map[reflect.Type]*TableMetadata),
	}
}

// Struct name → table name, populated by RegisterTableName.
var customTableNames = make(map[string]string)

// RegisterTableName registers a custom table name for a struct type.
//
//	func init() {
//	    schema.RegisterTableName("User", "users")
//	}
func RegisterTableName(structName, tableName string) {
	customTableNames[structName] = tableName
}

// Parse extracts TableMetadata from a Go struct type.
func (p *Parser) Parse(modelType reflect.Type) (*TableMetadata, error) {
	for modelType.Kind() == reflect.Pointer {
		modelType = modelType.Elem()
	}
	if modelType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model must be a struct, got %s", modelType.Kind())
	}
	if cached, ok := p.cache[modelType]; ok {
		return cached, nil
	}

	table := &TableMetadata{
		Name:        p.extractTableName(modelType),
		GoType:      modelType,
		Columns:     make([]ColumnMetadata, 0, modelType.NumField()),
		ForeignKeys: make([]ForeignKeyMetadata, 0),
		Indexes:     make([]IndexMetadata, 0),
		Constraints: make([]ConstraintMetadata, 0),
	}

	for i := 0; i < modelType.NumField(); i++ {
		field := modelType.Field(i)
		if !field.IsExported() {
			continue
		}
		tagValue := field.Tag.Get(StructTagKey)
		if tagValue == "" || tagValue == "-" {
			continue
		}
		opts, err := p.parseTag(tagValue)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tag for field %s: %w", field.Name, err)
		}

		column, err := p.createColumnMetadata(field, opts, i)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		if _, dup := table.Column(column.Name); dup {
			return nil, fmt.Errorf("duplicate column %s in %s", column.Name, table.Name)
		}

		if opts.Has("primaryKey") {
			if table.PrimaryKey == nil {
				table.PrimaryKey = &PrimaryKeyMetadata{
					Name:    table.Name + "_pkey",
					Columns: []string{column.Name},
				}
			} else {
				table.PrimaryKey.Columns = append(table.PrimaryKey.Columns, column.Name)
			}
		}

		if opts.Has("index") {
			table.Indexes = append(table.Indexes, IndexMetadata{
				Name:    fmt.Sprintf("idx_%s_%s", table.Name, column.Name),
				Columns: []string{column.Name},
			})
		}

		fk, err := p.parseForeignKey(table.Name, column.Name, opts)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		if fk != nil {
			table.ForeignKeys = append(table.ForeignKeys, *fk)
		}

		table.Columns = append(table.Columns, column)
	}

	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("model %s has no %s-tagged fields", modelType.Name(), StructTagKey)
	}

	p.cache[modelType] = table
	return table, nil
}

// extractTableName picks the table name for a struct type.
// Priority order:
// 1. RegisterTableName
// 2. a TableName() method on the model
// 3. snake_case of the struct name
func (p *Parser) extractTableName(modelType reflect.Type) string {
	structName := modelType.Name()
	if tableName, ok := customTableNames[structName]; ok {
		return tableName
	}
	if namer, ok := reflect.New(modelType).Interface().(TableNamer); ok {
		if name := namer.TableName(); name != "" {
			return name
		}
	}
	return toSnakeCase(structName)
}

// createColumnMetadata creates a ColumnMetadata from a struct field.
func (p *Parser) createColumnMetadata(field reflect.StructField, opts *TagOptions, position int) (ColumnMetadata, error) {
	column := ColumnMetadata{
		Name:     opts.Name,
		GoField:  field.Name,
		GoType:   field.Type,
		Position: position,
	}
	if column.Name == "" {
		column.Name = toSnakeCase(field.Name)
	}

	if sqlType := opts.GetSQLType(); sqlType != "" {
		column.SQLType = sqlType
	} else {
		column.SQLType = p.typeMapper.GoTypeToPostgreSQL(field.Type)
	}
	if column.SQLType == "" {
		return column, fmt.Errorf("no SQL type for Go type %s", field.Type)
	}

	column.Nullable = !opts.Has("notNull") && !opts.Has("primaryKey")
	if IsNullable(field.Type) {
		column.Nullable = true
	}
	if opts.Has("primaryKey") && column.Nullable {
		return column, fmt.Errorf("primary key column %s cannot be a nullable type", column.Name)
	}

	if opts.Has("default") {
		defaultVal := opts.Get("default")
		if err := ValidateDefaultValue(defaultVal); err != nil {
			return column, err
		}
		column.Default = &defaultVal
	}

	column.Unique = opts.Has("unique")

	if opts.Has("identity") || opts.Has("identityAlways") {
		column.Identity = &IdentityColumn{Generation: IdentityAlways}
	} else if opts.Has("identityByDefault") {
		column.Identity = &IdentityColumn{Generation: IdentityByDefault}
	}

	return column, nil
}

// parseForeignKey reads fk(table.column), onDelete(...) and onUpdate(...).
func (p *Parser) parseForeignKey(tableName, columnName string, opts *TagOptions) (*ForeignKeyMetadata, error) {
	fkStr := opts.Get("fk")
	if fkStr == "" {
		if opts.Has("onDelete") || opts.Has("onUpdate") {
			return nil, fmt.Errorf("onDelete/onUpdate on %s without fk", columnName)
		}
		return nil, nil
	}

	var refTable, refColumn string
	if before, after, ok := strings.Cut(fkStr, "."); ok {
		refTable, refColumn = before, after
	} else if idx := strings.Index(fkStr, "("); idx > 0 && strings.HasSuffix(fkStr, ")") {
		refTable, refColumn = fkStr[:idx], fkStr[idx+1:len(fkStr)-1]
	}
	if refTable == "" || refColumn == "" {
		return nil, fmt.Errorf("invalid fk reference %q, want table.column", fkStr)
	}

	onDelete, err := parseReferenceAction(opts.Get("onDelete"))
	if err != nil {
		return nil, err
	}
	onUpdate, err := parseReferenceAction(opts.Get("onUpdate"))
	if err != nil {
		return nil, err
	}

	return &ForeignKeyMetadata{
		Name:              fmt.Sprintf("fk_%s_%s_%s", tableName, columnName, refTable),
		Columns:           []string{columnName},
		ReferencedTable:   refTable,
		ReferencedColumns: []string{refColumn},
		OnDelete:          onDelete,
		OnUpdate:          onUpdate,
	}, nil
}

// TagOptions represents parsed tag options.
type TagOptions struct {
	Name    string            // Column name (first element)
	Options map[string]string // Other options
}

// parseTag parses a struct tag value into TagOptions.
// Format: "column_name,option1,option2(value),option3:value"
func (p *Parser) parseTag(tag string) (*TagOptions, error) {
	parts := splitTag(tag)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty tag value")
	}
	opts := &TagOptions{
		Name:    parts[0],
		Options: make(map[string]string),
	}
	for _, opt := range parts[1:] {
		if opt == "" {
			continue
		}
		if idx := strings.Index(opt, "("); idx != -1 {
			if !strings.HasSuffix(opt, ")") {
				return nil, fmt.Errorf("invalid option format: %s", opt)
			}
			opts.Options[opt[:idx]] = opt[idx+1 : len(opt)-1]
		} else if key, value, ok := strings.Cut(opt, ":"); ok {
			opts.Options[key] = value
		} else {
			opts.Options[opt] = ""
		}
	}
	return opts, nil
}

// Has checks if an option exists.
func (t *TagOptions) Has(key string) bool {
	_, ok := t.Options[key]
	return ok
}

// Get returns the value of an option.
func (t *TagOptions) Get(key string) string {
	return t.Options[key]
}

// GetSQLType returns the SQL type named in the tag options, if any.
func (t *TagOptions) GetSQLType() string {
	pgTypes := []string{
		"uuid", "varchar", "text", "char",
		"smallint", "integer", "bigint", "serial", "bigserial",
		"numeric", "decimal", "real",
		"boolean",
		"date", "timestamp", "timestamptz",
		"json", "jsonb",
		"bytea",
	}
	for _, pgType := range pgTypes {
		if t.Has(pgType) {
			if value := t.Get(pgType); value != "" {
				return fmt.Sprintf("%s(%s)", pgType, value)
			}
			return pgType
		}
	}
	return ""
}

// splitTag splits a tag value by commas, handling nested parentheses.
func splitTag(tag string) []string {
	var parts []string
	var current strings.Builder
	depth := 0
	for _, ch := range tag {
		switch ch {
		case '(':
			depth++
			current.WriteRune(ch)
		case ')':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(current.String()))
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, strings.TrimSpace(current.String()))
	}
	return parts
}

// toSnakeCase converts a string from PascalCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, ch := range s {
		if i > 0 && ch >= 'A' && ch <= 'Z' {
			result.WriteRune('_')
		}
		result.WriteRune(ch)
	}
	return strings.ToLower(result.String())
}

func parseReferenceAction(action string) (ReferenceAction, error) {
	switch strings.ToUpper(strings.TrimSpace(action)) {
	case "", "NOACTION", "NO ACTION":
		return NoAction, nil
	case "CASCADE":
		return Cascade, nil
	case "RESTRICT":
		return Restrict, nil
	case "SETNULL", "SET NULL":
		return SetNull, nil
	case "SETDEFAULT", "SET DEFAULT":
		return SetDefault, nil
	default:
		return NoAction, fmt.Errorf("unknown reference action %q", action)
	}
}
