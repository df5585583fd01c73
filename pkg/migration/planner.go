package migration

import (
	"fmt"
	"slices"
	"strings"

	"github.com/marshallshelly/conduit/pkg/builder"
	"github.com/marshallshelly/conduit/pkg/schema"
)

// PlannerOptions configures migration generation behavior.
type PlannerOptions struct {
	// IfNotExists adds IF NOT EXISTS to CREATE TABLE and CREATE INDEX.
	IfNotExists bool
}

// Planner generates DDL for tables.
type Planner struct {
	options PlannerOptions
}

// NewPlanner creates a planner with IfNotExists enabled.
func NewPlanner() *Planner {
	return &Planner{options: PlannerOptions{IfNotExists: true}}
}

// NewPlannerWithOptions creates a new migration planner with custom options.
func NewPlannerWithOptions(opts PlannerOptions) *Planner {
	return &Planner{options: opts}
}

// GenerateMigration returns the SQL creating diff's tables in order and the
// SQL dropping them in reverse order.
func (p *Planner) GenerateMigration(diff *SchemaDiff) (upSQL, downSQL string) {
	var up, down []string
	for _, table := range diff.TablesAdded {
		up = append(up, p.generateCreateTable(table))
	}
	for _, table := range slices.Backward(diff.TablesAdded) {
		down = append(down, p.generateDropTable(table.Name))
	}
	return strings.Join(up, "\n\n") + "\n", strings.Join(down, "\n") + "\n"
}

// GenerateSchema returns the DDL for every table of g.
func (p *Planner) GenerateSchema(g *schema.Graph) (upSQL, downSQL string) {
	return p.GenerateMigration(&SchemaDiff{TablesAdded: g.Tables()})
}

func (p *Planner) generateCreateTable(table *schema.TableMetadata) string {
	var parts []string

	var singlePK string
	if table.PrimaryKey != nil && len(table.PrimaryKey.Columns) == 1 {
		singlePK = table.PrimaryKey.Columns[0]
	}

	for _, col := range table.Columns {
		def := p.generateColumnDefinition(col)
		if col.Name == singlePK {
			def += " PRIMARY KEY"
		}
		parts = append(parts, "    "+def)
	}

	if table.PrimaryKey != nil && len(table.PrimaryKey.Columns) > 1 {
		parts = append(parts, fmt.Sprintf("    CONSTRAINT %s PRIMARY KEY (%s)",
			builder.QuoteIdent(table.PrimaryKey.Name), builder.QuoteIdents(table.PrimaryKey.Columns)))
	}

	for _, fk := range table.ForeignKeys {
		parts = append(parts, "    "+p.generateForeignKeyDefinition(fk))
	}

	for _, c := range table.Constraints {
		switch c.Type {
		case schema.CheckConstraint:
			parts = append(parts, fmt.Sprintf("    CONSTRAINT %s CHECK (%s)", builder.QuoteIdent(c.Name), c.Expression))
		case schema.UniqueConstraint:
			// Single-column UNIQUE is declared inline.
			if len(c.Columns) > 1 {
				parts = append(parts, fmt.Sprintf("    CONSTRAINT %s UNIQUE (%s)",
					builder.QuoteIdent(c.Name), builder.QuoteIdents(c.Columns)))
			}
		}
	}

	create := "CREATE TABLE"
	if p.options.IfNotExists {
		create = "CREATE TABLE IF NOT EXISTS"
	}
	sql := fmt.Sprintf("%s %s (\n%s\n);", create, builder.QuoteIdent(table.Name), strings.Join(parts, ",\n"))

	for _, idx := range table.Indexes {
		sql += "\n" + p.generateCreateIndex(table.Name, idx)
	}
	return sql
}

func (p *Planner) generateColumnDefinition(col schema.ColumnMetadata) string {
	parts := []string{builder.QuoteIdent(col.Name), col.SQLType}

	// Identity columns are implicitly NOT NULL.
	if col.Identity != nil {
		parts = append(parts, fmt.Sprintf("GENERATED %s AS IDENTITY", col.Identity.Generation))
		return strings.Join(parts, " ")
	}

	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.Default != nil {
		parts = append(parts, "DEFAULT", *col.Default)
	}
	if col.Unique {
		parts = append(parts, "UNIQUE")
	}
	return strings.Join(parts, " ")
}

func (p *Planner) generateForeignKeyDefinition(fk schema.ForeignKeyMetadata) string {
	parts := []string{
		fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s)", builder.QuoteIdent(fk.Name), builder.QuoteIdents(fk.Columns)),
		fmt.Sprintf("REFERENCES %s (%s)", builder.QuoteIdent(fk.ReferencedTable), builder.QuoteIdents(fk.ReferencedColumns)),
	}
	if fk.OnDelete != schema.NoAction && fk.OnDelete != "" {
		parts = append(parts, "ON DELETE "+string(fk.OnDelete))
	}
	if fk.OnUpdate != schema.NoAction && fk.OnUpdate != "" {
		parts = append(parts, "ON UPDATE "+string(fk.OnUpdate))
	}
	return strings.Join(parts, " ")
}

func (p *Planner) generateCreateIndex(tableName string, idx schema.IndexMetadata) string {
	parts := []string{"CREATE INDEX"}
	if idx.Unique {
		parts = []string{"CREATE UNIQUE INDEX"}
	}
	if p.options.IfNotExists {
		parts = append(parts, "IF NOT EXISTS")
	}
	parts = append(parts, builder.QuoteIdent(idx.Name), "ON", builder.QuoteIdent(tableName),
		"("+builder.QuoteIdents(idx.Columns)+")")
	return strings.Join(parts, " ") + ";"
}

func (p *Planner) generateDropTable(tableName string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", builder.QuoteIdent(tableName))
}
