package schema

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Reference is one foreign key seen from the referenced table's side.
type Reference struct {
	Table      *TableMetadata // referencing (child) table
	ForeignKey ForeignKeyMetadata
}

// Graph is the foreign-key dependency graph of a set of tables. Nodes are
// tables; an edge runs from each referenced table to each referencing table.
type Graph struct {
	tables   map[string]*TableMetadata
	order    []string
	position map[string]int
	incoming map[string][]Reference
}

// NewGraph validates every foreign key against the given tables and orders
// them topologically, referenced tables first. Ties are broken by name so the
// order is stable. A cycle that is not a self-reference is an error.
func NewGraph(tables []*TableMetadata) (*Graph, error) {
	g := &Graph{
		tables:   make(map[string]*TableMetadata, len(tables)),
		position: make(map[string]int, len(tables)),
		incoming: make(map[string][]Reference, len(tables)),
	}
	for _, t := range tables {
		if _, dup := g.tables[t.Name]; dup {
			return nil, fmt.Errorf("table %s registered twice", t.Name)
		}
		g.tables[t.Name] = t
	}

	indegree := make(map[string]int, len(tables))
	children := make(map[string][]string, len(tables))
	for _, t := range tables {
		indegree[t.Name] += 0
		for _, fk := range t.ForeignKeys {
			if err := g.validateForeignKey(t, fk); err != nil {
				return nil, err
			}
			g.incoming[fk.ReferencedTable] = append(g.incoming[fk.ReferencedTable], Reference{Table: t, ForeignKey: fk})
			if fk.ReferencedTable == t.Name {
				continue
			}
			if !slices.Contains(children[fk.ReferencedTable], t.Name) {
				children[fk.ReferencedTable] = append(children[fk.ReferencedTable], t.Name)
				indegree[t.Name]++
			}
		}
	}

	// Kahn's algorithm.
	var ready []string
	for name, d := range indegree {
		if d == 0 {
			ready = append(ready, name)
		}
	}
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]
		g.position[name] = len(g.order)
		g.order = append(g.order, name)
		for _, child := range children[name] {
			indegree[child]--
			if indegree[child] == 0 {
				ready = append(ready, child)
			}
		}
	}
	if len(g.order) != len(tables) {
		var stuck []string
		for name, d := range indegree {
			if d > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("foreign key cycle between tables: %s", strings.Join(stuck, ", "))
	}

	// Leaves first: the deepest dependents are handled before shallower ones.
	for name, refs := range g.incoming {
		sort.SliceStable(refs, func(i, j int) bool {
			pi, pj := g.position[refs[i].Table.Name], g.position[refs[j].Table.Name]
			if pi != pj {
				return pi > pj
			}
			return refs[i].ForeignKey.Name < refs[j].ForeignKey.Name
		})
		g.incoming[name] = refs
	}

	return g, nil
}

func (g *Graph) validateForeignKey(t *TableMetadata, fk ForeignKeyMetadata) error {
	target, ok := g.tables[fk.ReferencedTable]
	if !ok {
		return fmt.Errorf("%s: references unknown table %s", fk.Name, fk.ReferencedTable)
	}
	if len(fk.Columns) != len(fk.ReferencedColumns) || len(fk.Columns) == 0 {
		return fmt.Errorf("%s: column count mismatch", fk.Name)
	}
	for i, col := range fk.Columns {
		local, ok := t.Column(col)
		if !ok {
			return fmt.Errorf("%s: unknown column %s.%s", fk.Name, t.Name, col)
		}
		ref, ok := target.Column(fk.ReferencedColumns[i])
		if !ok {
			return fmt.Errorf("%s: unknown column %s.%s", fk.Name, target.Name, fk.ReferencedColumns[i])
		}
		if local.SQLType != ref.SQLType {
			return fmt.Errorf("%s: type %s does not match referenced %s", fk.Name, local.SQLType, ref.SQLType)
		}
		if (fk.OnDelete == SetNull || fk.OnUpdate == SetNull) && !local.Nullable {
			return fmt.Errorf("%s: SET NULL on non-nullable column %s", fk.Name, col)
		}
	}
	if !referencesKey(target, fk.ReferencedColumns) {
		return fmt.Errorf("%s: referenced columns %v are not a key of %s", fk.Name, fk.ReferencedColumns, target.Name)
	}
	return nil
}

// referencesKey reports whether cols are the primary key or a unique set of t.
func referencesKey(t *TableMetadata, cols []string) bool {
	if slices.Equal(t.PrimaryKeyColumns(), cols) {
		return true
	}
	for _, set := range t.UniqueColumnSets() {
		if slices.Equal(set, cols) {
			return true
		}
	}
	return false
}

// Order returns table names with referenced tables before referencing ones.
func (g *Graph) Order() []string {
	return slices.Clone(g.order)
}

// Tables returns the table metadata in Order.
func (g *Graph) Tables() []*TableMetadata {
	out := make([]*TableMetadata, len(g.order))
	for i, name := range g.order {
		out[i] = g.tables[name]
	}
	return out
}

// Table looks up a table by name.
func (g *Graph) Table(name string) (*TableMetadata, bool) {
	t, ok := g.tables[name]
	return t, ok
}

// Referencing returns every foreign key that targets table, leaves first.
func (g *Graph) Referencing(table string) []Reference {
	return g.incoming[table]
}
