package schema

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, p *Parser, models ...any) []*TableMetadata {
	t.Helper()
	var tables []*TableMetadata
	for _, m := range models {
		table, err := p.Parse(reflect.TypeOf(m))
		require.NoError(t, err)
		tables = append(tables, table)
	}
	return tables
}

func TestNewGraph_Order(t *testing.T) {
	p := NewParser()
	// Children listed before parents on purpose.
	tables := mustParse(t, p, TestMembership{}, TestPost{}, TestAccount{})

	g, err := NewGraph(tables)
	require.NoError(t, err)

	order := g.Order()
	require.Len(t, order, 3)
	assert.Equal(t, "test_account", order[0])
	assert.ElementsMatch(t, []string{"test_membership", "test_post"}, order[1:])

	for i, tbl := range g.Tables() {
		assert.Equal(t, order[i], tbl.Name)
	}
}

func TestGraph_Referencing(t *testing.T) {
	g, err := NewGraph(mustParse(t, NewParser(), TestAccount{}, TestPost{}, TestMembership{}))
	require.NoError(t, err)

	refs := g.Referencing("test_account")
	require.Len(t, refs, 2)
	for _, ref := range refs {
		assert.Equal(t, "test_account", ref.ForeignKey.ReferencedTable)
	}
	assert.Empty(t, g.Referencing("test_post"))
	assert.ElementsMatch(t, []string{"test_post", "test_membership"},
		[]string{refs[0].Table.Name, refs[1].Table.Name})
}

type chainA struct {
	ID string `po:"id,primaryKey"`
}

type chainB struct {
	ID string `po:"id,primaryKey"`
	A  string `po:"a,notNull,fk(chain_a.id),onDelete(cascade)"`
}

type chainC struct {
	ID string `po:"id,primaryKey"`
	B  string `po:"b,notNull,fk(chain_b.id),onDelete(cascade)"`
	A  string `po:"a,notNull,fk(chain_a.id),onDelete(cascade)"`
}

func TestGraph_LeavesFirst(t *testing.T) {
	g, err := NewGraph(mustParse(t, NewParser(), chainC{}, chainA{}, chainB{}))
	require.NoError(t, err)

	assert.Equal(t, []string{"chain_a", "chain_b", "chain_c"}, g.Order())

	refs := g.Referencing("chain_a")
	require.Len(t, refs, 2)
	assert.Equal(t, "chain_c", refs[0].Table.Name, "deepest dependent first")
	assert.Equal(t, "chain_b", refs[1].Table.Name)

	refs = g.Referencing("chain_b")
	require.Len(t, refs, 1)
	assert.Equal(t, "chain_c", refs[0].Table.Name)
}

type cycleX struct {
	ID string `po:"id,primaryKey"`
	Y  string `po:"y,fk(cycle_y.id)"`
}

type cycleY struct {
	ID string `po:"id,primaryKey"`
	X  string `po:"x,fk(cycle_x.id)"`
}

type selfRef struct {
	ID     string  `po:"id,primaryKey"`
	Parent *string `po:"parent,fk(self_ref.id),onDelete(setnull)"`
}

func TestNewGraph_Errors(t *testing.T) {
	p := NewParser()

	t.Run("cycle", func(t *testing.T) {
		_, err := NewGraph(mustParse(t, p, cycleX{}, cycleY{}))
		assert.ErrorContains(t, err, "cycle")
	})

	t.Run("self reference is allowed", func(t *testing.T) {
		g, err := NewGraph(mustParse(t, p, selfRef{}))
		require.NoError(t, err)
		assert.Len(t, g.Referencing("self_ref"), 1)
	})

	t.Run("unknown table", func(t *testing.T) {
		_, err := NewGraph(mustParse(t, p, TestPost{}))
		assert.ErrorContains(t, err, "unknown table")
	})

	t.Run("referenced column is not a key", func(t *testing.T) {
		type loose struct {
			ID    string `po:"id,primaryKey"`
			Email string `po:"email,notNull,fk(test_account.bio)"`
		}
		_, err := NewGraph(mustParse(t, p, TestAccount{}, loose{}))
		assert.Error(t, err)
	})

	t.Run("duplicate table", func(t *testing.T) {
		tables := mustParse(t, p, TestAccount{})
		_, err := NewGraph(append(tables, tables[0]))
		assert.ErrorContains(t, err, "twice")
	})
}
