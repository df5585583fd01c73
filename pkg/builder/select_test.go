package builder

import (
	"reflect"
	"testing"
	"time"

	"github.com/marshallshelly/conduit/pkg/schema"
)

type testEntry struct {
	ID        int64      `po:"id,primaryKey,bigint,identityByDefault"`
	User      string     `po:"user,notNull"`
	Body      string     `po:"body,notNull"`
	CreatedAt time.Time  `po:"created_at,notNull,default(CURRENT_TIMESTAMP)"`
	UpdatedAt *time.Time `po:"updated_at"`
}

func testTable(t *testing.T) *schema.TableMetadata {
	t.Helper()
	table, err := schema.NewParser().Parse(reflect.TypeOf(testEntry{}))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return table
}

func TestSelectQuery_ToSQL(t *testing.T) {
	table := testTable(t)

	tests := []struct {
		name       string
		query      *SelectQuery
		wantSQL    string
		wantArgLen int
	}{
		{
			name:    "simple select all",
			query:   Select(table),
			wantSQL: `SELECT * FROM "test_entry"`,
		},
		{
			name:    "select specific columns",
			query:   Select(table).Columns("id", "user"),
			wantSQL: `SELECT "id", "user" FROM "test_entry"`,
		},
		{
			name:       "select with WHERE",
			query:      Select(table).Where(Eq("user", "jake")),
			wantSQL:    `SELECT * FROM "test_entry" WHERE "user" = $1`,
			wantArgLen: 1,
		},
		{
			name:    "select with multiple ORDER BY",
			query:   Select(table).OrderByDesc("created_at").OrderByAsc("id"),
			wantSQL: `SELECT * FROM "test_entry" ORDER BY "created_at" DESC, "id" ASC`,
		},
		{
			name:    "select with LIMIT and OFFSET",
			query:   Select(table).Limit(20).Offset(40),
			wantSQL: `SELECT * FROM "test_entry" LIMIT 20 OFFSET 40`,
		},
		{
			name:    "zero offset is omitted",
			query:   Select(table).Limit(20).Offset(0),
			wantSQL: `SELECT * FROM "test_entry" LIMIT 20`,
		},
		{
			name:    "select with DISTINCT",
			query:   Select(table).Distinct().Columns("user"),
			wantSQL: `SELECT DISTINCT "user" FROM "test_entry"`,
		},
		{
			name:       "select with FOR UPDATE",
			query:      Select(table).Where(Eq("id", int64(1))).ForUpdate(),
			wantSQL:    `SELECT * FROM "test_entry" WHERE "id" = $1 FOR UPDATE`,
			wantArgLen: 1,
		},
		{
			name:       "count ignores ordering",
			query:      Count(table).Where(Eq("user", "jake")).OrderByAsc("id"),
			wantSQL:    `SELECT COUNT(*) FROM "test_entry" WHERE "user" = $1`,
			wantArgLen: 1,
		},
		{
			name:       "exists",
			query:      Exists(table).Where(Eq("id", int64(7))),
			wantSQL:    `SELECT EXISTS (SELECT 1 FROM "test_entry" WHERE "id" = $1)`,
			wantArgLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.query.ToSQL()
			if err != nil {
				t.Fatalf("ToSQL() error = %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("ToSQL() sql = %v, want %v", sql, tt.wantSQL)
			}
			if len(args) != tt.wantArgLen {
				t.Errorf("ToSQL() args length = %v, want %v", len(args), tt.wantArgLen)
			}
		})
	}
}

func TestSelectQuery_UnknownColumn(t *testing.T) {
	table := testTable(t)
	queries := []Query{
		Select(table).Columns("nope"),
		Select(table).Where(Eq("nope", 1)),
		Select(table).Where(Group(Eq("id", 1), Or(Eq("nope", 2)))),
		Select(table).OrderByAsc("nope"),
		Select(nil),
	}
	for i, q := range queries {
		if _, _, err := q.ToSQL(); err == nil {
			t.Errorf("query %d: expected error", i)
		}
	}
}

func TestInsertQuery_ToSQL(t *testing.T) {
	table := testTable(t)

	sql, args, err := Insert(table).
		Values(map[string]any{"body": "hi", "user": "jake"}).
		Returning("*").
		ToSQL()
	if err != nil {
		t.Fatalf("ToSQL() error = %v", err)
	}
	want := `INSERT INTO "test_entry" ("user", "body") VALUES ($1, $2) RETURNING *`
	if sql != want {
		t.Errorf("ToSQL() sql = %v, want %v", sql, want)
	}
	if len(args) != 2 || args[0] != "jake" || args[1] != "hi" {
		t.Errorf("args not in column order: %v", args)
	}

	sql, _, err = Insert(table).Returning("id").ToSQL()
	if err != nil {
		t.Fatalf("ToSQL() error = %v", err)
	}
	if sql != `INSERT INTO "test_entry" DEFAULT VALUES RETURNING "id"` {
		t.Errorf("unexpected default values sql %s", sql)
	}

	if _, _, err := Insert(table).Values(map[string]any{"nope": 1}).ToSQL(); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestUpdateQuery_ToSQL(t *testing.T) {
	table := testTable(t)

	sql, args, err := Update(table).
		SetMap(map[string]any{"updated_at": time.Unix(0, 0), "body": "edited"}).
		Where(Eq("id", int64(3))).
		Returning("*").
		ToSQL()
	if err != nil {
		t.Fatalf("ToSQL() error = %v", err)
	}
	want := `UPDATE "test_entry" SET "body" = $1, "updated_at" = $2 WHERE "id" = $3 RETURNING *`
	if sql != want {
		t.Errorf("ToSQL() sql = %v, want %v", sql, want)
	}
	if len(args) != 3 {
		t.Errorf("expected 3 args, got %d", len(args))
	}

	if _, _, err := Update(table).Where(Eq("id", 1)).ToSQL(); err == nil {
		t.Error("expected error for empty SET")
	}
}

func TestDeleteQuery_ToSQL(t *testing.T) {
	table := testTable(t)

	sql, args, err := Delete(table).Where(Eq("id", int64(3)), Eq("user", "jake")).ToSQL()
	if err != nil {
		t.Fatalf("ToSQL() error = %v", err)
	}
	want := `DELETE FROM "test_entry" WHERE "id" = $1 AND "user" = $2`
	if sql != want {
		t.Errorf("ToSQL() sql = %v, want %v", sql, want)
	}
	if len(args) != 2 {
		t.Errorf("expected 2 args, got %d", len(args))
	}

	sql, _, _ = Delete(table).Returning("id").ToSQL()
	if sql != `DELETE FROM "test_entry" RETURNING "id"` {
		t.Errorf("unexpected sql %s", sql)
	}
}
