package schema

import (
	"reflect"
	"testing"
	"time"
)

type TestAccount struct {
	Handle  string  `po:"handle,primaryKey"`
	Email   string  `po:"email,varchar(320),unique,notNull"`
	Bio     *string `po:"bio"`
	Balance float64 `po:"balance,numeric(8,2),default(0),notNull"`
	Ignored string
}

type TestPost struct {
	ID        int64     `po:"id,primaryKey,bigint,identityByDefault"`
	Owner     string    `po:"owner,notNull,index,fk(test_account.handle),onDelete(cascade),onUpdate:cascade"`
	CreatedAt time.Time `po:"created_at,notNull,default(CURRENT_TIMESTAMP)"`
}

type TestMembership struct {
	Group  string `po:"group_name,primaryKey"`
	Member string `po:"member,primaryKey,fk(test_account.handle)"`
}

type namedModel struct {
	Key string `po:"key,primaryKey"`
}

func (namedModel) TableName() string { return "custom_named" }

func TestParser_Parse(t *testing.T) {
	parser := NewParser()

	t.Run("columns and primary key", func(t *testing.T) {
		table, err := parser.Parse(reflect.TypeOf(TestAccount{}))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if table.Name != "test_account" {
			t.Errorf("expected table name 'test_account', got '%s'", table.Name)
		}
		if len(table.Columns) != 4 {
			t.Fatalf("expected 4 columns, got %d", len(table.Columns))
		}
		if got := table.PrimaryKeyColumns(); len(got) != 1 || got[0] != "handle" {
			t.Errorf("expected primary key [handle], got %v", got)
		}

		handle, _ := table.Column("handle")
		if handle.SQLType != "text" || handle.Nullable {
			t.Errorf("handle: got type %q nullable %v", handle.SQLType, handle.Nullable)
		}
		email, _ := table.Column("email")
		if email.SQLType != "varchar(320)" || !email.Unique || email.Nullable {
			t.Errorf("email: unexpected metadata %+v", email)
		}
		bio, _ := table.Column("bio")
		if !bio.Nullable {
			t.Error("pointer field should be nullable")
		}
		balance, _ := table.Column("balance")
		if balance.Default == nil || *balance.Default != "0" {
			t.Errorf("balance default: got %v", balance.Default)
		}
	})

	t.Run("foreign keys, identity and index", func(t *testing.T) {
		table, err := parser.Parse(reflect.TypeOf(&TestPost{}))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if len(table.ForeignKeys) != 1 {
			t.Fatalf("expected 1 foreign key, got %d", len(table.ForeignKeys))
		}
		fk := table.ForeignKeys[0]
		if fk.ReferencedTable != "test_account" || fk.ReferencedColumns[0] != "handle" {
			t.Errorf("unexpected reference %s(%v)", fk.ReferencedTable, fk.ReferencedColumns)
		}
		if fk.OnDelete != Cascade || fk.OnUpdate != Cascade {
			t.Errorf("expected CASCADE/CASCADE, got %s/%s", fk.OnDelete, fk.OnUpdate)
		}
		id, _ := table.Column("id")
		if id.Identity == nil || id.Identity.Generation != IdentityByDefault {
			t.Errorf("expected identity by default, got %+v", id.Identity)
		}
		created, _ := table.Column("created_at")
		if created.SQLType != "timestamp with time zone" {
			t.Errorf("expected timestamptz mapping, got %s", created.SQLType)
		}
		if len(table.Indexes) != 1 || table.Indexes[0].Name != "idx_test_post_owner" {
			t.Errorf("unexpected indexes %+v", table.Indexes)
		}
	})

	t.Run("composite primary key", func(t *testing.T) {
		table, err := parser.Parse(reflect.TypeOf(TestMembership{}))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		got := table.PrimaryKeyColumns()
		if len(got) != 2 || got[0] != "group_name" || got[1] != "member" {
			t.Errorf("expected [group_name member], got %v", got)
		}
		if fk := table.ForeignKeys[0]; fk.OnDelete != NoAction {
			t.Errorf("expected default NO ACTION, got %s", fk.OnDelete)
		}
	})

	t.Run("TableName method", func(t *testing.T) {
		table, err := parser.Parse(reflect.TypeOf(namedModel{}))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if table.Name != "custom_named" {
			t.Errorf("expected custom_named, got %s", table.Name)
		}
	})

	t.Run("cache returns same metadata", func(t *testing.T) {
		a, _ := parser.Parse(reflect.TypeOf(TestAccount{}))
		b, _ := parser.Parse(reflect.TypeOf(TestAccount{}))
		if a != b {
			t.Error("expected cached metadata pointer")
		}
	})
}

func TestParser_Errors(t *testing.T) {
	type badAction struct {
		ID string `po:"id,primaryKey,fk(x.id),onDelete(explode)"`
	}
	type badFK struct {
		ID string `po:"id,primaryKey,fk(nothing)"`
	}
	type badDefault struct {
		ID string `po:"id,primaryKey,default(CURRENT TIMESTAMP)"`
	}
	type noTags struct {
		ID string
	}
	type nullablePK struct {
		ID *string `po:"id,primaryKey"`
	}

	tests := []struct {
		name  string
		model any
	}{
		{"unknown reference action", badAction{}},
		{"malformed fk", badFK{}},
		{"invalid default", badDefault{}},
		{"no tagged fields", noTags{}},
		{"nullable primary key", nullablePK{}},
		{"not a struct", 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewParser().Parse(reflect.TypeOf(tt.model)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRegisterTableName(t *testing.T) {
	type Renamed struct {
		ID string `po:"id,primaryKey"`
	}
	RegisterTableName("Renamed", "renamed_things")
	defer delete(customTableNames, "Renamed")

	table, err := NewParser().Parse(reflect.TypeOf(Renamed{}))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if table.Name != "renamed_things" {
		t.Errorf("expected renamed_things, got %s", table.Name)
	}
}

func TestToSnakeCase(t *testing.T) {
	cases := map[string]string{
		"User":        "user",
		"TestAccount": "test_account",
		"CreatedAt":   "created_at",
	}
	for in, want := range cases {
		if got := toSnakeCase(in); got != want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
