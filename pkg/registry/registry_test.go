package registry

import (
	"reflect"
	"testing"
)

type Member struct {
	Handle string `po:"handle,primaryKey"`
	Email  string `po:"email,varchar(320),unique,notNull"`
}

type Note struct {
	ID     int64  `po:"id,primaryKey,bigint,identityByDefault"`
	Author string `po:"author,notNull,fk(member.handle),onDelete(cascade),onUpdate(cascade)"`
	Text   string `po:"text,notNull"`
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()

	t.Run("register new model", func(t *testing.T) {
		if err := registry.Register(Member{}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if !registry.Has(reflect.TypeOf(Member{})) {
			t.Error("expected model to be registered")
		}
	})

	t.Run("register duplicate model", func(t *testing.T) {
		// Should not error on duplicate registration
		if err := registry.Register(Member{}); err != nil {
			t.Errorf("Duplicate register failed: %v", err)
		}
	})

	t.Run("register pointer model", func(t *testing.T) {
		if err := registry.Register(&Note{}); err != nil {
			t.Fatalf("Register with pointer failed: %v", err)
		}
		if !registry.Has(reflect.TypeOf(Note{})) {
			t.Error("expected model to be registered")
		}
	})

	t.Run("register invalid type", func(t *testing.T) {
		if err := registry.Register("not a struct"); err == nil {
			t.Error("expected error for non-struct type")
		}
		if err := registry.Register(nil); err == nil {
			t.Error("expected error for nil model")
		}
	})
}

func TestRegistry_Get(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Member{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	table, err := registry.Get(reflect.TypeOf(&Member{}))
	if err != nil {
		t.Fatalf("Get with pointer failed: %v", err)
	}
	if table.Name != "member" {
		t.Errorf("expected table name 'member', got '%s'", table.Name)
	}

	if _, err := registry.Get(reflect.TypeOf(Note{})); err == nil {
		t.Error("expected error for unregistered model")
	}

	if _, err := registry.GetByName("member"); err != nil {
		t.Errorf("GetByName failed: %v", err)
	}
	if _, err := registry.GetByName("nonexistent"); err == nil {
		t.Error("expected error for non-existent table")
	}
}

func TestRegistry_GetOrRegister(t *testing.T) {
	registry := NewRegistry()

	table1, err := registry.GetOrRegister(Member{})
	if err != nil {
		t.Fatalf("GetOrRegister failed: %v", err)
	}
	table2, _ := registry.GetOrRegister(Member{})

	// Should return the same instance
	if table1 != table2 {
		t.Error("expected same table instance")
	}
	if !registry.HasTable("member") {
		t.Error("expected HasTable to return true for registered table")
	}
}

func TestRegistry_AllAndGraph(t *testing.T) {
	registry := NewRegistry()
	if len(registry.All()) != 0 {
		t.Fatal("expected empty registry")
	}
	if err := registry.Register(Note{}, Member{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	names := registry.AllNames()
	if len(names) != 2 || names[0] != "member" || names[1] != "note" {
		t.Errorf("unexpected names %v", names)
	}

	g, err := registry.Graph()
	if err != nil {
		t.Fatalf("Graph failed: %v", err)
	}
	if order := g.Order(); order[0] != "member" || order[1] != "note" {
		t.Errorf("expected member before note, got %v", order)
	}

	registry.Clear()
	if registry.Has(reflect.TypeOf(Member{})) {
		t.Error("expected member model to be cleared")
	}
}

func TestRegistry_NameConflict(t *testing.T) {
	type member struct {
		Handle string `po:"handle,primaryKey"`
	}
	registry := NewRegistry()
	if err := registry.Register(Member{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := registry.Register(member{}); err == nil {
		t.Error("expected error for a second type claiming the same table")
	}
}
