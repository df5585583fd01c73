//go:build integration

package migration

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/marshallshelly/conduit/internal/pgtest"
	"github.com/marshallshelly/conduit/pkg/runtime"
)

func TestExecutor_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := pgtest.Start(t)
	pool := db.Pool()

	generator := NewGenerator(t.TempDir())
	if _, err := generator.Generate("initial_schema", Diff(modelGraph(t), nil)); err != nil {
		t.Fatal(err)
	}
	migrations, err := generator.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	broken := Migration{Version: "99990101000000", Name: "broken", UpSQL: "CREATE TABLE nope (;", DownSQL: "SELECT 1;"}

	executor := NewExecutor(pool)
	if err := executor.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// Dry run touches nothing.
	planned, err := executor.ApplyAll(ctx, migrations, 0, true)
	if err != nil || len(planned) != 1 {
		t.Fatalf("dry run: %v, %d planned", err, len(planned))
	}
	if applied, _ := executor.IsMigrationApplied(ctx, migrations[0].Version); applied {
		t.Fatal("dry run applied the migration")
	}

	if _, err := executor.ApplyAll(ctx, migrations, 0, false); err != nil {
		t.Fatalf("ApplyAll failed: %v", err)
	}
	tables, err := ListTables(ctx, pool)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range modelGraph(t).Order() {
		if !slices.Contains(tables, want) {
			t.Errorf("table %s missing after migrate up", want)
		}
	}
	if Diff(modelGraph(t), tables).HasChanges() {
		t.Error("diff not empty after migrate up")
	}

	// A failing migration is rolled back and recorded as failed.
	err = executor.Apply(ctx, broken, false)
	var migErr *runtime.MigrationError
	if !errors.As(err, &migErr) {
		t.Fatalf("expected MigrationError, got %v", err)
	}
	status, err := executor.GetStatus(ctx, append(slices.Clone(migrations), broken))
	if err != nil {
		t.Fatal(err)
	}
	if status[0].Status != StatusApplied || status[1].Status != StatusFailed || status[1].Error == nil {
		t.Errorf("unexpected status: %+v", status)
	}

	rolled, err := executor.RollbackSteps(ctx, migrations, 1, false)
	if err != nil || len(rolled) != 1 {
		t.Fatalf("RollbackSteps: %v, %d rolled", err, len(rolled))
	}
	tables, err = ListTables(ctx, pool)
	if err != nil {
		t.Fatal(err)
	}
	if slices.Contains(tables, "users") {
		t.Error("users survived rollback")
	}
}

func TestExecutor_TryLock(t *testing.T) {
	ctx := context.Background()
	db := pgtest.Start(t)

	executor := NewExecutor(db.Pool()).WithLockID(42)
	ok, err := executor.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
}
