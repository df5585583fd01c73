package migration

import (
	"strings"
	"testing"

	"github.com/marshallshelly/conduit/pkg/models"
	"github.com/marshallshelly/conduit/pkg/schema"
)

func modelGraph(t *testing.T) *schema.Graph {
	t.Helper()
	g, err := models.Graph()
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestGenerateCreateTable(t *testing.T) {
	planner := NewPlanner()
	users, _ := modelGraph(t).Table(models.TableUsers)

	sql := planner.generateCreateTable(users)

	want := `CREATE TABLE IF NOT EXISTS "users" (
    "username" text NOT NULL PRIMARY KEY,
    "email" text NOT NULL UNIQUE,
    "password" text NOT NULL,
    "bio" text,
    "image" text
);`
	if sql != want {
		t.Errorf("unexpected DDL:\n%s\nwant:\n%s", sql, want)
	}
}

func TestGenerateCreateTable_CompositeKeyAndForeignKeys(t *testing.T) {
	planner := NewPlanner()
	favorites, _ := modelGraph(t).Table(models.TableFavorites)

	sql := planner.generateCreateTable(favorites)

	for _, want := range []string{
		`"user" text NOT NULL,`,
		`CONSTRAINT "favorites_pkey" PRIMARY KEY ("user", "article")`,
		`CONSTRAINT "fk_favorites_user_users" FOREIGN KEY ("user") REFERENCES "users" ("username") ON DELETE CASCADE ON UPDATE CASCADE`,
		`CONSTRAINT "fk_favorites_article_articles" FOREIGN KEY ("article") REFERENCES "articles" ("slug") ON DELETE CASCADE ON UPDATE CASCADE`,
		`CREATE INDEX IF NOT EXISTS "idx_favorites_article" ON "favorites" ("article");`,
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("expected %q in:\n%s", want, sql)
		}
	}
	if strings.Contains(sql, "text NOT NULL PRIMARY KEY") {
		t.Errorf("composite key declared inline:\n%s", sql)
	}
}

func TestGenerateColumnDefinition(t *testing.T) {
	planner := NewPlanner()
	g := modelGraph(t)
	comments, _ := g.Table(models.TableComments)
	articles, _ := g.Table(models.TableArticles)

	tests := []struct {
		table  *schema.TableMetadata
		column string
		want   string
	}{
		{comments, "id", `"id" bigint GENERATED BY DEFAULT AS IDENTITY`},
		{comments, "created_at", `"created_at" timestamp with time zone NOT NULL DEFAULT CURRENT_TIMESTAMP`},
		{articles, "updated_at", `"updated_at" timestamp with time zone`},
		{articles, "author", `"author" text NOT NULL`},
	}
	for _, tt := range tests {
		col, ok := tt.table.Column(tt.column)
		if !ok {
			t.Fatalf("no column %s", tt.column)
		}
		if got := planner.generateColumnDefinition(*col); got != tt.want {
			t.Errorf("%s.%s = %q, want %q", tt.table.Name, tt.column, got, tt.want)
		}
	}
}

func TestGenerateSchema_Order(t *testing.T) {
	up, down := NewPlanner().GenerateSchema(modelGraph(t))

	// Parents are created before the tables that reference them.
	before := func(sql, a, b string) {
		t.Helper()
		ia, ib := strings.Index(sql, a), strings.Index(sql, b)
		if ia < 0 || ib < 0 || ia > ib {
			t.Errorf("expected %q before %q", a, b)
		}
	}
	before(up, `CREATE TABLE IF NOT EXISTS "users"`, `CREATE TABLE IF NOT EXISTS "articles"`)
	before(up, `CREATE TABLE IF NOT EXISTS "articles"`, `CREATE TABLE IF NOT EXISTS "comments"`)
	before(up, `CREATE TABLE IF NOT EXISTS "articles"`, `CREATE TABLE IF NOT EXISTS "favorites"`)
	before(up, `CREATE TABLE IF NOT EXISTS "articles"`, `CREATE TABLE IF NOT EXISTS "tags"`)
	before(up, `CREATE TABLE IF NOT EXISTS "users"`, `CREATE TABLE IF NOT EXISTS "follows"`)

	before(down, `DROP TABLE IF EXISTS "tags";`, `DROP TABLE IF EXISTS "articles";`)
	before(down, `DROP TABLE IF EXISTS "articles";`, `DROP TABLE IF EXISTS "users";`)

	if n := strings.Count(up, "ON DELETE CASCADE ON UPDATE CASCADE"); n != 8 {
		t.Errorf("expected 8 cascading foreign keys, got %d", n)
	}
	if n := len(splitSQL(up)); n != 6+6 {
		t.Errorf("expected 6 tables and 6 indexes, got %d statements", n)
	}
}

func TestPlannerWithoutIfNotExists(t *testing.T) {
	planner := NewPlannerWithOptions(PlannerOptions{IfNotExists: false})
	tags, _ := modelGraph(t).Table(models.TableTags)

	sql := planner.generateCreateTable(tags)
	if strings.Contains(sql, "IF NOT EXISTS") {
		t.Errorf("unexpected IF NOT EXISTS:\n%s", sql)
	}
	if !strings.HasPrefix(sql, `CREATE TABLE "tags" (`) {
		t.Errorf("unexpected DDL:\n%s", sql)
	}
}

func TestDiff(t *testing.T) {
	g := modelGraph(t)

	diff := Diff(g, []string{models.TableUsers, models.TableFollows, "unrelated"})
	var names []string
	for _, table := range diff.TablesAdded {
		names = append(names, table.Name)
	}
	want := []string{models.TableArticles, models.TableComments, models.TableFavorites, models.TableTags}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Diff = %v, want %v", names, want)
	}

	if Diff(g, g.Order()).HasChanges() {
		t.Error("complete database reported changes")
	}
}

func TestSplitSQL(t *testing.T) {
	sql := "-- Migration: x\nCREATE TABLE a (id int);\n\n  -- note\nCREATE INDEX i ON a (id);\n"
	got := splitSQL(sql)
	if len(got) != 2 || got[0] != "CREATE TABLE a (id int)" || got[1] != "CREATE INDEX i ON a (id)" {
		t.Errorf("splitSQL = %q", got)
	}
}
