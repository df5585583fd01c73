package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Generator generates migration files.
type Generator struct {
	migrationsDir string
	planner       *Planner
}

// NewGenerator creates a new migration file generator.
func NewGenerator(migrationsDir string) *Generator {
	return &Generator{
		migrationsDir: migrationsDir,
		planner:       NewPlanner(),
	}
}

// Generate writes the up and down files creating diff's tables.
func (g *Generator) Generate(name string, diff *SchemaDiff) (*MigrationFile, error) {
	upSQL, downSQL := g.planner.GenerateMigration(diff)
	header := fmt.Sprintf("-- Migration: %s\n-- Tables: %s\n\n", name, tableNames(diff))
	return g.write(name, header+upSQL, header+downSQL)
}

// GenerateEmpty creates empty migration files for manual editing.
func (g *Generator) GenerateEmpty(name string) (*MigrationFile, error) {
	return g.write(name,
		fmt.Sprintf("-- Migration: %s\n\n-- Write your UP migration here\n", name),
		fmt.Sprintf("-- Migration: %s\n\n-- Write your DOWN migration here\n", name))
}

func (g *Generator) write(name, upSQL, downSQL string) (*MigrationFile, error) {
	if err := os.MkdirAll(g.migrationsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	version := GenerateVersion()
	file := &MigrationFile{
		Version:  version,
		Name:     name,
		UpPath:   filepath.Join(g.migrationsDir, GenerateFileName(version, name, "up")),
		DownPath: filepath.Join(g.migrationsDir, GenerateFileName(version, name, "down")),
	}
	if err := os.WriteFile(file.UpPath, []byte(upSQL), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write up migration: %w", err)
	}
	if err := os.WriteFile(file.DownPath, []byte(downSQL), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write down migration: %w", err)
	}
	return file, nil
}

// ListMigrations lists the migrations in the directory that have both an
// up and a down file, oldest first.
func (g *Generator) ListMigrations() ([]MigrationFile, error) {
	entries, err := os.ReadDir(g.migrationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []MigrationFile{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	files := make(map[string]*MigrationFile)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fileName := entry.Name()

		// {version}_{name}.{direction}.sql
		version, rest, ok := strings.Cut(fileName, "_")
		if !ok {
			continue
		}
		var name string
		var up bool
		if before, ok := strings.CutSuffix(rest, ".up.sql"); ok {
			name, up = before, true
		} else if before, ok := strings.CutSuffix(rest, ".down.sql"); ok {
			name = before
		} else {
			continue
		}

		mf, exists := files[version]
		if !exists {
			mf = &MigrationFile{Version: version, Name: name}
			files[version] = mf
		}
		if up {
			mf.UpPath = filepath.Join(g.migrationsDir, fileName)
		} else {
			mf.DownPath = filepath.Join(g.migrationsDir, fileName)
		}
	}

	migrations := make([]MigrationFile, 0, len(files))
	for _, mf := range files {
		if mf.UpPath != "" && mf.DownPath != "" {
			migrations = append(migrations, *mf)
		}
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// ReadMigration reads the SQL content from a migration file.
func (g *Generator) ReadMigration(file MigrationFile) (*Migration, error) {
	upSQL, err := os.ReadFile(file.UpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read up migration: %w", err)
	}
	downSQL, err := os.ReadFile(file.DownPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read down migration: %w", err)
	}
	return &Migration{
		Version: file.Version,
		Name:    file.Name,
		UpSQL:   string(upSQL),
		DownSQL: string(downSQL),
	}, nil
}

// LoadAll reads every migration in the directory, oldest first.
func (g *Generator) LoadAll() ([]Migration, error) {
	files, err := g.ListMigrations()
	if err != nil {
		return nil, err
	}
	out := make([]Migration, 0, len(files))
	for _, f := range files {
		m, err := g.ReadMigration(f)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func tableNames(diff *SchemaDiff) string {
	names := make([]string, len(diff.TablesAdded))
	for i, t := range diff.TablesAdded {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}
