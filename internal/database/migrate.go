package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Migration is one schema file from the migrations directory
type Migration struct {
	Name string
	SQL  string
}

// LoadMigrations reads every .surql file in dir in lexical order.
// seed.surql is skipped; seed data is loaded separately.
func LoadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".surql") || name == "seed.surql" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		migrations = append(migrations, Migration{Name: name, SQL: string(content)})
	}
	return migrations, nil
}

// Migrate applies migrations in order and stops at the first failure.
// Schema files use DEFINE ... IF NOT EXISTS so reapplying is safe.
func Migrate(ctx context.Context, db Database, migrations []Migration) error {
	for _, m := range migrations {
		if err := db.Execute(ctx, m.SQL, nil); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
	}
	return nil
}

// FindMigrationsDir looks for a migrations directory relative to the working
// directory and its parents, then under root if given.
func FindMigrationsDir(root string) (string, error) {
	candidates := []string{
		"migrations",
		"../migrations",
		"../../migrations",
		"../../../migrations",
		"../../../../migrations",
	}
	if root != "" {
		candidates = append(candidates, filepath.Join(root, "migrations"))
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("could not find migrations directory")
}
