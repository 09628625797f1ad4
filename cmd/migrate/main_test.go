package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFiles(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoad_pairsAndOrders(t *testing.T) {
	dir := writeFiles(t,
		"002_indexes.up.sql",
		"001_ledger_snapshots.down.sql",
		"001_ledger_snapshots.up.sql",
		"README.md",
	)
	got, err := load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d migrations, want 2", len(got))
	}
	if got[0].version != 1 || got[0].name != "ledger_snapshots" || got[0].down == "" {
		t.Errorf("unexpected first migration %+v", got[0])
	}
	if got[1].version != 2 || got[1].down != "" {
		t.Errorf("unexpected second migration %+v", got[1])
	}
}

func TestLoad_rejects(t *testing.T) {
	tests := map[string][]string{
		"missing up":    {"001_a.down.sql"},
		"no direction":  {"001_a.sql"},
		"bad version":   {"abc_a.up.sql"},
		"no underscore": {"001.up.sql"},
	}
	for name, files := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := load(writeFiles(t, files...)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRepoMigrationsLoad(t *testing.T) {
	got, err := load(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) == 0 || got[0].version != 1 {
		t.Fatalf("unexpected migrations %+v", got)
	}
}
