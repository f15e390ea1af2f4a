package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/config"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
)

const seedJSON = `{
  "projects": [{"id": "A", "company_id": "c1", "name": "Yacht A", "fee_percent": "10"}],
  "transactions": [
    {"id": "e1", "kind": "expense", "date": "2025-01-05", "amount": "120.50", "currency": "THB", "project_id": "A"}
  ],
  "accounts": {"5100": "Fuel"}
}`

func writeSeed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(seedJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	seed := writeSeed(t)

	tests := []struct {
		name   string
		config Config
	}{
		{"memory", Config{Type: MemoryBackend, SeedFile: seed}},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "r.db"), SeedFile: seed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewFactory(nil).CreateBackend(ctx, tt.config)
			if err != nil {
				t.Fatal(err)
			}
			defer res.Close()

			p, err := res.Sources.Projects.GetProject(ctx, "A")
			if err != nil || p.Name != "Yacht A" {
				t.Fatalf("project: %+v %v", p, err)
			}
			rows, err := res.Sources.Expenses.ByDateRange(ctx, core.NewDate(2025, 1, 1), core.NewDate(2025, 1, 31))
			if err != nil || len(rows) != 1 || rows[0].Amount.String() != "120.5" {
				t.Fatalf("expenses: %+v %v", rows, err)
			}
			accounts, err := res.Sources.Accounts.Accounts(ctx)
			if err != nil || accounts["5100"] != "Fuel" {
				t.Fatalf("accounts: %v %v", accounts, err)
			}
		})
	}
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "sheets"})
	if err == nil || !strings.Contains(err.Error(), "invalid backend type") {
		t.Fatalf("expected invalid backend error, got %v", err)
	}
	_, err = NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend})
	if err == nil {
		t.Fatal("expected missing path error")
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{DataBackend: "sqlite", SQLiteDBPath: "/tmp/x.db", MemorySeedFile: "seed.json", GooglePettyCashSheet: "PC", BaseCurrency: "EUR"}
	bc, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if bc.Type != SQLiteBackend || bc.SeedFile != "seed.json" || bc.GooglePettyCashSheet != "PC" || bc.BaseCurrency != "EUR" {
		t.Fatalf("unexpected backend config %+v", bc)
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "nope"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
