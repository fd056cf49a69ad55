package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"indicadores/internal/core"
)

func TestNewFromDir(t *testing.T) {
	dir := t.TempDir()
	csv := "ano,mes,municipio,saldo_movimentacao\n2024,1,Canoas,10\n2024,1,Gravataí,5\n"
	if err := os.WriteFile(filepath.Join(dir, core.DatasetEmpregoMunicipios+".csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewFromDir(dir, core.DefaultCatalog())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.Datasets(); len(got) != 1 || got[0] != core.DatasetEmpregoMunicipios {
		t.Fatalf("datasets = %v", got)
	}

	tbl, err := s.ReadDataset(context.Background(), core.DatasetEmpregoMunicipios, core.Filter{Municipalities: []string{"Gravataí"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tbl.Len() != 1 || tbl.Records[0].Values["saldo_movimentacao"] != 5 {
		t.Fatalf("unexpected table %+v", tbl.Records)
	}

	empty, err := s.ReadDataset(context.Background(), core.DatasetSeguranca, core.Filter{})
	if err != nil || empty.Len() != 0 || empty.Schema.Dataset != core.DatasetSeguranca {
		t.Fatalf("expected empty seguranca table, got %+v, %v", empty, err)
	}
}

func TestNewFromDirBadFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, core.DatasetSeguranca+".csv"), []byte("ano,mes\n2024,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromDir(dir, core.DefaultCatalog()); err == nil {
		t.Fatalf("expected error for missing columns")
	}
}

func TestReplaceDataset(t *testing.T) {
	s := New(core.DefaultCatalog())
	if err := s.Put(core.DatasetSeguranca, []core.Record{{Year: 2024, Month: 1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, err := s.ReplaceDataset(context.Background(), core.Table{
		Schema:  core.DefaultCatalog()[core.DatasetSeguranca],
		Records: []core.Record{{Year: 2024, Month: 1}, {Year: 2024, Month: 2}},
	})
	if err != nil || n != 2 {
		t.Fatalf("replace = %d, %v", n, err)
	}
	tbl, _ := s.ReadDataset(context.Background(), core.DatasetSeguranca, core.Filter{})
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", tbl.Len())
	}
	if err := s.Put("nope", nil); !errors.Is(err, core.ErrUnknownDataset) {
		t.Fatalf("expected ErrUnknownDataset, got %v", err)
	}
}
