// Package memory keeps dataset tables in process, optionally seeded from
// CSV files.
package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"indicadores/internal/core"
	"indicadores/internal/sources"
)

type Store struct {
	mu      sync.RWMutex
	catalog core.Catalog
	tables  map[string]core.Table
}

var (
	_ sources.DatasetReader = (*Store)(nil)
	_ sources.DatasetWriter = (*Store)(nil)
)

func New(catalog core.Catalog) *Store {
	return &Store{catalog: catalog, tables: make(map[string]core.Table)}
}

// NewFromDir seeds a store with <dir>/<dataset>.csv for every catalog
// dataset. Missing files leave the dataset empty.
func NewFromDir(dir string, catalog core.Catalog) (*Store, error) {
	s := New(catalog)
	for _, name := range catalog.Names() {
		path := filepath.Join(dir, name+".csv")
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		t, err := sources.ReadCSV(f, catalog[name], core.Filter{})
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", path, err)
		}
		s.tables[name] = t
	}
	return s, nil
}

// Put stores records for a dataset, replacing previous ones.
func (s *Store) Put(dataset string, records []core.Record) error {
	schema, err := s.catalog.Lookup(dataset)
	if err != nil {
		return err
	}
	_, err = s.ReplaceDataset(context.Background(), core.Table{Schema: schema, Records: records})
	return err
}

func (s *Store) ReplaceDataset(_ context.Context, t core.Table) (int, error) {
	if _, err := s.catalog.Lookup(t.Schema.Dataset); err != nil {
		return 0, err
	}
	records := append([]core.Record(nil), t.Records...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.Schema.Dataset] = core.Table{Schema: t.Schema, Records: records}
	return len(records), nil
}

func (s *Store) ReadDataset(_ context.Context, dataset string, filter core.Filter) (core.Table, error) {
	schema, err := s.catalog.Lookup(dataset)
	if err != nil {
		return core.Table{}, err
	}
	s.mu.RLock()
	t, ok := s.tables[dataset]
	s.mu.RUnlock()
	if !ok {
		return core.Table{Schema: schema}, nil
	}
	return t.Apply(filter), nil
}

// Datasets lists the datasets holding at least one record.
func (s *Store) Datasets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, name := range s.catalog.Names() {
		if t, ok := s.tables[name]; ok && t.Len() > 0 {
			out = append(out, name)
		}
	}
	return out
}
