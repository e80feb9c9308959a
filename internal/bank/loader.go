package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Loader fetches bank content from a backing store (data directory, Postgres, ...).
type Loader interface {
	LoadBank(ctx context.Context) (Data, error)
}

// StaticLoader serves a fixed Data value (useful for tests/demos).
type StaticLoader struct {
	data Data
}

func NewStaticLoader(data Data) *StaticLoader {
	return &StaticLoader{data: data}
}

func (l *StaticLoader) LoadBank(_ context.Context) (Data, error) {
	return l.data, nil
}

// DirLoader reads one `<specialty>.json` file per specialty from a directory.
type DirLoader struct {
	dir string
}

func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{dir: dir}
}

func (l *DirLoader) LoadBank(_ context.Context) (Data, error) {
	return LoadDir(l.dir)
}

// LoadDir parses every *.json file in dir. A missing directory yields an empty bank.
func LoadDir(dir string) (Data, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Data{}, nil
		}
		return nil, fmt.Errorf("read bank dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	data := make(Data, len(names))
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var file SpecialtyFile
		if err := json.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		data[strings.TrimSuffix(name, ".json")] = file
	}
	return data, nil
}

// ChainLoader tries each loader in turn and returns the first non-empty bank.
type ChainLoader []Loader

func (c ChainLoader) LoadBank(ctx context.Context) (Data, error) {
	for _, l := range c {
		data, err := l.LoadBank(ctx)
		if err != nil {
			return nil, err
		}
		if len(data) > 0 {
			return data, nil
		}
	}
	return Data{}, nil
}
