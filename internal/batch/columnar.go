package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Columnar is the materialized projection of one monthly export: the
// original columns as raw strings in column-major order, plus the
// canonical ts column in unix seconds. Cells stay unparsed; numeric
// coercion is a query-time concern.
type Columnar struct {
	Month   string              `json:"month"`
	Kind    string              `json:"kind"`
	Columns []string            `json:"columns"`
	TS      []int64             `json:"ts"`
	Values  map[string][]string `json:"values"`
}

func (c *Columnar) NumRows() int { return len(c.TS) }

// Read loads a materialized batch file.
func Read(path string) (*Columnar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("batch: open %s: %w", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("batch: zstd reader: %w", err)
	}
	defer dec.Close()

	var c Columnar
	if err := json.NewDecoder(dec).Decode(&c); err != nil {
		return nil, fmt.Errorf("batch: decode %s: %w", path, err)
	}
	return &c, nil
}

// write persists a batch via temp-file-then-rename so a concurrent reader
// never observes a partial file.
func write(path string, c *Columnar) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".batch-*")
	if err != nil {
		return fmt.Errorf("batch: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("batch: zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(c); err != nil {
		enc.Close()
		tmp.Close()
		return fmt.Errorf("batch: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("batch: close zstd: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("batch: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("batch: rename: %w", err)
	}
	return nil
}
