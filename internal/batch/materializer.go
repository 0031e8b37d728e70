// Package batch converts raw monthly CSV exports into compressed columnar
// files with a canonical timestamp column. Materialization is cached by
// modification time: a batch is rebuilt only when its source export is
// newer than the materialized output.
package batch

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"heimwetter/internal/columns"
	"heimwetter/internal/metrics"
	"heimwetter/internal/models"
	"heimwetter/internal/rawfiles"
)

// Timestamp column aliases, matched on the normalized header form, in
// preference order.
var tsAliases = []string{
	"time", "zeit", "uhrzeit", "datetime", "datumzeit", "timestamp",
	"dateutc", "date", "datum",
}

// Ordered timestamp layouts. The first layout that parses the batch's
// first non-empty timestamp cell is used for the whole batch.
var tsLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"2.1.2006 15:04",
}

type Materializer struct {
	rawDir string
	outDir string
	loc    *time.Location
}

func NewMaterializer(rawDir, outDir string, loc *time.Location) *Materializer {
	return &Materializer{rawDir: rawDir, outDir: outDir, loc: loc}
}

func (m *Materializer) outPath(month string, kind models.DatasetKind) string {
	return filepath.Join(m.outDir, fmt.Sprintf("%s-%s.colz", month, kind))
}

// Ensure materializes one month of one dataset kind, returning the path of
// the columnar file. An absent source export returns "" without error; a
// source file with no recognizable timestamp column is a hard error, that
// batch cannot be queried at all.
func (m *Materializer) Ensure(month string, kind models.DatasetKind) (string, error) {
	f, ok, err := rawfiles.Find(m.rawDir, kind, month)
	if err != nil {
		return "", err
	}
	if !ok || f.Month != month {
		return "", nil
	}
	return m.materialize(f, kind)
}

// EnsureLatest materializes the export for month when it exists, otherwise
// the newest export of the kind. This backs "latest data" queries: early in
// a new month the current export may not have been synced yet. "" means the
// raw directory holds no export of the kind at all.
func (m *Materializer) EnsureLatest(month string, kind models.DatasetKind) (string, error) {
	f, ok, err := rawfiles.Find(m.rawDir, kind, month)
	if err != nil || !ok {
		return "", err
	}
	return m.materialize(f, kind)
}

// EnsureRange materializes every export of a kind within the month window,
// returning the columnar paths in month order. This runs before any
// discovery or aggregation touches the batches. A month whose export
// cannot be materialized, typically a corrupt file without a timestamp
// column, is logged and skipped; one bad export must not block the
// remaining months.
func (m *Materializer) EnsureRange(start, end string, kind models.DatasetKind) ([]string, error) {
	files, err := rawfiles.List(m.rawDir, kind, start, end)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, f := range files {
		p, err := m.materialize(f, kind)
		if err != nil {
			log.Printf("batch: skipping %s: %v", f.Name, err)
			metrics.BatchesMaterialized.WithLabelValues(string(kind), "skipped").Inc()
			continue
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (m *Materializer) materialize(f rawfiles.File, kind models.DatasetKind) (string, error) {
	src := f.Path(m.rawDir)
	out := m.outPath(f.Month, kind)

	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("batch: stat %s: %w", src, err)
	}
	if outInfo, err := os.Stat(out); err == nil && !outInfo.ModTime().Before(srcInfo.ModTime()) {
		metrics.BatchesMaterialized.WithLabelValues(string(kind), "reused").Inc()
		return out, nil
	}

	if err := os.MkdirAll(m.outDir, 0o755); err != nil {
		return "", fmt.Errorf("batch: create %s: %w", m.outDir, err)
	}

	c, skipped, err := m.convert(src, f.Month, kind)
	if err != nil {
		return "", err
	}
	if err := write(out, c); err != nil {
		return "", err
	}

	metrics.BatchesMaterialized.WithLabelValues(string(kind), "built").Inc()
	if skipped > 0 {
		log.Printf("batch: %s %s: skipped %d rows with unparseable timestamps", f.Month, kind, skipped)
	}
	log.Printf("batch: materialized %s %s (%d rows)", f.Month, kind, c.NumRows())
	return out, nil
}

func (m *Materializer) convert(src, month string, kind models.DatasetKind) (*Columnar, int, error) {
	file, err := os.Open(src)
	if err != nil {
		return nil, 0, fmt.Errorf("batch: open %s: %w", src, err)
	}
	defer file.Close()

	r := csv.NewReader(bufio.NewReader(file))
	r.Comma = sniffDelimiter(src)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("batch: read header %s: %w", src, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	tsIdx, err := findTimestampColumn(header)
	if err != nil {
		return nil, 0, fmt.Errorf("batch: %s %s: %w", month, kind, err)
	}

	// Duplicate header names happen in some exports; only the first
	// occurrence of a name is kept.
	var names []string
	var indices []int
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
		indices = append(indices, i)
	}

	c := &Columnar{
		Month:   month,
		Kind:    string(kind),
		Columns: names,
		Values:  make(map[string][]string, len(names)),
	}

	var layout string
	skipped := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("batch: read %s: %w", src, err)
		}
		if tsIdx >= len(rec) {
			skipped++
			continue
		}
		cell := strings.TrimSpace(rec[tsIdx])
		if cell == "" {
			skipped++
			continue
		}
		if layout == "" {
			layout = detectLayout(cell)
			if layout == "" {
				skipped++
				continue
			}
		}
		ts, err := time.ParseInLocation(layout, cell, m.loc)
		if err != nil {
			skipped++
			continue
		}

		c.TS = append(c.TS, ts.Unix())
		for j, name := range names {
			v := ""
			if i := indices[j]; i < len(rec) {
				v = rec[i]
			}
			c.Values[name] = append(c.Values[name], v)
		}
	}

	return c, skipped, nil
}

// findTimestampColumn resolves the timestamp column by alias, preferring
// exact normalized matches over substring ones. A header with no timestamp
// column is unusable, loudly so.
func findTimestampColumn(header []string) (int, error) {
	normed := make([]string, len(header))
	for i, h := range header {
		normed[i] = columns.Normalize(h)
	}
	for _, alias := range tsAliases {
		for i, n := range normed {
			if n == alias {
				return i, nil
			}
		}
	}
	for _, alias := range tsAliases {
		for i, n := range normed {
			if strings.Contains(n, alias) {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("no timestamp column among %v", header)
}

func detectLayout(cell string) string {
	for _, layout := range tsLayouts {
		if _, err := time.Parse(layout, cell); err == nil {
			return layout
		}
	}
	return ""
}

// sniffDelimiter peeks at the first line: German exports often use
// semicolons.
func sniffDelimiter(path string) rune {
	f, err := os.Open(path)
	if err != nil {
		return ','
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return ','
	}
	if !bytes.ContainsRune(line, ',') && bytes.ContainsRune(line, ';') {
		return ';'
	}
	return ','
}
