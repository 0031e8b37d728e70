// Package rawfiles lists the monthly CSV exports the station logger drops
// into the raw directory. Files follow the logger's own naming scheme,
// YYYYMM plus a dataset suffix, with whatever casing the export dialog
// happened to use.
package rawfiles

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"heimwetter/internal/models"
)

// File is one discovered monthly export.
type File struct {
	Month string // "YYYYMM"
	Name  string // filename as found on disk
}

func (f File) Path(dir string) string { return filepath.Join(dir, f.Name) }

var patterns = map[models.DatasetKind]*regexp.Regexp{
	models.KindAllSensors: regexp.MustCompile(`(?i)^(\d{6})allsensors_a\.csv$`),
	models.KindMain:       regexp.MustCompile(`(?i)^(\d{6})a\.csv$`),
}

// Match reports whether a filename is a monthly export, and of which
// dataset kind. Used when new files are discovered on the logger's FTP
// share.
func Match(name string) (models.DatasetKind, bool) {
	for kind, re := range patterns {
		if re.MatchString(name) {
			return kind, true
		}
	}
	return "", false
}

// List returns the exports of one dataset kind, sorted by month ascending.
// start and end are optional "YYYYMM" bounds (inclusive); pass "" to leave
// a side open. No matching file is not an error, just an empty list.
func List(dir string, kind models.DatasetKind, start, end string) ([]File, error) {
	re, ok := patterns[kind]
	if !ok {
		return nil, fmt.Errorf("rawfiles: unknown dataset kind %q", kind)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("rawfiles: read %s: %w", dir, err)
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		mm := re.FindStringSubmatch(e.Name())
		if mm == nil {
			continue
		}
		month := mm[1]
		if start != "" && month < start {
			continue
		}
		if end != "" && month > end {
			continue
		}
		files = append(files, File{Month: month, Name: e.Name()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Month < files[j].Month })
	return files, nil
}

// Find looks up the export for one specific month. When that month has no
// file, it falls back to the most recent export of the same kind, which is
// how "latest data" queries resolve when the requested month is absent.
func Find(dir string, kind models.DatasetKind, month string) (File, bool, error) {
	files, err := List(dir, kind, "", "")
	if err != nil {
		return File{}, false, err
	}
	if len(files) == 0 {
		return File{}, false, nil
	}
	for _, f := range files {
		if f.Month == month {
			return f, true, nil
		}
	}
	return files[len(files)-1], true, nil
}
