package atomicdb

import (
	"errors"
	"fmt"
)

// ErrNoSidecars is returned when a build is attempted with no side-car
// files. Usage error: an empty input tree almost always means a mistyped
// source directory.
var ErrNoSidecars = errors.New("no side-car files found")

// Build appends one catalog row per side-car file. When replace is set the
// atomic table is dropped first so the build is a full rebuild rather than
// an append. Returns the number of rows written.
func Build(files []string, dbPath string, replace bool) (int, error) {
	if len(files) == 0 {
		return 0, ErrNoSidecars
	}
	recs := make([]*Record, 0, len(files))
	for _, f := range files {
		rec, err := ParseSidecar(f)
		if err != nil {
			return 0, err
		}
		recs = append(recs, rec)
	}

	store, err := Create(dbPath)
	if err != nil {
		return 0, err
	}
	defer store.Close()
	if replace {
		if err := store.Reset(); err != nil {
			return 0, err
		}
	}
	if err := store.InsertBatch(recs); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// BuildFromDir scans root recursively for side-car files and builds the
// catalog from them.
func BuildFromDir(root, dbPath string, replace bool) (int, error) {
	files, err := FindSidecars(root)
	if err != nil {
		return 0, err
	}
	n, err := Build(files, dbPath, replace)
	if errors.Is(err, ErrNoSidecars) {
		return 0, fmt.Errorf("%w under %s", ErrNoSidecars, root)
	}
	return n, err
}
