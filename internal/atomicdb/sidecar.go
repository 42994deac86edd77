package atomicdb

import (
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SidecarSuffix is the naming convention for metadata side-car files.
const SidecarSuffix = "_info.yaml"

// MissingFieldError reports a declared catalog column absent from a
// side-car file.
type MissingFieldError struct {
	File  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing field %q", e.File, e.Field)
}

// TypeError reports a side-car value that cannot be coerced to its declared
// column type.
type TypeError struct {
	File  string
	Field string
	Want  ColumnType
	Value any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: field %q: cannot coerce %v (%T) to %s",
		e.File, e.Field, e.Value, e.Value, e.Want)
}

// FindSidecars walks root recursively and returns every file matching the
// side-car naming convention, sorted by path.
func FindSidecars(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), SidecarSuffix) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// ParseSidecar loads one side-car file and validates it against the declared
// schema. Single-element arrays are squeezed to scalars, matching the
// upstream sidecar convention.
func ParseSidecar(path string) (*Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading side-car: %w", err)
	}
	fields := make(map[string]any)
	if err := yaml.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	rec := &Record{}
	for i, col := range Schema {
		v, ok := fields[col.Name]
		if !ok {
			return nil, &MissingFieldError{File: path, Field: col.Name}
		}
		v, err := squeeze(v)
		if err != nil {
			return nil, &TypeError{File: path, Field: col.Name, Want: col.Type, Value: v}
		}
		cv, err := coerce(col.Type, v)
		if err != nil {
			return nil, &TypeError{File: path, Field: col.Name, Want: col.Type, Value: v}
		}
		rec.set(i, cv)
	}
	return rec, nil
}

// squeeze reduces a single-element array to its scalar. Longer arrays have
// no scalar meaning for catalog columns.
func squeeze(v any) (any, error) {
	arr, ok := v.([]any)
	if !ok {
		return v, nil
	}
	if len(arr) != 1 {
		return v, fmt.Errorf("array of length %d", len(arr))
	}
	return arr[0], nil
}

func coerce(t ColumnType, v any) (any, error) {
	switch t {
	case TypeText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("not a string")
		}
		return s, nil
	case TypeInteger:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case uint64:
			return int64(n), nil
		case float64:
			if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
				return nil, fmt.Errorf("not an integer")
			}
			return int64(n), nil
		}
		return nil, fmt.Errorf("not an integer")
	case TypeReal:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
		return nil, fmt.Errorf("not a real")
	}
	return nil, fmt.Errorf("unknown column type %q", t)
}
