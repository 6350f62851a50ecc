// Package naming derives output filenames from row data. Building is pure
// and deterministic: the same row and spec always produce the same
// candidate name, which is what makes archives reproducible and collision
// handling testable. Collision disambiguation itself lives in the batch
// pipeline, since it depends on run-local state.
package naming

import (
	"fmt"
	"strings"

	"github.com/qrsheet/qrsheet/internal/tabular"
)

// DefaultExtension is appended to every generated filename unless the spec
// overrides it.
const DefaultExtension = ".png"

// MaxFilenameLength is the longest entry name we will accept; most
// filesystems refuse names past 255 bytes.
const MaxFilenameLength = 255

// validationSampleRows is how many rows CheckAgainst inspects before a run.
const validationSampleRows = 5

// illegalChars are characters that cannot appear in filenames on common
// filesystems. Each occurrence is replaced with '-'.
const illegalChars = `<>:"/\|?*`

// Spec describes how to compose a filename from a row.
type Spec struct {
	// Columns are the cell sources, joined in order. Must be non-empty.
	Columns []string `json:"columns"`

	// Separator goes between column values. It may be empty; it must not
	// contain characters illegal in filenames.
	Separator string `json:"separator"`

	// CollapseEmpty drops empty cell tokens instead of keeping their
	// separator position. Off by default: "a" + "" + "b" with separator
	// "_" yields "a__b", and "a_b" only when CollapseEmpty is set.
	CollapseEmpty bool `json:"collapse_empty"`

	// Extension overrides DefaultExtension when non-empty. It must start
	// with a dot.
	Extension string `json:"extension,omitempty"`
}

// Validate checks the spec itself, independent of any table.
func (s Spec) Validate() error {
	var errs []string

	if len(s.Columns) == 0 {
		errs = append(errs, "at least one filename column is required")
	}
	for _, c := range s.Columns {
		if strings.TrimSpace(c) == "" {
			errs = append(errs, "filename column names must be non-empty")
			break
		}
	}
	if strings.ContainsAny(s.Separator, illegalChars) {
		errs = append(errs, fmt.Sprintf("separator %q contains characters illegal in filenames", s.Separator))
	}
	if s.Extension != "" && !strings.HasPrefix(s.Extension, ".") {
		errs = append(errs, fmt.Sprintf("extension %q must start with a dot", s.Extension))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid filename spec: %s", strings.Join(errs, "; "))
	}
	return nil
}

// extension returns the effective extension for the spec.
func (s Spec) extension() string {
	if s.Extension != "" {
		return s.Extension
	}
	return DefaultExtension
}

// Build composes the candidate filename for a row. Cells are sanitized
// individually so a separator embedded in data cannot collide with the
// configured one after cleanup. An entirely empty base falls back to
// "untitled" so the result is always a usable name.
func Build(row tabular.Row, spec Spec) string {
	parts := make([]string, 0, len(spec.Columns))
	for _, col := range spec.Columns {
		v := Sanitize(row[col])
		if v == "" && spec.CollapseEmpty {
			continue
		}
		parts = append(parts, v)
	}

	base := strings.Join(parts, spec.Separator)
	if strings.Trim(base, spec.Separator) == "" {
		base = "untitled"
	}
	return base + spec.extension()
}

// Sanitize strips characters that are illegal in filesystem names,
// replacing them with '-', and removes control characters outright.
// Leading and trailing whitespace is trimmed.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r < 0x20 || r == 0x7F:
			// drop control characters
		case strings.ContainsRune(illegalChars, r):
			b.WriteByte('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// CheckAgainst samples the table's first rows and reports whether the spec
// would produce unusable filenames (missing columns, names past the length
// limit). Run this before a batch so configuration problems surface as a
// request error instead of a wall of per-row failures.
func CheckAgainst(t *tabular.Table, spec Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	for _, col := range spec.Columns {
		if !t.HasColumn(col) {
			return fmt.Errorf("filename column %q not found in sheet %q", col, t.Sheet)
		}
	}

	n := len(t.Rows)
	if n > validationSampleRows {
		n = validationSampleRows
	}
	for i := 0; i < n; i++ {
		name := Build(t.Rows[i], spec)
		if len(name) > MaxFilenameLength {
			return fmt.Errorf("generated filename exceeds %d characters: %q...", MaxFilenameLength, name[:50])
		}
	}
	return nil
}
