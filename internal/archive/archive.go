// Package archive packages the images of a batch run into a single ZIP
// for download. Entry names are the pipeline's collision-resolved
// filenames, so uniqueness is guaranteed upstream; a duplicate reaching
// this layer is an internal invariant violation, not a row failure.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"

	"github.com/qrsheet/qrsheet/internal/batch"
)

// ErrDuplicateEntry signals a duplicate entry name, which the pipeline's
// collision resolution is supposed to make impossible.
var ErrDuplicateEntry = errors.New("duplicate archive entry")

// Archive is an assembled ZIP plus its accounting summary.
type Archive struct {
	// Data is the complete ZIP file.
	Data []byte

	// Entries is the number of files included.
	Entries int

	// Excluded is the number of failed rows left out of the archive.
	Excluded int
}

// Assemble builds a ZIP from the successful results of a run. Failed rows
// are counted but contribute no entries.
func Assemble(outcome *batch.Outcome) (*Archive, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	seen := make(map[string]struct{}, outcome.Succeeded)
	entries := 0

	for _, r := range outcome.Results {
		if !r.OK {
			continue
		}
		if _, dup := seen[r.Filename]; dup {
			zw.Close()
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEntry, r.Filename)
		}
		seen[r.Filename] = struct{}{}

		w, err := zw.Create(r.Filename)
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("creating entry %q: %w", r.Filename, err)
		}
		if _, err := w.Write(r.Image); err != nil {
			zw.Close()
			return nil, fmt.Errorf("writing entry %q: %w", r.Filename, err)
		}
		entries++
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}

	return &Archive{
		Data:     buf.Bytes(),
		Entries:  entries,
		Excluded: outcome.Failed,
	}, nil
}
