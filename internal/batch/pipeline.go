// Package batch orchestrates one generation run: iterate the table in row
// order, normalize and encode each URL cell, derive a filename, resolve
// collisions against names already taken in this run, and account for
// every row in the outcome. A row failure never aborts the batch.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qrsheet/qrsheet/internal/classify"
	"github.com/qrsheet/qrsheet/internal/naming"
	"github.com/qrsheet/qrsheet/internal/qr"
	"github.com/qrsheet/qrsheet/internal/tabular"
)

// DefaultMaxCollisionAttempts bounds filename disambiguation. Hitting it
// means thousands of rows collapsed to one base name; the row is recorded
// as failed rather than looping further.
const DefaultMaxCollisionAttempts = 10000

// contextCheckInterval is how often (in rows) cancellation is checked.
const contextCheckInterval = 100

// FailureReason classifies why a row produced no image.
type FailureReason string

const (
	ReasonEmptyURL  FailureReason = "empty_url_cell"
	ReasonEncoding  FailureReason = "encoding_error"
	ReasonCollision FailureReason = "filename_collision_unresolved"
)

// Result is the per-row outcome. Exactly one of the success fields
// (Filename, Image) or the failure fields (Reason, Detail) is populated.
type Result struct {
	// Row is the zero-based index into the input table.
	Row int `json:"row"`

	// OK reports whether the row produced an image.
	OK bool `json:"ok"`

	// Filename is the final, collision-resolved name. Success only.
	Filename string `json:"filename,omitempty"`

	// Image holds the PNG bytes. Success only; omitted from JSON.
	Image []byte `json:"-"`

	// Reason and Detail describe the failure. Failure only.
	Reason FailureReason `json:"reason,omitempty"`
	Detail string        `json:"detail,omitempty"`
}

// Outcome aggregates a full run. Results preserve input row order and
// contain exactly one entry per input row.
type Outcome struct {
	Results   []Result      `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"-"`
}

// Successes returns only the successful results, in row order.
func (o *Outcome) Successes() []Result {
	out := make([]Result, 0, o.Succeeded)
	for _, r := range o.Results {
		if r.OK {
			out = append(out, r)
		}
	}
	return out
}

// Failures returns only the failed results, in row order.
func (o *Outcome) Failures() []Result {
	out := make([]Result, 0, o.Failed)
	for _, r := range o.Results {
		if !r.OK {
			out = append(out, r)
		}
	}
	return out
}

// add appends a result and updates the counters.
func (o *Outcome) add(r Result) {
	o.Results = append(o.Results, r)
	if r.OK {
		o.Succeeded++
	} else {
		o.Failed++
	}
}

// Image returns the bytes for a generated filename, for single-file
// download after a run.
func (o *Outcome) Image(filename string) ([]byte, bool) {
	for _, r := range o.Results {
		if r.OK && r.Filename == filename {
			return r.Image, true
		}
	}
	return nil, false
}

// Pipeline runs batches. It holds configuration only; all per-run state
// (the collision set, the outcome) is local to Run, so one Pipeline may
// serve concurrent runs.
type Pipeline struct {
	maxCollisionAttempts int
	debug                bool
	logger               *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxCollisionAttempts overrides the disambiguation bound.
func WithMaxCollisionAttempts(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxCollisionAttempts = n
		}
	}
}

// WithDebug enables per-row debug logging.
func WithDebug(debug bool) Option {
	return func(p *Pipeline) { p.debug = debug }
}

// WithLogger sets the logger used for run summaries and debug output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		maxCollisionAttempts: DefaultMaxCollisionAttempts,
		logger:               slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes every row of the table and returns a complete outcome.
// Configuration problems (unknown URL column, invalid specs) fail up front
// with an error; per-row data problems are recorded in the outcome and
// never abort the run. The context is checked periodically so an
// abandoned request does not keep encoding.
func (p *Pipeline) Run(ctx context.Context, t *tabular.Table, urlColumn string, nameSpec naming.Spec, qrSpec qr.Spec) (*Outcome, error) {
	if !t.HasColumn(urlColumn) {
		return nil, fmt.Errorf("url column %q not found in sheet %q", urlColumn, t.Sheet)
	}
	if err := qrSpec.Validate(); err != nil {
		return nil, err
	}
	if err := naming.CheckAgainst(t, nameSpec); err != nil {
		return nil, err
	}

	start := time.Now()
	outcome := &Outcome{Results: make([]Result, 0, len(t.Rows))}
	taken := make(map[string]struct{}, len(t.Rows))

	for i, row := range t.Rows {
		if i%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("run cancelled at row %d: %w", i, err)
			}
		}
		outcome.add(p.processRow(i, row, urlColumn, nameSpec, qrSpec, taken))
	}

	outcome.Duration = time.Since(start)
	p.logger.Info("batch run complete",
		"sheet", t.Sheet,
		"rows", len(t.Rows),
		"succeeded", outcome.Succeeded,
		"failed", outcome.Failed,
		"duration", outcome.Duration,
	)
	return outcome, nil
}

// processRow handles one row, mutating only the run-local collision set.
func (p *Pipeline) processRow(i int, row tabular.Row, urlColumn string, nameSpec naming.Spec, qrSpec qr.Spec, taken map[string]struct{}) Result {
	raw := strings.TrimSpace(row[urlColumn])
	if raw == "" {
		if p.debug {
			p.logger.Debug("row skipped", "row", i, "reason", ReasonEmptyURL)
		}
		return Result{Row: i, Reason: ReasonEmptyURL, Detail: "url cell is empty"}
	}

	content := classify.EnsureScheme(raw)

	image, err := qr.Encode(content, qrSpec)
	if err != nil {
		if p.debug {
			p.logger.Debug("row skipped", "row", i, "reason", ReasonEncoding, "error", err)
		}
		return Result{Row: i, Reason: ReasonEncoding, Detail: err.Error()}
	}

	candidate := naming.Build(row, nameSpec)
	final, ok := resolveCollision(candidate, taken, p.maxCollisionAttempts)
	if !ok {
		return Result{
			Row:    i,
			Reason: ReasonCollision,
			Detail: fmt.Sprintf("could not disambiguate %q within %d attempts", candidate, p.maxCollisionAttempts),
		}
	}
	taken[final] = struct{}{}

	if p.debug {
		p.logger.Debug("row encoded", "row", i, "filename", final, "bytes", len(image))
	}
	return Result{Row: i, OK: true, Filename: final, Image: image}
}

// resolveCollision returns candidate unchanged if free, otherwise appends
// -2, -3, ... before the extension until a free name is found. The first
// occupant of a name keeps it untouched; disambiguation always attaches to
// the later row.
func resolveCollision(candidate string, taken map[string]struct{}, maxAttempts int) (string, bool) {
	if _, exists := taken[candidate]; !exists {
		return candidate, true
	}

	base, ext := splitExtension(candidate)
	for n := 2; n <= maxAttempts; n++ {
		name := fmt.Sprintf("%s-%d%s", base, n, ext)
		if _, exists := taken[name]; !exists {
			return name, true
		}
	}
	return "", false
}

// splitExtension splits "a.png" into ("a", ".png"). A name with no dot
// comes back with an empty extension.
func splitExtension(name string) (string, string) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx:]
}
