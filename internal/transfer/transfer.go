// Package transfer moves events between the store and iCalendar / CSV files.
//
// The codecs in internal/ics and internal/csvio only translate bytes to
// event inputs and back. This package picks the codec from the file
// extension, applies the import failure policy and enforces the end-after-
// start boundary before anything reaches the store.
package transfer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"evcal/internal/atomicfile"
	"evcal/internal/csvio"
	"evcal/internal/errdef"
	"evcal/internal/ics"
	appLog "evcal/internal/log"
	"evcal/internal/model"
)

// Policy decides what happens to records that cannot be imported.
type Policy string

const (
	// PolicySkip records invalid records in the outcome and imports the rest.
	PolicySkip Policy = "skip"
	// PolicyAbort fails the whole import on the first invalid record, adding nothing.
	PolicyAbort Policy = "abort"
)

// ParsePolicy accepts "skip" or "abort"; the empty string means skip.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyAbort:
		return PolicyAbort, nil
	default:
		return "", errdef.NewValidation("unknown import policy %q (want skip or abort)", s)
	}
}

// Format is a supported file format.
type Format string

const (
	FormatICS Format = "ics"
	FormatCSV Format = "csv"
)

// FormatOf picks the format from the file extension, case-insensitively.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ics":
		return FormatICS, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", errdef.NewUnsupportedFormat("unsupported file format %q (want .ics or .csv)", filepath.Ext(path))
	}
}

// Store is the part of the event store the translator writes to and reads from.
type Store interface {
	Add(ctx context.Context, in model.EventInput) (int64, error)
	AddAll(ctx context.Context, ins []model.EventInput) ([]int64, error)
	GetByDateRange(ctx context.Context, start, end time.Time) ([]model.Event, error)
}

// SkippedRecord is an input record that was not imported.
type SkippedRecord struct {
	// Index is the 1-based position of the VEVENT or CSV data row.
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ImportOutcome reports the ids added and the records skipped by an import.
type ImportOutcome struct {
	Added   []int64         `json:"added"`
	Skipped []SkippedRecord `json:"skipped"`
}

// Option configures a Translator.
type Option func(*Translator)

// WithLocation sets the zone used for floating and date-only times on
// import, and for CSV columns on export.
func WithLocation(loc *time.Location) Option {
	return func(t *Translator) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// WithPolicy sets the import failure policy.
func WithPolicy(p Policy) Option { return func(t *Translator) { t.policy = p } }

// WithClock overrides the clock used for DTSTAMP values.
func WithClock(now func() time.Time) Option {
	return func(t *Translator) {
		if now != nil {
			t.now = now
		}
	}
}

// Translator imports and exports events for a store.
type Translator struct {
	store  Store
	loc    *time.Location
	policy Policy
	now    func() time.Time
}

// New returns a Translator writing to store. The default policy is skip.
func New(store Store, opts ...Option) *Translator {
	t := &Translator{
		store:  store,
		loc:    time.Local,
		policy: PolicySkip,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type candidate struct {
	index int
	input model.EventInput
	err   error
}

// Import reads path and adds its events to the store.
//
// Structural problems (unreadable file, unknown extension, an iCalendar
// payload that cannot be parsed, a CSV header without title or start_time)
// fail the whole import. Problems with single records follow the policy.
func (t *Translator) Import(ctx context.Context, path string) (ImportOutcome, error) {
	format, err := FormatOf(path)
	if err != nil {
		return ImportOutcome{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportOutcome{}, errdef.NewStorage("read %s: %w", path, err)
	}

	cands, err := t.decode(format, data)
	if err != nil {
		return ImportOutcome{}, err
	}

	var out ImportOutcome
	if t.policy == PolicyAbort {
		out, err = t.importAll(ctx, cands)
	} else {
		out, err = t.importEach(ctx, cands)
	}
	if err != nil {
		appLog.Error("import failed", err, "path", path, "added", len(out.Added))
		return out, err
	}
	appLog.Info("import finished", "path", path, "format", format, "added", len(out.Added), "skipped", len(out.Skipped))
	return out, nil
}

func (t *Translator) decode(format Format, data []byte) ([]candidate, error) {
	var cands []candidate
	switch format {
	case FormatICS:
		recs, err := ics.Decode(data, t.loc)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			cands = append(cands, candidate{index: r.Index, input: r.Input, err: r.Err})
		}
	case FormatCSV:
		recs, err := csvio.Decode(bytes.NewReader(data), t.loc)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			cands = append(cands, candidate{index: r.Index, input: r.Input, err: r.Err})
		}
	}

	for i := range cands {
		c := &cands[i]
		if c.err == nil && !c.input.EndTime.After(c.input.StartTime) {
			c.err = errdef.NewValidation("end time %s is not after start time %s",
				c.input.EndTime.Format(time.RFC3339), c.input.StartTime.Format(time.RFC3339))
		}
	}
	return cands, nil
}

func (t *Translator) importEach(ctx context.Context, cands []candidate) (ImportOutcome, error) {
	var out ImportOutcome
	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if c.err != nil {
			out.skip(c.index, c.err)
			continue
		}
		id, err := t.store.Add(ctx, c.input)
		if err != nil {
			if errdef.IsValidation(err) {
				out.skip(c.index, err)
				continue
			}
			return out, err
		}
		out.Added = append(out.Added, id)
	}
	return out, nil
}

func (t *Translator) importAll(ctx context.Context, cands []candidate) (ImportOutcome, error) {
	ins := make([]model.EventInput, 0, len(cands))
	for _, c := range cands {
		if c.err != nil {
			return ImportOutcome{}, fmt.Errorf("record %d: %w", c.index, c.err)
		}
		ins = append(ins, c.input)
	}
	if err := ctx.Err(); err != nil {
		return ImportOutcome{}, err
	}
	if len(ins) == 0 {
		return ImportOutcome{}, nil
	}
	ids, err := t.store.AddAll(ctx, ins)
	if err != nil {
		return ImportOutcome{}, err
	}
	return ImportOutcome{Added: ids}, nil
}

func (o *ImportOutcome) skip(index int, err error) {
	appLog.Debug("import: skipping record", "index", index, "reason", err.Error())
	o.Skipped = append(o.Skipped, SkippedRecord{Index: index, Reason: err.Error()})
}

// Export writes events to path in the format chosen by its extension. The
// file is replaced atomically.
func (t *Translator) Export(ctx context.Context, path string, events []model.Event) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	switch format {
	case FormatICS:
		err = ics.Encode(&buf, events, t.now())
	case FormatCSV:
		err = csvio.Encode(&buf, events, t.loc)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}

	if err := atomicfile.Write(path, buf.Bytes(), 0o644, 0o755); err != nil {
		return errdef.NewStorage("write %s: %w", path, err)
	}
	appLog.Info("export finished", "path", path, "format", format, "events", len(events))
	return nil
}

// ExportRange exports every stored event overlapping [start, end] and
// returns how many were written.
func (t *Translator) ExportRange(ctx context.Context, path string, start, end time.Time) (int, error) {
	if _, err := FormatOf(path); err != nil {
		return 0, err
	}
	events, err := t.store.GetByDateRange(ctx, start, end)
	if err != nil {
		return 0, err
	}
	if err := t.Export(ctx, path, events); err != nil {
		return 0, err
	}
	return len(events), nil
}

// AllStart and AllEnd bound the window used by ExportAll.
var (
	AllStart = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	AllEnd   = time.Date(2100, 12, 31, 23, 59, 59, 0, time.UTC)
)

// ExportAll exports every event between AllStart and AllEnd.
func (t *Translator) ExportAll(ctx context.Context, path string) (int, error) {
	return t.ExportRange(ctx, path, AllStart, AllEnd)
}
