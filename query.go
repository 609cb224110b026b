package afscgap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
)

// Config holds the shared, reusable settings for building Query values
// against one backing store. Grounded on the teacher's config-struct-with-
// applied-defaults pattern (tiledb.go/cmd/main.go's TileDB config
// handling), generalized from a single TileDB config object to the full
// set of knobs this package's concurrency and retry model needs.
type Config struct {
	// Requestor fetches flat files, index shards, and the main index.
	Requestor Requestor

	// Concurrency bounds how many hauls are fetched, or how many index
	// shards are consulted, at once. Defaults to 32.
	Concurrency int

	// RequestTimeout defaults to 5 minutes. Execute does not apply it: no
	// deadline is set on individual object fetches, which run under the
	// caller's ctx only.
	RequestTimeout time.Duration

	// RetryDelay defaults to 2 seconds. Execute does not pass it on; the
	// delay between a fetch's first attempt and its single retry is the one
	// the Requestor was constructed with.
	RetryDelay time.Duration

	// Clock defaults to a real clock. Execute does not consult it; retry
	// waits run in real time inside the Requestor.
	Clock clockwork.Clock

	// LargeResultThreshold is the candidate haul count beyond which Warn
	// is invoked. Defaults to 3000.
	LargeResultThreshold int

	// Warn receives query-planning warnings. Defaults to stdlib log.
	Warn WarnFunc

	// PresenceOnly governs whether species-identity fields (species_code,
	// scientific_name, common_name) may use their index, which excludes
	// zero-catch inferred rows. See DESIGN.md's Open Question resolution.
	PresenceOnly bool
}

// NewConfig returns a Config for requestor with every default applied.
func NewConfig(requestor Requestor) *Config {
	return &Config{
		Requestor:            requestor,
		Concurrency:          32,
		RequestTimeout:       5 * time.Minute,
		RetryDelay:           2 * time.Second,
		Clock:                clockwork.NewRealClock(),
		LargeResultThreshold: defaultLargeResultThreshold,
		Warn:                 func(msg string) { log.Println(msg) },
		PresenceOnly:         false,
	}
}

// Query is a single, mutable filter/field selection built against a
// Config. It is not safe for concurrent use; build one Query per logical
// request.
type Query struct {
	config  *Config
	filters map[string]*Filter
	limit   int
	closed  bool
}

// NewQuery starts a new, unfiltered Query against config.
func NewQuery(config *Config) *Query {
	return &Query{config: config, filters: make(map[string]*Filter), limit: -1}
}

// SetFilter attaches a constraint for field, replacing any previous
// constraint on that field. A malformed range (both bounds present, low
// after high) or an equals filter that also carries a range bound is
// rejected immediately as a FilterConstructionError, before any I/O happens,
// per the package's fail-fast construction rule.
func (q *Query) SetFilter(field string, filter *Filter) error {
	if q.closed {
		return ErrQueryClosed
	}
	if filter == nil || filter.IsIgnorable() {
		delete(q.filters, field)
		return nil
	}

	if err := validateFilterBounds(field, filter); err != nil {
		return err
	}

	q.filters[field] = filter
	return nil
}

func validateFilterBounds(field string, f *Filter) error {
	if f.Type == FilterEquals {
		if f.LowStr != nil || f.HighStr != nil || f.LowInt != nil || f.HighInt != nil || f.LowFloat != nil || f.HighFloat != nil {
			return &FilterConstructionError{Field: field, Reason: "equals filter combined with a range bound"}
		}
		return nil
	}
	if f.Type != FilterRange {
		return nil
	}
	switch f.Kind {
	case TypeString, TypeDatetime:
		if f.LowStr != nil && f.HighStr != nil && *f.LowStr > *f.HighStr {
			return &FilterConstructionError{Field: field, Reason: "range low bound is after high bound"}
		}
	case TypeInt:
		if f.LowInt != nil && f.HighInt != nil && *f.LowInt > *f.HighInt {
			return &FilterConstructionError{Field: field, Reason: "range low bound is greater than high bound"}
		}
	case TypeFloat:
		if f.LowFloat != nil && f.HighFloat != nil && *f.LowFloat > *f.HighFloat {
			return &FilterConstructionError{Field: field, Reason: "range low bound is greater than high bound"}
		}
	}
	return nil
}

// Limit caps the number of Observations a subsequent Execute will yield. A
// negative value (the default) means unlimited.
func (q *Query) Limit(n int) {
	q.limit = n
}

// QueryResult carries both the Cursor of matching Observations and the
// side channel of records that failed to decode or resolve while
// streaming, matching the original system's separation of "rows that
// matched" from "rows that could not be read."
type QueryResult struct {
	Cursor  Cursor
	Invalid <-chan InvalidRecord
}

// Execute plans and runs the query: select candidate hauls via the
// per-field indices (falling back to the main index), then stream and
// filter their flat files. Returns immediately with a Cursor that is fed
// concurrently in the background; callers should drain both the Cursor and
// Invalid channel to avoid blocking the background fetch.
func (q *Query) Execute(ctx context.Context) (*QueryResult, error) {
	if q.closed {
		return nil, ErrQueryClosed
	}

	localFilter, err := BuildLocalFilter(q.filters)
	if err != nil {
		return nil, fmt.Errorf("afscgap: building local filter: %w", err)
	}

	selector := &HaulSelector{
		Requestor:   q.config.Requestor,
		Concurrency: q.config.Concurrency,
		Threshold:   q.config.LargeResultThreshold,
		Warn:        q.config.Warn,
	}

	hauls, err := selector.SelectHauls(ctx, q.filters, q.config.PresenceOnly)
	if err != nil {
		return nil, fmt.Errorf("afscgap: selecting hauls: %w", err)
	}

	stream := &RecordStream{Requestor: q.config.Requestor, Concurrency: q.config.Concurrency}
	records, errc, invalid := stream.Start(ctx, hauls)

	cursor := buildCursor(records, errc, localFilter, q.limit)

	return &QueryResult{Cursor: cursor, Invalid: invalid}, nil
}

// Close marks the Query unusable. Queries hold no resources of their own
// (the shared Requestor outlives any single Query), so Close exists to
// catch reuse-after-close bugs rather than to release anything.
func (q *Query) Close() {
	q.closed = true
}
