package afscgap

// InvalidRecord describes one record that failed to decode or parse while
// streaming a haul's flat file, reported on the cursor's side channel
// instead of aborting the whole query.
type InvalidRecord struct {
	HaulKey HaulKey
	Index   int
	Reason  error
}

// Cursor yields Observations one at a time. Implementations are not safe
// for concurrent use by multiple goroutines, matching the original
// system's single-threaded cursor; concurrency lives one layer down, in
// the record stream that populates the cursor's source.
//
// Grounded on the original system's flat_cursor module: FlatCursor is the
// base iterator, CompleteCursor filters to query-matching records, and
// LimitCursor caps the total yielded — implemented here as a decorator
// chain over a common Cursor interface rather than Python's inheritance
// chain.
type Cursor interface {
	// Next returns the next Observation, or ok=false once exhausted.
	Next() (obs *Observation, ok bool, err error)
}

// baseCursor drains a channel of Observations produced by the record
// stream (C5), which runs independently and may still be filling the
// channel concurrently.
type baseCursor struct {
	records <-chan *Observation
	errc    <-chan error
}

func newBaseCursor(records <-chan *Observation, errc <-chan error) *baseCursor {
	return &baseCursor{records: records, errc: errc}
}

func (c *baseCursor) Next() (*Observation, bool, error) {
	select {
	case err, ok := <-c.errc:
		if ok && err != nil {
			return nil, false, err
		}
	default:
	}

	obs, ok := <-c.records
	if !ok {
		return nil, false, nil
	}
	return obs, true, nil
}

// completeCursor only yields Observations that satisfy the query's local
// filter — the final, authoritative per-row check run after haul selection
// has already narrowed the candidate set.
type completeCursor struct {
	inner  Cursor
	filter LocalFilter
}

func newCompleteCursor(inner Cursor, filter LocalFilter) *completeCursor {
	return &completeCursor{inner: inner, filter: filter}
}

func (c *completeCursor) Next() (*Observation, bool, error) {
	for {
		obs, ok, err := c.inner.Next()
		if err != nil || !ok {
			return nil, ok, err
		}
		if c.filter == nil || c.filter.Matches(obs) {
			return obs, true, nil
		}
	}
}

// limitCursor caps the number of Observations returned, short-circuiting
// the underlying stream once the cap is reached.
type limitCursor struct {
	inner   Cursor
	limit   int
	yielded int
}

func newLimitCursor(inner Cursor, limit int) *limitCursor {
	return &limitCursor{inner: inner, limit: limit}
}

func (c *limitCursor) Next() (*Observation, bool, error) {
	if c.limit >= 0 && c.yielded >= c.limit {
		return nil, false, nil
	}
	obs, ok, err := c.inner.Next()
	if err != nil || !ok {
		return nil, ok, err
	}
	c.yielded++
	return obs, true, nil
}

// buildCursor composes the decorator chain described above: base, then the
// completeness decorator applying filter (always present), then an
// optional limit. A limit < 0 means unlimited.
func buildCursor(records <-chan *Observation, errc <-chan error, filter LocalFilter, limit int) Cursor {
	var cur Cursor = newBaseCursor(records, errc)
	cur = newCompleteCursor(cur, filter)
	if limit >= 0 {
		cur = newLimitCursor(cur, limit)
	}
	return cur
}
