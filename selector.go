package afscgap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/alitto/pond"
	"github.com/samber/lo"
)

// parseHaulKey parses the "{year}_{survey}_{haul}" string form written to
// every index shard back into a HaulKey.
func parseHaulKey(s string) (HaulKey, error) {
	parts := strings.SplitN(s, "_", 3)
	if len(parts) != 3 {
		return HaulKey{}, fmt.Errorf("afscgap: malformed haul key %q", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return HaulKey{}, fmt.Errorf("afscgap: malformed haul key year %q: %w", s, err)
	}
	haul, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return HaulKey{}, fmt.Errorf("afscgap: malformed haul key haul %q: %w", s, err)
	}
	return HaulKey{Year: year, Survey: parts[1], Haul: haul}, nil
}

// HaulSelector narrows a query's field filters down to the set of
// candidate hauls whose flat files need fetching, consulting per-field
// indices when available and falling back to the main haul index when a
// query has no usable index filter. Grounded on the original system's
// flat.py get_hauls/check_warning, with the per-index fan-out executed
// concurrently via a pond pool the way the teacher's cmd/main.go fans out
// per-file conversion work.
type HaulSelector struct {
	Requestor   Requestor
	Concurrency int
	Threshold   int
	Warn        WarnFunc
}

// indexShardPath is the on-disk location of a single field's index shard.
// The build pipeline (C8) writes exactly one combined shard per index name
// after the merge pass, at this same path.
func indexShardPath(indexName string) string {
	return "index/" + indexName + ".avro"
}

const mainIndexPath = "index/main.avro"

// SelectHauls returns the candidate haul keys for a query's field filters.
// presenceOnly controls whether presence-only fields (species identity) are
// permitted to use their index, per the package's presence_only policy
// (see DESIGN.md's Open Question resolution #1).
func (s *HaulSelector) SelectHauls(ctx context.Context, filters map[string]*Filter, presenceOnly bool) ([]HaulKey, error) {
	type fieldFilters struct {
		field   string
		indices []IndexFilter
	}

	usable := make([]fieldFilters, 0, len(filters))
	for field, filter := range filters {
		indices, err := MakeIndexFilters(field, filter, presenceOnly)
		if err != nil {
			return nil, err
		}
		if len(indices) > 0 {
			usable = append(usable, fieldFilters{field: field, indices: indices})
		}
	}

	if len(usable) == 0 {
		keys, err := s.fetchMainIndex(ctx)
		if err != nil {
			return nil, err
		}
		checkLargeResult(len(keys), s.Threshold, s.Warn)
		return keys, nil
	}

	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	pool := pond.New(concurrency, len(usable), pond.Context(ctx))

	type result struct {
		field string
		keys  []string
		err   error
	}
	results := make([]result, len(usable))
	var mu sync.Mutex

	for i, ff := range usable {
		idx := i
		field := ff.field
		indexFilter := ff.indices[0]
		pool.Submit(func() {
			keys, err := s.matchingHaulStrings(ctx, indexFilter)
			mu.Lock()
			results[idx] = result{field: field, keys: keys, err: err}
			mu.Unlock()
		})
	}
	pool.StopAndWait()

	var sets [][]string
	var firstErr error
	for _, r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("afscgap: selecting hauls for field %q: %w", r.field, r.err)
			continue
		}
		sets = append(sets, r.keys)
	}
	if firstErr != nil {
		return nil, firstErr
	}

	intersection := sets[0]
	for _, set := range sets[1:] {
		intersection = lo.Intersect(intersection, set)
	}

	keys := make([]HaulKey, 0, len(intersection))
	for _, s := range intersection {
		key, err := parseHaulKey(s)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}

	checkLargeResult(len(keys), s.Threshold, s.Warn)
	return keys, nil
}

// matchingHaulStrings fetches one index shard and returns the deduplicated
// union of haul key strings for every entry the filter matches. A logical-OR
// group is resolved by fetching each inner filter's own index and taking the
// union of their matches.
func (s *HaulSelector) matchingHaulStrings(ctx context.Context, filter IndexFilter) ([]string, error) {
	if group, ok := filter.(*logicalOrIndexFilter); ok {
		var union []string
		for _, inner := range group.inners {
			keys, err := s.matchingHaulStrings(ctx, inner)
			if err != nil {
				return nil, err
			}
			union = append(union, keys...)
		}
		return lo.Uniq(union), nil
	}

	data, err := s.Requestor.Fetch(ctx, indexShardPath(filter.IndexName()))
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, nil
		}
		return nil, err
	}

	entries, err := DecodeIndexEntries(data)
	if err != nil {
		return nil, err
	}

	var matched []string
	for value, hauls := range entries {
		if filter.Matches(value) {
			matched = append(matched, hauls...)
		}
	}

	return lo.Uniq(matched), nil
}

func (s *HaulSelector) fetchMainIndex(ctx context.Context) ([]HaulKey, error) {
	data, err := s.Requestor.Fetch(ctx, mainIndexPath)
	if err != nil {
		return nil, err
	}
	return DecodeMainIndex(data)
}
