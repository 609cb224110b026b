package build

import (
	"context"
	"sync"

	"github.com/alitto/pond"
	afscgap "github.com/schmidtdse/afscgap-go"
	"github.com/schmidtdse/afscgap-go/index"
)

// JoinAll discovers every haul with both metadata and catch records
// staged from the ingestion step and joins them concurrently, the same
// fixed-size-pool-over-a-work-list pattern the teacher's
// convert_gsf_list uses to fan out per-file conversion.
func JoinAll(ctx context.Context, store Store, concurrency int) error {
	speciesByCode, err := LoadSpeciesByCode(ctx, store)
	if err != nil {
		return err
	}

	paths, err := store.List(ctx, "haul/", ".avro")
	if err != nil {
		return err
	}

	keys := make([]afscgap.HaulKey, 0, len(paths))
	for _, path := range paths {
		key, ok := parseJoinedPath(path)
		if !ok {
			continue
		}
		keys = append(keys, key)
	}

	if concurrency <= 0 {
		concurrency = 1
	}
	pool := pond.New(concurrency, len(keys), pond.Context(ctx))

	joiner := &Joiner{Store: store}
	var mu sync.Mutex
	var firstErr error

	for _, key := range keys {
		k := key
		pool.Submit(func() {
			if err := joiner.JoinHaul(ctx, k, speciesByCode); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
	}
	pool.StopAndWait()

	return firstErr
}

// BuildIndices shards and merges every indexable field's per-field index
// from the joined flat files written by JoinAll, fanning the per-field
// work out across the same pool pattern.
func BuildIndices(ctx context.Context, store Store, concurrency int) error {
	paths, err := store.List(ctx, "joined/", ".avro")
	if err != nil {
		return err
	}
	keys := make([]afscgap.HaulKey, 0, len(paths))
	for _, path := range paths {
		key, ok := parseJoinedPath(path)
		if !ok {
			continue
		}
		keys = append(keys, key)
	}

	fields := index.FieldNames()
	builder := &index.Builder{Store: store}

	if concurrency <= 0 {
		concurrency = 1
	}
	pool := pond.New(concurrency, len(fields), pond.Context(ctx))

	var mu sync.Mutex
	var firstErr error

	for _, field := range fields {
		f := field
		pool.Submit(func() {
			if _, err := builder.BuildShard(ctx, store, f, keys); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			if err := builder.CombineShards(ctx, store, f); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
	}
	pool.StopAndWait()

	if firstErr != nil {
		return firstErr
	}
	return BuildMainIndex(ctx, store)
}
