package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	afscgap "github.com/schmidtdse/afscgap-go"
)

// Builder generates and merges index shards for a single backing store,
// grounded on generate_indicies.py's process_file/write_sample pair and
// combine_shards.py's consolidation pass.
type Builder struct {
	Store afscgap.Requestor
}

// WriterStore pairs a Requestor with the Writer half needed to produce
// shards and merged indices, mirroring how the query path only needs
// Requestor while the build path needs both halves of the same backend.
type WriterStore interface {
	afscgap.Requestor
	afscgap.Writer
}

// BuildShard reads every haul's joined flat file, extracts field's value
// from each allowed observation, and writes one sharded index file
// containing the normalized-value-to-haul-key map. Returns the shard path
// written, or "" if no observation contributed an entry (the original's
// write_sample returns no batch id in that case).
//
// Unlike the original's REQUIRES_FLAT carve-out, which skips the
// foldby-based global reduce for flat fields purely to keep a wide,
// unreduced bag from blowing up a single partition, this implementation
// always bins by normalized value. The on-disk shape is the same
// value-to-haul-keys map either way, and a flat field simply tends to have
// many distinct values with few haul keys apiece; the original's
// distinction is a Dask partitioning optimization, not a semantic one, so
// it is not reproduced here.
func (b *Builder) BuildShard(ctx context.Context, writer afscgap.Writer, field string, hauls []afscgap.HaulKey) (string, error) {
	entries := make(map[string][]string)
	getter, ok := afscgap.FieldAccessor(field)
	if !ok {
		return "", fmt.Errorf("afscgap/index: no accessor registered for field %q", field)
	}

	for _, key := range hauls {
		data, err := b.Store.Fetch(ctx, key.JoinedPath())
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return "", err
		}

		observations, _, err := afscgap.DecodeObservations(data)
		if err != nil {
			return "", err
		}

		for _, obs := range observations {
			if afscgap.IsPresenceOnlyField(field) && obs.IsZeroCatch() {
				continue
			}

			raw := getter(obs)
			if raw == nil {
				continue
			}

			normalized := afscgap.NormalizeValue(field, raw)
			value := fmt.Sprintf("%v", normalized)
			entries[value] = append(entries[value], key.String())
		}
	}

	if len(entries) == 0 {
		return "", nil
	}

	encoded, err := afscgap.EncodeIndexEntries(entries)
	if err != nil {
		return "", err
	}

	shardID := uuid.NewString()
	path := shardedPrefix + field + "_" + shardID + ".avro"
	if err := writer.Put(ctx, path, encoded); err != nil {
		return "", err
	}
	return path, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, afscgap.ErrObjectNotFound)
}
