package index

import (
	"context"
	"strings"

	afscgap "github.com/schmidtdse/afscgap-go"
)

// CombineShards consolidates every not-yet-merged shard for field into the
// single index/{field}.avro the query path's haul selector reads, then
// deletes the consumed shards. Grounded on combine_shards.py: each shard
// value is renormalized, and entries from different shards whose
// normalized values are equal are combined into one entry whose haul keys
// are the concatenation of theirs (duplicates are kept).
func (b *Builder) CombineShards(ctx context.Context, writer afscgap.Writer, field string) error {
	shardPaths, err := b.Store.List(ctx, shardedPrefix, ".avro")
	if err != nil {
		return err
	}

	prefix := shardedPrefix + field + "_"
	merged := make(map[string][]string)

	for _, path := range shardPaths {
		if !strings.HasPrefix(path, prefix) {
			continue
		}

		data, err := b.Store.Fetch(ctx, path)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return err
		}

		entries, err := afscgap.DecodeIndexEntries(data)
		if err != nil {
			return err
		}

		for value, hauls := range entries {
			normalized := normalizeEntryValue(field, value)
			merged[normalized] = append(merged[normalized], hauls...)
		}
	}

	if len(merged) == 0 {
		return nil
	}

	encoded, err := afscgap.EncodeIndexEntries(merged)
	if err != nil {
		return err
	}

	if err := writer.Put(ctx, mergedPrefix+field+".avro", encoded); err != nil {
		return err
	}

	for _, path := range shardPaths {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if err := writer.Delete(ctx, path); err != nil {
			return err
		}
	}

	return nil
}

// normalizeEntryValue re-applies the field's normalization rule to an
// already-normalized shard value, matching combine_shards.py's
// normalize_record pass. Shard values are already strings (the index
// container stores them that way), so for floating-point fields this
// re-parses and reformats the string, which guards against a shard written
// with a different float precision than the current build.
func normalizeEntryValue(field, value string) string {
	normalized := afscgap.NormalizeValue(field, value)
	if s, ok := normalized.(string); ok {
		return s
	}
	return value
}
