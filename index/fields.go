// Package index builds and merges the per-field inverted indices that the
// query package's haul selector consults to narrow a filtered query down
// to candidate hauls without fetching every flat file.
//
// Grounded on the original snapshot builder's generate_indicies.py
// (per-field, per-haul index record generation with a global reduce before
// sharding) and combine_shards.py (renormalize-and-concatenate merge, with
// entries of equal value from different shards combined).
package index

import (
	"sort"

	afscgap "github.com/schmidtdse/afscgap-go"
)

// shardedPrefix is where newly-written, not-yet-merged shards for a field
// live before CombineShards consolidates them.
const shardedPrefix = "index_sharded/"

// mergedPrefix is where a field's single consolidated index lives, the
// path the query package's selector reads from.
const mergedPrefix = "index/"

// FieldNames returns the full set of indexable field names this package
// can build a shard for, in a stable order (alphabetical) so build runs
// are reproducible.
func FieldNames() []string {
	names := afscgap.IndexNames()
	sort.Strings(names)
	return names
}
