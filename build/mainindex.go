package build

import (
	"context"
	"strconv"
	"strings"

	afscgap "github.com/schmidtdse/afscgap-go"
)

// BuildMainIndex lists every joined flat file and writes the main haul
// index consulted when a query has no usable per-field index filter,
// grounded on write_main_index.py's make_haul_metadata_record/main.
func BuildMainIndex(ctx context.Context, store Store) error {
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

	encoded, err := afscgap.EncodeMainIndex(keys)
	if err != nil {
		return err
	}
	return store.Put(ctx, "index/main.avro", encoded)
}

// parseJoinedPath extracts a HaulKey from a joined/{year}_{survey}_{haul}.avro
// path, matching make_haul_metadata_record's filename parsing.
func parseJoinedPath(path string) (afscgap.HaulKey, bool) {
	base := path
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	base = strings.TrimSuffix(base, ".avro")

	parts := strings.SplitN(base, "_", 3)
	if len(parts) != 3 {
		return afscgap.HaulKey{}, false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return afscgap.HaulKey{}, false
	}
	haul, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return afscgap.HaulKey{}, false
	}
	return afscgap.HaulKey{Year: year, Survey: parts[1], Haul: haul}, true
}
