package index

import (
	"context"
	"testing"

	afscgap "github.com/schmidtdse/afscgap-go"
)

func putJoinedFile(t *testing.T, store *memStore, key afscgap.HaulKey, observations []*afscgap.Observation) {
	t.Helper()
	encoded, err := afscgap.EncodeObservations(observations)
	if err != nil {
		t.Fatalf("EncodeObservations: %v", err)
	}
	if err := store.Put(context.Background(), key.JoinedPath(), encoded); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func TestBuildShardGroupsByNormalizedValue(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	keyA := afscgap.HaulKey{Year: 2021, Survey: "GOA", Haul: 1}
	keyB := afscgap.HaulKey{Year: 2021, Survey: "GOA", Haul: 2}

	depthA := 10.0
	depthB := 20.0
	putJoinedFile(t, store, keyA, []*afscgap.Observation{{DepthM: &depthA}})
	putJoinedFile(t, store, keyB, []*afscgap.Observation{{DepthM: &depthB}})

	builder := &Builder{Store: store}
	path, err := builder.BuildShard(ctx, store, "depth_m", []afscgap.HaulKey{keyA, keyB})
	if err != nil {
		t.Fatalf("BuildShard: %v", err)
	}
	if path == "" {
		t.Fatal("expected a non-empty shard path")
	}

	data, err := store.Fetch(ctx, path)
	if err != nil {
		t.Fatalf("Fetch shard: %v", err)
	}
	entries, err := afscgap.DecodeIndexEntries(data)
	if err != nil {
		t.Fatalf("DecodeIndexEntries: %v", err)
	}

	if hauls, ok := entries["10.00"]; !ok || len(hauls) != 1 || hauls[0] != keyA.String() {
		t.Errorf(`entries["10.00"] = %v, want [%q]`, hauls, keyA.String())
	}
	if hauls, ok := entries["20.00"]; !ok || len(hauls) != 1 || hauls[0] != keyB.String() {
		t.Errorf(`entries["20.00"] = %v, want [%q]`, hauls, keyB.String())
	}
}

func TestBuildShardExcludesZeroCatchForPresenceOnlyField(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	key := afscgap.HaulKey{Year: 2021, Survey: "GOA", Haul: 1}
	speciesCode := int64(21740)
	zero := 0.0
	zeroCount := int64(0)

	// A zero-catch inferred row: complete, all metrics zero.
	zeroCatch := &afscgap.Observation{
		SpeciesCode: &speciesCode,
		CPUEKgKM2:   &zero,
		CPUENoKM2:   &zero,
		WeightKg:    &zero,
		Count:       &zeroCount,
		Complete:    true,
	}
	putJoinedFile(t, store, key, []*afscgap.Observation{zeroCatch})

	builder := &Builder{Store: store}
	path, err := builder.BuildShard(ctx, store, "species_code", []afscgap.HaulKey{key})
	if err != nil {
		t.Fatalf("BuildShard: %v", err)
	}
	if path != "" {
		t.Errorf("expected no shard to be written for an all-zero-catch haul, got path %q", path)
	}
}

func TestBuildShardSkipsMissingHauls(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	missing := afscgap.HaulKey{Year: 2021, Survey: "GOA", Haul: 999}

	builder := &Builder{Store: store}
	path, err := builder.BuildShard(ctx, store, "depth_m", []afscgap.HaulKey{missing})
	if err != nil {
		t.Fatalf("BuildShard: %v", err)
	}
	if path != "" {
		t.Errorf("expected no shard for an entirely-missing haul set, got %q", path)
	}
}

func TestBuildShardUnknownFieldErrors(t *testing.T) {
	store := newMemStore()
	builder := &Builder{Store: store}
	if _, err := builder.BuildShard(context.Background(), store, "not_a_real_field", nil); err == nil {
		t.Fatal("expected an error for an unregistered field")
	}
}
