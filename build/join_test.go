package build

import (
	"context"
	"testing"

	afscgap "github.com/schmidtdse/afscgap-go"
)

func putHaulAndCatches(t *testing.T, store *memStore, key afscgap.HaulKey, haul Haul, catches []Catch) {
	t.Helper()
	ctx := context.Background()

	haulData, err := EncodeHauls([]Haul{haul})
	if err != nil {
		t.Fatalf("EncodeHauls: %v", err)
	}
	if err := store.Put(ctx, "haul/"+key.String()+".avro", haulData); err != nil {
		t.Fatalf("Put haul: %v", err)
	}

	catchData, err := EncodeCatches(catches)
	if err != nil {
		t.Fatalf("EncodeCatches: %v", err)
	}
	if err := store.Put(ctx, "catch/"+keyHaulJoinPath(key.Haul), catchData); err != nil {
		t.Fatalf("Put catch: %v", err)
	}
}

func TestJoinHaulInfersZeroCatchForMissingSpecies(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	key := afscgap.HaulKey{Year: 2021, Survey: "GOA", Haul: 1}
	weight := 10.0
	putHaulAndCatches(t, store, key, Haul{Year: 2021, Srvy: "GOA", Survey: "GOA", HaulJoin: 1}, []Catch{
		{HaulJoin: 1, SpeciesCode: 100, WeightKg: &weight},
	})

	speciesByCode := map[int64]Species{
		100: {SpeciesCode: 100},
		200: {SpeciesCode: 200}, // present in master list, absent from catches.
	}

	joiner := &Joiner{Store: store}
	if err := joiner.JoinHaul(ctx, key, speciesByCode); err != nil {
		t.Fatalf("JoinHaul: %v", err)
	}

	data, err := store.Fetch(ctx, key.JoinedPath())
	if err != nil {
		t.Fatalf("Fetch joined file: %v", err)
	}
	observations, invalid, err := afscgap.DecodeObservations(data)
	if err != nil {
		t.Fatalf("DecodeObservations: %v", err)
	}
	if len(invalid) != 0 {
		t.Fatalf("expected no invalid records, got %v", invalid)
	}
	if len(observations) != 2 {
		t.Fatalf("expected one caught-species row and one inferred zero-catch row, got %d", len(observations))
	}

	var caught, zeroCatch *afscgap.Observation
	for _, obs := range observations {
		switch *obs.SpeciesCode {
		case 100:
			caught = obs
		case 200:
			zeroCatch = obs
		}
	}
	if caught == nil || caught.WeightKg == nil || *caught.WeightKg != weight {
		t.Fatalf("expected the caught species row to carry its weight, got %+v", caught)
	}
	if zeroCatch == nil {
		t.Fatal("expected an inferred zero-catch row for species 200")
	}
	if !zeroCatch.IsZeroCatch() {
		t.Error("expected the inferred row for an uncaught species to report as a zero-catch record")
	}
	if !zeroCatch.Complete {
		t.Error("an inferred zero-catch row should always be marked complete")
	}
}

func TestJoinHaulMarksIncompleteForUnknownSpecies(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	key := afscgap.HaulKey{Year: 2021, Survey: "GOA", Haul: 2}
	putHaulAndCatches(t, store, key, Haul{Year: 2021, Srvy: "GOA", Survey: "GOA", HaulJoin: 2}, []Catch{
		{HaulJoin: 2, SpeciesCode: 999},
	})

	joiner := &Joiner{Store: store}
	if err := joiner.JoinHaul(ctx, key, map[int64]Species{}); err != nil {
		t.Fatalf("JoinHaul: %v", err)
	}

	data, err := store.Fetch(ctx, key.JoinedPath())
	if err != nil {
		t.Fatalf("Fetch joined file: %v", err)
	}
	observations, _, err := afscgap.DecodeObservations(data)
	if err != nil {
		t.Fatalf("DecodeObservations: %v", err)
	}
	if len(observations) != 1 {
		t.Fatalf("expected exactly one observation, got %d", len(observations))
	}
	if observations[0].Complete {
		t.Error("expected a catch record whose species is absent from the master list to be marked incomplete")
	}
}

func TestJoinHaulSkipsWhenCatchFileMissing(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	key := afscgap.HaulKey{Year: 2021, Survey: "GOA", Haul: 3}
	haulData, err := EncodeHauls([]Haul{{Year: 2021, Srvy: "GOA", Survey: "GOA", HaulJoin: 3}})
	if err != nil {
		t.Fatalf("EncodeHauls: %v", err)
	}
	if err := store.Put(ctx, "haul/"+key.String()+".avro", haulData); err != nil {
		t.Fatalf("Put haul: %v", err)
	}

	joiner := &Joiner{Store: store}
	if err := joiner.JoinHaul(ctx, key, map[int64]Species{}); err != nil {
		t.Fatalf("JoinHaul: %v", err)
	}

	if _, err := store.Fetch(ctx, key.JoinedPath()); err == nil {
		t.Error("expected no joined file to be written when the catch file is missing")
	}
}

func TestJoinHaulSkipsWhenHaulFileMissing(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	key := afscgap.HaulKey{Year: 2021, Survey: "GOA", Haul: 4}

	joiner := &Joiner{Store: store}
	if err := joiner.JoinHaul(ctx, key, map[int64]Species{}); err != nil {
		t.Fatalf("JoinHaul: %v", err)
	}

	if _, err := store.Fetch(ctx, key.JoinedPath()); err == nil {
		t.Error("expected no joined file to be written when the haul file is missing")
	}
}

func TestLoadSpeciesByCode(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	data, err := EncodeSpeciesList([]Species{{SpeciesCode: 100}, {SpeciesCode: 200}})
	if err != nil {
		t.Fatalf("EncodeSpeciesList: %v", err)
	}
	if err := store.Put(ctx, "species/page1.avro", data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	byCode, err := LoadSpeciesByCode(ctx, store)
	if err != nil {
		t.Fatalf("LoadSpeciesByCode: %v", err)
	}
	if len(byCode) != 2 {
		t.Fatalf("expected 2 species, got %d", len(byCode))
	}
	if _, ok := byCode[100]; !ok {
		t.Error("expected species 100 to be present")
	}
}
