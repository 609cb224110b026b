package afscgap

import (
	"sort"
	"testing"
)

func TestObservationRoundTrip(t *testing.T) {
	year := int64(2021)
	srvy := "GOA"
	depth := 123.45
	speciesCode := int64(21740)

	original := []*Observation{{
		Year:        &year,
		Srvy:        &srvy,
		DepthM:      &depth,
		SpeciesCode: &speciesCode,
		Complete:    true,
	}}

	encoded, err := EncodeObservations(original)
	if err != nil {
		t.Fatalf("EncodeObservations: %v", err)
	}

	decoded, invalid, err := DecodeObservations(encoded)
	if err != nil {
		t.Fatalf("DecodeObservations: %v", err)
	}
	if len(invalid) != 0 {
		t.Fatalf("expected no invalid records, got %v", invalid)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected one decoded observation, got %d", len(decoded))
	}

	got := decoded[0]
	if got.Year == nil || *got.Year != year {
		t.Errorf("Year = %v, want %v", got.Year, year)
	}
	if got.Srvy == nil || *got.Srvy != srvy {
		t.Errorf("Srvy = %v, want %v", got.Srvy, srvy)
	}
	if got.DepthM == nil || *got.DepthM != depth {
		t.Errorf("DepthM = %v, want %v", got.DepthM, depth)
	}
	if !got.Complete {
		t.Error("expected Complete to round-trip as true")
	}
	if got.VesselID != nil {
		t.Errorf("expected an unset field to decode as nil, got %v", got.VesselID)
	}
}

func TestDecodeObservationsReportsInvalidIndices(t *testing.T) {
	// Build a container with one well-formed record and one record whose
	// bytes do not decode against the observation schema.
	good, err := EncodeObservations([]*Observation{{Complete: false}})
	if err != nil {
		t.Fatalf("EncodeObservations: %v", err)
	}
	goodRecords, err := readContainer(good)
	if err != nil {
		t.Fatalf("readContainer: %v", err)
	}

	garbage := []byte{0xff, 0xfe, 0xfd}
	mixed := writeContainer([][]byte{goodRecords[0], garbage})

	observations, invalid, err := DecodeObservations(mixed)
	if err != nil {
		t.Fatalf("DecodeObservations: %v", err)
	}
	if len(observations) != 1 {
		t.Fatalf("expected the well-formed record to still decode, got %d observations", len(observations))
	}
	if len(invalid) != 1 || invalid[0] != 1 {
		t.Fatalf("expected invalid index [1], got %v", invalid)
	}
}

func TestIndexEntriesRoundTrip(t *testing.T) {
	entries := map[string][]string{
		"2021": {"2021_GOA_123", "2021_GOA_124"},
		"2022": {"2022_GOA_200"},
	}

	encoded, err := EncodeIndexEntries(entries)
	if err != nil {
		t.Fatalf("EncodeIndexEntries: %v", err)
	}

	decoded, err := DecodeIndexEntries(encoded)
	if err != nil {
		t.Fatalf("DecodeIndexEntries: %v", err)
	}

	for value, hauls := range entries {
		got := decoded[value]
		sort.Strings(got)
		sort.Strings(hauls)
		if len(got) != len(hauls) {
			t.Fatalf("value %q: got %v, want %v", value, got, hauls)
		}
		for i := range hauls {
			if got[i] != hauls[i] {
				t.Errorf("value %q: got %v, want %v", value, got, hauls)
			}
		}
	}
}

func TestMainIndexRoundTrip(t *testing.T) {
	keys := []HaulKey{
		{Year: 2021, Survey: "GOA", Haul: 123},
		{Year: 2022, Survey: "NBS", Haul: 456},
	}

	encoded, err := EncodeMainIndex(keys)
	if err != nil {
		t.Fatalf("EncodeMainIndex: %v", err)
	}

	decoded, err := DecodeMainIndex(encoded)
	if err != nil {
		t.Fatalf("DecodeMainIndex: %v", err)
	}
	if len(decoded) != len(keys) {
		t.Fatalf("got %d keys, want %d", len(decoded), len(keys))
	}
	for i, k := range keys {
		if decoded[i] != k {
			t.Errorf("key %d: got %+v, want %+v", i, decoded[i], k)
		}
	}
}

func TestReadContainerRejectsBadMagic(t *testing.T) {
	if _, err := readContainer([]byte("not-a-container-at-all")); err == nil {
		t.Error("expected an error for data with the wrong magic header")
	}
}

func TestReadContainerRejectsTruncatedHeader(t *testing.T) {
	if _, err := readContainer([]byte{'A', 'F'}); err == nil {
		t.Error("expected an error for a truncated header")
	}
}
