package build

import "testing"

func TestHaulRoundTrip(t *testing.T) {
	haul := int64Ptr(7)
	depth := 55.3

	original := []Haul{{
		Year:       2021,
		Srvy:       "GOA",
		Survey:     "Gulf of Alaska",
		SurveyName: "Gulf of Alaska Bottom Trawl Survey",
		CruiseJoin: 100,
		HaulJoin:   12345,
		Haul:       haul,
		DateTime:   "2021-06-15T00:00:00",
		DepthM:     &depth,
	}}

	encoded, err := EncodeHauls(original)
	if err != nil {
		t.Fatalf("EncodeHauls: %v", err)
	}
	decoded, err := DecodeHauls(encoded)
	if err != nil {
		t.Fatalf("DecodeHauls: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected one decoded haul, got %d", len(decoded))
	}

	got := decoded[0]
	if got.HaulJoin != 12345 {
		t.Errorf("HaulJoin = %d, want 12345", got.HaulJoin)
	}
	if got.Haul == nil || *got.Haul != 7 {
		t.Errorf("Haul = %v, want 7", got.Haul)
	}
	if got.DepthM == nil || *got.DepthM != depth {
		t.Errorf("DepthM = %v, want %v", got.DepthM, depth)
	}
	if got.Cruise != nil {
		t.Errorf("expected unset Cruise to decode as nil, got %v", got.Cruise)
	}
}

func TestCatchRoundTrip(t *testing.T) {
	weight := 12.5
	original := []Catch{{HaulJoin: 1, SpeciesCode: 21740, WeightKg: &weight}}

	encoded, err := EncodeCatches(original)
	if err != nil {
		t.Fatalf("EncodeCatches: %v", err)
	}
	decoded, err := DecodeCatches(encoded)
	if err != nil {
		t.Fatalf("DecodeCatches: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected one decoded catch, got %d", len(decoded))
	}
	if decoded[0].WeightKg == nil || *decoded[0].WeightKg != weight {
		t.Errorf("WeightKg = %v, want %v", decoded[0].WeightKg, weight)
	}
	if decoded[0].CPUEKgKM2 != nil {
		t.Errorf("expected unset CPUEKgKM2 to decode as nil, got %v", decoded[0].CPUEKgKM2)
	}
}

func TestSpeciesRoundTrip(t *testing.T) {
	name := "Gadus chalcogrammus"
	original := []Species{{SpeciesCode: 21740, ScientificName: &name}}

	encoded, err := EncodeSpeciesList(original)
	if err != nil {
		t.Fatalf("EncodeSpeciesList: %v", err)
	}
	decoded, err := DecodeSpeciesList(encoded)
	if err != nil {
		t.Fatalf("DecodeSpeciesList: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected one decoded species, got %d", len(decoded))
	}
	if decoded[0].ScientificName == nil || *decoded[0].ScientificName != name {
		t.Errorf("ScientificName = %v, want %v", decoded[0].ScientificName, name)
	}
}

// int64Ptr is a small test helper since Go has no pointer-to-literal syntax.
func int64Ptr(v int64) *int64 { return &v }
