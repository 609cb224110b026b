package afscgap

import "testing"

func makeTestObservation() *Observation {
	year := int64(2021)
	srvy := "NBS"
	depth := 55.3
	speciesCode := int64(21740)
	return &Observation{
		Year:        &year,
		Srvy:        &srvy,
		DepthM:      &depth,
		SpeciesCode: &speciesCode,
		Complete:    true,
	}
}

func TestBuildLocalFilterEmptyMatchesEverything(t *testing.T) {
	lf, err := BuildLocalFilter(map[string]*Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lf.Matches(makeTestObservation()) {
		t.Error("an empty local filter should match any observation")
	}
}

func TestBuildLocalFilterIntEquals(t *testing.T) {
	lf, err := BuildLocalFilter(map[string]*Filter{"year": IntEquals(2021)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	obs := makeTestObservation()
	if !lf.Matches(obs) {
		t.Error("expected a matching year filter to match")
	}

	lf, err = BuildLocalFilter(map[string]*Filter{"year": IntEquals(1999)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lf.Matches(obs) {
		t.Error("expected a non-matching year filter to reject the observation")
	}
}

func TestBuildLocalFilterFloatRange(t *testing.T) {
	low := 10.0
	high := 100.0
	lf, err := BuildLocalFilter(map[string]*Filter{"depth_m": FloatRange(&low, &high)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lf.Matches(makeTestObservation()) {
		t.Error("expected depth_m=55.3 to fall within [10, 100]")
	}

	low2 := 1000.0
	lf, err = BuildLocalFilter(map[string]*Filter{"depth_m": FloatRange(&low2, nil)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lf.Matches(makeTestObservation()) {
		t.Error("expected depth_m=55.3 to fail a low bound of 1000")
	}
}

func TestBuildLocalFilterMissingFieldRejects(t *testing.T) {
	// An observation missing the filtered field (nil pointer) must never
	// match, since the accessor returns a true nil.
	lf, err := BuildLocalFilter(map[string]*Filter{"vessel_id": IntEquals(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lf.Matches(makeTestObservation()) {
		t.Error("expected an observation with a nil vessel_id to never match an equals filter")
	}
}

func TestBuildLocalFilterUnregisteredFieldErrors(t *testing.T) {
	_, err := BuildLocalFilter(map[string]*Filter{"not_a_real_field": StrEquals("x")})
	if err == nil {
		t.Fatal("expected an error for an unregistered field")
	}
}

func TestBuildLocalFilterConjoinsAllFields(t *testing.T) {
	lf, err := BuildLocalFilter(map[string]*Filter{
		"year": IntEquals(2021),
		"srvy": StrEquals("GOA"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lf.Matches(makeTestObservation()) {
		t.Error("expected the conjunction to fail when one of two filters mismatches")
	}
}
