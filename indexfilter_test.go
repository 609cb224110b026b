package afscgap

import "testing"

func TestAsInt64AcceptsStringForm(t *testing.T) {
	// Index entries are always decoded as strings, so asInt64 must accept
	// the string form of an int-typed index filter or every int index
	// lookup silently fails to match.
	v, ok := asInt64("2021")
	if !ok || v != 2021 {
		t.Fatalf("asInt64(\"2021\") = (%v, %v), want (2021, true)", v, ok)
	}

	if _, ok := asInt64("not-a-number"); ok {
		t.Error("asInt64 should reject a non-numeric string")
	}

	if v, ok := asInt64(int64(7)); !ok || v != 7 {
		t.Errorf("asInt64(int64(7)) = (%v, %v), want (7, true)", v, ok)
	}
}

func TestMakeIndexFiltersIntEquals(t *testing.T) {
	filters, err := MakeIndexFilters("year", IntEquals(2021), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filters) != 1 {
		t.Fatalf("expected exactly one index filter, got %d", len(filters))
	}
	f := filters[0]
	if f.IndexName() != "year" {
		t.Errorf("IndexName() = %q, want %q", f.IndexName(), "year")
	}
	if !f.Matches("2021") {
		t.Error("expected the index filter to match the on-disk string form of the year")
	}
	if f.Matches("2019") {
		t.Error("expected the index filter to reject a non-matching year")
	}
}

func TestMakeIndexFiltersPresenceOnlyGate(t *testing.T) {
	// species_code is presence-only: when the snapshot carries zero-catch
	// rows (presenceOnly=false), its index must not be consulted, since
	// the index itself excludes those rows and would under-report.
	filters, err := MakeIndexFilters("species_code", IntEquals(21740), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filters != nil {
		t.Errorf("expected a nil filter slice for a presence-only field with presenceOnly=false, got %v", filters)
	}

	filters, err = MakeIndexFilters("species_code", IntEquals(21740), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filters) != 1 {
		t.Errorf("expected one index filter when presenceOnly=true, got %d", len(filters))
	}
}

func TestMakeIndexFiltersLatLonLogicalOr(t *testing.T) {
	filters, err := MakeIndexFilters("latitude_dd", FloatEquals(55.5), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filters) != 1 {
		t.Fatalf("expected one grouped filter, got %d", len(filters))
	}
	f := filters[0]
	if f.IndexName() != "latitude_dd_start" {
		t.Errorf("grouped filter should report the first inner index's name, got %q", f.IndexName())
	}
	if !f.Matches("55.50") {
		t.Error("expected the grouped filter to match a normalized latitude_dd_start value")
	}
}

func TestMakeIndexFiltersUnitConversion(t *testing.T) {
	// cpue_kgha is requested in kg/ha but the index is stored in kg/km2.
	filters, err := MakeIndexFilters("cpue_kgha", FloatEquals(1.0), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filters) != 1 {
		t.Fatalf("expected one index filter, got %d", len(filters))
	}
	// 1 kg/ha == 100 kg/km2; the stored index value is in system units.
	if !filters[0].Matches("100.00") {
		t.Error("expected the unit-converted filter to match the system-units value")
	}
}

func TestIndexNamesDeduplicatesSharedIndices(t *testing.T) {
	names := IndexNames()
	seen := make(map[string]bool)
	for _, n := range names {
		if seen[n] {
			t.Fatalf("IndexNames() returned duplicate entry %q", n)
		}
		seen[n] = true
	}
	if !seen["cpue_kgkm2"] {
		t.Error("expected cpue_kgkm2 to be among the registered index names")
	}
}
