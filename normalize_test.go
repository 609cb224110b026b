package afscgap

import "testing"

func TestNormalizeFloat(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{1.5, "1.50"},
		{-3.14159, "-3.14"},
		{12.3, "12.30"},
	}
	for _, c := range cases {
		if got := NormalizeFloat(c.in); got != c.want {
			t.Errorf("NormalizeFloat(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeDatetime(t *testing.T) {
	cases := []struct{ in, want string }{
		{"2021-06-15T00:00:00", "2021-06-15"},
		{"2021-06-15", "2021-06-15"},
	}
	for _, c := range cases {
		if got := NormalizeDatetime(c.in); got != c.want {
			t.Errorf("NormalizeDatetime(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeValue(t *testing.T) {
	if NormalizeValue("depth_m", nil) != nil {
		t.Error("nil value must normalize to nil")
	}
	if got := NormalizeValue("depth_m", 10.0); got != "10.00" {
		t.Errorf("NormalizeValue(depth_m, 10.0) = %v, want 10.00", got)
	}
	if got := NormalizeValue("date_time", "2021-06-15T00:00:00"); got != "2021-06-15" {
		t.Errorf("NormalizeValue(date_time, ...) = %v, want 2021-06-15", got)
	}
	if got := NormalizeValue("srvy", "NBS"); got != "NBS" {
		t.Errorf("NormalizeValue(srvy, NBS) = %v, want NBS (identity)", got)
	}
}

func TestIsFlatField(t *testing.T) {
	if !IsFlatField("haul") {
		t.Error("haul should be a flat field")
	}
	if IsFlatField("depth_m") {
		t.Error("depth_m should not be a flat field")
	}
}

func TestIsPresenceOnlyField(t *testing.T) {
	if !IsPresenceOnlyField("species_code") {
		t.Error("species_code should be presence-only")
	}
	if IsPresenceOnlyField("year") {
		t.Error("year should not be presence-only")
	}
}

func TestIsZeroCatchRecord(t *testing.T) {
	zero := 0.0
	positive := 5.0

	allZero := map[string]*float64{"cpue_kgkm2": &zero, "weight_kg": &zero}
	if !IsZeroCatchRecord(allZero) {
		t.Error("expected all-zero metrics to report as a zero-catch record")
	}

	oneNonZero := map[string]*float64{"cpue_kgkm2": &zero, "weight_kg": &positive}
	if IsZeroCatchRecord(oneNonZero) {
		t.Error("expected a positive metric to disqualify a zero-catch record")
	}

	if !IsZeroCatchRecord(map[string]*float64{}) {
		t.Error("expected an empty metric set to report as a zero-catch record")
	}
}
