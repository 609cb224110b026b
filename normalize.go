package afscgap

import (
	"fmt"
	"strconv"
	"strings"
)

// fieldsRequiringRounding are the floating-point indexed fields normalized
// to a "%.2f" string at both build and query time.
var fieldsRequiringRounding = map[string]bool{
	"latitude_dd_start":     true,
	"longitude_dd_start":    true,
	"latitude_dd_end":       true,
	"longitude_dd_end":      true,
	"bottom_temperature_c":  true,
	"surface_temperature_c": true,
	"depth_m":               true,
	"distance_fished_km":    true,
	"duration_hr":           true,
	"net_width_m":           true,
	"net_height_m":          true,
	"area_swept_km2":        true,
	"cpue_kgkm2":            true,
	"cpue_nokm2":            true,
	"weight_kg":             true,
}

// fieldsRequiringDateRound are truncated to their YYYY-MM-DD prefix.
var fieldsRequiringDateRound = map[string]bool{
	"date_time": true,
}

// zeroableFields are the catch metrics consulted to decide whether a
// candidate index record came from a zero-catch inferred row.
var zeroableFields = []string{"cpue_kgkm2", "cpue_nokm2", "weight_kg", "count"}

// flatFields are the per-observation identifier fields. None of them is an
// index name, and index.BuildShard groups every field it builds by value
// regardless of this set.
var flatFields = map[string]bool{
	"performance": true,
	"cruise":      true,
	"cruisejoin":  true,
	"hauljoin":    true,
	"haul":        true,
}

// presenceOnlyFields are meaningful only for rows where a species was
// actually caught; their index excludes zero-catch rows.
var presenceOnlyFields = map[string]bool{
	"species_code":    true,
	"scientific_name": true,
	"common_name":     true,
}

// NormalizeFloat applies the "%.2f" two-decimal bucketing rule used for both
// on-disk index values and in-memory comparisons.
func NormalizeFloat(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

// NormalizeDatetime truncates an ISO-8601 string to its YYYY-MM-DD prefix.
func NormalizeDatetime(value string) string {
	if idx := strings.IndexByte(value, 'T'); idx >= 0 {
		return value[:idx]
	}
	return value
}

// NormalizeValue applies the field's normalization rule (float bucketing,
// date truncation, or identity) to a raw index value. A nil input
// normalizes to nil and must be excluded from the emitted match set by the
// caller, per spec.md's invariant for index entries.
func NormalizeValue(field string, value interface{}) interface{} {
	if value == nil {
		return nil
	}

	if fieldsRequiringRounding[field] {
		switch v := value.(type) {
		case float64:
			return NormalizeFloat(v)
		case float32:
			return NormalizeFloat(float64(v))
		case string:
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return v
			}
			return NormalizeFloat(parsed)
		}
	}

	if fieldsRequiringDateRound[field] {
		if v, ok := value.(string); ok {
			return NormalizeDatetime(v)
		}
	}

	return value
}

// IsFlatField reports whether field is one of the per-observation
// identifier fields in flatFields.
func IsFlatField(field string) bool {
	return flatFields[field]
}

// IsPresenceOnlyField reports whether a field's index excludes zero-catch
// rows and therefore requires the presence-only policy gate in C2/C4.
func IsPresenceOnlyField(field string) bool {
	return presenceOnlyFields[field]
}

// IsZeroCatchRecord reports whether a decoded flat-file record (given as a
// dict of its zeroable catch-metric fields) describes an inferred
// zero-catch row, per const.ZEROABLE_FIELDS in the build pipeline.
func IsZeroCatchRecord(values map[string]*float64) bool {
	for _, field := range zeroableFields {
		if v, ok := values[field]; ok && v != nil && *v > 0 {
			return false
		}
	}
	return true
}
