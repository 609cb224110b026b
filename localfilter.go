package afscgap

import "fmt"

// LocalFilter is the authoritative, in-memory re-check applied to every
// Observation reached via the candidate haul set, regardless of whether an
// index narrowed the search. It exists because indices only narrow to the
// haul level (or are absent for a field), so the final row-level match
// still has to be verified against the full filter set.
type LocalFilter interface {
	Matches(obs *Observation) bool
}

// accessor reads one field off an Observation as a comparable Go value,
// or nil if the field is absent on that row.
type accessor func(obs *Observation) interface{}

// accessors registers, for every filterable field, how to read it off a
// decoded Observation. Mirrors the field table in ACCESSORS from the
// distilled system's flat_local_filter module.
var accessors = map[string]accessor{
	"year":                  func(o *Observation) interface{} { return optAny(o.Year) },
	"srvy":                  func(o *Observation) interface{} { return optAny(o.Srvy) },
	"survey":                func(o *Observation) interface{} { return optAny(o.Survey) },
	"survey_name":           func(o *Observation) interface{} { return optAny(o.SurveyName) },
	"survey_definition_id":  func(o *Observation) interface{} { return optAny(o.SurveyDefinitionID) },
	"cruise":                func(o *Observation) interface{} { return optAny(o.Cruise) },
	"cruisejoin":            func(o *Observation) interface{} { return optAny(o.CruiseJoin) },
	"hauljoin":              func(o *Observation) interface{} { return optAny(o.HaulJoin) },
	"haul":                  func(o *Observation) interface{} { return optAny(o.Haul) },
	"stratum":               func(o *Observation) interface{} { return optAny(o.Stratum) },
	"station":               func(o *Observation) interface{} { return optAny(o.Station) },
	"vessel_id":             func(o *Observation) interface{} { return optAny(o.VesselID) },
	"vessel_name":           func(o *Observation) interface{} { return optAny(o.VesselName) },
	"date_time":             func(o *Observation) interface{} { return optAny(o.DateTime) },
	"latitude_dd_start":     func(o *Observation) interface{} { return optAny(o.LatitudeDDStart) },
	"longitude_dd_start":    func(o *Observation) interface{} { return optAny(o.LongitudeDDStart) },
	"latitude_dd_end":       func(o *Observation) interface{} { return optAny(o.LatitudeDDEnd) },
	"longitude_dd_end":      func(o *Observation) interface{} { return optAny(o.LongitudeDDEnd) },
	"latitude_dd":           func(o *Observation) interface{} { return optAny(o.LatitudeDDStart) },
	"longitude_dd":          func(o *Observation) interface{} { return optAny(o.LongitudeDDStart) },
	"bottom_temperature_c":  func(o *Observation) interface{} { return optAny(o.BottomTemperatureC) },
	"surface_temperature_c": func(o *Observation) interface{} { return optAny(o.SurfaceTemperatureC) },
	"depth_m":               func(o *Observation) interface{} { return optAny(o.DepthM) },
	"distance_fished_km":    func(o *Observation) interface{} { return optAny(o.DistanceFishedKM) },
	"duration_hr":           func(o *Observation) interface{} { return optAny(o.DurationHr) },
	"net_width_m":           func(o *Observation) interface{} { return optAny(o.NetWidthM) },
	"net_height_m":          func(o *Observation) interface{} { return optAny(o.NetHeightM) },
	"area_swept_km2":        func(o *Observation) interface{} { return optAny(o.AreaSweptKM2) },
	"area_swept_ha":         func(o *Observation) interface{} { return optAny(o.AreaSweptKM2) },
	"performance":           func(o *Observation) interface{} { return optAny(o.Performance) },
	"species_code":          func(o *Observation) interface{} { return optAny(o.SpeciesCode) },
	"cpue_kgkm2":            func(o *Observation) interface{} { return optAny(o.CPUEKgKM2) },
	"cpue_kgha":             func(o *Observation) interface{} { return optAny(o.CPUEKgKM2) },
	"cpue_kg1000km2":        func(o *Observation) interface{} { return optAny(o.CPUEKgKM2) },
	"cpue_nokm2":            func(o *Observation) interface{} { return optAny(o.CPUENoKM2) },
	"cpue_noha":             func(o *Observation) interface{} { return optAny(o.CPUENoKM2) },
	"cpue_no1000km2":        func(o *Observation) interface{} { return optAny(o.CPUENoKM2) },
	"count":                 func(o *Observation) interface{} { return optAny(o.Count) },
	"weight_kg":             func(o *Observation) interface{} { return optAny(o.WeightKg) },
	"taxon_confidence":      func(o *Observation) interface{} { return optAny(o.TaxonConfidence) },
	"scientific_name":       func(o *Observation) interface{} { return optAny(o.ScientificName) },
	"common_name":           func(o *Observation) interface{} { return optAny(o.CommonName) },
	"id_rank":               func(o *Observation) interface{} { return optAny(o.IDRank) },
	"worms":                 func(o *Observation) interface{} { return optAny(o.Worms) },
	"itis":                  func(o *Observation) interface{} { return optAny(o.ITIS) },
}

type equalsLocalFilter struct {
	get      accessor
	expected interface{}
	isFloat  bool
}

func (f *equalsLocalFilter) Matches(obs *Observation) bool {
	actual := f.get(obs)
	if actual == nil {
		return false
	}
	if f.isFloat {
		a, ok := asFloat64(actual)
		e, ok2 := asFloat64(f.expected)
		return ok && ok2 && NormalizeFloat(a) == NormalizeFloat(e)
	}
	return actual == f.expected
}

type rangeLocalFilter struct {
	get        accessor
	low, high  interface{}
	isFloat    bool
	isDatetime bool
}

func (f *rangeLocalFilter) Matches(obs *Observation) bool {
	actual := f.get(obs)
	if actual == nil {
		return false
	}

	switch {
	case f.isFloat:
		a, ok := asFloat64(actual)
		if !ok {
			return false
		}
		if f.low != nil {
			lo, _ := asFloat64(f.low)
			if a < lo {
				return false
			}
		}
		if f.high != nil {
			hi, _ := asFloat64(f.high)
			if a > hi {
				return false
			}
		}
		return true
	case f.isDatetime:
		a, ok := actual.(string)
		if !ok {
			return false
		}
		norm := NormalizeDatetime(a)
		if f.low != nil {
			lo := NormalizeDatetime(f.low.(string))
			if norm < lo {
				return false
			}
		}
		if f.high != nil {
			hi := NormalizeDatetime(f.high.(string))
			if norm > hi {
				return false
			}
		}
		return true
	default:
		switch a := actual.(type) {
		case string:
			if f.low != nil && a < f.low.(string) {
				return false
			}
			if f.high != nil && a > f.high.(string) {
				return false
			}
			return true
		case int64:
			if f.low != nil && a < f.low.(int64) {
				return false
			}
			if f.high != nil && a > f.high.(int64) {
				return false
			}
			return true
		}
		return false
	}
}

// logicalAndLocalFilter conjoins every per-field filter; an empty set
// always matches.
type logicalAndLocalFilter struct {
	inners []LocalFilter
}

func (f *logicalAndLocalFilter) Matches(obs *Observation) bool {
	for _, inner := range f.inners {
		if !inner.Matches(obs) {
			return false
		}
	}
	return true
}

// BuildLocalFilter builds the single conjunctive local filter for a whole
// query's field-to-Filter map, skipping ignorable/empty entries. Fields
// without a registered accessor are rejected as a construction error rather
// than silently ignored, since a local-filter typo would otherwise widen a
// query's results instead of narrowing them.
func BuildLocalFilter(filters map[string]*Filter) (LocalFilter, error) {
	inners := make([]LocalFilter, 0, len(filters))
	for field, filter := range filters {
		if filter.IsIgnorable() || filter.isEffectivelyEmpty() {
			continue
		}
		inner, err := buildIndividualLocalFilter(field, filter)
		if err != nil {
			return nil, err
		}
		inners = append(inners, inner)
	}
	return &logicalAndLocalFilter{inners: inners}, nil
}

func buildIndividualLocalFilter(field string, filter *Filter) (LocalFilter, error) {
	get, ok := accessors[field]
	if !ok {
		return nil, fmt.Errorf("afscgap: no local filter accessor registered for field %q", field)
	}

	dataType := fieldDataType(field, filter)

	switch filter.Type {
	case FilterEquals:
		switch dataType {
		case TypeString, TypeDatetime:
			return &equalsLocalFilter{get: get, expected: filter.StrValue}, nil
		case TypeInt:
			return &equalsLocalFilter{get: get, expected: filter.IntValue}, nil
		case TypeFloat:
			return &equalsLocalFilter{get: get, expected: filter.FloatValue, isFloat: true}, nil
		}
	case FilterRange:
		switch dataType {
		case TypeString:
			return &rangeLocalFilter{get: get, low: derefAny(filter.LowStr), high: derefAny(filter.HighStr)}, nil
		case TypeDatetime:
			return &rangeLocalFilter{get: get, low: derefAny(filter.LowStr), high: derefAny(filter.HighStr), isDatetime: true}, nil
		case TypeInt:
			return &rangeLocalFilter{get: get, low: derefAny(filter.LowInt), high: derefAny(filter.HighInt)}, nil
		case TypeFloat:
			return &rangeLocalFilter{get: get, low: derefAny(filter.LowFloat), high: derefAny(filter.HighFloat), isFloat: true}, nil
		}
	}
	return nil, fmt.Errorf("afscgap: unsupported local filter construction for field %q", field)
}

// derefAny converts a possibly-nil typed pointer to an interface{} that is
// true nil when the pointer is nil, avoiding Go's typed-nil-in-interface
// pitfall in the range comparisons above.
func derefAny[T any](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// FieldAccessor exposes the registered accessor for field, for use by the
// index-building package, which reads the same Observation fields the
// local filter does.
func FieldAccessor(field string) (func(obs *Observation) interface{}, bool) {
	get, ok := accessors[field]
	return get, ok
}
