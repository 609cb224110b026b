package afscgap

import (
	"fmt"
	"strconv"
)

// IndexFilter is a decision procedure over a single on-disk index's
// normalized values, used by the haul selector (C4) to decide which
// index/{name}.avro entries contribute candidate haul keys.
type IndexFilter interface {
	// IndexName is the on-disk index this filter consults, e.g. "year" for
	// index/year.avro.
	IndexName() string
	// Matches evaluates the filter against one entry's already-normalized
	// value.
	Matches(value interface{}) bool
}

// indexNames registers, for every indexable field, the on-disk index
// name(s) it maps to. Most fields map to a single index; latitude_dd and
// longitude_dd map to a _start/_end pair joined with a logical OR.
var indexNames = map[string][]string{
	"year":                  {"year"},
	"srvy":                  {"srvy"},
	"survey":                {"survey"},
	"stratum":               {"stratum"},
	"station":               {"station"},
	"vessel_name":           {"vessel_name"},
	"vessel_id":             {"vessel_id"},
	"date_time":             {"date_time"},
	"latitude_dd":           {"latitude_dd_start", "latitude_dd_end"},
	"longitude_dd":          {"longitude_dd_start", "longitude_dd_end"},
	"species_code":          {"species_code"},
	"common_name":           {"common_name"},
	"scientific_name":       {"scientific_name"},
	"taxon_confidence":      {"taxon_confidence"},
	"cpue_kgha":             {"cpue_kgkm2"},
	"cpue_kgkm2":            {"cpue_kgkm2"},
	"cpue_kg1000km2":        {"cpue_kgkm2"},
	"cpue_noha":             {"cpue_nokm2"},
	"cpue_nokm2":            {"cpue_nokm2"},
	"cpue_no1000km2":        {"cpue_nokm2"},
	"weight_kg":             {"weight_kg"},
	"count":                 {"count"},
	"bottom_temperature_c":  {"bottom_temperature_c"},
	"surface_temperature_c": {"surface_temperature_c"},
	"depth_m":               {"depth_m"},
	"distance_fished_km":    {"distance_fished_km"},
	"net_width_m":           {"net_width_m"},
	"net_height_m":          {"net_height_m"},
	"area_swept_ha":         {"area_swept_km2"},
	"area_swept_km2":        {"area_swept_km2"},
	"duration_hr":           {"duration_hr"},
}

// fieldUnitConversion registers the {user units, storage units} pair for
// fields whose user-facing unit differs from the stored index's unit.
type unitPair struct{ user, system string }

var fieldUnitConversions = map[string]unitPair{
	"cpue_kgha":      {"kg/ha", "kg/km2"},
	"cpue_kg1000km2": {"kg1000/km2", "kg/km2"},
	"cpue_noha":      {"no/ha", "no/km2"},
	"cpue_no1000km2": {"no1000/km2", "no/km2"},
	"area_swept_ha":  {"ha", "km2"},
}

// fieldDataTypeOverrides overrides the Filter.Kind-implied type for fields
// whose comparison semantics differ (date_time compares lexicographically
// on a truncated prefix, not as a plain string).
var fieldDataTypeOverrides = map[string]DataType{
	"date_time": TypeDatetime,
}

type strEqIndexFilter struct {
	name  string
	value string
}

func (f *strEqIndexFilter) IndexName() string { return f.name }
func (f *strEqIndexFilter) Matches(value interface{}) bool {
	v, ok := value.(string)
	return ok && v == f.value
}

type strRangeIndexFilter struct {
	name      string
	low, high *string
}

func (f *strRangeIndexFilter) IndexName() string { return f.name }
func (f *strRangeIndexFilter) Matches(value interface{}) bool {
	v, ok := value.(string)
	if !ok {
		return false
	}
	if f.low != nil && v < *f.low {
		return false
	}
	if f.high != nil && v > *f.high {
		return false
	}
	return true
}

type intEqIndexFilter struct {
	name  string
	value int64
}

func (f *intEqIndexFilter) IndexName() string { return f.name }
func (f *intEqIndexFilter) Matches(value interface{}) bool {
	v, ok := asInt64(value)
	return ok && v == f.value
}

type intRangeIndexFilter struct {
	name      string
	low, high *int64
}

func (f *intRangeIndexFilter) IndexName() string { return f.name }
func (f *intRangeIndexFilter) Matches(value interface{}) bool {
	v, ok := asInt64(value)
	if !ok {
		return false
	}
	if f.low != nil && v < *f.low {
		return false
	}
	if f.high != nil && v > *f.high {
		return false
	}
	return true
}

// floatEqIndexFilter and floatRangeIndexFilter compare the "%.2f"-normalized
// string form, exactly matching the normalization applied when the index
// was built, so representation jitter in the underlying double never
// causes a spurious miss.
type floatEqIndexFilter struct {
	name     string
	valueStr string
}

func newFloatEqIndexFilter(name string, value float64) *floatEqIndexFilter {
	return &floatEqIndexFilter{name: name, valueStr: NormalizeFloat(value)}
}

func (f *floatEqIndexFilter) IndexName() string { return f.name }
func (f *floatEqIndexFilter) Matches(value interface{}) bool {
	v, ok := asNormalizedString(value)
	return ok && v == f.valueStr
}

type floatRangeIndexFilter struct {
	name            string
	lowStr, highStr *string
}

func newFloatRangeIndexFilter(name string, low, high *float64) *floatRangeIndexFilter {
	f := &floatRangeIndexFilter{name: name}
	if low != nil {
		s := NormalizeFloat(*low)
		f.lowStr = &s
	}
	if high != nil {
		s := NormalizeFloat(*high)
		f.highStr = &s
	}
	return f
}

func (f *floatRangeIndexFilter) IndexName() string { return f.name }
func (f *floatRangeIndexFilter) Matches(value interface{}) bool {
	v, ok := asNormalizedString(value)
	if !ok {
		return false
	}
	if f.lowStr != nil && v < *f.lowStr {
		return false
	}
	if f.highStr != nil && v > *f.highStr {
		return false
	}
	return true
}

type datetimeEqIndexFilter struct {
	name     string
	valueStr string
}

func newDatetimeEqIndexFilter(name, value string) *datetimeEqIndexFilter {
	return &datetimeEqIndexFilter{name: name, valueStr: NormalizeDatetime(value)}
}

func (f *datetimeEqIndexFilter) IndexName() string { return f.name }
func (f *datetimeEqIndexFilter) Matches(value interface{}) bool {
	v, ok := value.(string)
	return ok && NormalizeDatetime(v) == f.valueStr
}

type datetimeRangeIndexFilter struct {
	name            string
	lowStr, highStr *string
}

func newDatetimeRangeIndexFilter(name string, low, high *string) *datetimeRangeIndexFilter {
	f := &datetimeRangeIndexFilter{name: name}
	if low != nil {
		s := NormalizeDatetime(*low)
		f.lowStr = &s
	}
	if high != nil {
		s := NormalizeDatetime(*high)
		f.highStr = &s
	}
	return f
}

func (f *datetimeRangeIndexFilter) IndexName() string { return f.name }
func (f *datetimeRangeIndexFilter) Matches(value interface{}) bool {
	v, ok := value.(string)
	if !ok {
		return false
	}
	norm := NormalizeDatetime(v)
	if f.lowStr != nil && norm < *f.lowStr {
		return false
	}
	if f.highStr != nil && norm > *f.highStr {
		return false
	}
	return true
}

// unitConversionIndexFilter converts a stored index value from system units
// to user units before delegating to the wrapped filter, which was
// constructed against the user's requested value.
type unitConversionIndexFilter struct {
	inner                  IndexFilter
	userUnits, systemUnits string
}

func (f *unitConversionIndexFilter) IndexName() string { return f.inner.IndexName() }
func (f *unitConversionIndexFilter) Matches(value interface{}) bool {
	original, ok := asFloat64(value)
	if !ok {
		return false
	}
	converted, err := ConvertUnits(original, f.systemUnits, f.userUnits)
	if err != nil {
		return false
	}
	return f.inner.Matches(converted)
}

// logicalOrIndexFilter groups the index filters built for one field (e.g.
// latitude_dd_start and latitude_dd_end for latitude_dd), matching if any
// inner filter matches. IndexName reports the first inner filter's index;
// the haul selector fetches every inner filter's index and unions them.
type logicalOrIndexFilter struct {
	name   string
	inners []IndexFilter
}

func newLogicalOrIndexFilter(inners []IndexFilter) (*logicalOrIndexFilter, error) {
	if len(inners) == 0 {
		return nil, fmt.Errorf("afscgap: logical-or index filter needs at least one inner filter")
	}
	return &logicalOrIndexFilter{name: inners[0].IndexName(), inners: inners}, nil
}

func (f *logicalOrIndexFilter) IndexName() string { return f.name }
func (f *logicalOrIndexFilter) Matches(value interface{}) bool {
	for _, inner := range f.inners {
		if inner.Matches(value) {
			return true
		}
	}
	return false
}

// decorateUnitConversion wraps filter with a unit-conversion decorator if
// field requires one, otherwise returns it unchanged.
func decorateUnitConversion(field string, filter IndexFilter) IndexFilter {
	conv, ok := fieldUnitConversions[field]
	if !ok {
		return filter
	}
	return &unitConversionIndexFilter{inner: filter, userUnits: conv.user, systemUnits: conv.system}
}

func fieldDataType(field string, f *Filter) DataType {
	if dt, ok := fieldDataTypeOverrides[field]; ok {
		return dt
	}
	return f.Kind
}

// IndexNames returns every distinct on-disk index name the build pipeline
// needs to produce, deduplicated across fields that share an index and
// flattened out of fields like latitude_dd that map to more than one.
func IndexNames() []string {
	seen := make(map[string]bool)
	var out []string
	for _, names := range indexNames {
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

// MakeIndexFilters builds the index filters for one field's Filter,
// honoring the presence-only policy: when presenceOnly is false (the
// default, meaning the snapshot's joined files carry zero-catch inferred
// rows), species-identity fields are never indexed because their index
// excludes zero rows and would under-report; the selector must fall back
// to the local filter / main index for that field instead. Returns an
// empty slice for an ignorable filter, an unregistered field, or a
// presence-only field gated off.
func MakeIndexFilters(field string, filter *Filter, presenceOnly bool) ([]IndexFilter, error) {
	if filter.IsIgnorable() || filter.isEffectivelyEmpty() {
		return nil, nil
	}

	if !presenceOnly && IsPresenceOnlyField(field) {
		return nil, nil
	}

	names := indexNames[field]
	if len(names) == 0 {
		return nil, nil
	}

	dataType := fieldDataType(field, filter)

	built := make([]IndexFilter, 0, len(names))
	for _, name := range names {
		var base IndexFilter
		var err error
		switch dataType {
		case TypeString:
			base, err = buildStringIndexFilter(name, filter)
		case TypeInt:
			base, err = buildIntIndexFilter(name, filter)
		case TypeFloat:
			base, err = buildFloatIndexFilter(name, filter)
		case TypeDatetime:
			base, err = buildDatetimeIndexFilter(name, filter)
		default:
			err = fmt.Errorf("afscgap: unsupported filter data type for field %q", field)
		}
		if err != nil {
			return nil, err
		}
		built = append(built, decorateUnitConversion(field, base))
	}

	grouped, err := newLogicalOrIndexFilter(built)
	if err != nil {
		return nil, err
	}
	return []IndexFilter{grouped}, nil
}

func buildStringIndexFilter(name string, f *Filter) (IndexFilter, error) {
	switch f.Type {
	case FilterEquals:
		return &strEqIndexFilter{name: name, value: f.StrValue}, nil
	case FilterRange:
		return &strRangeIndexFilter{name: name, low: f.LowStr, high: f.HighStr}, nil
	default:
		return nil, fmt.Errorf("afscgap: unsupported filter type for string index %q", name)
	}
}

func buildIntIndexFilter(name string, f *Filter) (IndexFilter, error) {
	switch f.Type {
	case FilterEquals:
		return &intEqIndexFilter{name: name, value: f.IntValue}, nil
	case FilterRange:
		return &intRangeIndexFilter{name: name, low: f.LowInt, high: f.HighInt}, nil
	default:
		return nil, fmt.Errorf("afscgap: unsupported filter type for int index %q", name)
	}
}

func buildFloatIndexFilter(name string, f *Filter) (IndexFilter, error) {
	switch f.Type {
	case FilterEquals:
		return newFloatEqIndexFilter(name, f.FloatValue), nil
	case FilterRange:
		return newFloatRangeIndexFilter(name, f.LowFloat, f.HighFloat), nil
	default:
		return nil, fmt.Errorf("afscgap: unsupported filter type for float index %q", name)
	}
}

func buildDatetimeIndexFilter(name string, f *Filter) (IndexFilter, error) {
	switch f.Type {
	case FilterEquals:
		return newDatetimeEqIndexFilter(name, f.StrValue), nil
	case FilterRange:
		return newDatetimeRangeIndexFilter(name, f.LowStr, f.HighStr), nil
	default:
		return nil, fmt.Errorf("afscgap: unsupported filter type for datetime index %q", name)
	}
}

// asInt64 accepts either a native integer (from in-memory construction) or
// the string form an index entry is always stored and decoded as.
func asInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

func asFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

// asNormalizedString accepts either an already-normalized "%.2f" string (the
// on-disk form) or a raw numeric value (normalized on the fly), since index
// entries are read as strings but some callers compare against raw floats.
func asNormalizedString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return NormalizeFloat(v), true
	case float32:
		return NormalizeFloat(float64(v)), true
	}
	return "", false
}
