package afscgap

import "fmt"

// FilterKind tags which shape a field's Filter takes.
type FilterKind int

const (
	// FilterEmpty means the field is unconstrained and should be ignored
	// by both the index selector and the local filter.
	FilterEmpty FilterKind = iota
	// FilterEquals means the field must equal a single value.
	FilterEquals
	// FilterRange means the field must fall within a closed interval,
	// with either bound possibly absent (open-ended).
	FilterRange
)

// DataType names the storage type a Filter's bounds are carried in.
type DataType int

const (
	// TypeString covers plain string-valued fields.
	TypeString DataType = iota
	// TypeInt covers integer-valued fields.
	TypeInt
	// TypeFloat covers floating point fields subject to "%.2f" normalization.
	TypeFloat
	// TypeDatetime covers ISO-8601-without-timezone fields compared on
	// their YYYY-MM-DD prefix.
	TypeDatetime
)

// Filter is the tagged filter value for a single field: empty, an equality
// constraint, or a closed-interval range with optionally open bounds.
//
// Exactly one of the Str/Int/Float value families is populated, selected by
// DataType. Constructing a Filter with both Equals and a range bound is a
// construction error, surfaced immediately by the Query setters rather than
// discovered at query time.
type Filter struct {
	Kind DataType
	Type FilterKind

	StrValue string
	LowStr   *string
	HighStr  *string

	IntValue int64
	LowInt   *int64
	HighInt  *int64

	FloatValue float64
	LowFloat   *float64
	HighFloat  *float64
}

// FilterConstructionError is raised immediately at a Query setter, before
// any I/O, when a filter is malformed (equals combined with a range bound,
// or a range whose low bound is above its high bound). Query has no
// unit-carrying setters, so an unrecognized unit is never reported with
// this type; ConvertUnits returns a plain error for it.
type FilterConstructionError struct {
	Field  string
	Reason string
}

func (e *FilterConstructionError) Error() string {
	return fmt.Sprintf("afscgap: invalid filter for field %q: %s", e.Field, e.Reason)
}

// EmptyFilter returns the ignorable, no-constraint filter value.
func EmptyFilter() *Filter {
	return &Filter{Type: FilterEmpty}
}

// IsIgnorable reports whether a filter can be skipped entirely by both C2
// and C3 — true for a nil filter or an explicit FilterEmpty.
func (f *Filter) IsIgnorable() bool {
	return f == nil || f.Type == FilterEmpty
}

// StrEquals builds a string equality filter.
func StrEquals(value string) *Filter {
	return &Filter{Kind: TypeString, Type: FilterEquals, StrValue: value}
}

// StrRange builds a string range filter; either bound may be nil.
func StrRange(low, high *string) *Filter {
	return &Filter{Kind: TypeString, Type: FilterRange, LowStr: low, HighStr: high}
}

// IntEquals builds an integer equality filter.
func IntEquals(value int64) *Filter {
	return &Filter{Kind: TypeInt, Type: FilterEquals, IntValue: value}
}

// IntRange builds an integer range filter; either bound may be nil.
func IntRange(low, high *int64) *Filter {
	return &Filter{Kind: TypeInt, Type: FilterRange, LowInt: low, HighInt: high}
}

// FloatEquals builds a float equality filter (storage units).
func FloatEquals(value float64) *Filter {
	return &Filter{Kind: TypeFloat, Type: FilterEquals, FloatValue: value}
}

// FloatRange builds a float range filter (storage units); either bound may
// be nil.
func FloatRange(low, high *float64) *Filter {
	return &Filter{Kind: TypeFloat, Type: FilterRange, LowFloat: low, HighFloat: high}
}

// DatetimeEquals builds a datetime equality filter compared on its
// YYYY-MM-DD prefix.
func DatetimeEquals(value string) *Filter {
	return &Filter{Kind: TypeDatetime, Type: FilterEquals, StrValue: value}
}

// DatetimeRange builds a datetime range filter; either bound may be nil.
func DatetimeRange(low, high *string) *Filter {
	return &Filter{Kind: TypeDatetime, Type: FilterRange, LowStr: low, HighStr: high}
}

// isEffectivelyEmpty reports the boundary case where a range filter has both
// bounds absent, which spec.md treats as equivalent to an empty filter.
func (f *Filter) isEffectivelyEmpty() bool {
	if f == nil || f.Type == FilterEmpty {
		return true
	}
	if f.Type != FilterRange {
		return false
	}
	switch f.Kind {
	case TypeString, TypeDatetime:
		return f.LowStr == nil && f.HighStr == nil
	case TypeInt:
		return f.LowInt == nil && f.HighInt == nil
	case TypeFloat:
		return f.LowFloat == nil && f.HighFloat == nil
	}
	return false
}
