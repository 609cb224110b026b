package afscgap

import "fmt"

// unitFamily groups units that can be converted to one another.
type unitFamily string

const (
	familyArea         unitFamily = "area"
	familyDistance     unitFamily = "distance"
	familyTemperature  unitFamily = "temperature"
	familyTime         unitFamily = "time"
	familyWeight       unitFamily = "weight"
	familyDegrees      unitFamily = "degrees"
	familyEffortWeight unitFamily = "effortWeight"
	familyEffortCount  unitFamily = "effortCount"
)

// unitTypes maps every recognized unit string to its family, the full
// table from the distilled system's convert.py (area, distance,
// temperature, time, weight, cpue weight, cpue count).
var unitTypes = map[string]unitFamily{
	"ha":  familyArea,
	"m2":  familyArea,
	"km2": familyArea,

	"m":  familyDistance,
	"km": familyDistance,

	"c": familyTemperature,
	"f": familyTemperature,

	"day": familyTime,
	"hr":  familyTime,
	"min": familyTime,

	"g":  familyWeight,
	"kg": familyWeight,

	"dd": familyDegrees,

	"kg/ha":      familyEffortWeight,
	"kg1000/km2": familyEffortWeight,
	"kg/km2":     familyEffortWeight,

	"no/ha":         familyEffortCount,
	"no1000/km2":    familyEffortCount,
	"no/km2":        familyEffortCount,
	"count/ha":      familyEffortCount,
	"count1000/km2": familyEffortCount,
	"count/km2":     familyEffortCount,
}

// toBase converts a value in the given unit to that family's base unit
// (the unit the CONVERTERS table in convert.py treats as identity).
var toBase = map[string]func(float64) float64{
	"ha":  func(x float64) float64 { return x },
	"m2":  func(x float64) float64 { return x / 10000 },
	"km2": func(x float64) float64 { return x / 0.01 },

	"m":  func(x float64) float64 { return x },
	"km": func(x float64) float64 { return x * 1000 },

	"c": func(x float64) float64 { return x },
	"f": func(x float64) float64 { return (x - 32) * 5 / 9 },

	"day": func(x float64) float64 { return x * 24 },
	"hr":  func(x float64) float64 { return x },
	"min": func(x float64) float64 { return x / 60 },

	"g":  func(x float64) float64 { return x / 1000 },
	"kg": func(x float64) float64 { return x },

	"dd": func(x float64) float64 { return x },

	"kg/ha":      func(x float64) float64 { return x * 100 },
	"kg1000/km2": func(x float64) float64 { return x * 0.1 },
	"kg/km2":     func(x float64) float64 { return x },

	"no/ha":         func(x float64) float64 { return x * 100 },
	"no1000/km2":    func(x float64) float64 { return x * 0.1 },
	"no/km2":        func(x float64) float64 { return x },
	"count/ha":      func(x float64) float64 { return x * 100 },
	"count1000/km2": func(x float64) float64 { return x * 0.1 },
	"count/km2":     func(x float64) float64 { return x },
}

// fromBase converts a value in a family's base unit to the given unit.
var fromBase = map[string]func(float64) float64{
	"ha":  func(x float64) float64 { return x },
	"m2":  func(x float64) float64 { return x * 10000 },
	"km2": func(x float64) float64 { return x * 0.01 },

	"m":  func(x float64) float64 { return x },
	"km": func(x float64) float64 { return x / 1000 },

	"c": func(x float64) float64 { return x },
	"f": func(x float64) float64 { return x*9/5 + 32 },

	"day": func(x float64) float64 { return x / 24 },
	"hr":  func(x float64) float64 { return x },
	"min": func(x float64) float64 { return x * 60 },

	"g":  func(x float64) float64 { return x * 1000 },
	"kg": func(x float64) float64 { return x },

	"dd": func(x float64) float64 { return x },

	"kg/ha":      func(x float64) float64 { return x / 100 },
	"kg1000/km2": func(x float64) float64 { return x / 0.1 },
	"kg/km2":     func(x float64) float64 { return x },

	"no/ha":         func(x float64) float64 { return x / 100 },
	"no1000/km2":    func(x float64) float64 { return x / 0.1 },
	"no/km2":        func(x float64) float64 { return x },
	"count/ha":      func(x float64) float64 { return x / 100 },
	"count1000/km2": func(x float64) float64 { return x / 0.1 },
	"count/km2":     func(x float64) float64 { return x },
}

// ConvertUnits converts value from source units to destination units.
// Both units must belong to the same family (e.g. both "area" units); a
// cross-family conversion or an unrecognized unit returns a plain error.
func ConvertUnits(value float64, source, destination string) (float64, error) {
	sourceFamily, ok := unitTypes[source]
	if !ok {
		return 0, fmt.Errorf("afscgap: unknown units: %s", source)
	}

	destFamily, ok := unitTypes[destination]
	if !ok {
		return 0, fmt.Errorf("afscgap: unknown units: %s", destination)
	}

	if sourceFamily != destFamily {
		return 0, fmt.Errorf("afscgap: cannot convert from %s to %s", source, destination)
	}

	base := toBase[source](value)
	return fromBase[destination](base), nil
}

// ConvertUnitsOpt converts an optional value, passing a nil straight
// through per the original's "None in, None out" convention.
func ConvertUnitsOpt(value *float64, source, destination string) (*float64, error) {
	if value == nil {
		return nil, nil
	}
	converted, err := ConvertUnits(*value, source, destination)
	if err != nil {
		return nil, err
	}
	return &converted, nil
}
