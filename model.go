// Package afscgap provides filtered, zero-catch-inferred access to a
// precomputed bottom-trawl groundfish survey snapshot stored as immutable
// Avro flat files and per-field inverted indices in object storage.
//
// The package implements the query planner and executor (haul selector,
// record stream, cursor) described in the project specification. Snapshot
// construction lives in the build and index sub-packages.
package afscgap

import "fmt"

// HaulKey uniquely identifies a single trawl haul.
type HaulKey struct {
	Year   int
	Survey string
	Haul   int64
}

// String renders the key in its canonical "{year}_{survey}_{haul}" form,
// which is also the filename stem of the haul's joined flat file.
func (k HaulKey) String() string {
	return fmt.Sprintf("%d_%s_%d", k.Year, k.Survey, k.Haul)
}

// JoinedPath returns the object-storage path of this haul's flat file.
func (k HaulKey) JoinedPath() string {
	return "joined/" + k.String() + ".avro"
}

// Observation is a single fixed-schema survey row: haul context, species
// context, and catch metrics. Every non-key field is nullable, represented
// here with pointer types so that a missing upstream value round-trips as
// nil rather than a zero value.
type Observation struct {
	Year                *int64
	Srvy                *string
	Survey              *string
	SurveyName          *string
	SurveyDefinitionID  *int64
	Cruise              *int64
	CruiseJoin          *int64
	HaulJoin            *int64
	Haul                *int64
	Stratum             *int64
	Station             *string
	VesselID            *int64
	VesselName          *string
	DateTime            *string
	LatitudeDDStart     *float64
	LongitudeDDStart    *float64
	LatitudeDDEnd       *float64
	LongitudeDDEnd      *float64
	BottomTemperatureC  *float64
	SurfaceTemperatureC *float64
	DepthM              *float64
	DistanceFishedKM    *float64
	DurationHr          *float64
	NetWidthM           *float64
	NetHeightM          *float64
	AreaSweptKM2        *float64
	Performance         *float64
	SpeciesCode         *int64
	CPUEKgKM2           *float64
	CPUENoKM2           *float64
	Count               *int64
	WeightKg            *float64
	TaxonConfidence     *string
	ScientificName      *string
	CommonName          *string
	IDRank              *string
	Worms               *int64
	ITIS                *int64
	Complete            bool
}

// IsZeroCatch reports whether this is an inferred zero-catch record: a
// complete record whose catch metrics are all zero.
func (o *Observation) IsZeroCatch() bool {
	return o.Complete &&
		derefInt64(o.Count) == 0 &&
		derefFloat64(o.WeightKg) == 0 &&
		derefFloat64(o.CPUEKgKM2) == 0 &&
		derefFloat64(o.CPUENoKM2) == 0
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefFloat64(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// ToDict projects an Observation to a schemaless map, matching the field
// names used on the wire and in the indexed-field table.
func (o *Observation) ToDict() map[string]interface{} {
	return map[string]interface{}{
		"year":                  optAny(o.Year),
		"srvy":                  optAny(o.Srvy),
		"survey":                optAny(o.Survey),
		"survey_name":           optAny(o.SurveyName),
		"survey_definition_id":  optAny(o.SurveyDefinitionID),
		"cruise":                optAny(o.Cruise),
		"cruisejoin":            optAny(o.CruiseJoin),
		"hauljoin":              optAny(o.HaulJoin),
		"haul":                  optAny(o.Haul),
		"stratum":               optAny(o.Stratum),
		"station":               optAny(o.Station),
		"vessel_id":             optAny(o.VesselID),
		"vessel_name":           optAny(o.VesselName),
		"date_time":             optAny(o.DateTime),
		"latitude_dd_start":     optAny(o.LatitudeDDStart),
		"longitude_dd_start":    optAny(o.LongitudeDDStart),
		"latitude_dd_end":       optAny(o.LatitudeDDEnd),
		"longitude_dd_end":      optAny(o.LongitudeDDEnd),
		"bottom_temperature_c":  optAny(o.BottomTemperatureC),
		"surface_temperature_c": optAny(o.SurfaceTemperatureC),
		"depth_m":               optAny(o.DepthM),
		"distance_fished_km":    optAny(o.DistanceFishedKM),
		"duration_hr":           optAny(o.DurationHr),
		"net_width_m":           optAny(o.NetWidthM),
		"net_height_m":          optAny(o.NetHeightM),
		"area_swept_km2":        optAny(o.AreaSweptKM2),
		"performance":           optAny(o.Performance),
		"species_code":          optAny(o.SpeciesCode),
		"cpue_kgkm2":            optAny(o.CPUEKgKM2),
		"cpue_nokm2":            optAny(o.CPUENoKM2),
		"count":                 optAny(o.Count),
		"weight_kg":             optAny(o.WeightKg),
		"taxon_confidence":      optAny(o.TaxonConfidence),
		"scientific_name":       optAny(o.ScientificName),
		"common_name":           optAny(o.CommonName),
		"id_rank":               optAny(o.IDRank),
		"worms":                 optAny(o.Worms),
		"itis":                  optAny(o.ITIS),
		"complete":              o.Complete,
	}
}

func optAny[T any](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// SpeciesMasterEntry is one row of the curated species master list. The
// build's zero-catch inference reads build.Species records instead, so
// nothing in this module constructs one.
type SpeciesMasterEntry struct {
	SpeciesCode    int64
	ScientificName string
	CommonName     string
	IDRank         string
	Worms          *int64
	ITIS           *int64
}
