// Package build implements the snapshot construction pipeline that
// produces the flat files and per-field indices the afscgap query
// package reads: pulling haul, catch, and species records from the
// upstream REST API, joining them per haul with zero-catch inference,
// and writing the main haul index.
//
// Grounded on the original snapshot builder's request_source.py
// (upstream ingestion), render_flat.py (the join), and
// write_main_index.py (the main index), reimplemented against the same
// Requestor/Writer storage abstraction the query package uses instead of
// direct boto3 S3 calls.
package build

import (
	"errors"
	"fmt"

	"github.com/linkedin/goavro/v2"
	afscgap "github.com/schmidtdse/afscgap-go"
)

// Haul is one raw upstream haul record, field-for-field matching
// request_source.py's HAUL_SCHEMA. JSON tags let it be unmarshaled
// directly from the upstream API's response items.
type Haul struct {
	Year                int64    `json:"year"`
	Srvy                string   `json:"srvy"`
	Survey              string   `json:"survey"`
	SurveyName          string   `json:"survey_name"`
	SurveyDefinitionID  *int64   `json:"survey_definition_id"`
	Cruise              *int64   `json:"cruise"`
	CruiseJoin          int64    `json:"cruisejoin"`
	HaulJoin            int64    `json:"hauljoin"`
	Haul                *int64   `json:"haul"`
	Stratum             *int64   `json:"stratum"`
	Station             *string  `json:"station"`
	VesselID            *int64   `json:"vessel_id"`
	VesselName          *string  `json:"vessel_name"`
	DateTime            string   `json:"date_time"`
	LatitudeDDStart     *float64 `json:"latitude_dd_start"`
	LongitudeDDStart    *float64 `json:"longitude_dd_start"`
	LatitudeDDEnd       *float64 `json:"latitude_dd_end"`
	LongitudeDDEnd      *float64 `json:"longitude_dd_end"`
	BottomTemperatureC  *float64 `json:"bottom_temperature_c"`
	SurfaceTemperatureC *float64 `json:"surface_temperature_c"`
	DepthM              *float64 `json:"depth_m"`
	DistanceFishedKM    *float64 `json:"distance_fished_km"`
	DurationHr          *float64 `json:"duration_hr"`
	NetWidthM           *float64 `json:"net_width_m"`
	NetHeightM          *float64 `json:"net_height_m"`
	AreaSweptKM2        *float64 `json:"area_swept_km2"`
	Performance         *float64 `json:"performance"`
}

// Catch is one raw upstream catch record, matching CATCH_SCHEMA.
type Catch struct {
	HaulJoin        int64    `json:"hauljoin"`
	SpeciesCode     int64    `json:"species_code"`
	CPUEKgKM2       *float64 `json:"cpue_kgkm2"`
	CPUENoKM2       *float64 `json:"cpue_nokm2"`
	Count           *int64   `json:"count"`
	WeightKg        *float64 `json:"weight_kg"`
	TaxonConfidence *string  `json:"taxon_confidence"`
}

// Species is one raw upstream species master record, matching
// SPECIES_SCHEMA.
type Species struct {
	SpeciesCode    int64   `json:"species_code"`
	ScientificName *string `json:"scientific_name"`
	CommonName     *string `json:"common_name"`
	IDRank         *string `json:"id_rank"`
	Worms          *int64  `json:"worms"`
	ITIS           *int64  `json:"itis"`
}

const haulSchemaJSON = `{
  "type": "record",
  "name": "Haul",
  "fields": [
    {"name": "year", "type": "long"},
    {"name": "srvy", "type": "string"},
    {"name": "survey", "type": "string"},
    {"name": "survey_name", "type": "string"},
    {"name": "survey_definition_id", "type": ["null", "long"], "default": null},
    {"name": "cruise", "type": ["null", "long"], "default": null},
    {"name": "cruisejoin", "type": "long"},
    {"name": "hauljoin", "type": "long"},
    {"name": "haul", "type": ["null", "long"], "default": null},
    {"name": "stratum", "type": ["null", "long"], "default": null},
    {"name": "station", "type": ["null", "string"], "default": null},
    {"name": "vessel_id", "type": ["null", "long"], "default": null},
    {"name": "vessel_name", "type": ["null", "string"], "default": null},
    {"name": "date_time", "type": "string"},
    {"name": "latitude_dd_start", "type": ["null", "double"], "default": null},
    {"name": "longitude_dd_start", "type": ["null", "double"], "default": null},
    {"name": "latitude_dd_end", "type": ["null", "double"], "default": null},
    {"name": "longitude_dd_end", "type": ["null", "double"], "default": null},
    {"name": "bottom_temperature_c", "type": ["null", "double"], "default": null},
    {"name": "surface_temperature_c", "type": ["null", "double"], "default": null},
    {"name": "depth_m", "type": ["null", "double"], "default": null},
    {"name": "distance_fished_km", "type": ["null", "double"], "default": null},
    {"name": "duration_hr", "type": ["null", "double"], "default": null},
    {"name": "net_width_m", "type": ["null", "double"], "default": null},
    {"name": "net_height_m", "type": ["null", "double"], "default": null},
    {"name": "area_swept_km2", "type": ["null", "double"], "default": null},
    {"name": "performance", "type": ["null", "double"], "default": null}
  ]
}`

const catchSchemaJSON = `{
  "type": "record",
  "name": "Catch",
  "fields": [
    {"name": "hauljoin", "type": "long"},
    {"name": "species_code", "type": "long"},
    {"name": "cpue_kgkm2", "type": ["null", "double"], "default": null},
    {"name": "cpue_nokm2", "type": ["null", "double"], "default": null},
    {"name": "count", "type": ["null", "long"], "default": null},
    {"name": "weight_kg", "type": ["null", "double"], "default": null},
    {"name": "taxon_confidence", "type": ["null", "string"], "default": null}
  ]
}`

const speciesSchemaJSON = `{
  "type": "record",
  "name": "Species",
  "fields": [
    {"name": "species_code", "type": "long"},
    {"name": "scientific_name", "type": ["null", "string"], "default": null},
    {"name": "common_name", "type": ["null", "string"], "default": null},
    {"name": "id_rank", "type": ["null", "string"], "default": null},
    {"name": "worms", "type": ["null", "long"], "default": null},
    {"name": "itis", "type": ["null", "long"], "default": null}
  ]
}`

var (
	haulCodec    *goavro.Codec
	catchCodec   *goavro.Codec
	speciesCodec *goavro.Codec
)

func init() {
	var err error
	haulCodec, err = goavro.NewCodec(haulSchemaJSON)
	if err != nil {
		panic(fmt.Sprintf("afscgap/build: invalid haul schema: %v", err))
	}
	catchCodec, err = goavro.NewCodec(catchSchemaJSON)
	if err != nil {
		panic(fmt.Sprintf("afscgap/build: invalid catch schema: %v", err))
	}
	speciesCodec, err = goavro.NewCodec(speciesSchemaJSON)
	if err != nil {
		panic(fmt.Sprintf("afscgap/build: invalid species schema: %v", err))
	}
}

func optFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return goavro.Union("double", *v)
}

func optInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return goavro.Union("long", *v)
}

func optStr(v *string) interface{} {
	if v == nil {
		return nil
	}
	return goavro.Union("string", *v)
}

func haulToNative(h Haul) map[string]interface{} {
	return map[string]interface{}{
		"year":                  h.Year,
		"srvy":                  h.Srvy,
		"survey":                h.Survey,
		"survey_name":           h.SurveyName,
		"survey_definition_id":  optInt(h.SurveyDefinitionID),
		"cruise":                optInt(h.Cruise),
		"cruisejoin":            h.CruiseJoin,
		"hauljoin":              h.HaulJoin,
		"haul":                  optInt(h.Haul),
		"stratum":               optInt(h.Stratum),
		"station":               optStr(h.Station),
		"vessel_id":             optInt(h.VesselID),
		"vessel_name":           optStr(h.VesselName),
		"date_time":             h.DateTime,
		"latitude_dd_start":     optFloat(h.LatitudeDDStart),
		"longitude_dd_start":    optFloat(h.LongitudeDDStart),
		"latitude_dd_end":       optFloat(h.LatitudeDDEnd),
		"longitude_dd_end":      optFloat(h.LongitudeDDEnd),
		"bottom_temperature_c":  optFloat(h.BottomTemperatureC),
		"surface_temperature_c": optFloat(h.SurfaceTemperatureC),
		"depth_m":               optFloat(h.DepthM),
		"distance_fished_km":    optFloat(h.DistanceFishedKM),
		"duration_hr":           optFloat(h.DurationHr),
		"net_width_m":           optFloat(h.NetWidthM),
		"net_height_m":          optFloat(h.NetHeightM),
		"area_swept_km2":        optFloat(h.AreaSweptKM2),
		"performance":           optFloat(h.Performance),
	}
}

func haulFromNative(native interface{}) (Haul, error) {
	m, ok := native.(map[string]interface{})
	if !ok {
		return Haul{}, errors.New("afscgap/build: decoded haul is not a map")
	}
	return Haul{
		Year:                asInt64(m["year"]),
		Srvy:                asString(m["srvy"]),
		Survey:              asString(m["survey"]),
		SurveyName:          asString(m["survey_name"]),
		SurveyDefinitionID:  optUnionInt(m["survey_definition_id"]),
		Cruise:              optUnionInt(m["cruise"]),
		CruiseJoin:          asInt64(m["cruisejoin"]),
		HaulJoin:            asInt64(m["hauljoin"]),
		Haul:                optUnionInt(m["haul"]),
		Stratum:             optUnionInt(m["stratum"]),
		Station:             optUnionStr(m["station"]),
		VesselID:            optUnionInt(m["vessel_id"]),
		VesselName:          optUnionStr(m["vessel_name"]),
		DateTime:            asString(m["date_time"]),
		LatitudeDDStart:     optUnionFloat(m["latitude_dd_start"]),
		LongitudeDDStart:    optUnionFloat(m["longitude_dd_start"]),
		LatitudeDDEnd:       optUnionFloat(m["latitude_dd_end"]),
		LongitudeDDEnd:      optUnionFloat(m["longitude_dd_end"]),
		BottomTemperatureC:  optUnionFloat(m["bottom_temperature_c"]),
		SurfaceTemperatureC: optUnionFloat(m["surface_temperature_c"]),
		DepthM:              optUnionFloat(m["depth_m"]),
		DistanceFishedKM:    optUnionFloat(m["distance_fished_km"]),
		DurationHr:          optUnionFloat(m["duration_hr"]),
		NetWidthM:           optUnionFloat(m["net_width_m"]),
		NetHeightM:          optUnionFloat(m["net_height_m"]),
		AreaSweptKM2:        optUnionFloat(m["area_swept_km2"]),
		Performance:         optUnionFloat(m["performance"]),
	}, nil
}

func catchToNative(c Catch) map[string]interface{} {
	return map[string]interface{}{
		"hauljoin":         c.HaulJoin,
		"species_code":     c.SpeciesCode,
		"cpue_kgkm2":       optFloat(c.CPUEKgKM2),
		"cpue_nokm2":       optFloat(c.CPUENoKM2),
		"count":            optInt(c.Count),
		"weight_kg":        optFloat(c.WeightKg),
		"taxon_confidence": optStr(c.TaxonConfidence),
	}
}

func catchFromNative(native interface{}) (Catch, error) {
	m, ok := native.(map[string]interface{})
	if !ok {
		return Catch{}, errors.New("afscgap/build: decoded catch is not a map")
	}
	return Catch{
		HaulJoin:        asInt64(m["hauljoin"]),
		SpeciesCode:     asInt64(m["species_code"]),
		CPUEKgKM2:       optUnionFloat(m["cpue_kgkm2"]),
		CPUENoKM2:       optUnionFloat(m["cpue_nokm2"]),
		Count:           optUnionInt(m["count"]),
		WeightKg:        optUnionFloat(m["weight_kg"]),
		TaxonConfidence: optUnionStr(m["taxon_confidence"]),
	}, nil
}

func speciesToNative(s Species) map[string]interface{} {
	return map[string]interface{}{
		"species_code":    s.SpeciesCode,
		"scientific_name": optStr(s.ScientificName),
		"common_name":     optStr(s.CommonName),
		"id_rank":         optStr(s.IDRank),
		"worms":           optInt(s.Worms),
		"itis":            optInt(s.ITIS),
	}
}

func speciesFromNative(native interface{}) (Species, error) {
	m, ok := native.(map[string]interface{})
	if !ok {
		return Species{}, errors.New("afscgap/build: decoded species is not a map")
	}
	return Species{
		SpeciesCode:    asInt64(m["species_code"]),
		ScientificName: optUnionStr(m["scientific_name"]),
		CommonName:     optUnionStr(m["common_name"]),
		IDRank:         optUnionStr(m["id_rank"]),
		Worms:          optUnionInt(m["worms"]),
		ITIS:           optUnionInt(m["itis"]),
	}, nil
}

// EncodeHauls, EncodeCatches, and EncodeSpeciesList serialize a batch of
// upstream records into this package's flat file framing (the same
// container format the query package's flat files use, via
// afscgap.EncodeContainer).
func EncodeHauls(records []Haul) ([]byte, error) {
	out := make([][]byte, 0, len(records))
	for _, r := range records {
		rec, err := haulCodec.BinaryFromNative(nil, haulToNative(r))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return afscgap.EncodeContainer(out), nil
}

func DecodeHauls(data []byte) ([]Haul, error) {
	records, err := afscgap.DecodeContainer(data)
	if err != nil {
		return nil, err
	}
	out := make([]Haul, 0, len(records))
	for _, rec := range records {
		native, _, err := haulCodec.NativeFromBinary(rec)
		if err != nil {
			continue
		}
		h, err := haulFromNative(native)
		if err != nil {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func EncodeCatches(records []Catch) ([]byte, error) {
	out := make([][]byte, 0, len(records))
	for _, r := range records {
		rec, err := catchCodec.BinaryFromNative(nil, catchToNative(r))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return afscgap.EncodeContainer(out), nil
}

func DecodeCatches(data []byte) ([]Catch, error) {
	records, err := afscgap.DecodeContainer(data)
	if err != nil {
		return nil, err
	}
	out := make([]Catch, 0, len(records))
	for _, rec := range records {
		native, _, err := catchCodec.NativeFromBinary(rec)
		if err != nil {
			continue
		}
		c, err := catchFromNative(native)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func EncodeSpeciesList(records []Species) ([]byte, error) {
	out := make([][]byte, 0, len(records))
	for _, r := range records {
		rec, err := speciesCodec.BinaryFromNative(nil, speciesToNative(r))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return afscgap.EncodeContainer(out), nil
}

func DecodeSpeciesList(data []byte) ([]Species, error) {
	records, err := afscgap.DecodeContainer(data)
	if err != nil {
		return nil, err
	}
	out := make([]Species, 0, len(records))
	for _, rec := range records {
		native, _, err := speciesCodec.NativeFromBinary(rec)
		if err != nil {
			continue
		}
		s, err := speciesFromNative(native)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func asInt64(v interface{}) int64 {
	n, _ := v.(int64)
	return n
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func optUnionInt(v interface{}) *int64 {
	raw, ok := unwrapUnion(v)
	if !ok {
		return nil
	}
	n, ok := raw.(int64)
	if !ok {
		return nil
	}
	return &n
}

func optUnionFloat(v interface{}) *float64 {
	raw, ok := unwrapUnion(v)
	if !ok {
		return nil
	}
	n, ok := raw.(float64)
	if !ok {
		return nil
	}
	return &n
}

func optUnionStr(v interface{}) *string {
	raw, ok := unwrapUnion(v)
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil
	}
	return &s
}

func unwrapUnion(v interface{}) (interface{}, bool) {
	if v == nil {
		return nil, false
	}
	if m, ok := v.(map[string]interface{}); ok {
		for _, inner := range m {
			return inner, true
		}
		return nil, false
	}
	return v, true
}
