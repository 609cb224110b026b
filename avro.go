package afscgap

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/linkedin/goavro/v2"
)

// containerMagic and containerVersion identify the flat file framing used
// for every object this package writes and reads: joined observation
// files, per-haul catch files, the main index, and per-field index shards.
//
// goavro/v2 encodes and decodes single Avro records against a schema but
// does not implement the Avro Object Container File format (sync markers,
// embedded schema, compression codec negotiation). Rather than adopt an
// unrelated container library, flat files here use a minimal framing of
// our own: a 4-byte magic, a 2-byte format version, then a stream of
// 4-byte-length-prefixed binary-encoded records. See DESIGN.md.
var containerMagic = [4]byte{'A', 'F', 'S', 'G'}

const containerVersion uint16 = 1

// observationSchemaJSON is the Avro schema for one joined observation row,
// field-for-field matching OBSERVATION_SCHEMA from the snapshot builder's
// render_flat module: every non-key field nullable via a ["null", T] union.
const observationSchemaJSON = `{
  "type": "record",
  "name": "Observation",
  "fields": [
    {"name": "year", "type": ["null", "long"], "default": null},
    {"name": "srvy", "type": ["null", "string"], "default": null},
    {"name": "survey", "type": ["null", "string"], "default": null},
    {"name": "survey_name", "type": ["null", "string"], "default": null},
    {"name": "survey_definition_id", "type": ["null", "long"], "default": null},
    {"name": "cruise", "type": ["null", "long"], "default": null},
    {"name": "cruisejoin", "type": ["null", "long"], "default": null},
    {"name": "hauljoin", "type": ["null", "long"], "default": null},
    {"name": "haul", "type": ["null", "long"], "default": null},
    {"name": "stratum", "type": ["null", "long"], "default": null},
    {"name": "station", "type": ["null", "string"], "default": null},
    {"name": "vessel_id", "type": ["null", "long"], "default": null},
    {"name": "vessel_name", "type": ["null", "string"], "default": null},
    {"name": "date_time", "type": ["null", "string"], "default": null},
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
    {"name": "performance", "type": ["null", "double"], "default": null},
    {"name": "species_code", "type": ["null", "long"], "default": null},
    {"name": "cpue_kgkm2", "type": ["null", "double"], "default": null},
    {"name": "cpue_nokm2", "type": ["null", "double"], "default": null},
    {"name": "count", "type": ["null", "long"], "default": null},
    {"name": "weight_kg", "type": ["null", "double"], "default": null},
    {"name": "taxon_confidence", "type": ["null", "string"], "default": null},
    {"name": "scientific_name", "type": ["null", "string"], "default": null},
    {"name": "common_name", "type": ["null", "string"], "default": null},
    {"name": "id_rank", "type": ["null", "string"], "default": null},
    {"name": "worms", "type": ["null", "long"], "default": null},
    {"name": "itis", "type": ["null", "long"], "default": null},
    {"name": "complete", "type": "boolean", "default": false}
  ]
}`

// indexEntrySchemaJSON is the Avro schema for one entry in a per-field
// index shard: a normalized value and the set of haul keys it is present
// in, matching the shape written by generate_indicies/combine_shards.
const indexEntrySchemaJSON = `{
  "type": "record",
  "name": "IndexEntry",
  "fields": [
    {"name": "value", "type": "string"},
    {"name": "hauls", "type": {"type": "array", "items": "string"}}
  ]
}`

// mainIndexEntrySchemaJSON is the Avro schema for one entry in the main
// haul index, the fallback enumeration of every known haul key.
const mainIndexEntrySchemaJSON = `{
  "type": "record",
  "name": "MainIndexEntry",
  "fields": [
    {"name": "year", "type": "long"},
    {"name": "survey", "type": "string"},
    {"name": "haul", "type": "long"}
  ]
}`

var (
	observationCodec *goavro.Codec
	indexEntryCodec  *goavro.Codec
	mainIndexCodec   *goavro.Codec
)

func init() {
	var err error
	observationCodec, err = goavro.NewCodec(observationSchemaJSON)
	if err != nil {
		panic(fmt.Sprintf("afscgap: invalid observation schema: %v", err))
	}
	indexEntryCodec, err = goavro.NewCodec(indexEntrySchemaJSON)
	if err != nil {
		panic(fmt.Sprintf("afscgap: invalid index entry schema: %v", err))
	}
	mainIndexCodec, err = goavro.NewCodec(mainIndexEntrySchemaJSON)
	if err != nil {
		panic(fmt.Sprintf("afscgap: invalid main index schema: %v", err))
	}
}

// writeContainer frames a sequence of Avro-binary-encoded records with the
// package's container header and per-record length prefixes.
func writeContainer(records [][]byte) []byte {
	out := make([]byte, 0, 6+len(records)*8)
	out = append(out, containerMagic[:]...)
	var versionBuf [2]byte
	binary.BigEndian.PutUint16(versionBuf[:], containerVersion)
	out = append(out, versionBuf[:]...)

	for _, rec := range records {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(rec)))
		out = append(out, lenBuf[:]...)
		out = append(out, rec...)
	}
	return out
}

// readContainer parses the package's container framing back into its
// constituent binary-encoded records.
func readContainer(data []byte) ([][]byte, error) {
	if len(data) < 6 {
		return nil, errors.Join(ErrBadContainer, errors.New("truncated header"))
	}
	if data[0] != containerMagic[0] || data[1] != containerMagic[1] || data[2] != containerMagic[2] || data[3] != containerMagic[3] {
		return nil, errors.Join(ErrBadContainer, errors.New("bad magic"))
	}
	version := binary.BigEndian.Uint16(data[4:6])
	if version != containerVersion {
		return nil, errors.Join(ErrBadContainer, fmt.Errorf("unsupported container version %d", version))
	}

	var records [][]byte
	pos := 6
	for pos < len(data) {
		if pos+4 > len(data) {
			return nil, errors.Join(ErrBadContainer, errors.New("truncated record length"))
		}
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+length > len(data) {
			return nil, errors.Join(ErrBadContainer, errors.New("truncated record body"))
		}
		records = append(records, data[pos:pos+length])
		pos += length
	}

	return records, nil
}

// EncodeContainer frames a batch of already Avro-binary-encoded records
// with this package's container header, exported so the build and index
// sub-packages can reuse the same on-disk framing for their own schemas
// (upstream haul/catch/species dumps) without duplicating it.
func EncodeContainer(records [][]byte) []byte {
	return writeContainer(records)
}

// DecodeContainer parses this package's container framing back into its
// constituent binary-encoded records, for the same cross-package reuse as
// EncodeContainer.
func DecodeContainer(data []byte) ([][]byte, error) {
	return readContainer(data)
}

// EncodeObservations serializes a batch of Observations into one flat
// file's bytes, via Observation.ToDict's schemaless projection fed through
// the Avro codec's Native form.
func EncodeObservations(observations []*Observation) ([]byte, error) {
	records := make([][]byte, 0, len(observations))
	for _, obs := range observations {
		binaryRec, err := observationCodec.BinaryFromNative(nil, obs.ToDict())
		if err != nil {
			return nil, errors.Join(ErrInvalidRecord, err)
		}
		records = append(records, binaryRec)
	}
	return writeContainer(records), nil
}

// DecodeObservations parses one flat file's bytes back into Observations.
// A record that fails to decode is skipped and its index (within the file)
// reported, rather than aborting the whole batch, matching the cursor's
// invalid-record side channel in §C6.
func DecodeObservations(data []byte) (observations []*Observation, invalidIndices []int, err error) {
	records, err := readContainer(data)
	if err != nil {
		return nil, nil, err
	}

	for i, rec := range records {
		native, _, decErr := observationCodec.NativeFromBinary(rec)
		if decErr != nil {
			invalidIndices = append(invalidIndices, i)
			continue
		}
		obs, convErr := observationFromNative(native)
		if convErr != nil {
			invalidIndices = append(invalidIndices, i)
			continue
		}
		observations = append(observations, obs)
	}

	return observations, invalidIndices, nil
}

func observationFromNative(native interface{}) (*Observation, error) {
	m, ok := native.(map[string]interface{})
	if !ok {
		return nil, errors.New("afscgap: decoded record is not a map")
	}

	obs := &Observation{}
	obs.Year = nativeOptInt64(m["year"])
	obs.Srvy = nativeOptString(m["srvy"])
	obs.Survey = nativeOptString(m["survey"])
	obs.SurveyName = nativeOptString(m["survey_name"])
	obs.SurveyDefinitionID = nativeOptInt64(m["survey_definition_id"])
	obs.Cruise = nativeOptInt64(m["cruise"])
	obs.CruiseJoin = nativeOptInt64(m["cruisejoin"])
	obs.HaulJoin = nativeOptInt64(m["hauljoin"])
	obs.Haul = nativeOptInt64(m["haul"])
	obs.Stratum = nativeOptInt64(m["stratum"])
	obs.Station = nativeOptString(m["station"])
	obs.VesselID = nativeOptInt64(m["vessel_id"])
	obs.VesselName = nativeOptString(m["vessel_name"])
	obs.DateTime = nativeOptString(m["date_time"])
	obs.LatitudeDDStart = nativeOptFloat64(m["latitude_dd_start"])
	obs.LongitudeDDStart = nativeOptFloat64(m["longitude_dd_start"])
	obs.LatitudeDDEnd = nativeOptFloat64(m["latitude_dd_end"])
	obs.LongitudeDDEnd = nativeOptFloat64(m["longitude_dd_end"])
	obs.BottomTemperatureC = nativeOptFloat64(m["bottom_temperature_c"])
	obs.SurfaceTemperatureC = nativeOptFloat64(m["surface_temperature_c"])
	obs.DepthM = nativeOptFloat64(m["depth_m"])
	obs.DistanceFishedKM = nativeOptFloat64(m["distance_fished_km"])
	obs.DurationHr = nativeOptFloat64(m["duration_hr"])
	obs.NetWidthM = nativeOptFloat64(m["net_width_m"])
	obs.NetHeightM = nativeOptFloat64(m["net_height_m"])
	obs.AreaSweptKM2 = nativeOptFloat64(m["area_swept_km2"])
	obs.Performance = nativeOptFloat64(m["performance"])
	obs.SpeciesCode = nativeOptInt64(m["species_code"])
	obs.CPUEKgKM2 = nativeOptFloat64(m["cpue_kgkm2"])
	obs.CPUENoKM2 = nativeOptFloat64(m["cpue_nokm2"])
	obs.Count = nativeOptInt64(m["count"])
	obs.WeightKg = nativeOptFloat64(m["weight_kg"])
	obs.TaxonConfidence = nativeOptString(m["taxon_confidence"])
	obs.ScientificName = nativeOptString(m["scientific_name"])
	obs.CommonName = nativeOptString(m["common_name"])
	obs.IDRank = nativeOptString(m["id_rank"])
	obs.Worms = nativeOptInt64(m["worms"])
	obs.ITIS = nativeOptInt64(m["itis"])
	if complete, ok := m["complete"].(bool); ok {
		obs.Complete = complete
	}

	return obs, nil
}

// nativeOptInt64/nativeOptFloat64/nativeOptString unwrap goavro's
// ["null", T] union representation, which decodes a non-null branch as a
// single-key map {"<branch-type>": value}.
func nativeOptInt64(v interface{}) *int64 {
	raw, ok := unwrapUnion(v)
	if !ok {
		return nil
	}
	switch n := raw.(type) {
	case int64:
		return &n
	case int32:
		r := int64(n)
		return &r
	}
	return nil
}

func nativeOptFloat64(v interface{}) *float64 {
	raw, ok := unwrapUnion(v)
	if !ok {
		return nil
	}
	switch n := raw.(type) {
	case float64:
		return &n
	case float32:
		r := float64(n)
		return &r
	}
	return nil
}

func nativeOptString(v interface{}) *string {
	raw, ok := unwrapUnion(v)
	if !ok {
		return nil
	}
	if s, ok := raw.(string); ok {
		return &s
	}
	return nil
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

// EncodeIndexEntries serializes a per-field index shard: one entry per
// distinct normalized value, each carrying the haul keys it occurs in.
func EncodeIndexEntries(entries map[string][]string) ([]byte, error) {
	records := make([][]byte, 0, len(entries))
	for value, hauls := range entries {
		native := map[string]interface{}{"value": value, "hauls": toInterfaceSlice(hauls)}
		rec, err := indexEntryCodec.BinaryFromNative(nil, native)
		if err != nil {
			return nil, errors.Join(ErrInvalidRecord, err)
		}
		records = append(records, rec)
	}
	return writeContainer(records), nil
}

// DecodeIndexEntries parses an index shard's bytes back into its
// value-to-haul-keys map.
func DecodeIndexEntries(data []byte) (map[string][]string, error) {
	records, err := readContainer(data)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(records))
	for _, rec := range records {
		native, _, decErr := indexEntryCodec.NativeFromBinary(rec)
		if decErr != nil {
			continue
		}
		m, ok := native.(map[string]interface{})
		if !ok {
			continue
		}
		value, _ := m["value"].(string)
		hauls := toStringSlice(m["hauls"])
		out[value] = append(out[value], hauls...)
	}
	return out, nil
}

// EncodeMainIndex serializes the full list of known haul keys.
func EncodeMainIndex(keys []HaulKey) ([]byte, error) {
	records := make([][]byte, 0, len(keys))
	for _, k := range keys {
		native := map[string]interface{}{"year": int64(k.Year), "survey": k.Survey, "haul": k.Haul}
		rec, err := mainIndexCodec.BinaryFromNative(nil, native)
		if err != nil {
			return nil, errors.Join(ErrInvalidRecord, err)
		}
		records = append(records, rec)
	}
	return writeContainer(records), nil
}

// DecodeMainIndex parses the main index's bytes back into haul keys.
func DecodeMainIndex(data []byte) ([]HaulKey, error) {
	records, err := readContainer(data)
	if err != nil {
		return nil, err
	}

	keys := make([]HaulKey, 0, len(records))
	for _, rec := range records {
		native, _, decErr := mainIndexCodec.NativeFromBinary(rec)
		if decErr != nil {
			continue
		}
		m, ok := native.(map[string]interface{})
		if !ok {
			continue
		}
		year, _ := m["year"].(int64)
		survey, _ := m["survey"].(string)
		haul, _ := m["haul"].(int64)
		keys = append(keys, HaulKey{Year: int(year), Survey: survey, Haul: haul})
	}
	return keys, nil
}

func toInterfaceSlice(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func toStringSlice(v interface{}) []string {
	slice, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(slice))
	for _, item := range slice {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
