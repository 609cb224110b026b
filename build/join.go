package build

import (
	"context"
	"strconv"

	afscgap "github.com/schmidtdse/afscgap-go"
)

// Joiner builds one haul's joined flat file by combining its haul
// metadata, catch records, and the species master list, then inferring
// zero-catch rows for every formally tracked species absent from the
// haul's catches. Grounded on render_flat.py's process_haul/
// execute_full_join/make_zero_catch_records.
type Joiner struct {
	Store Store
}

// JoinHaul reads haul/{key}.avro and catch/{haul}.avro, joins them against
// speciesByCode, and writes the result to joined/{key}.avro. If either the
// haul metadata or the catch file is missing, the haul is skipped
// entirely without writing a joined file — see DESIGN.md's Open Question
// resolution on missing catch files.
func (j *Joiner) JoinHaul(ctx context.Context, key afscgap.HaulKey, speciesByCode map[int64]Species) error {
	haulData, err := j.Store.Fetch(ctx, "haul/"+key.String()+".avro")
	if err != nil {
		if errorsIsNotFound(err) {
			return nil
		}
		return err
	}
	hauls, err := DecodeHauls(haulData)
	if err != nil || len(hauls) == 0 {
		return nil
	}
	haul := hauls[0]

	catchData, err := j.Store.Fetch(ctx, "catch/"+keyHaulJoinPath(key.Haul))
	if err != nil {
		if errorsIsNotFound(err) {
			return nil
		}
		return err
	}
	catches, err := DecodeCatches(catchData)
	if err != nil {
		return err
	}

	observations := make([]*afscgap.Observation, 0, len(catches))
	found := make(map[int64]bool, len(catches))

	for _, c := range catches {
		sp, ok := speciesByCode[c.SpeciesCode]
		found[c.SpeciesCode] = true
		observations = append(observations, mergeObservation(haul, c, sp, ok))
	}

	for code, sp := range speciesByCode {
		if found[code] {
			continue
		}
		observations = append(observations, zeroCatchObservation(haul, sp))
	}

	encoded, err := afscgap.EncodeObservations(observations)
	if err != nil {
		return err
	}
	return j.Store.Put(ctx, key.JoinedPath(), encoded)
}

func keyHaulJoinPath(haul int64) string {
	return strconv.FormatInt(haul, 10) + ".avro"
}

// mergeObservation combines a catch record with its haul and, when found,
// its species master entry, matching append_catch_haul +
// append_species_from_species_list. A species code absent from the
// master list marks the record incomplete, per the original's
// mark_incomplete branch.
func mergeObservation(h Haul, c Catch, sp Species, speciesFound bool) *afscgap.Observation {
	obs := observationFromHaul(h)
	obs.SpeciesCode = &c.SpeciesCode
	obs.CPUEKgKM2 = c.CPUEKgKM2
	obs.CPUENoKM2 = c.CPUENoKM2
	obs.Count = c.Count
	obs.WeightKg = c.WeightKg
	obs.TaxonConfidence = c.TaxonConfidence

	if speciesFound {
		obs.ScientificName = sp.ScientificName
		obs.CommonName = sp.CommonName
		obs.IDRank = sp.IDRank
		obs.Worms = sp.Worms
		obs.ITIS = sp.ITIS
		obs.Complete = true
	} else {
		obs.Complete = false
	}
	return obs
}

// zeroCatchObservation builds an inferred zero-catch record for a species
// not found among a haul's catches, matching make_zero_record: zeroed
// metrics, no taxon confidence, and always marked complete (the species
// itself is known, even though it wasn't caught).
func zeroCatchObservation(h Haul, sp Species) *afscgap.Observation {
	obs := observationFromHaul(h)
	code := sp.SpeciesCode
	obs.SpeciesCode = &code
	zero := 0.0
	zeroCount := int64(0)
	obs.CPUEKgKM2 = &zero
	obs.CPUENoKM2 = &zero
	obs.Count = &zeroCount
	obs.WeightKg = &zero
	obs.TaxonConfidence = nil
	obs.ScientificName = sp.ScientificName
	obs.CommonName = sp.CommonName
	obs.IDRank = sp.IDRank
	obs.Worms = sp.Worms
	obs.ITIS = sp.ITIS
	obs.Complete = true
	return obs
}

func observationFromHaul(h Haul) *afscgap.Observation {
	year := h.Year
	srvy := h.Srvy
	survey := h.Survey
	surveyName := h.SurveyName
	cruiseJoin := h.CruiseJoin
	haulJoin := h.HaulJoin
	dateTime := h.DateTime

	return &afscgap.Observation{
		Year:                &year,
		Srvy:                &srvy,
		Survey:              &survey,
		SurveyName:          &surveyName,
		SurveyDefinitionID:  h.SurveyDefinitionID,
		Cruise:              h.Cruise,
		CruiseJoin:          &cruiseJoin,
		HaulJoin:            &haulJoin,
		Haul:                h.Haul,
		Stratum:             h.Stratum,
		Station:             h.Station,
		VesselID:            h.VesselID,
		VesselName:          h.VesselName,
		DateTime:            &dateTime,
		LatitudeDDStart:     h.LatitudeDDStart,
		LongitudeDDStart:    h.LongitudeDDStart,
		LatitudeDDEnd:       h.LatitudeDDEnd,
		LongitudeDDEnd:      h.LongitudeDDEnd,
		BottomTemperatureC:  h.BottomTemperatureC,
		SurfaceTemperatureC: h.SurfaceTemperatureC,
		DepthM:              h.DepthM,
		DistanceFishedKM:    h.DistanceFishedKM,
		DurationHr:          h.DurationHr,
		NetWidthM:           h.NetWidthM,
		NetHeightM:          h.NetHeightM,
		AreaSweptKM2:        h.AreaSweptKM2,
		Performance:         h.Performance,
	}
}

// LoadSpeciesByCode fetches every species/*.avro file and indexes the
// (first, in case of duplicate append pages) record by species code,
// grounded on render_flat.py's get_all_species.
func LoadSpeciesByCode(ctx context.Context, store Store) (map[int64]Species, error) {
	paths, err := store.List(ctx, "species/", ".avro")
	if err != nil {
		return nil, err
	}

	out := make(map[int64]Species, len(paths))
	for _, path := range paths {
		data, err := store.Fetch(ctx, path)
		if err != nil {
			if errorsIsNotFound(err) {
				continue
			}
			return nil, err
		}
		records, err := DecodeSpeciesList(data)
		if err != nil {
			continue
		}
		for _, sp := range records {
			if _, seen := out[sp.SpeciesCode]; seen {
				continue
			}
			out[sp.SpeciesCode] = sp
		}
	}
	return out, nil
}
