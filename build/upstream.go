package build

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	afscgap "github.com/schmidtdse/afscgap-go"
)

// upstreamBase and the endpoint paths mirror request_source.py's DOMAIN
// and ENDPOINTS tables exactly; only the haul endpoint accepts a year
// filter, per YEAR_ENDPOINTS.
const upstreamBase = "https://apps-st.fisheries.noaa.gov"

const (
	haulEndpoint    = "/ods/foss/afsc_groundfish_survey_haul/"
	catchEndpoint   = "/ods/foss/afsc_groundfish_survey_catch/"
	speciesEndpoint = "/ods/foss/afsc_groundfish_survey_species/"
)

// defaultPageLimit matches request_source.py's DEFAULT_LIMIT.
const defaultPageLimit = 5000

// Store is the read/write backend the ingestion and join steps need:
// Requestor to check for and fetch existing partial files (append-mode
// writes), Writer to persist them.
type Store interface {
	afscgap.Requestor
	afscgap.Writer
}

// Ingestor pulls haul, catch, and species records from the upstream REST
// API and writes them grouped by haul or species into object storage,
// directly grounded on request_source.py's dump_to_s3/append_in_bucket.
type Ingestor struct {
	Store      Store
	Client     *http.Client
	Clock      clockwork.Clock
	RetryDelay time.Duration
	BaseURL    string
}

func (in *Ingestor) httpClient() *http.Client {
	if in.Client != nil {
		return in.Client
	}
	return http.DefaultClient
}

func (in *Ingestor) baseURL() string {
	if in.BaseURL != "" {
		return in.BaseURL
	}
	return upstreamBase
}

// buildRequestURL mirrors get_api_request_url's offset/limit/year query
// construction.
func buildRequestURL(base, endpoint string, year *int, offset, limit int) string {
	if year != nil {
		return fmt.Sprintf(`%s%s?offset=%d&limit=%d&q={"year":%d}`, base, endpoint, offset, limit, *year)
	}
	return fmt.Sprintf("%s%s?offset=%d&limit=%d", base, endpoint, offset, limit)
}

type upstreamPage struct {
	Items []json.RawMessage `json:"items"`
}

// fetchPage executes one paginated request with the package's retry-once
// policy, matching execute_request_with_retry's single-retry-after-delay
// behavior, and returns the page's raw items for type-specific decoding.
func (in *Ingestor) fetchPage(ctx context.Context, url string) ([]json.RawMessage, error) {
	var items []json.RawMessage

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(in.RetryDelay), 1), ctx)
	err := backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := in.httpClient().Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("afscgap/build: upstream request to %s returned status %d", url, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		var page upstreamPage
		if err := json.Unmarshal(body, &page); err != nil {
			return backoff.Permanent(err)
		}
		items = page.Items
		return nil
	}, policy)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", afscgap.ErrUpstreamUnavailable, err)
	}
	return items, nil
}

// IngestHauls paginates the haul endpoint for year, appending every page's
// records into per-haul flat files under haul/, grounded on dump_to_s3's
// haul branch of append_in_bucket (one file per
// "{year}_{survey}_{hauljoin}").
func (in *Ingestor) IngestHauls(ctx context.Context, year int) error {
	offset := 0
	for {
		url := buildRequestURL(in.baseURL(), haulEndpoint, &year, offset, defaultPageLimit)
		raw, err := in.fetchPage(ctx, url)
		if err != nil {
			return err
		}
		if len(raw) == 0 {
			return nil
		}

		grouped := make(map[string][]Haul)
		for _, item := range raw {
			var h Haul
			if err := json.Unmarshal(item, &h); err != nil {
				continue
			}
			key := fmt.Sprintf("%d_%s_%d", h.Year, h.Survey, h.HaulJoin)
			grouped[key] = append(grouped[key], h)
		}

		for _, records := range grouped {
			path := "haul/" + fmt.Sprintf("%d_%s_%d", records[0].Year, records[0].Survey, records[0].HaulJoin) + ".avro"
			if err := in.appendHauls(ctx, path, records); err != nil {
				return err
			}
		}

		offset += defaultPageLimit
	}
}

// IngestCatches paginates the catch endpoint (no year filter, per
// YEAR_ENDPOINTS), appending per-haul catch files under catch/.
func (in *Ingestor) IngestCatches(ctx context.Context) error {
	offset := 0
	for {
		url := buildRequestURL(in.baseURL(), catchEndpoint, nil, offset, defaultPageLimit)
		raw, err := in.fetchPage(ctx, url)
		if err != nil {
			return err
		}
		if len(raw) == 0 {
			return nil
		}

		grouped := make(map[int64][]Catch)
		for _, item := range raw {
			var c Catch
			if err := json.Unmarshal(item, &c); err != nil {
				continue
			}
			grouped[c.HaulJoin] = append(grouped[c.HaulJoin], c)
		}

		for haulJoin, records := range grouped {
			path := fmt.Sprintf("catch/%d.avro", haulJoin)
			if err := in.appendCatches(ctx, path, records); err != nil {
				return err
			}
		}

		offset += defaultPageLimit
	}
}

// IngestSpecies paginates the species endpoint (no year filter), writing
// per-species master records under species/.
func (in *Ingestor) IngestSpecies(ctx context.Context) error {
	offset := 0
	for {
		url := buildRequestURL(in.baseURL(), speciesEndpoint, nil, offset, defaultPageLimit)
		raw, err := in.fetchPage(ctx, url)
		if err != nil {
			return err
		}
		if len(raw) == 0 {
			return nil
		}

		grouped := make(map[int64][]Species)
		for _, item := range raw {
			var s Species
			if err := json.Unmarshal(item, &s); err != nil {
				continue
			}
			grouped[s.SpeciesCode] = append(grouped[s.SpeciesCode], s)
		}

		for code, records := range grouped {
			path := fmt.Sprintf("species/%d.avro", code)
			if err := in.appendSpecies(ctx, path, records); err != nil {
				return err
			}
		}

		offset += defaultPageLimit
	}
}

func (in *Ingestor) appendHauls(ctx context.Context, path string, records []Haul) error {
	prior, err := in.Store.Fetch(ctx, path)
	if err != nil && !errorsIsNotFound(err) {
		return err
	}
	if prior != nil {
		existing, decErr := DecodeHauls(prior)
		if decErr == nil {
			records = append(existing, records...)
		}
	}
	encoded, err := EncodeHauls(records)
	if err != nil {
		return err
	}
	return in.Store.Put(ctx, path, encoded)
}

func (in *Ingestor) appendCatches(ctx context.Context, path string, records []Catch) error {
	prior, err := in.Store.Fetch(ctx, path)
	if err != nil && !errorsIsNotFound(err) {
		return err
	}
	if prior != nil {
		existing, decErr := DecodeCatches(prior)
		if decErr == nil {
			records = append(existing, records...)
		}
	}
	encoded, err := EncodeCatches(records)
	if err != nil {
		return err
	}
	return in.Store.Put(ctx, path, encoded)
}

func (in *Ingestor) appendSpecies(ctx context.Context, path string, records []Species) error {
	prior, err := in.Store.Fetch(ctx, path)
	if err != nil && !errorsIsNotFound(err) {
		return err
	}
	if prior != nil {
		existing, decErr := DecodeSpeciesList(prior)
		if decErr == nil {
			records = append(existing, records...)
		}
	}
	encoded, err := EncodeSpeciesList(records)
	if err != nil {
		return err
	}
	return in.Store.Put(ctx, path, encoded)
}
