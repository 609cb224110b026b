package afscgap

import (
	"context"
	"errors"

	"github.com/alitto/pond"
)

// RecordStream concurrently fetches and decodes the flat files for a set
// of candidate hauls, feeding the decoded Observations to a Cursor as they
// arrive rather than waiting for every haul to finish. Grounded on the
// teacher's cmd/main.go pond-pool fan-out over a list of per-file work
// items, generalized from whole-program conversion to per-haul fetch.
type RecordStream struct {
	Requestor   Requestor
	Concurrency int
}

// Start launches the concurrent fetch and returns the channels a Cursor
// consumes: decoded records, a single terminal error (set at most once,
// then the channel is closed), and per-record decode failures. All three
// channels are closed once every haul has been attempted.
func (s *RecordStream) Start(ctx context.Context, hauls []HaulKey) (<-chan *Observation, <-chan error, <-chan InvalidRecord) {
	records := make(chan *Observation, 64)
	errc := make(chan error, 1)
	invalid := make(chan InvalidRecord, 16)

	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	go func() {
		defer close(records)
		defer close(errc)
		defer close(invalid)

		pool := pond.New(concurrency, len(hauls), pond.Context(ctx))

		for _, haul := range hauls {
			key := haul
			pool.Submit(func() {
				s.fetchHaul(ctx, key, records, invalid, errc)
			})
		}

		pool.StopAndWait()
	}()

	return records, errc, invalid
}

func (s *RecordStream) fetchHaul(ctx context.Context, key HaulKey, records chan<- *Observation, invalid chan<- InvalidRecord, errc chan<- error) {
	data, err := s.Requestor.Fetch(ctx, key.JoinedPath())
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			// A haul listed by an index but missing its flat file is
			// reported as an invalid record rather than aborting the
			// whole stream, since other hauls may still resolve fine.
			invalid <- InvalidRecord{HaulKey: key, Index: -1, Reason: err}
			return
		}
		select {
		case errc <- err:
		default:
		}
		return
	}

	observations, invalidIndices, err := DecodeObservations(data)
	if err != nil {
		select {
		case errc <- err:
		default:
		}
		return
	}

	for _, idx := range invalidIndices {
		invalid <- InvalidRecord{HaulKey: key, Index: idx, Reason: ErrInvalidRecord}
	}

	for _, obs := range observations {
		select {
		case records <- obs:
		case <-ctx.Done():
			return
		}
	}
}
