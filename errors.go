package afscgap

import (
	"errors"
)

// Sentinel errors returned by the query and store layers, checkable with
// errors.Is. Mirrors the teacher's package-level errors.New sentinel
// convention in its own (TileDB-specific) errors.go.
var (
	ErrObjectNotFound      = errors.New("afscgap: object not found")
	ErrFetchFailed         = errors.New("afscgap: fetch failed after retry")
	ErrInvalidRecord       = errors.New("afscgap: invalid record")
	ErrUpstreamUnavailable = errors.New("afscgap: upstream service unavailable")
	ErrQueryClosed         = errors.New("afscgap: query already closed")
	ErrNoSuchHaul          = errors.New("afscgap: no such haul")
	ErrBadContainer        = errors.New("afscgap: malformed flat file container")
)
