package stats

import "errors"

// ErrVersionMismatch indicates a cache artifact with an incompatible
// schema version. The artifact must be treated as absent, never
// partially interpreted.
var ErrVersionMismatch = errors.New("stats cache schema version mismatch")

// ErrMalformed indicates a cache artifact whose payload could not be
// decoded. Treated the same as a version mismatch: cache absent.
var ErrMalformed = errors.New("stats cache payload is malformed")

// ErrNoCache indicates that no cache artifact exists at all.
var ErrNoCache = errors.New("no stats cache present")

// absent reports whether err is one of the cache-absent conditions.
func absent(err error) bool {
	return errors.Is(err, ErrVersionMismatch) ||
		errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrNoCache)
}
