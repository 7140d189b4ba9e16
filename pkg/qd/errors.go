package qd

import "errors"

// Error taxonomy. Wrap these with fmt.Errorf("...: %w", ErrX) so callers can
// classify failures with errors.Is.
var (
	// ErrConfiguration covers missing or invalid configuration: an empty
	// prompt set, a missing model credential, invalid run parameters.
	// Fatal to the request that hit it.
	ErrConfiguration = errors.New("configuration error")

	// ErrPrecondition covers violated structural preconditions, such as a
	// viewport wider than the archive. Fatal before anything is rendered.
	ErrPrecondition = errors.New("precondition violated")

	// ErrPersistence covers failed loads: undecodable records and missing
	// checkpoint artifacts. Fatal to that action only.
	ErrPersistence = errors.New("persistence error")

	// ErrGeneration marks a per-genome generation or parse failure. It is
	// never fatal; the genome carries a nonzero error code instead.
	ErrGeneration = errors.New("generation error")
)

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsPrecondition reports whether err is a precondition error.
func IsPrecondition(err error) bool { return errors.Is(err, ErrPrecondition) }

// IsPersistence reports whether err is a persistence error.
func IsPersistence(err error) bool { return errors.Is(err, ErrPersistence) }
