package performance

import "errors"

var (
	// ErrEmptyFeed is returned when a station feed has no service records.
	ErrEmptyFeed = errors.New("performance: empty feed")
	// ErrMalformedRecord marks a record without usable timing fields.
	ErrMalformedRecord = errors.New("performance: malformed record")
	// ErrFetch is returned when a station feed cannot be retrieved.
	ErrFetch = errors.New("performance: fetch failed")
	// ErrPersistence is returned when the backing store rejects an operation.
	ErrPersistence = errors.New("performance: persistence failed")
	// ErrIdentityRace is returned by an insert that lost a natural-key race.
	ErrIdentityRace = errors.New("performance: natural key already exists")
	// ErrEmptyNaturalKey is returned when an entity has no natural key.
	ErrEmptyNaturalKey = errors.New("performance: empty natural key")
	// ErrInvalidTime is returned for clock values that are not HHMM.
	ErrInvalidTime = errors.New("performance: invalid time")
	// ErrUnknownReference is returned when a row references a missing parent.
	ErrUnknownReference = errors.New("performance: unknown reference")
)
