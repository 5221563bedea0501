package performance

import "time"

// Operator is a train operating company keyed by its short code.
type Operator struct {
	Code string
	Name string
}

// Station is a railway station keyed by its CRS code.
type Station struct {
	CRS  string
	Name string
}

// Service is a single scheduled journey run by an operator.
type Service struct {
	Operator Operator
	UID      string
}

// CancellationType describes why a service was cancelled.
type CancellationType struct {
	Code        string
	Description string
}

// Arrival is a realised train call at a station.
type Arrival struct {
	Station   Station
	Service   Service
	Scheduled time.Time
	Actual    time.Time
}

// Delay returns actual minus scheduled.
func (a Arrival) Delay() time.Duration {
	return a.Actual.Sub(a.Scheduled)
}

// Cancellation is a scheduled call that did not run.
type Cancellation struct {
	Type      CancellationType
	Station   Station
	Service   Service
	Scheduled time.Time
}

// Validate checks natural keys.
func (o Operator) Validate() error {
	if o.Code == "" {
		return ErrEmptyNaturalKey
	}
	return nil
}

// Validate checks natural keys.
func (s Station) Validate() error {
	if s.CRS == "" {
		return ErrEmptyNaturalKey
	}
	return nil
}

// Validate checks natural keys.
func (s Service) Validate() error {
	if s.UID == "" {
		return ErrEmptyNaturalKey
	}
	return s.Operator.Validate()
}

// Validate checks natural keys.
func (c CancellationType) Validate() error {
	if c.Code == "" {
		return ErrEmptyNaturalKey
	}
	return nil
}
