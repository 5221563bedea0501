package archive

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidRetention is returned for a negative retention period.
	ErrInvalidRetention = errors.New("archive: invalid retention")
	// ErrStationNotFound is returned when no station has the requested code.
	ErrStationNotFound = errors.New("archive: station not found")
)

// Tx is one archive transaction. Everything it does is committed or
// rolled back together.
type Tx interface {
	LoadFactsBefore(ctx context.Context, cutoff time.Time) ([]ArrivalFact, []CancellationFact, error)
	UpsertStationPerformance(ctx context.Context, rows []PerformanceRow) error
	UpsertOperatorPerformance(ctx context.Context, rows []PerformanceRow) error
	DeleteFactsBefore(ctx context.Context, cutoff time.Time) (arrivals, cancellations int64, err error)
	Commit() error
	Rollback() error
}

// Store begins archive transactions.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Result reports one archive run.
type Result struct {
	Cutoff               time.Time `json:"cutoff"`
	StationRows          int       `json:"station_rows"`
	OperatorRows         int       `json:"operator_rows"`
	ArrivalsDeleted      int64     `json:"arrivals_deleted"`
	CancellationsDeleted int64     `json:"cancellations_deleted"`
}

// PerformanceReader lists archived daily rows.
type PerformanceReader interface {
	ListStationPerformance(ctx context.Context, crs string, from, to time.Time) ([]PerformanceRow, error)
}
