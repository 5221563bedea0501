package postgres

import (
	"context"
	"errors"

	performance "railwatch/internal/performance/domain"
)

// FactStore appends rows to the arrivals and cancellations tables.
type FactStore struct {
	db DBTX
}

// NewFactStore constructs a FactStore.
func NewFactStore(db DBTX) *FactStore {
	return &FactStore{db: db}
}

// InsertArrival appends an arrival. Duplicate facts are ignored.
func (s *FactStore) InsertArrival(ctx context.Context, row performance.ArrivalRow) (bool, error) {
	return s.exec(ctx, `
INSERT INTO arrivals (station_id, service_id, scheduled_arrival, actual_arrival)
VALUES ($1, $2, $3, $4)
ON CONFLICT (station_id, service_id, scheduled_arrival) DO NOTHING`,
		int64(row.StationID), int64(row.ServiceID), row.Scheduled, row.Actual)
}

// InsertCancellation appends a cancellation. Duplicate facts are ignored.
func (s *FactStore) InsertCancellation(ctx context.Context, row performance.CancellationRow) (bool, error) {
	return s.exec(ctx, `
INSERT INTO cancellations (station_id, service_id, cancellation_type_id, scheduled_arrival)
VALUES ($1, $2, $3, $4)
ON CONFLICT (station_id, service_id, scheduled_arrival) DO NOTHING`,
		int64(row.StationID), int64(row.ServiceID), int64(row.CancellationTypeID), row.Scheduled)
}

func (s *FactStore) exec(ctx context.Context, query string, args ...any) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("fact store: nil db")
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
