package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	performance "railwatch/internal/performance/domain"
)

// FactWriter appends arrival and cancellation facts for resolved keys.
type FactWriter struct {
	store performance.FactStore
}

// NewFactWriter constructs a FactWriter.
func NewFactWriter(store performance.FactStore) (*FactWriter, error) {
	if store == nil {
		return nil, errors.New("fact writer: nil store")
	}
	return &FactWriter{store: store}, nil
}

// WriteArrival inserts one arrival row. It reports false if the same
// (station, service, scheduled) arrival was already stored.
func (w *FactWriter) WriteArrival(ctx context.Context, stationID, serviceID performance.ID, scheduled, actual time.Time) (bool, error) {
	if stationID <= 0 || serviceID <= 0 {
		return false, fmt.Errorf("%w: arrival with unresolved keys", performance.ErrPersistence)
	}
	written, err := w.store.InsertArrival(ctx, performance.ArrivalRow{
		StationID: stationID,
		ServiceID: serviceID,
		Scheduled: scheduled,
		Actual:    actual,
	})
	if err != nil {
		return false, fmt.Errorf("%w: insert arrival: %v", performance.ErrPersistence, err)
	}
	return written, nil
}

// WriteCancellation inserts one cancellation row with the same duplicate
// semantics as WriteArrival.
func (w *FactWriter) WriteCancellation(ctx context.Context, stationID, serviceID, cancellationTypeID performance.ID, scheduled time.Time) (bool, error) {
	if stationID <= 0 || serviceID <= 0 || cancellationTypeID <= 0 {
		return false, fmt.Errorf("%w: cancellation with unresolved keys", performance.ErrPersistence)
	}
	written, err := w.store.InsertCancellation(ctx, performance.CancellationRow{
		StationID:          stationID,
		ServiceID:          serviceID,
		CancellationTypeID: cancellationTypeID,
		Scheduled:          scheduled,
	})
	if err != nil {
		return false, fmt.Errorf("%w: insert cancellation: %v", performance.ErrPersistence, err)
	}
	return written, nil
}
