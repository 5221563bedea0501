package performance

import (
	"context"
	"time"
)

// ID is a surrogate key assigned by the backing store.
type ID int64

// IdentityStore looks up and inserts natural-keyed entities.
// Find methods return ok=false when no row exists. Insert methods return
// ErrIdentityRace when the natural key already exists.
type IdentityStore interface {
	FindOperator(ctx context.Context, code string) (ID, bool, error)
	InsertOperator(ctx context.Context, operator Operator) (ID, error)
	FindStation(ctx context.Context, crs string) (ID, bool, error)
	InsertStation(ctx context.Context, station Station) (ID, error)
	FindService(ctx context.Context, uid string) (ID, bool, error)
	InsertService(ctx context.Context, service Service, operatorID ID) (ID, error)
	FindCancellationType(ctx context.Context, code string) (ID, bool, error)
	InsertCancellationType(ctx context.Context, cancellationType CancellationType) (ID, error)
}

// ArrivalRow is an arrival fact bound to resolved keys.
type ArrivalRow struct {
	StationID ID
	ServiceID ID
	Scheduled time.Time
	Actual    time.Time
}

// CancellationRow is a cancellation fact bound to resolved keys.
type CancellationRow struct {
	StationID          ID
	ServiceID          ID
	CancellationTypeID ID
	Scheduled          time.Time
}

// FactStore appends fact rows. Inserts report false when an identical
// (station, service, scheduled) fact already exists.
type FactStore interface {
	InsertArrival(ctx context.Context, row ArrivalRow) (bool, error)
	InsertCancellation(ctx context.Context, row CancellationRow) (bool, error)
}

// Session is a store scoped to one pipeline run.
type Session interface {
	IdentityStore
	FactStore
	Close() error
}

// SessionOpener acquires a Session.
type SessionOpener interface {
	Open(ctx context.Context) (Session, error)
}
