package postgres

import (
	"context"
	"database/sql"
	"errors"

	performance "railwatch/internal/performance/domain"
)

// IdentityStore resolves natural keys against the operators, stations,
// services and cancellation_types tables.
type IdentityStore struct {
	db DBTX
}

// NewIdentityStore constructs an IdentityStore.
func NewIdentityStore(db DBTX) *IdentityStore {
	return &IdentityStore{db: db}
}

// FindOperator looks up an operator by code.
func (s *IdentityStore) FindOperator(ctx context.Context, code string) (performance.ID, bool, error) {
	return s.find(ctx, `SELECT operator_id FROM operators WHERE operator_code = $1`, code)
}

// InsertOperator inserts an operator.
func (s *IdentityStore) InsertOperator(ctx context.Context, operator performance.Operator) (performance.ID, error) {
	return s.insert(ctx, `
INSERT INTO operators (operator_code, operator_name)
VALUES ($1, $2)
ON CONFLICT (operator_code) DO NOTHING
RETURNING operator_id`, operator.Code, operator.Name)
}

// FindStation looks up a station by CRS code.
func (s *IdentityStore) FindStation(ctx context.Context, crs string) (performance.ID, bool, error) {
	return s.find(ctx, `SELECT station_id FROM stations WHERE crs_code = $1`, crs)
}

// InsertStation inserts a station.
func (s *IdentityStore) InsertStation(ctx context.Context, station performance.Station) (performance.ID, error) {
	return s.insert(ctx, `
INSERT INTO stations (crs_code, station_name)
VALUES ($1, $2)
ON CONFLICT (crs_code) DO NOTHING
RETURNING station_id`, station.CRS, station.Name)
}

// FindService looks up a service by uid.
func (s *IdentityStore) FindService(ctx context.Context, uid string) (performance.ID, bool, error) {
	return s.find(ctx, `SELECT service_id FROM services WHERE service_uid = $1`, uid)
}

// InsertService inserts a service owned by operatorID.
func (s *IdentityStore) InsertService(ctx context.Context, service performance.Service, operatorID performance.ID) (performance.ID, error) {
	return s.insert(ctx, `
INSERT INTO services (service_uid, operator_id)
VALUES ($1, $2)
ON CONFLICT (service_uid) DO NOTHING
RETURNING service_id`, service.UID, int64(operatorID))
}

// FindCancellationType looks up a cancellation type by code.
func (s *IdentityStore) FindCancellationType(ctx context.Context, code string) (performance.ID, bool, error) {
	return s.find(ctx, `SELECT cancellation_type_id FROM cancellation_types WHERE cancellation_code = $1`, code)
}

// InsertCancellationType inserts a cancellation type.
func (s *IdentityStore) InsertCancellationType(ctx context.Context, cancellationType performance.CancellationType) (performance.ID, error) {
	return s.insert(ctx, `
INSERT INTO cancellation_types (cancellation_code, description)
VALUES ($1, $2)
ON CONFLICT (cancellation_code) DO NOTHING
RETURNING cancellation_type_id`, cancellationType.Code, cancellationType.Description)
}

func (s *IdentityStore) find(ctx context.Context, query string, key string) (performance.ID, bool, error) {
	if s == nil || s.db == nil {
		return 0, false, errors.New("identity store: nil db")
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return performance.ID(id), true, nil
}

// insert returns ErrIdentityRace when ON CONFLICT suppressed the row.
func (s *IdentityStore) insert(ctx context.Context, query string, args ...any) (performance.ID, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("identity store: nil db")
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, performance.ErrIdentityRace
		}
		return 0, mapError(err)
	}
	return performance.ID(id), nil
}
