package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	archive "railwatch/internal/archive/domain"
)

// Store runs archive transactions against Postgres.
type Store struct {
	db *sql.DB
}

// NewStore constructs a Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Begin starts an archive transaction.
func (s *Store) Begin(ctx context.Context) (archive.Tx, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("archive store: nil db")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Tx wraps *sql.Tx.
type Tx struct {
	tx *sql.Tx
}

// LoadFactsBefore returns arrivals and cancellations scheduled before cutoff,
// each joined to the operator of its service.
func (t *Tx) LoadFactsBefore(ctx context.Context, cutoff time.Time) ([]archive.ArrivalFact, []archive.CancellationFact, error) {
	arrivalRows, err := t.tx.QueryContext(ctx, `
SELECT a.station_id, s.operator_id, a.scheduled_arrival, a.actual_arrival
FROM arrivals a
JOIN services s ON s.service_id = a.service_id
WHERE a.scheduled_arrival < $1
ORDER BY a.scheduled_arrival`, cutoff.UTC())
	if err != nil {
		return nil, nil, err
	}
	defer arrivalRows.Close()

	var arrivals []archive.ArrivalFact
	for arrivalRows.Next() {
		var fact archive.ArrivalFact
		if err := arrivalRows.Scan(&fact.StationID, &fact.OperatorID, &fact.Scheduled, &fact.Actual); err != nil {
			return nil, nil, err
		}
		arrivals = append(arrivals, fact)
	}
	if err := arrivalRows.Err(); err != nil {
		return nil, nil, err
	}

	cancellationRows, err := t.tx.QueryContext(ctx, `
SELECT c.station_id, s.operator_id, c.scheduled_arrival
FROM cancellations c
JOIN services s ON s.service_id = c.service_id
WHERE c.scheduled_arrival < $1
ORDER BY c.scheduled_arrival`, cutoff.UTC())
	if err != nil {
		return nil, nil, err
	}
	defer cancellationRows.Close()

	var cancellations []archive.CancellationFact
	for cancellationRows.Next() {
		var fact archive.CancellationFact
		if err := cancellationRows.Scan(&fact.StationID, &fact.OperatorID, &fact.Scheduled); err != nil {
			return nil, nil, err
		}
		cancellations = append(cancellations, fact)
	}
	return arrivals, cancellations, cancellationRows.Err()
}

const upsertPerformance = `
INSERT INTO archive.%[1]s_performance (
	%[1]s_id, day, delay_1m_count, delay_5m_count, avg_delay_min, arrival_count, cancellation_count
) VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (%[1]s_id, day) DO UPDATE SET
	avg_delay_min = CASE
		WHEN %[1]s_performance.delay_1m_count + EXCLUDED.delay_1m_count = 0 THEN 0
		ELSE ROUND(
			(%[1]s_performance.avg_delay_min * %[1]s_performance.delay_1m_count
				+ EXCLUDED.avg_delay_min * EXCLUDED.delay_1m_count)
			/ (%[1]s_performance.delay_1m_count + EXCLUDED.delay_1m_count), 2)
	END,
	delay_1m_count = %[1]s_performance.delay_1m_count + EXCLUDED.delay_1m_count,
	delay_5m_count = %[1]s_performance.delay_5m_count + EXCLUDED.delay_5m_count,
	arrival_count = %[1]s_performance.arrival_count + EXCLUDED.arrival_count,
	cancellation_count = %[1]s_performance.cancellation_count + EXCLUDED.cancellation_count`

var (
	upsertStationPerformance  = fmt.Sprintf(upsertPerformance, "station")
	upsertOperatorPerformance = fmt.Sprintf(upsertPerformance, "operator")
)

// UpsertStationPerformance merges rows into archive.station_performance.
func (t *Tx) UpsertStationPerformance(ctx context.Context, rows []archive.PerformanceRow) error {
	return t.upsert(ctx, upsertStationPerformance, rows)
}

// UpsertOperatorPerformance merges rows into archive.operator_performance.
func (t *Tx) UpsertOperatorPerformance(ctx context.Context, rows []archive.PerformanceRow) error {
	return t.upsert(ctx, upsertOperatorPerformance, rows)
}

func (t *Tx) upsert(ctx context.Context, query string, rows []archive.PerformanceRow) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.ID, row.Day, row.Delay1mCount, row.Delay5mCount,
			row.AvgDelayMin, row.ArrivalCount, row.CancellationCount,
		); err != nil {
			return err
		}
	}
	return nil
}

// DeleteFactsBefore removes archived facts.
func (t *Tx) DeleteFactsBefore(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	arrivals, err := t.deleteBefore(ctx, `DELETE FROM arrivals WHERE scheduled_arrival < $1`, cutoff)
	if err != nil {
		return 0, 0, err
	}
	cancellations, err := t.deleteBefore(ctx, `DELETE FROM cancellations WHERE scheduled_arrival < $1`, cutoff)
	if err != nil {
		return 0, 0, err
	}
	return arrivals, cancellations, nil
}

func (t *Tx) deleteBefore(ctx context.Context, query string, cutoff time.Time) (int64, error) {
	result, err := t.tx.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// ListStationPerformance returns archived rows for the station with code crs
// between from (inclusive) and to (exclusive).
func (s *Store) ListStationPerformance(ctx context.Context, crs string, from, to time.Time) ([]archive.PerformanceRow, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("archive store: nil db")
	}
	var stationID int64
	err := s.db.QueryRowContext(ctx, `SELECT station_id FROM stations WHERE crs_code = $1`, crs).Scan(&stationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, archive.ErrStationNotFound
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT station_id, day, delay_1m_count, delay_5m_count, avg_delay_min, arrival_count, cancellation_count
FROM archive.station_performance
WHERE station_id = $1 AND day >= $2 AND day < $3
ORDER BY day`, stationID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []archive.PerformanceRow
	for rows.Next() {
		var row archive.PerformanceRow
		if err := rows.Scan(&row.ID, &row.Day, &row.Delay1mCount, &row.Delay5mCount,
			&row.AvgDelayMin, &row.ArrivalCount, &row.CancellationCount); err != nil {
			return nil, err
		}
		row.Day = archive.Day(row.Day)
		result = append(result, row)
	}
	return result, rows.Err()
}
