package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	archive "railwatch/internal/archive/domain"
	reports "railwatch/internal/reports/domain"
)

// FactSource reads live station facts for reports.
type FactSource struct {
	db *sql.DB
}

// NewFactSource constructs a FactSource.
func NewFactSource(db *sql.DB) *FactSource {
	return &FactSource{db: db}
}

// StationFacts loads arrivals and cancellations of crs scheduled in [from, to).
func (s *FactSource) StationFacts(ctx context.Context, crs string, from, to time.Time) (reports.StationFacts, error) {
	if s == nil || s.db == nil {
		return reports.StationFacts{}, errors.New("report source: nil db")
	}
	facts := reports.StationFacts{CRS: crs}
	err := s.db.QueryRowContext(ctx, `
SELECT station_id, station_name FROM stations WHERE crs_code = $1`, crs).Scan(&facts.StationID, &facts.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return reports.StationFacts{}, reports.ErrStationNotFound
	}
	if err != nil {
		return reports.StationFacts{}, err
	}

	arrivals, err := s.db.QueryContext(ctx, `
SELECT s.operator_id, a.scheduled_arrival, a.actual_arrival
FROM arrivals a
JOIN services s ON s.service_id = a.service_id
WHERE a.station_id = $1 AND a.scheduled_arrival >= $2 AND a.scheduled_arrival < $3
ORDER BY a.scheduled_arrival`, facts.StationID, from, to)
	if err != nil {
		return reports.StationFacts{}, err
	}
	defer arrivals.Close()
	for arrivals.Next() {
		fact := archive.ArrivalFact{StationID: facts.StationID}
		if err := arrivals.Scan(&fact.OperatorID, &fact.Scheduled, &fact.Actual); err != nil {
			return reports.StationFacts{}, err
		}
		facts.Arrivals = append(facts.Arrivals, fact)
	}
	if err := arrivals.Err(); err != nil {
		return reports.StationFacts{}, err
	}

	cancellations, err := s.db.QueryContext(ctx, `
SELECT s.operator_id, c.scheduled_arrival, COALESCE(NULLIF(ct.description, ''), ct.cancellation_code)
FROM cancellations c
JOIN services s ON s.service_id = c.service_id
JOIN cancellation_types ct ON ct.cancellation_type_id = c.cancellation_type_id
WHERE c.station_id = $1 AND c.scheduled_arrival >= $2 AND c.scheduled_arrival < $3
ORDER BY c.scheduled_arrival`, facts.StationID, from, to)
	if err != nil {
		return reports.StationFacts{}, err
	}
	defer cancellations.Close()
	for cancellations.Next() {
		var fact reports.CancellationFact
		if err := cancellations.Scan(&fact.OperatorID, &fact.Scheduled, &fact.Reason); err != nil {
			return reports.StationFacts{}, err
		}
		facts.Cancellations = append(facts.Cancellations, fact)
	}
	return facts, cancellations.Err()
}
