package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	archive "railwatch/internal/archive/domain"
	"railwatch/internal/observability/metrics"
)

// DefaultRetentionDays is how long facts stay in short-term storage.
const DefaultRetentionDays = 30

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Archiver rolls old facts into daily performance rows and removes them.
type Archiver struct {
	store  archive.Store
	logger *log.Logger
	clock  Clock
}

// ArchiverOption configures the archiver.
type ArchiverOption func(*Archiver)

// WithClock overrides the system clock.
func WithClock(clock Clock) ArchiverOption {
	return func(a *Archiver) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// NewArchiver constructs an Archiver.
func NewArchiver(store archive.Store, logger *log.Logger, opts ...ArchiverOption) (*Archiver, error) {
	if store == nil {
		return nil, errors.New("archiver: nil store")
	}
	if logger == nil {
		logger = log.Default()
	}
	a := &Archiver{store: store, logger: logger, clock: systemClock{}}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Cutoff returns the first instant that is kept for retentionDays.
func (a *Archiver) Cutoff(retentionDays int) time.Time {
	return archive.Day(a.clock.Now()).AddDate(0, 0, -retentionDays)
}

// Run archives every fact scheduled before the cutoff in one transaction.
func (a *Archiver) Run(ctx context.Context, retentionDays int) (result archive.Result, err error) {
	if retentionDays < 0 {
		return archive.Result{}, archive.ErrInvalidRetention
	}
	start := time.Now()
	result.Cutoff = a.Cutoff(retentionDays)
	defer func() {
		outcome := metrics.ResultSuccess
		if err != nil {
			outcome = metrics.ResultError
		}
		metrics.ObserveArchive(outcome, time.Since(start))
	}()

	tx, err := a.store.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("archive: begin: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			a.logger.Printf("archive rollback error: cutoff=%s err=%v", result.Cutoff.Format("2006-01-02"), rbErr)
		}
	}()

	arrivals, cancellations, err := tx.LoadFactsBefore(ctx, result.Cutoff)
	if err != nil {
		return result, fmt.Errorf("archive: load facts: %w", err)
	}
	if len(arrivals) == 0 && len(cancellations) == 0 {
		a.logger.Printf("archive nothing to do: cutoff=%s", result.Cutoff.Format("2006-01-02"))
		return result, nil
	}

	stationRows := archive.RollupByStation(arrivals, cancellations)
	operatorRows := archive.RollupByOperator(arrivals, cancellations)
	if err := tx.UpsertStationPerformance(ctx, stationRows); err != nil {
		return result, fmt.Errorf("archive: upsert station performance: %w", err)
	}
	if err := tx.UpsertOperatorPerformance(ctx, operatorRows); err != nil {
		return result, fmt.Errorf("archive: upsert operator performance: %w", err)
	}
	arrivalsDeleted, cancellationsDeleted, err := tx.DeleteFactsBefore(ctx, result.Cutoff)
	if err != nil {
		return result, fmt.Errorf("archive: delete facts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("archive: commit: %w", err)
	}
	committed = true

	result.StationRows = len(stationRows)
	result.OperatorRows = len(operatorRows)
	result.ArrivalsDeleted = arrivalsDeleted
	result.CancellationsDeleted = cancellationsDeleted
	metrics.AddArchiveRows("station_performance", int64(result.StationRows))
	metrics.AddArchiveRows("operator_performance", int64(result.OperatorRows))
	metrics.AddArchiveRows("arrivals_deleted", arrivalsDeleted)
	metrics.AddArchiveRows("cancellations_deleted", cancellationsDeleted)

	a.logger.Printf("archive finished: cutoff=%s station_rows=%d operator_rows=%d arrivals_deleted=%d cancellations_deleted=%d",
		result.Cutoff.Format("2006-01-02"), result.StationRows, result.OperatorRows, arrivalsDeleted, cancellationsDeleted)
	return result, nil
}
