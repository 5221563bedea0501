package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"railwatch/internal/notify"
	"railwatch/internal/observability/metrics"
	performance "railwatch/internal/performance/domain"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("pipeline: run in progress")

// FeedSource returns the raw service records of a station for a day.
type FeedSource interface {
	FetchServices(ctx context.Context, crs string, date time.Time) ([]performance.RawService, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock returns wall-clock UTC time.
type SystemClock struct{}

// Now returns the current time in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Driver runs fetch, normalise, resolve and write for a list of stations.
type Driver struct {
	feed     FeedSource
	sessions performance.SessionOpener
	notifier notify.Notifier
	logger   *log.Logger
	clock    Clock

	runMu    sync.Mutex
	latestMu sync.RWMutex
	latest   *RunSummary
}

// DriverOption configures the driver.
type DriverOption func(*Driver)

// WithNotifier sends an alert after runs with failed stations.
func WithNotifier(notifier notify.Notifier) DriverOption {
	return func(d *Driver) {
		d.notifier = notifier
	}
}

// WithClock overrides the system clock.
func WithClock(clock Clock) DriverOption {
	return func(d *Driver) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// NewDriver constructs a Driver.
func NewDriver(feed FeedSource, sessions performance.SessionOpener, logger *log.Logger, opts ...DriverOption) (*Driver, error) {
	if feed == nil {
		return nil, errors.New("pipeline: nil feed source")
	}
	if sessions == nil {
		return nil, errors.New("pipeline: nil session opener")
	}
	if logger == nil {
		logger = log.Default()
	}
	d := &Driver{
		feed:     feed,
		sessions: sessions,
		logger:   logger,
		clock:    SystemClock{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Latest returns the summary of the most recent completed run.
func (d *Driver) Latest() (RunSummary, bool) {
	d.latestMu.RLock()
	defer d.latestMu.RUnlock()
	if d.latest == nil {
		return RunSummary{}, false
	}
	return *d.latest, true
}

// Run processes stations sequentially for date. Station failures are reported
// in the summary; an error is returned only when the run cannot start.
func (d *Driver) Run(ctx context.Context, stations []string, date time.Time) (RunSummary, error) {
	if !d.runMu.TryLock() {
		return RunSummary{}, ErrRunInProgress
	}
	defer d.runMu.Unlock()

	summary := RunSummary{
		RunID:     uuid.NewString(),
		Date:      performance.DayStart(date),
		StartedAt: d.clock.Now(),
	}

	session, err := d.sessions.Open(ctx)
	if err != nil {
		metrics.ObservePipelineRun(metrics.ResultError, 0)
		return summary, fmt.Errorf("%w: open session: %v", performance.ErrPersistence, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			d.logger.Printf("pipeline session close error: run=%s err=%v", summary.RunID, err)
		}
	}()

	resolver, err := NewIdentityResolver(session)
	if err != nil {
		return summary, err
	}
	writer, err := NewFactWriter(session)
	if err != nil {
		return summary, err
	}

	d.logger.Printf("pipeline run started: run=%s date=%s stations=%d", summary.RunID, summary.Date.Format("2006-01-02"), len(stations))
	for _, crs := range stations {
		crs = strings.ToUpper(strings.TrimSpace(crs))
		if crs == "" {
			continue
		}
		result := d.runStation(ctx, summary.RunID, resolver, writer, crs, summary.Date)
		metrics.ObservePipelineStation(string(result.Status), result.Duration)
		summary.Stations = append(summary.Stations, result)
	}
	summary.FinishedAt = d.clock.Now()

	totals := summary.Totals()
	metrics.AddPipelineRecords(metrics.RecordArrival, totals.ArrivalsWritten)
	metrics.AddPipelineRecords(metrics.RecordCancellation, totals.CancellationsWritten)
	metrics.AddPipelineRecords(metrics.RecordDuplicate, totals.Duplicates)
	metrics.AddPipelineRecords(metrics.RecordSkipped, totals.RecordsSkipped)
	metrics.AddPipelineRecords(metrics.RecordFailed, totals.RecordsFailed)
	result := metrics.ResultSuccess
	if len(summary.FailedStations()) > 0 {
		result = metrics.ResultError
	}
	metrics.ObservePipelineRun(result, summary.FinishedAt.Sub(summary.StartedAt))

	d.logger.Printf("pipeline run finished: run=%s stations_ok=%d stations_failed=%d arrivals=%d cancellations=%d duplicates=%d skipped=%d failed=%d",
		summary.RunID, summary.SucceededStations(), len(summary.FailedStations()),
		totals.ArrivalsWritten, totals.CancellationsWritten, totals.Duplicates, totals.RecordsSkipped, totals.RecordsFailed)

	d.latestMu.Lock()
	latest := summary
	d.latest = &latest
	d.latestMu.Unlock()

	d.notifyFailures(ctx, summary)
	return summary, nil
}

func (d *Driver) runStation(ctx context.Context, runID string, resolver *IdentityResolver, writer *FactWriter, crs string, date time.Time) (result StationResult) {
	start := d.clock.Now()
	result = StationResult{CRS: crs, Status: StationOK}
	defer func() {
		result.Duration = d.clock.Now().Sub(start)
	}()

	services, err := d.feed.FetchServices(ctx, crs, date)
	if err != nil {
		d.logger.Printf("pipeline fetch error: run=%s station=%s err=%v", runID, crs, err)
		result.Status = StationFetchFailed
		result.Error = err.Error()
		return result
	}

	batch, err := Normalize(services, date)
	if err != nil {
		if errors.Is(err, performance.ErrEmptyFeed) {
			d.logger.Printf("pipeline empty feed: run=%s station=%s", runID, crs)
			result.Status = StationEmptyFeed
			return result
		}
		d.logger.Printf("pipeline normalise error: run=%s station=%s err=%v", runID, crs, err)
		result.Status = StationFailed
		result.Error = err.Error()
		return result
	}
	if batch.Station.CRS == "" {
		batch.Station.CRS = crs
		for i := range batch.Arrivals {
			batch.Arrivals[i].Station.CRS = crs
		}
		for i := range batch.Cancellations {
			batch.Cancellations[i].Station.CRS = crs
		}
	}
	result.StationName = batch.Station.Name
	result.NonTrain = batch.NonTrain
	result.RecordsSkipped = len(batch.Skipped)
	for _, skipped := range batch.Skipped {
		d.logger.Printf("pipeline record skipped: run=%s station=%s name=%q service=%s reason=%v",
			runID, batch.Station.CRS, batch.Station.Name, skipped.ServiceUID, skipped.Reason)
	}

	for _, arrival := range batch.Arrivals {
		written, err := d.writeArrival(ctx, resolver, writer, arrival)
		if err != nil {
			result.RecordsFailed++
			d.logger.Printf("pipeline arrival error: run=%s station=%s service=%s operator=%s scheduled=%s actual=%s err=%v",
				runID, arrival.Station.CRS, arrival.Service.UID, arrival.Service.Operator.Code,
				arrival.Scheduled.Format(time.RFC3339), arrival.Actual.Format(time.RFC3339), err)
			continue
		}
		if written {
			result.ArrivalsWritten++
		} else {
			result.Duplicates++
		}
	}

	for _, cancellation := range batch.Cancellations {
		written, err := d.writeCancellation(ctx, resolver, writer, cancellation)
		if err != nil {
			result.RecordsFailed++
			d.logger.Printf("pipeline cancellation error: run=%s station=%s service=%s operator=%s code=%s scheduled=%s err=%v",
				runID, cancellation.Station.CRS, cancellation.Service.UID, cancellation.Service.Operator.Code,
				cancellation.Type.Code, cancellation.Scheduled.Format(time.RFC3339), err)
			continue
		}
		if written {
			result.CancellationsWritten++
		} else {
			result.Duplicates++
		}
	}

	if result.RecordsFailed > 0 {
		result.Status = StationPartial
		if result.RecordsFailed == len(batch.Arrivals)+len(batch.Cancellations) {
			result.Status = StationFailed
		}
		result.Error = fmt.Sprintf("%d records failed", result.RecordsFailed)
	}
	return result
}

func (d *Driver) writeArrival(ctx context.Context, resolver *IdentityResolver, writer *FactWriter, arrival performance.Arrival) (bool, error) {
	keys, err := resolver.ResolveServiceKeys(ctx, arrival.Station, arrival.Service)
	if err != nil {
		return false, err
	}
	return writer.WriteArrival(ctx, keys.StationID, keys.ServiceID, arrival.Scheduled, arrival.Actual)
}

func (d *Driver) writeCancellation(ctx context.Context, resolver *IdentityResolver, writer *FactWriter, cancellation performance.Cancellation) (bool, error) {
	keys, err := resolver.ResolveServiceKeys(ctx, cancellation.Station, cancellation.Service)
	if err != nil {
		return false, err
	}
	typeID, err := resolver.ResolveCancellationType(ctx, cancellation.Type)
	if err != nil {
		return false, err
	}
	return writer.WriteCancellation(ctx, keys.StationID, keys.ServiceID, typeID, cancellation.Scheduled)
}

func (d *Driver) notifyFailures(ctx context.Context, summary RunSummary) {
	if d.notifier == nil {
		return
	}
	failed := summary.FailedStations()
	if len(failed) == 0 {
		return
	}
	details := make(map[string]any, len(failed))
	for _, station := range summary.Stations {
		if station.Failed() {
			details[station.CRS] = string(station.Status)
		}
	}
	msg := notify.AlertMessage{
		Title:             "RailWatch Pipeline Failure",
		RunID:             summary.RunID,
		Date:              summary.Date.Format("2006-01-02"),
		Stations:          failed,
		Summary:           details,
		RecommendedAction: "check feed availability and rerun ingest for the listed stations",
	}
	if err := d.notifier.Notify(ctx, msg); err != nil {
		d.logger.Printf("pipeline notify error: run=%s err=%v", summary.RunID, err)
	}
}
