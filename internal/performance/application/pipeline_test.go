package application

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railwatch/internal/notify"
	performance "railwatch/internal/performance/domain"
	"railwatch/internal/performance/infrastructure/memory"
)

type fakeFeed struct {
	mu       sync.Mutex
	services map[string][]performance.RawService
	errs     map[string]error
	calls    []string
	block    chan struct{}
	started  chan struct{}
}

func (f *fakeFeed) FetchServices(ctx context.Context, crs string, date time.Time) ([]performance.RawService, error) {
	f.mu.Lock()
	f.calls = append(f.calls, crs)
	block, started := f.block, f.started
	f.mu.Unlock()
	if block != nil {
		close(started)
		<-block
	}
	if err := f.errs[crs]; err != nil {
		return nil, err
	}
	return f.services[crs], nil
}

type recordingNotifier struct {
	messages []notify.AlertMessage
}

func (n *recordingNotifier) Notify(ctx context.Context, msg notify.AlertMessage) error {
	n.messages = append(n.messages, msg)
	return nil
}

func newTestDriver(t *testing.T, feed FeedSource, store *memory.Store, opts ...DriverOption) (*Driver, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	driver, err := NewDriver(feed, store, log.New(&logs, "", 0), opts...)
	require.NoError(t, err)
	return driver, &logs
}

func TestDriverEndToEnd(t *testing.T) {
	store := memory.NewStore()
	feed := &fakeFeed{services: map[string][]performance.RawService{"PAD": threeRecordFeed()}}
	driver, _ := newTestDriver(t, feed, store)

	summary, err := driver.Run(context.Background(), []string{"pad"}, runDate)
	require.NoError(t, err)

	require.Len(t, summary.Stations, 1)
	result := summary.Stations[0]
	assert.Equal(t, "PAD", result.CRS)
	assert.Equal(t, "London Paddington", result.StationName)
	assert.Equal(t, StationOK, result.Status)
	assert.Equal(t, 1, result.ArrivalsWritten)
	assert.Equal(t, 1, result.CancellationsWritten)
	assert.Equal(t, 1, result.NonTrain)
	assert.NotEmpty(t, summary.RunID)

	counts := store.Counts()
	assert.Equal(t, memory.Counts{
		Operators:         1,
		Stations:          1,
		Services:          2,
		CancellationTypes: 1,
		Arrivals:          1,
		Cancellations:     1,
	}, counts)

	arrival := store.Arrivals()[0]
	assert.Equal(t, time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC), arrival.Scheduled)
	assert.Equal(t, time.Date(2024, 4, 30, 8, 5, 0, 0, time.UTC), arrival.Actual)

	opened, closed := store.Sessions()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)

	latest, ok := driver.Latest()
	require.True(t, ok)
	assert.Equal(t, summary.RunID, latest.RunID)
}

func TestDriverSharedServiceUID(t *testing.T) {
	feed := threeRecordFeed()
	feed[1].ServiceUID = feed[0].ServiceUID
	feed[1].LocationDetail.BookedArrival = "0800"
	store := memory.NewStore()
	driver, _ := newTestDriver(t, &fakeFeed{services: map[string][]performance.RawService{"PAD": feed}}, store)

	_, err := driver.Run(context.Background(), []string{"PAD"}, runDate)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Counts().Services)
}

func TestDriverRerunIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	feed := &fakeFeed{services: map[string][]performance.RawService{"PAD": threeRecordFeed()}}
	driver, _ := newTestDriver(t, feed, store)

	_, err := driver.Run(context.Background(), []string{"PAD"}, runDate)
	require.NoError(t, err)
	before := store.Counts()

	summary, err := driver.Run(context.Background(), []string{"PAD"}, runDate)
	require.NoError(t, err)
	assert.Equal(t, before, store.Counts())
	assert.Equal(t, 2, summary.Stations[0].Duplicates)
	assert.Equal(t, StationOK, summary.Stations[0].Status)
}

func TestDriverIsolatesStationFailures(t *testing.T) {
	store := memory.NewStore()
	feed := &fakeFeed{
		services: map[string][]performance.RawService{
			"PAD": threeRecordFeed(),
			"EMP": nil,
		},
		errs: map[string]error{"BAD": errors.New("timeout")},
	}
	notifier := &recordingNotifier{}
	driver, logs := newTestDriver(t, feed, store, WithNotifier(notifier))

	summary, err := driver.Run(context.Background(), []string{"BAD", "PAD", "", "EMP"}, runDate)
	require.NoError(t, err)

	assert.Equal(t, []string{"BAD", "PAD", "EMP"}, feed.calls)
	require.Len(t, summary.Stations, 3)
	assert.Equal(t, StationFetchFailed, summary.Stations[0].Status)
	assert.Contains(t, summary.Stations[0].Error, "timeout")
	assert.Equal(t, StationOK, summary.Stations[1].Status)
	assert.Equal(t, StationEmptyFeed, summary.Stations[2].Status)
	assert.Equal(t, 2, summary.SucceededStations())
	assert.Equal(t, []string{"BAD"}, summary.FailedStations())
	assert.Equal(t, 1, store.Counts().Arrivals)

	require.Len(t, notifier.messages, 1)
	assert.Equal(t, []string{"BAD"}, notifier.messages[0].Stations)
	assert.Equal(t, summary.RunID, notifier.messages[0].RunID)
	assert.Contains(t, logs.String(), "station=BAD")
}

func TestDriverNoAlertWhenAllSucceed(t *testing.T) {
	notifier := &recordingNotifier{}
	feed := &fakeFeed{services: map[string][]performance.RawService{"PAD": threeRecordFeed()}}
	driver, _ := newTestDriver(t, feed, memory.NewStore(), WithNotifier(notifier))

	_, err := driver.Run(context.Background(), []string{"PAD"}, runDate)
	require.NoError(t, err)
	assert.Empty(t, notifier.messages)
}

func TestDriverFallsBackToRequestedCRS(t *testing.T) {
	records := []performance.RawService{
		{
			ServiceUID:     "C1",
			ServiceType:    "train",
			ATOCCode:       "XC",
			LocationDetail: performance.LocationDetail{BookedArrival: "1000", RealtimeArrival: "1002"},
		},
	}
	store := memory.NewStore()
	driver, _ := newTestDriver(t, &fakeFeed{services: map[string][]performance.RawService{"BHM": records}}, store)

	summary, err := driver.Run(context.Background(), []string{"BHM"}, runDate)
	require.NoError(t, err)
	assert.Equal(t, StationOK, summary.Stations[0].Status)
	assert.Equal(t, 1, store.Counts().Stations)
}

func TestDriverRecordFailuresArePartial(t *testing.T) {
	records := threeRecordFeed()
	records = append(records, performance.RawService{
		ServiceUID:     "C3",
		ServiceType:    "train",
		LocationDetail: performance.LocationDetail{CRS: "PAD", BookedArrival: "1100", RealtimeArrival: "1101"},
	})
	store := memory.NewStore()
	driver, logs := newTestDriver(t, &fakeFeed{services: map[string][]performance.RawService{"PAD": records}}, store)

	summary, err := driver.Run(context.Background(), []string{"PAD"}, runDate)
	require.NoError(t, err)

	result := summary.Stations[0]
	assert.Equal(t, StationPartial, result.Status)
	assert.Equal(t, 1, result.RecordsFailed)
	assert.Equal(t, 1, result.ArrivalsWritten)
	assert.Equal(t, 1, result.CancellationsWritten)
	assert.True(t, strings.Contains(logs.String(), "service=C3"))
}

func TestDriverLogsSkippedRecords(t *testing.T) {
	records := []performance.RawService{
		trainRecord("C9", performance.LocationDetail{BookedArrival: "0800"}),
	}
	driver, logs := newTestDriver(t, &fakeFeed{services: map[string][]performance.RawService{"PAD": records}}, memory.NewStore())

	summary, err := driver.Run(context.Background(), []string{"PAD"}, runDate)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stations[0].RecordsSkipped)
	assert.Contains(t, logs.String(), "service=C9")
	assert.Contains(t, logs.String(), `name="London Paddington"`)
}

func TestDriverRejectsConcurrentRuns(t *testing.T) {
	feed := &fakeFeed{
		services: map[string][]performance.RawService{"PAD": threeRecordFeed()},
		block:    make(chan struct{}),
		started:  make(chan struct{}),
	}
	driver, _ := newTestDriver(t, feed, memory.NewStore())

	done := make(chan error, 1)
	go func() {
		_, err := driver.Run(context.Background(), []string{"PAD"}, runDate)
		done <- err
	}()
	<-feed.started

	_, err := driver.Run(context.Background(), []string{"PAD"}, runDate)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(feed.block)
	require.NoError(t, <-done)
}

func TestNewDriverValidation(t *testing.T) {
	_, err := NewDriver(nil, memory.NewStore(), nil)
	assert.Error(t, err)
	_, err = NewDriver(&fakeFeed{}, nil, nil)
	assert.Error(t, err)
}
