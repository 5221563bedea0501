package http

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perfapp "railwatch/internal/performance/application"
	performance "railwatch/internal/performance/domain"
	"railwatch/internal/performance/infrastructure/memory"
)

type fakeRunner struct {
	stations []string
	date     time.Time
	err      error
	latest   *perfapp.RunSummary
}

func (f *fakeRunner) Run(ctx context.Context, stations []string, date time.Time) (perfapp.RunSummary, error) {
	f.stations = stations
	f.date = date
	if f.err != nil {
		return perfapp.RunSummary{}, f.err
	}
	summary := perfapp.RunSummary{RunID: "run-1", Date: date}
	for _, crs := range stations {
		summary.Stations = append(summary.Stations, perfapp.StationResult{CRS: crs, Status: perfapp.StationOK})
	}
	f.latest = &summary
	return summary, nil
}

func (f *fakeRunner) Latest() (perfapp.RunSummary, bool) {
	if f.latest == nil {
		return perfapp.RunSummary{}, false
	}
	return *f.latest, true
}

func defaultsFor(stations []string, date time.Time) Defaults {
	return func(time.Time) ([]string, time.Time) { return stations, date }
}

func TestHandlerRunUsesQuery(t *testing.T) {
	runner := &fakeRunner{}
	handler, err := NewHandler(runner, defaultsFor([]string{"EUS"}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pipeline/runs?date=2024-04-30&stations=bhm,%20man", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"BHM", "MAN"}, runner.stations)
	assert.Equal(t, time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC), runner.date)

	var summary perfapp.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "run-1", summary.RunID)
	assert.Len(t, summary.Stations, 2)
}

func TestHandlerRunFallsBackToDefaults(t *testing.T) {
	runner := &fakeRunner{}
	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	handler, err := NewHandler(runner, defaultsFor([]string{"EUS"}, date))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/pipeline/runs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"EUS"}, runner.stations)
	assert.Equal(t, date, runner.date)
}

func TestHandlerRunRejectsBadInput(t *testing.T) {
	handler, err := NewHandler(&fakeRunner{}, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/pipeline/runs?date=30/04/2024&stations=BHM", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/pipeline/runs?date=2024-04-30", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRunInProgress(t *testing.T) {
	handler, err := NewHandler(&fakeRunner{err: perfapp.ErrRunInProgress}, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/pipeline/runs?date=2024-04-30&stations=BHM", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerLatest(t *testing.T) {
	runner := &fakeRunner{}
	handler, err := NewHandler(runner, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pipeline/runs/latest", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	runner.latest = &perfapp.RunSummary{RunID: "run-9"}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pipeline/runs/latest", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"run_id":"run-9"`)
}

func TestHandlerUnknownRoute(t *testing.T) {
	handler, err := NewHandler(&fakeRunner{}, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/pipeline/runs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type cancellingFeed struct {
	cancel context.CancelFunc
	calls  int
}

func (f *cancellingFeed) FetchServices(ctx context.Context, crs string, date time.Time) ([]performance.RawService, error) {
	f.calls++
	if f.calls == 1 {
		f.cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []performance.RawService{{
		ServiceUID:  "C" + crs,
		ServiceType: "train",
		ATOCCode:    "GW",
		LocationDetail: performance.LocationDetail{
			CRS: crs, BookedArrival: "0800", RealtimeArrival: "0803",
		},
	}}, nil
}

func TestHandlerRunSurvivesClientDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := &cancellingFeed{cancel: cancel}
	store := memory.NewStore()
	driver, err := perfapp.NewDriver(feed, store, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	handler, err := NewHandler(driver, defaultsFor(nil, time.Time{}))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pipeline/runs?date=2024-04-30&stations=PAD,BHM,MAN", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	latest, ok := driver.Latest()
	require.True(t, ok)
	require.Len(t, latest.Stations, 3)
	for _, station := range latest.Stations {
		assert.Equal(t, perfapp.StationOK, station.Status, station.CRS)
	}
	assert.Empty(t, latest.FailedStations())
	assert.Equal(t, 3, store.Counts().Arrivals)
}
