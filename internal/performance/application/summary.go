package application

import "time"

// StationStatus is the outcome of one station within a run.
type StationStatus string

const (
	StationOK          StationStatus = "ok"
	StationPartial     StationStatus = "partial"
	StationEmptyFeed   StationStatus = "empty_feed"
	StationFetchFailed StationStatus = "fetch_failed"
	StationFailed      StationStatus = "failed"
)

// StationResult reports what a run did for one station.
type StationResult struct {
	CRS                  string        `json:"crs"`
	StationName          string        `json:"station_name,omitempty"`
	Status               StationStatus `json:"status"`
	ArrivalsWritten      int           `json:"arrivals_written"`
	CancellationsWritten int           `json:"cancellations_written"`
	Duplicates           int           `json:"duplicates"`
	RecordsSkipped       int           `json:"records_skipped"`
	RecordsFailed        int           `json:"records_failed"`
	NonTrain             int           `json:"non_train"`
	Error                string        `json:"error,omitempty"`
	Duration             time.Duration `json:"duration_ns"`
}

// Failed reports whether the station needs operator attention.
func (r StationResult) Failed() bool {
	switch r.Status {
	case StationFetchFailed, StationFailed, StationPartial:
		return true
	}
	return false
}

// RunSummary reports one pipeline run.
type RunSummary struct {
	RunID      string          `json:"run_id"`
	Date       time.Time       `json:"date"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Stations   []StationResult `json:"stations"`
}

// SucceededStations counts stations that completed without failures.
func (s RunSummary) SucceededStations() int {
	count := 0
	for _, station := range s.Stations {
		if !station.Failed() {
			count++
		}
	}
	return count
}

// FailedStations lists CRS codes of stations that need attention.
func (s RunSummary) FailedStations() []string {
	var failed []string
	for _, station := range s.Stations {
		if station.Failed() {
			failed = append(failed, station.CRS)
		}
	}
	return failed
}

// Totals sums record counters across stations.
func (s RunSummary) Totals() StationResult {
	total := StationResult{CRS: "*"}
	for _, station := range s.Stations {
		total.ArrivalsWritten += station.ArrivalsWritten
		total.CancellationsWritten += station.CancellationsWritten
		total.Duplicates += station.Duplicates
		total.RecordsSkipped += station.RecordsSkipped
		total.RecordsFailed += station.RecordsFailed
		total.NonTrain += station.NonTrain
	}
	return total
}
