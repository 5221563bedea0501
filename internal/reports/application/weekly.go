package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"railwatch/internal/notify"
	reports "railwatch/internal/reports/domain"
)

// Renderer turns a report into a document.
type Renderer func(reports.StationReport) ([]byte, error)

// GeneratedReport is one file written by the weekly job.
type GeneratedReport struct {
	CRS      string `json:"crs"`
	Location string `json:"location"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// WeeklyJob writes last week's PDF report for each configured station.
type WeeklyJob struct {
	service       *Service
	render        Renderer
	stations      []string
	storageRoot   string
	publicBaseURL string
	notifier      notify.Notifier
	logger        *log.Logger
}

// NewWeeklyJob constructs a WeeklyJob. notifier may be nil.
func NewWeeklyJob(service *Service, render Renderer, stations []string, storageRoot, publicBaseURL string, notifier notify.Notifier, logger *log.Logger) (*WeeklyJob, error) {
	if service == nil || render == nil {
		return nil, errors.New("weekly report: nil dependency")
	}
	if storageRoot == "" {
		return nil, errors.New("weekly report: storage root required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &WeeklyJob{
		service:       service,
		render:        render,
		stations:      stations,
		storageRoot:   storageRoot,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		notifier:      notifier,
		logger:        logger,
	}, nil
}

// Run generates reports for the seven days before now's day.
func (j *WeeklyJob) Run(ctx context.Context, now time.Time) ([]GeneratedReport, error) {
	now = now.UTC()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -7)

	var generated []GeneratedReport
	var failed []string
	for _, crs := range j.stations {
		crs = strings.ToUpper(strings.TrimSpace(crs))
		if crs == "" {
			continue
		}
		item, err := j.runStation(ctx, crs, from, to)
		if err != nil {
			j.logger.Printf("weekly report error: station=%s from=%s err=%v", crs, from.Format("2006-01-02"), err)
			item.Error = err.Error()
			failed = append(failed, crs)
		}
		generated = append(generated, item)
	}
	j.notifyGenerated(ctx, from, generated, failed)
	if len(failed) > 0 {
		return generated, fmt.Errorf("weekly report: %d stations failed", len(failed))
	}
	return generated, nil
}

func (j *WeeklyJob) runStation(ctx context.Context, crs string, from, to time.Time) (GeneratedReport, error) {
	item := GeneratedReport{CRS: crs}
	report, err := j.service.BuildStationReport(ctx, crs, from, to)
	if err != nil {
		return item, err
	}
	data, err := j.render(report)
	if err != nil {
		return item, err
	}
	dir := filepath.Join(j.storageRoot, crs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return item, err
	}
	location := filepath.Join(dir, fmt.Sprintf("%s_%s.pdf", crs, from.Format("2006-01-02")))
	if err := os.WriteFile(location, data, 0o644); err != nil {
		return item, err
	}
	item.Location = location
	item.URL = j.reportURL(crs, from, to)
	return item, nil
}

func (j *WeeklyJob) reportURL(crs string, from, to time.Time) string {
	if j.publicBaseURL == "" {
		return ""
	}
	query := url.Values{}
	query.Set("from", from.Format("2006-01-02"))
	query.Set("to", to.Format("2006-01-02"))
	query.Set("format", "pdf")
	return j.publicBaseURL + "/api/v1/reports/stations/" + crs + "?" + query.Encode()
}

func (j *WeeklyJob) notifyGenerated(ctx context.Context, from time.Time, generated []GeneratedReport, failed []string) {
	if j.notifier == nil || len(generated) == 0 {
		return
	}
	meta := make(map[string]string, len(generated))
	var stations []string
	for _, item := range generated {
		stations = append(stations, item.CRS)
		if item.URL != "" {
			meta[item.CRS] = item.URL
		}
	}
	msg := notify.AlertMessage{
		Title:    "RailWatch Weekly Report",
		Date:     from.Format("2006-01-02"),
		Stations: stations,
		Meta:     meta,
	}
	if len(failed) > 0 {
		msg.Summary = map[string]any{"failed": failed}
		msg.RecommendedAction = "rerun the report command for the failed stations"
	}
	if err := j.notifier.Notify(ctx, msg); err != nil {
		j.logger.Printf("weekly report notify error: err=%v", err)
	}
}
