package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	archiveapp "railwatch/internal/archive/application"
	archiverepo "railwatch/internal/archive/infrastructure/postgres"
	archivehttp "railwatch/internal/archive/interfaces/http"
	"railwatch/internal/notify"
	"railwatch/internal/observability/metrics"
	perfapp "railwatch/internal/performance/application"
	performance "railwatch/internal/performance/domain"
	perfrepo "railwatch/internal/performance/infrastructure/postgres"
	perfhttp "railwatch/internal/performance/interfaces/http"
	"railwatch/internal/performance/interfaces/rtt"
	reportapp "railwatch/internal/reports/application"
	reportrepo "railwatch/internal/reports/infrastructure/postgres"
	reportexport "railwatch/internal/reports/interfaces"
	reporthttp "railwatch/internal/reports/interfaces/http"
	"railwatch/internal/scheduler"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	if err := newRootCmd(logger).ExecuteContext(context.Background()); err != nil {
		logger.Fatalf("railwatch error: %v", err)
	}
}

func serve(ctx context.Context, cfg config, logger *log.Logger) error {
	if err := cfg.requireDatabase(); err != nil {
		return err
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	metrics.Init(db, logger)
	notifier := buildNotifier(cfg, logger)

	driver, err := buildDriver(cfg, perfrepo.NewSessionOpener(db), notifier, logger)
	if err != nil {
		return err
	}
	pipelineHandler, err := perfhttp.NewHandler(driver, func(now time.Time) ([]string, time.Time) {
		stations, err := resolveStations(cfg)
		if err != nil {
			logger.Printf("pipeline stations error: err=%v", err)
		}
		return stations, ingestDate(cfg, now)
	})
	if err != nil {
		return err
	}

	archiveStore := archiverepo.NewStore(db)
	archiver, err := archiveapp.NewArchiver(archiveStore, logger)
	if err != nil {
		return err
	}
	archiveHandler, err := archivehttp.NewHandler(archiveStore, logger)
	if err != nil {
		return err
	}

	reportService, err := reportapp.NewService(reportrepo.NewFactSource(db), nil)
	if err != nil {
		return err
	}
	reportHandler, err := reporthttp.NewHandler(reportService)
	if err != nil {
		return err
	}
	weeklyJob, err := reportapp.NewWeeklyJob(reportService, reportexport.BuildStationReportPDF,
		cfg.Report.Stations, cfg.Report.StorageRoot, cfg.Report.PublicBaseURL, notifier, logger)
	if err != nil {
		return err
	}

	jobs := scheduler.New(logger)
	if err := jobs.Add("ingest", cfg.Schedule.Ingest, func(ctx context.Context, now time.Time) error {
		stations, err := resolveStations(cfg)
		if err != nil {
			return err
		}
		summary, err := driver.Run(ctx, stations, ingestDate(cfg, now))
		if err != nil {
			return err
		}
		if failed := summary.FailedStations(); len(failed) > 0 {
			logger.Printf("scheduled ingest finished with failures: run=%s stations=%s", summary.RunID, strings.Join(failed, ","))
		}
		return nil
	}); err != nil {
		return err
	}
	if err := jobs.Add("archive", cfg.Schedule.Archive, func(ctx context.Context, now time.Time) error {
		_, err := archiver.Run(ctx, cfg.Archive.RetentionDays)
		return err
	}); err != nil {
		return err
	}
	reportSchedule := cfg.Schedule.Report
	if len(cfg.Report.Stations) == 0 {
		reportSchedule = ""
	}
	if err := jobs.Add("report", reportSchedule, func(ctx context.Context, now time.Time) error {
		_, err := weeklyJob.Run(ctx, now)
		return err
	}); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/pipeline/runs", pipelineHandler)
	mux.Handle("/api/v1/pipeline/runs/latest", pipelineHandler)
	mux.Handle("/api/v1/reports/stations/", reportHandler)
	mux.Handle("/api/v1/archive/stations/", archiveHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	schedulerDone := make(chan struct{})
	go func() {
		jobs.Start(ctx)
		close(schedulerDone)
	}()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		stop()
		<-schedulerDone
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
	<-schedulerDone
	return nil
}

func openDB(ctx context.Context, cfg config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func buildNotifier(cfg config, logger *log.Logger) notify.Notifier {
	logNotifier := notify.NewLogNotifier(logger)
	if cfg.AlertWebhookURL == "" {
		return logNotifier
	}
	return notify.NewMultiNotifier(logNotifier, notify.NewWebhookNotifier(cfg.AlertWebhookURL, cfg.AlertTimeout))
}

func buildDriver(cfg config, sessions performance.SessionOpener, notifier notify.Notifier, logger *log.Logger) (*perfapp.Driver, error) {
	client, err := rtt.NewClient(cfg.RTT.BaseURL, cfg.RTT.Username, cfg.RTT.Password,
		rtt.WithTimeout(cfg.RTT.Timeout),
		rtt.WithMaxRetries(cfg.RTT.MaxRetries),
	)
	if err != nil {
		return nil, err
	}
	var opts []perfapp.DriverOption
	if notifier != nil {
		opts = append(opts, perfapp.WithNotifier(notifier))
	}
	return perfapp.NewDriver(client, sessions, logger, opts...)
}

func resolveStations(cfg config) ([]string, error) {
	return perfapp.LoadStations(strings.Join(cfg.Pipeline.Stations, ","), cfg.Pipeline.StationsFile)
}

// ingestDate is the service day a run started at now processes.
func ingestDate(cfg config, now time.Time) time.Time {
	return performance.DayStart(now.UTC()).AddDate(0, 0, cfg.Pipeline.DayOffset)
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
