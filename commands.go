package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	archiveapp "railwatch/internal/archive/application"
	archiverepo "railwatch/internal/archive/infrastructure/postgres"
	"railwatch/internal/observability/metrics"
	perfapp "railwatch/internal/performance/application"
	performance "railwatch/internal/performance/domain"
	"railwatch/internal/performance/infrastructure/memory"
	perfrepo "railwatch/internal/performance/infrastructure/postgres"
	reportapp "railwatch/internal/reports/application"
	reports "railwatch/internal/reports/domain"
	reportrepo "railwatch/internal/reports/infrastructure/postgres"
	reportexport "railwatch/internal/reports/interfaces"
)

const dateLayout = "2006-01-02"

func newRootCmd(logger *log.Logger) *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "railwatch",
		Short:         "Station punctuality pipeline for the Realtime Trains feed",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides RAILWATCH_CONFIG)")

	root.AddCommand(
		newServeCmd(logger, &configPath),
		newIngestCmd(logger, &configPath),
		newArchiveCmd(logger, &configPath),
		newReportCmd(logger, &configPath),
	)
	return root
}

func newServeCmd(logger *log.Logger, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func newIngestCmd(logger *log.Logger, configPath *string) *cobra.Command {
	var (
		date     string
		stations string
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch and store one day of arrivals and cancellations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			day := ingestDate(cfg, time.Now().UTC())
			if date != "" {
				day, err = time.Parse(dateLayout, date)
				if err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
			}
			list := perfapp.SplitStations(stations)
			if len(list) == 0 {
				if list, err = resolveStations(cfg); err != nil {
					return err
				}
			}

			var sessions performance.SessionOpener
			if dryRun {
				sessions = memory.NewStore()
			} else {
				if err := cfg.requireDatabase(); err != nil {
					return err
				}
				db, err := openDB(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer db.Close()
				metrics.Init(db, logger)
				sessions = perfrepo.NewSessionOpener(db)
			}

			driver, err := buildDriver(cfg, sessions, buildNotifier(cfg, logger), logger)
			if err != nil {
				return err
			}
			summary, err := driver.Run(cmd.Context(), list, day)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
			if failed := summary.FailedStations(); len(failed) > 0 {
				return fmt.Errorf("stations failed: %s", strings.Join(failed, ","))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "service day YYYY-MM-DD (default: today plus PIPELINE_DAY_OFFSET)")
	cmd.Flags().StringVar(&stations, "stations", "", "comma separated CRS codes (default: configured list)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "write to an in-memory store instead of Postgres")
	return cmd
}

func newArchiveCmd(logger *log.Logger, configPath *string) *cobra.Command {
	retentionDays := -1
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Roll old facts into daily performance rows and delete them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if retentionDays < 0 {
				retentionDays = cfg.Archive.RetentionDays
			}
			if err := cfg.requireDatabase(); err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			metrics.Init(db, logger)

			archiver, err := archiveapp.NewArchiver(archiverepo.NewStore(db), logger)
			if err != nil {
				return err
			}
			result, err := archiver.Run(cmd.Context(), retentionDays)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().IntVar(&retentionDays, "retention-days", -1, "days of facts to keep (default: ARCHIVE_RETENTION_DAYS)")
	return cmd
}

func newReportCmd(logger *log.Logger, configPath *string) *cobra.Command {
	var (
		station string
		from    string
		to      string
		format  string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export a station performance report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if station == "" {
				return errors.New("--station is required")
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			toDay := performance.DayStart(time.Now().UTC())
			if to != "" {
				if toDay, err = time.Parse(dateLayout, to); err != nil {
					return fmt.Errorf("--to must be YYYY-MM-DD: %w", err)
				}
			}
			fromDay := toDay.AddDate(0, 0, -7)
			if from != "" {
				if fromDay, err = time.Parse(dateLayout, from); err != nil {
					return fmt.Errorf("--from must be YYYY-MM-DD: %w", err)
				}
			}
			render, ext, err := rendererFor(format)
			if err != nil {
				return err
			}

			if err := cfg.requireDatabase(); err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			service, err := reportapp.NewService(reportrepo.NewFactSource(db), nil)
			if err != nil {
				return err
			}
			report, err := service.BuildStationReport(cmd.Context(), station, fromDay, toDay)
			if err != nil {
				return err
			}
			data, err := render(report)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("%s_%s_%s.%s", report.CRS, fromDay.Format(dateLayout), toDay.Format(dateLayout), ext)
			}
			if dir := filepath.Dir(out); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			logger.Printf("report written: station=%s path=%s", report.CRS, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&station, "station", "", "station CRS code")
	cmd.Flags().StringVar(&from, "from", "", "first day YYYY-MM-DD (default: seven days before --to)")
	cmd.Flags().StringVar(&to, "to", "", "day after the last reported day YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&format, "format", "pdf", "pdf, xlsx or json")
	cmd.Flags().StringVar(&out, "out", "", "output path")
	return cmd
}

func rendererFor(format string) (reportapp.Renderer, string, error) {
	switch strings.ToLower(format) {
	case "pdf":
		return reportexport.BuildStationReportPDF, "pdf", nil
	case "xlsx":
		return reportexport.BuildStationReportXLSX, "xlsx", nil
	case "json":
		return func(report reports.StationReport) ([]byte, error) {
			return json.MarshalIndent(report, "", "  ")
		}, "json", nil
	}
	return nil, "", fmt.Errorf("unknown format %q", format)
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
