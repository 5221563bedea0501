package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"railwatch/internal/observability/metrics"
	reports "railwatch/internal/reports/domain"
	reportexport "railwatch/internal/reports/interfaces"
)

const (
	routePrefix = "/api/v1/reports/stations/"
	dateLayout  = "2006-01-02"
)

// Builder builds station reports.
type Builder interface {
	BuildStationReport(ctx context.Context, crs string, from, to time.Time) (reports.StationReport, error)
}

// Handler serves station performance reports.
type Handler struct {
	builder Builder
}

// NewHandler constructs a handler.
func NewHandler(builder Builder) (*Handler, error) {
	if builder == nil {
		return nil, errors.New("report handler: nil builder")
	}
	return &Handler{builder: builder}, nil
}

// ServeHTTP handles GET /api/v1/reports/stations/{crs}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || !strings.HasPrefix(r.URL.Path, routePrefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	crs := strings.ToUpper(strings.Trim(strings.TrimPrefix(r.URL.Path, routePrefix), "/"))
	if crs == "" || strings.Contains(crs, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	from, err := parseDateQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseDateQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "pdf" && format != "xlsx" {
		http.Error(w, "format must be json, pdf or xlsx", http.StatusBadRequest)
		return
	}

	start := time.Now()
	report, err := h.builder.BuildStationReport(r.Context(), crs, from, to)
	if err != nil {
		metrics.ObserveReportExport(format, metrics.ResultError, time.Since(start))
		switch {
		case errors.Is(err, reports.ErrStationNotFound):
			http.Error(w, "station not found", http.StatusNotFound)
		case errors.Is(err, reports.ErrInvalidRange):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, "build report error", http.StatusInternalServerError)
		}
		return
	}

	filename := crs + "_" + from.Format(dateLayout) + "_" + to.Format(dateLayout)
	switch format {
	case "pdf":
		data, err := reportexport.BuildStationReportPDF(report)
		if err != nil {
			metrics.ObserveReportExport(format, metrics.ResultError, time.Since(start))
			http.Error(w, "pdf export error", http.StatusInternalServerError)
			return
		}
		writeFile(w, "application/pdf", filename+".pdf", data)
	case "xlsx":
		data, err := reportexport.BuildStationReportXLSX(report)
		if err != nil {
			metrics.ObserveReportExport(format, metrics.ResultError, time.Since(start))
			http.Error(w, "xlsx export error", http.StatusInternalServerError)
			return
		}
		writeFile(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", filename+".xlsx", data)
	default:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	}
	metrics.ObserveReportExport(format, metrics.ResultSuccess, time.Since(start))
}

func writeFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseDateQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be YYYY-MM-DD")
	}
	return parsed.UTC(), nil
}
