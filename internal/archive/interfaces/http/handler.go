package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	archive "railwatch/internal/archive/domain"
)

const (
	routePrefix = "/api/v1/archive/stations/"
	dateLayout  = "2006-01-02"
)

// Handler serves archived station performance.
type Handler struct {
	reader archive.PerformanceReader
	logger *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(reader archive.PerformanceReader, logger *log.Logger) (*Handler, error) {
	if reader == nil {
		return nil, errors.New("archive handler: nil reader")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{reader: reader, logger: logger}, nil
}

type performanceResponse struct {
	CRS  string                   `json:"crs"`
	From string                   `json:"from"`
	To   string                   `json:"to"`
	Days []archive.PerformanceRow `json:"days"`
}

// ServeHTTP handles GET /api/v1/archive/stations/{crs}?from=&to=.
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
	from, err := time.Parse(dateLayout, r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "from must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(dateLayout, r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, "to must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	rows, err := h.reader.ListStationPerformance(r.Context(), crs, from, to)
	if err != nil {
		if errors.Is(err, archive.ErrStationNotFound) {
			http.Error(w, "station not found", http.StatusNotFound)
			return
		}
		h.logger.Printf("archive list error: station=%s err=%v", crs, err)
		http.Error(w, "archive read error", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []archive.PerformanceRow{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(performanceResponse{
		CRS:  crs,
		From: from.Format(dateLayout),
		To:   to.Format(dateLayout),
		Days: rows,
	})
}
