package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	perfapp "railwatch/internal/performance/application"
)

const dateLayout = "2006-01-02"

// Runner runs the pipeline and remembers the latest summary.
type Runner interface {
	Run(ctx context.Context, stations []string, date time.Time) (perfapp.RunSummary, error)
	Latest() (perfapp.RunSummary, bool)
}

// Defaults supplies the station list and date used when a request omits them.
type Defaults func(now time.Time) (stations []string, date time.Time)

// Handler provides pipeline run APIs.
type Handler struct {
	runner   Runner
	defaults Defaults
}

// NewHandler constructs a handler.
func NewHandler(runner Runner, defaults Defaults) (*Handler, error) {
	if runner == nil {
		return nil, errors.New("pipeline handler: nil runner")
	}
	return &Handler{runner: runner, defaults: defaults}, nil
}

// ServeHTTP routes pipeline endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/pipeline/runs" && r.Method == http.MethodPost:
		h.handleRun(w, r)
	case r.URL.Path == "/api/v1/pipeline/runs/latest" && r.Method == http.MethodGet:
		h.handleLatest(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	var stations []string
	var date time.Time
	if h.defaults != nil {
		stations, date = h.defaults(time.Now().UTC())
	}
	if raw := r.URL.Query().Get("stations"); raw != "" {
		stations = perfapp.SplitStations(raw)
	}
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}
	if len(stations) == 0 {
		http.Error(w, "stations required", http.StatusBadRequest)
		return
	}
	if date.IsZero() {
		http.Error(w, "date required", http.StatusBadRequest)
		return
	}

	// A run finishes its station list even if the client goes away.
	summary, err := h.runner.Run(context.WithoutCancel(r.Context()), stations, date)
	if err != nil {
		if errors.Is(err, perfapp.ErrRunInProgress) {
			http.Error(w, "run in progress", http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.runner.Latest()
	if !ok {
		http.Error(w, "no run recorded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
