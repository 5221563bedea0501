package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	reports "railwatch/internal/reports/domain"
)

// MaxRange bounds a single report period.
const MaxRange = 92 * 24 * time.Hour

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Service builds station performance reports from live facts.
type Service struct {
	source reports.FactSource
	clock  Clock
}

// NewService constructs a Service.
func NewService(source reports.FactSource, clock Clock) (*Service, error) {
	if source == nil {
		return nil, errors.New("report service: nil fact source")
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Service{source: source, clock: clock}, nil
}

// BuildStationReport reports on crs for arrivals scheduled in [from, to).
func (s *Service) BuildStationReport(ctx context.Context, crs string, from, to time.Time) (reports.StationReport, error) {
	crs = strings.ToUpper(strings.TrimSpace(crs))
	if crs == "" {
		return reports.StationReport{}, fmt.Errorf("%w: station required", reports.ErrInvalidRange)
	}
	if !to.After(from) {
		return reports.StationReport{}, fmt.Errorf("%w: to must be after from", reports.ErrInvalidRange)
	}
	if to.Sub(from) > MaxRange {
		return reports.StationReport{}, fmt.Errorf("%w: period longer than %d days", reports.ErrInvalidRange, int(MaxRange.Hours()/24))
	}
	facts, err := s.source.StationFacts(ctx, crs, from.UTC(), to.UTC())
	if err != nil {
		return reports.StationReport{}, err
	}
	if facts.CRS == "" {
		facts.CRS = crs
	}
	return reports.Build(facts, from.UTC(), to.UTC(), s.clock.Now()), nil
}
