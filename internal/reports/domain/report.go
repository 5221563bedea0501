package reports

import (
	"context"
	"errors"
	"sort"
	"time"

	archive "railwatch/internal/archive/domain"
)

var (
	// ErrStationNotFound is returned for an unknown CRS code.
	ErrStationNotFound = errors.New("reports: station not found")
	// ErrInvalidRange is returned when the period is empty or too long.
	ErrInvalidRange = errors.New("reports: invalid range")
)

// CancellationFact is a cancellation with its reason.
type CancellationFact struct {
	OperatorID int64
	Scheduled  time.Time
	Reason     string
}

// StationFacts are the live facts of one station in a period.
type StationFacts struct {
	StationID     int64
	CRS           string
	Name          string
	Arrivals      []archive.ArrivalFact
	Cancellations []CancellationFact
}

// FactSource reads station facts.
type FactSource interface {
	StationFacts(ctx context.Context, crs string, from, to time.Time) (StationFacts, error)
}

// HourDelay is the mean delay of delayed arrivals scheduled in one hour of day.
type HourDelay struct {
	Hour        int     `json:"hour"`
	Delayed     int     `json:"delayed"`
	AvgDelayMin float64 `json:"avg_delay_min"`
}

// ReasonCount counts cancellations per reason.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// StationReport summarises a station's punctuality over a period.
type StationReport struct {
	CRS                 string                `json:"crs"`
	StationName         string                `json:"station_name"`
	From                time.Time             `json:"from"`
	To                  time.Time             `json:"to"`
	GeneratedAt         time.Time             `json:"generated_at"`
	Days                []archive.Performance `json:"days"`
	Totals              archive.Performance   `json:"totals"`
	HourlyDelay         []HourDelay           `json:"hourly_delay"`
	CancellationReasons []ReasonCount         `json:"cancellation_reasons"`
}

// DelayedPercent is the share of arrivals over a minute late.
func (r StationReport) DelayedPercent() float64 {
	if r.Totals.ArrivalCount == 0 {
		return 0
	}
	return archive.Round2(100 * float64(r.Totals.Delay1mCount) / float64(r.Totals.ArrivalCount))
}

// CancelledPercent is the share of planned calls that were cancelled.
func (r StationReport) CancelledPercent() float64 {
	planned := r.Totals.ArrivalCount + r.Totals.CancellationCount
	if planned == 0 {
		return 0
	}
	return archive.Round2(100 * float64(r.Totals.CancellationCount) / float64(planned))
}

// Build computes a report from facts using the archive rollup.
func Build(facts StationFacts, from, to, generatedAt time.Time) StationReport {
	cancellations := make([]archive.CancellationFact, 0, len(facts.Cancellations))
	for _, c := range facts.Cancellations {
		cancellations = append(cancellations, archive.CancellationFact{
			StationID:  facts.StationID,
			OperatorID: c.OperatorID,
			Scheduled:  c.Scheduled,
		})
	}

	report := StationReport{
		CRS:         facts.CRS,
		StationName: facts.Name,
		From:        from,
		To:          to,
		GeneratedAt: generatedAt,
	}
	for _, row := range archive.RollupByStation(facts.Arrivals, cancellations) {
		report.Days = append(report.Days, row.Performance)
	}
	var totals archive.Accumulator
	for _, arrival := range facts.Arrivals {
		totals.AddArrival(arrival.Delay())
	}
	for range cancellations {
		totals.AddCancellation()
	}
	report.Totals = totals.Performance()
	report.Totals.Day = archive.Day(from)
	report.HourlyDelay = hourlyDelay(facts.Arrivals)
	report.CancellationReasons = reasonCounts(facts.Cancellations)
	return report
}

func hourlyDelay(arrivals []archive.ArrivalFact) []HourDelay {
	var hours [24]archive.Accumulator
	var seen [24]bool
	for _, arrival := range arrivals {
		delay := arrival.Delay()
		if delay <= 0 {
			continue
		}
		hour := arrival.Scheduled.UTC().Hour()
		hours[hour].AddArrival(delay)
		seen[hour] = true
	}
	var result []HourDelay
	for hour := range hours {
		if !seen[hour] {
			continue
		}
		p := hours[hour].Performance()
		result = append(result, HourDelay{Hour: hour, Delayed: p.Delay1mCount, AvgDelayMin: p.AvgDelayMin})
	}
	return result
}

func reasonCounts(cancellations []CancellationFact) []ReasonCount {
	counts := make(map[string]int)
	for _, c := range cancellations {
		reason := c.Reason
		if reason == "" {
			reason = "unknown"
		}
		counts[reason]++
	}
	result := make([]ReasonCount, 0, len(counts))
	for reason, count := range counts {
		result = append(result, ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Reason < result[j].Reason
	})
	return result
}
