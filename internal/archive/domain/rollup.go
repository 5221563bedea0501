package archive

import (
	"math"
	"sort"
	"time"
)

// LateThreshold separates minor from significant delays.
const LateThreshold = 5 * time.Minute

// ArrivalFact is an arrival joined to its station and operator.
type ArrivalFact struct {
	StationID  int64
	OperatorID int64
	Scheduled  time.Time
	Actual     time.Time
}

// Delay is the signed lateness of the arrival.
func (a ArrivalFact) Delay() time.Duration {
	return a.Actual.Sub(a.Scheduled)
}

// CancellationFact is a cancellation joined to its station and operator.
type CancellationFact struct {
	StationID  int64
	OperatorID int64
	Scheduled  time.Time
}

// Performance holds the daily counters of one station or operator.
type Performance struct {
	Day               time.Time `json:"day"`
	Delay1mCount      int       `json:"delay_1m_count"`
	Delay5mCount      int       `json:"delay_5m_count"`
	AvgDelayMin       float64   `json:"avg_delay_min"`
	ArrivalCount      int       `json:"arrival_count"`
	CancellationCount int       `json:"cancellation_count"`
}

// PerformanceRow is a Performance keyed by station or operator id.
type PerformanceRow struct {
	ID int64 `json:"id"`
	Performance
}

// Accumulator builds one Performance from individual facts.
type Accumulator struct {
	day          time.Time
	delayed      int
	late         int
	delaySum     float64
	arrivals     int
	cancellation int
}

// AddArrival counts an arrival. Only positive delays contribute to the average.
func (a *Accumulator) AddArrival(delay time.Duration) {
	a.arrivals++
	if delay <= 0 {
		return
	}
	a.delayed++
	a.delaySum += delay.Minutes()
	if delay > LateThreshold {
		a.late++
	}
}

// AddCancellation counts a cancellation.
func (a *Accumulator) AddCancellation() {
	a.cancellation++
}

// Performance returns the accumulated counters.
func (a *Accumulator) Performance() Performance {
	p := Performance{
		Day:               a.day,
		Delay1mCount:      a.delayed,
		Delay5mCount:      a.late,
		ArrivalCount:      a.arrivals,
		CancellationCount: a.cancellation,
	}
	if a.delayed > 0 {
		p.AvgDelayMin = Round2(a.delaySum / float64(a.delayed))
	}
	return p
}

// Round2 rounds to two decimal places.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type rollupKey struct {
	id  int64
	day time.Time
}

// RollupByStation aggregates facts per (station, day).
func RollupByStation(arrivals []ArrivalFact, cancellations []CancellationFact) []PerformanceRow {
	return rollup(arrivals, cancellations,
		func(a ArrivalFact) int64 { return a.StationID },
		func(c CancellationFact) int64 { return c.StationID },
	)
}

// RollupByOperator aggregates facts per (operator, day).
func RollupByOperator(arrivals []ArrivalFact, cancellations []CancellationFact) []PerformanceRow {
	return rollup(arrivals, cancellations,
		func(a ArrivalFact) int64 { return a.OperatorID },
		func(c CancellationFact) int64 { return c.OperatorID },
	)
}

func rollup(arrivals []ArrivalFact, cancellations []CancellationFact, arrivalKey func(ArrivalFact) int64, cancellationKey func(CancellationFact) int64) []PerformanceRow {
	groups := make(map[rollupKey]*Accumulator)
	get := func(id int64, scheduled time.Time) *Accumulator {
		key := rollupKey{id: id, day: Day(scheduled)}
		acc, ok := groups[key]
		if !ok {
			acc = &Accumulator{day: key.day}
			groups[key] = acc
		}
		return acc
	}
	for _, arrival := range arrivals {
		get(arrivalKey(arrival), arrival.Scheduled).AddArrival(arrival.Delay())
	}
	for _, cancellation := range cancellations {
		get(cancellationKey(cancellation), cancellation.Scheduled).AddCancellation()
	}

	rows := make([]PerformanceRow, 0, len(groups))
	for key, acc := range groups {
		rows = append(rows, PerformanceRow{ID: key.id, Performance: acc.Performance()})
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Day.Equal(rows[j].Day) {
			return rows[i].Day.Before(rows[j].Day)
		}
		return rows[i].ID < rows[j].ID
	})
	return rows
}
