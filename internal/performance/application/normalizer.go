package application

import (
	"fmt"
	"time"

	performance "railwatch/internal/performance/domain"
)

// SkippedRecord describes a feed record that produced no fact.
type SkippedRecord struct {
	ServiceUID string
	Reason     error
}

// Batch is the normalised form of one station feed.
type Batch struct {
	Station       performance.Station
	Date          time.Time
	Arrivals      []performance.Arrival
	Cancellations []performance.Cancellation
	Skipped       []SkippedRecord
	// NonTrain counts records of other modes, which are dropped silently.
	NonTrain int
}

// Normalize converts one station's raw feed for date into arrivals and
// cancellations. The station is taken from the first record.
func Normalize(services []performance.RawService, date time.Time) (Batch, error) {
	if len(services) == 0 {
		return Batch{}, performance.ErrEmptyFeed
	}

	first := services[0].LocationDetail
	batch := Batch{
		Station: performance.Station{CRS: first.CRS, Name: first.Description},
		Date:    performance.DayStart(date),
	}

	for _, raw := range services {
		if !raw.IsTrain() {
			batch.NonTrain++
			continue
		}
		service := performance.Service{
			Operator: performance.Operator{Code: raw.ATOCCode, Name: raw.ATOCName},
			UID:      raw.ServiceUID,
		}

		if raw.IsCancelled() {
			cancellation, err := buildCancellation(raw, batch.Station, service, batch.Date)
			if err != nil {
				batch.Skipped = append(batch.Skipped, SkippedRecord{ServiceUID: raw.ServiceUID, Reason: err})
				continue
			}
			batch.Cancellations = append(batch.Cancellations, cancellation)
			continue
		}

		arrival, err := buildArrival(raw, batch.Station, service, batch.Date)
		if err != nil {
			batch.Skipped = append(batch.Skipped, SkippedRecord{ServiceUID: raw.ServiceUID, Reason: err})
			continue
		}
		batch.Arrivals = append(batch.Arrivals, arrival)
	}
	return batch, nil
}

func buildCancellation(raw performance.RawService, station performance.Station, service performance.Service, date time.Time) (performance.Cancellation, error) {
	detail := raw.LocationDetail
	booked := detail.BookedArrival
	if booked == "" {
		booked = detail.BookedDeparture
	}
	if booked == "" {
		return performance.Cancellation{}, fmt.Errorf("%w: no booked arrival or departure", performance.ErrMalformedRecord)
	}
	scheduled, err := performance.CombineDateTime(date, booked)
	if err != nil {
		return performance.Cancellation{}, fmt.Errorf("%w: %v", performance.ErrMalformedRecord, err)
	}
	return performance.Cancellation{
		Type: performance.CancellationType{
			Code:        detail.CancelReasonCode,
			Description: detail.CancelReasonLongText,
		},
		Station:   station,
		Service:   service,
		Scheduled: scheduled,
	}, nil
}

func buildArrival(raw performance.RawService, station performance.Station, service performance.Service, date time.Time) (performance.Arrival, error) {
	detail := raw.LocationDetail
	booked, actual := detail.BookedArrival, detail.RealtimeArrival
	if booked == "" || actual == "" {
		booked, actual = detail.BookedDeparture, detail.RealtimeDeparture
	}
	if booked == "" || actual == "" {
		return performance.Arrival{}, fmt.Errorf("%w: no booked/realtime arrival or departure pair", performance.ErrMalformedRecord)
	}
	scheduled, err := performance.CombineDateTime(date, booked)
	if err != nil {
		return performance.Arrival{}, fmt.Errorf("%w: %v", performance.ErrMalformedRecord, err)
	}
	realised, err := performance.CombineDateTime(date, actual)
	if err != nil {
		return performance.Arrival{}, fmt.Errorf("%w: %v", performance.ErrMalformedRecord, err)
	}
	return performance.Arrival{
		Station:   station,
		Service:   service,
		Scheduled: scheduled,
		Actual:    realised,
	}, nil
}
