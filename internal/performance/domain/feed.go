package performance

import "strings"

// ServiceTypeTrain is the only service type the pipeline records.
const ServiceTypeTrain = "train"

// RawService is one entry of a station search feed.
type RawService struct {
	ServiceUID     string         `json:"serviceUid"`
	ServiceType    string         `json:"serviceType"`
	ATOCCode       string         `json:"atocCode"`
	ATOCName       string         `json:"atocName"`
	RunDate        string         `json:"runDate,omitempty"`
	LocationDetail LocationDetail `json:"locationDetail"`
}

// LocationDetail carries the station call of a RawService.
type LocationDetail struct {
	CRS                  string `json:"crs"`
	Description          string `json:"description"`
	BookedArrival        string `json:"gbttBookedArrival,omitempty"`
	RealtimeArrival      string `json:"realtimeArrival,omitempty"`
	BookedDeparture      string `json:"gbttBookedDeparture,omitempty"`
	RealtimeDeparture    string `json:"realtimeDeparture,omitempty"`
	CancelReasonCode     string `json:"cancelReasonCode,omitempty"`
	CancelReasonLongText string `json:"cancelReasonLongText,omitempty"`
}

// IsTrain reports whether the record describes a train.
func (s RawService) IsTrain() bool {
	return strings.EqualFold(strings.TrimSpace(s.ServiceType), ServiceTypeTrain)
}

// IsCancelled reports whether the record carries a cancellation reason.
func (s RawService) IsCancelled() bool {
	return s.LocationDetail.CancelReasonCode != ""
}
