package notify

import "context"

// AlertMessage represents a notification payload.
type AlertMessage struct {
	Title             string            `json:"title"`
	RunID             string            `json:"run_id,omitempty"`
	Date              string            `json:"date,omitempty"`
	Stations          []string          `json:"stations,omitempty"`
	ReportURL         string            `json:"report_url,omitempty"`
	Summary           map[string]any    `json:"summary,omitempty"`
	RecommendedAction string            `json:"recommended_action,omitempty"`
	Meta              map[string]string `json:"meta,omitempty"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, msg AlertMessage) error
}
