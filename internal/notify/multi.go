package notify

import (
	"context"
	"errors"
	"log"
	"strings"
)

// MultiNotifier dispatches alerts to every configured notifier.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier constructs a MultiNotifier. Nil entries are ignored.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	m := &MultiNotifier{}
	for _, notifier := range notifiers {
		if notifier != nil {
			m.notifiers = append(m.notifiers, notifier)
		}
	}
	return m
}

// Notify forwards msg to all notifiers and joins their errors.
func (m *MultiNotifier) Notify(ctx context.Context, msg AlertMessage) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes alerts to a logger.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs msg on a single line.
func (n *LogNotifier) Notify(ctx context.Context, msg AlertMessage) error {
	n.logger.Printf("alert: %s", strings.ReplaceAll(formatAlertMessage(msg), "\n", " | "))
	return nil
}
