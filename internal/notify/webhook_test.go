package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifierPostsTextMessage(t *testing.T) {
	var payload webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL, 0)
	err := notifier.Notify(context.Background(), AlertMessage{
		Title:    "RailWatch Pipeline Failure",
		RunID:    "run-1",
		Date:     "2024-04-30",
		Stations: []string{"BAD", "WRS"},
		Summary:  map[string]any{"BAD": "fetch_failed"},
		Meta:     map[string]string{"b": "2", "a": "1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "text", payload.MsgType)
	want := "[RailWatch Pipeline Failure]\n" +
		"Run: run-1\n" +
		"Date: 2024-04-30\n" +
		"Stations: BAD, WRS\n" +
		"Summary: {\"BAD\":\"fetch_failed\"}\n" +
		"a: 1\n" +
		"b: 2"
	assert.Equal(t, want, payload.Text.Content)
}

func TestWebhookNotifierStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL, 0).Notify(context.Background(), AlertMessage{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestWebhookNotifierEmptyURL(t *testing.T) {
	err := NewWebhookNotifier("", 0).Notify(context.Background(), AlertMessage{})
	assert.Error(t, err)

	var nilNotifier *WebhookNotifier
	assert.Error(t, nilNotifier.Notify(context.Background(), AlertMessage{}))
}

func TestFormatAlertMessageDefaultTitle(t *testing.T) {
	assert.Equal(t, "[RailWatch]\nReport URL: http://x/r.pdf", formatAlertMessage(AlertMessage{ReportURL: "http://x/r.pdf"}))
}
