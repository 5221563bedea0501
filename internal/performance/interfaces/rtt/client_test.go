package rtt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	performance "railwatch/internal/performance/domain"
)

const searchBody = `{
  "location": {"crs": "BHM", "name": "Birmingham New Street"},
  "services": [
    {
      "serviceUid": "W12345",
      "serviceType": "train",
      "atocCode": "XC",
      "atocName": "CrossCountry",
      "locationDetail": {
        "crs": "BHM",
        "description": "Birmingham New Street",
        "gbttBookedArrival": "0830",
        "realtimeArrival": "0834"
      }
    }
  ]
}`

func TestFetchServicesRequestShape(t *testing.T) {
	var gotPath, gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchBody))
	}))
	defer server.Close()

	client, err := NewClient(server.URL+"/", "user", "secret")
	require.NoError(t, err)

	services, err := client.FetchServices(context.Background(), "bhm", time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "/json/search/BHM/2024/04/30", gotPath)
	assert.Equal(t, "user", gotUser)
	assert.Equal(t, "secret", gotPass)
	require.Len(t, services, 1)
	assert.Equal(t, "W12345", services[0].ServiceUID)
	assert.Equal(t, "XC", services[0].ATOCCode)
	assert.Equal(t, "0834", services[0].LocationDetail.RealtimeArrival)
}

func TestFetchServicesNullServices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"location":{"crs":"XYZ"},"services":null}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "", "")
	require.NoError(t, err)

	services, err := client.FetchServices(context.Background(), "XYZ", time.Now())
	require.NoError(t, err)
	assert.Empty(t, services)
}

func TestFetchServicesRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(searchBody))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "u", "p", WithMaxRetries(3), WithRetryInterval(time.Millisecond))
	require.NoError(t, err)

	services, err := client.FetchServices(context.Background(), "BHM", time.Now())
	require.NoError(t, err)
	assert.Len(t, services, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchServicesGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "u", "p", WithMaxRetries(2), WithRetryInterval(time.Millisecond))
	require.NoError(t, err)

	_, err = client.FetchServices(context.Background(), "BHM", time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, performance.ErrFetch))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchServicesClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unauthorised", http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "u", "wrong", WithMaxRetries(5), WithRetryInterval(time.Millisecond))
	require.NoError(t, err)

	_, err = client.FetchServices(context.Background(), "BHM", time.Now())
	require.ErrorIs(t, err, performance.ErrFetch)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchServicesFeedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"unknown location"}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "u", "p")
	require.NoError(t, err)

	_, err = client.FetchServices(context.Background(), "QQQ", time.Now())
	require.ErrorIs(t, err, performance.ErrFetch)
	assert.Contains(t, err.Error(), "unknown location")
}

func TestFetchServicesMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "u", "p", WithMaxRetries(3), WithRetryInterval(time.Millisecond))
	require.NoError(t, err)

	_, err = client.FetchServices(context.Background(), "BHM", time.Now())
	require.ErrorIs(t, err, performance.ErrFetch)
}

func TestFetchServicesEmptyStation(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:1", "u", "p")
	require.NoError(t, err)

	_, err = client.FetchServices(context.Background(), "  ", time.Now())
	require.ErrorIs(t, err, performance.ErrFetch)
}
