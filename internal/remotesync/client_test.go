package remotesync

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"forkcast/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, opts Options) (*Client, *metrics.Metrics) {
	t.Helper()
	m := metrics.New("", prometheus.NewRegistry())
	logger := zerolog.New(io.Discard)
	return NewClient(opts, m, &logger), m
}

func TestCreateMealReminder(t *testing.T) {
	var got MealReminderRequest
	var apiKey, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/notifications/api/create-meal-reminder", r.URL.Path)
		apiKey = r.Header.Get("x-api-key")
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, Options{Endpoint: srv.URL + "/notifications/api/create-meal-reminder", APIKey: "secret"})
	require.NoError(t, c.CreateMealReminder(context.Background(), "lunch", "12:00"))

	assert.Equal(t, MealReminderRequest{MealType: "lunch", MealTime: "12:00"}, got)
	assert.Equal(t, "secret", apiKey)
	assert.Equal(t, "application/json", contentType)
}

func TestCreateMealReminder_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, Options{Endpoint: srv.URL})
	err := c.CreateMealReminder(context.Background(), "dinner", "18:00")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSubmit_CountsOutcomes(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, m := newTestClient(t, Options{Endpoint: srv.URL})

	require.NoError(t, c.Submit("breakfast", "08:00"))
	c.Wait()
	fail.Store(true)
	require.NoError(t, c.Submit("breakfast", "08:00"))
	c.Wait()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncRequests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncRequests.WithLabelValues("error")))
}

func TestSubmit_DoesNotBlockOnSlowServer(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c, _ := newTestClient(t, Options{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	require.NoError(t, c.Submit("snack", "15:00"))
	assert.Less(t, time.Since(start), 40*time.Millisecond)
	c.Wait()
}

func TestSubmit_DropsOverBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c, m := newTestClient(t, Options{Endpoint: srv.URL, RatePerMinute: 2})

	require.NoError(t, c.Submit("breakfast", "08:00"))
	require.NoError(t, c.Submit("lunch", "12:00"))
	assert.ErrorIs(t, c.Submit("dinner", "18:00"), ErrDropped)
	c.Wait()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncRequests.WithLabelValues("dropped")))
}
