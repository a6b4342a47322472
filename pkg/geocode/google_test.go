package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/introhq/introhq/internal/resilience"
)

const seattleJSON = `{
	"status": "OK",
	"results": [{"geometry": {"location": {"lat": 47.6062, "lng": -122.3321}}}]
}`

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     1,
		JitterFraction: 0,
	}
}

func TestGoogleGeocode_Match(t *testing.T) {
	var gotAddress, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddress = r.URL.Query().Get("address")
		gotKey = r.URL.Query().Get("key")
		w.Write([]byte(seattleJSON)) //nolint:errcheck
	}))
	defer srv.Close()

	g := NewGoogleProvider("test-key", WithBaseURL(srv.URL), WithRetry(fastRetry()))
	result, err := g.Geocode(context.Background(), "Seattle, WA, US")
	require.NoError(t, err)

	assert.True(t, result.Matched)
	assert.InDelta(t, 47.6062, result.Latitude, 1e-9)
	assert.InDelta(t, -122.3321, result.Longitude, 1e-9)
	assert.Equal(t, "Seattle, WA, US", gotAddress)
	assert.Equal(t, "test-key", gotKey)
}

func TestGoogleGeocode_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`)) //nolint:errcheck
	}))
	defer srv.Close()

	g := NewGoogleProvider("test-key", WithBaseURL(srv.URL), WithRetry(fastRetry()))
	result, err := g.Geocode(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestGoogleGeocode_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(seattleJSON)) //nolint:errcheck
	}))
	defer srv.Close()

	g := NewGoogleProvider("test-key", WithBaseURL(srv.URL), WithRetry(fastRetry()))
	result, err := g.Geocode(context.Background(), "Seattle")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGoogleGeocode_PermanentStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	g := NewGoogleProvider("bad-key", WithBaseURL(srv.URL), WithRetry(fastRetry()))
	_, err := g.Geocode(context.Background(), "Seattle")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGoogleGeocode_NoKey(t *testing.T) {
	g := NewGoogleProvider("")
	assert.False(t, g.Available())

	_, err := g.Geocode(context.Background(), "Seattle")
	assert.Error(t, err)
}
