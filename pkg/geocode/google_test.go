package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darren-owldoor/owldoor-geocoder/internal/resilience"
)

func TestGoogle_Match(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "1600 Pennsylvania Ave NW, Washington, DC", r.URL.Query().Get("address"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [{
				"geometry": {"location": {"lat": 38.8977, "lng": -77.0365}},
				"formatted_address": "1600 Pennsylvania Avenue NW, Washington, DC 20500, USA"
			}]
		}`)
	}))
	defer srv.Close()

	p, err := New(Config{Provider: ProviderGoogle, APIKey: "test-key", Endpoint: srv.URL})
	require.NoError(t, err)
	unlimit(p)

	result, err := p.Geocode(context.Background(), "1600 Pennsylvania Ave NW, Washington, DC")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 38.8977, result.Latitude, 1e-9)
	assert.InDelta(t, -77.0365, result.Longitude, 1e-9)
	assert.Equal(t, "1600 Pennsylvania Avenue NW, Washington, DC 20500, USA", result.FormattedAddress)
	assert.Equal(t, "google", result.Source)
}

func TestGoogle_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer srv.Close()

	p, err := New(Config{Provider: ProviderGoogle, APIKey: "test-key", Endpoint: srv.URL})
	require.NoError(t, err)
	unlimit(p)

	result, err := p.Geocode(context.Background(), "000 Nowhere")
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestGoogle_OverQueryLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status": "OVER_QUERY_LIMIT", "results": []}`)
	}))
	defer srv.Close()

	p, err := New(Config{Provider: ProviderGoogle, APIKey: "test-key", Endpoint: srv.URL})
	require.NoError(t, err)
	unlimit(p)

	_, err = p.Geocode(context.Background(), "123 Main St")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestGoogle_RequestDeniedIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status": "REQUEST_DENIED", "results": []}`)
	}))
	defer srv.Close()

	p, err := New(Config{Provider: ProviderGoogle, APIKey: "bad-key", Endpoint: srv.URL})
	require.NoError(t, err)
	unlimit(p)

	_, err = p.Geocode(context.Background(), "123 Main St")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}
