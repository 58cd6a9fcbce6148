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

func TestNominatim_Match(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		assert.Equal(t, "1600 Amphitheatre Pkwy, Mountain View, CA", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"lat":"37.4224","lon":"-122.0842","display_name":"Googleplex, Mountain View, CA, USA"}]`)
	}))
	defer srv.Close()

	p, err := New(Config{Provider: ProviderNominatim, Endpoint: srv.URL})
	require.NoError(t, err)
	unlimit(p)

	result, err := p.Geocode(context.Background(), "1600 Amphitheatre Pkwy, Mountain View, CA")
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 37.4224, result.Latitude, 1e-9)
	assert.InDelta(t, -122.0842, result.Longitude, 1e-9)
	assert.Equal(t, "Googleplex, Mountain View, CA, USA", result.FormattedAddress)
	assert.Equal(t, "nominatim", result.Source)

	// The usage policy requires an identifying User-Agent on every request.
	assert.Equal(t, nominatimUserAgent, gotUA)
}

func TestNominatim_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	p, err := New(Config{Provider: ProviderNominatim, Endpoint: srv.URL})
	require.NoError(t, err)
	unlimit(p)

	result, err := p.Geocode(context.Background(), "nowhere at all")
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Zero(t, result.Latitude)
	assert.Zero(t, result.Longitude)
}

func TestNominatim_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := New(Config{Provider: ProviderNominatim, Endpoint: srv.URL})
	require.NoError(t, err)
	unlimit(p)

	_, err = p.Geocode(context.Background(), "123 Main St")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestNominatim_BadRequestIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p, err := New(Config{Provider: ProviderNominatim, Endpoint: srv.URL})
	require.NoError(t, err)
	unlimit(p)

	_, err = p.Geocode(context.Background(), "123 Main St")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}
