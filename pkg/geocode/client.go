// Package geocode provides forward geocoding across interchangeable providers:
// Nominatim (free, no key), Google Maps, and Mapbox.
package geocode

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Provider geocodes a single address query against one backend service.
type Provider interface {
	// Name returns the provider identifier ("nominatim", "google", "mapbox").
	Name() string

	// Geocode resolves a single address string. A clean zero-match response
	// returns a Result with Matched=false and a nil error; errors are reserved
	// for transport and protocol failures.
	Geocode(ctx context.Context, query string) (*Result, error)
}

// Result holds the normalized geocoding output for one query.
type Result struct {
	Latitude         float64
	Longitude        float64
	FormattedAddress string
	Source           string // provider identifier
	Matched          bool
}

// Config selects and configures a provider.
type Config struct {
	Provider string // "nominatim" (default), "google", "mapbox"
	APIKey   string // required for google and mapbox
	Endpoint string // override the provider's default endpoint
	HTTP     *http.Client
}

// ProviderNames lists the known provider identifiers.
var ProviderNames = []string{ProviderNominatim, ProviderGoogle, ProviderMapbox}

const (
	ProviderNominatim = "nominatim"
	ProviderGoogle    = "google"
	ProviderMapbox    = "mapbox"
)

// defaultTimeout bounds every outbound geocoding request.
const defaultTimeout = 10 * time.Second

// New constructs the provider named by cfg.Provider with its paired rate
// limiter. A key-based provider with no key is a configuration error raised
// here, before any request is sent.
func New(cfg Config) (Provider, error) {
	hc := cfg.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}

	switch cfg.Provider {
	case "", ProviderNominatim:
		zap.L().Info("using nominatim provider",
			zap.String("user_agent", nominatimUserAgent),
			zap.Duration("min_interval", nominatimInterval),
		)
		return newNominatim(cfg.Endpoint, hc), nil
	case ProviderGoogle:
		if cfg.APIKey == "" {
			return nil, eris.New("geocode: google provider requires an api key")
		}
		return newGoogle(cfg.APIKey, cfg.Endpoint, hc), nil
	case ProviderMapbox:
		if cfg.APIKey == "" {
			return nil, eris.New("geocode: mapbox provider requires an access token")
		}
		return newMapbox(cfg.APIKey, cfg.Endpoint, hc), nil
	default:
		return nil, eris.Errorf("geocode: unknown provider %q", cfg.Provider)
	}
}
