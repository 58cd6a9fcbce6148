package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/darren-owldoor/owldoor-geocoder/internal/resilience"
)

const (
	googleEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"

	// Google allows 50 requests per second on the standard plan.
	googleInterval = 20 * time.Millisecond
)

// googleResponse is the JSON response from the Google Geocoding API.
type googleResponse struct {
	Results []googleResult `json:"results"`
	Status  string         `json:"status"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// googleProvider geocodes via the Google Maps Geocoding API.
type googleProvider struct {
	apiKey   string
	endpoint string
	http     *http.Client
	limiter  Limiter
}

func newGoogle(apiKey, endpoint string, hc *http.Client) *googleProvider {
	if endpoint == "" {
		endpoint = googleEndpoint
	}
	return &googleProvider{
		apiKey:   apiKey,
		endpoint: endpoint,
		http:     hc,
		limiter:  NewIntervalLimiter(googleInterval),
	}
}

// Name implements Provider.
func (p *googleProvider) Name() string { return ProviderGoogle }

// Geocode implements Provider.
func (p *googleProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	if err := p.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"address": {query},
		"key":     {p.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("geocode: google returned status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: google returned status %d", resp.StatusCode)
	}

	var googleResp googleResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	switch googleResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return &Result{Matched: false, Source: ProviderGoogle}, nil
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return nil, resilience.NewTransientError(
			eris.Errorf("geocode: google api status %s", googleResp.Status), resp.StatusCode)
	default:
		// REQUEST_DENIED, INVALID_REQUEST: not retryable.
		return nil, eris.Errorf("geocode: google api status %s", googleResp.Status)
	}

	if len(googleResp.Results) == 0 {
		return &Result{Matched: false, Source: ProviderGoogle}, nil
	}

	r := googleResp.Results[0]
	return &Result{
		Latitude:         r.Geometry.Location.Lat,
		Longitude:        r.Geometry.Location.Lng,
		FormattedAddress: r.FormattedAddress,
		Source:           ProviderGoogle,
		Matched:          true,
	}, nil
}
