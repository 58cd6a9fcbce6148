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
	mapboxEndpoint = "https://api.mapbox.com/geocoding/v5/mapbox.places"

	// Mapbox expresses its ceiling as requests per minute.
	mapboxPerMinute = 600
)

// mapboxResponse is the JSON response from the Mapbox Geocoding API.
type mapboxResponse struct {
	Features []mapboxFeature `json:"features"`
}

type mapboxFeature struct {
	Center    []float64 `json:"center"` // [longitude, latitude]
	PlaceName string    `json:"place_name"`
}

// mapboxProvider geocodes via the Mapbox Geocoding API.
type mapboxProvider struct {
	token    string
	endpoint string
	http     *http.Client
	limiter  Limiter
}

func newMapbox(token, endpoint string, hc *http.Client) *mapboxProvider {
	if endpoint == "" {
		endpoint = mapboxEndpoint
	}
	return &mapboxProvider{
		token:    token,
		endpoint: endpoint,
		http:     hc,
		limiter:  NewWindowLimiter(mapboxPerMinute, time.Minute),
	}
}

// Name implements Provider.
func (p *mapboxProvider) Name() string { return ProviderMapbox }

// Geocode implements Provider.
func (p *mapboxProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	if err := p.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"access_token": {p.token},
		"limit":        {"1"},
	}
	reqURL := p.endpoint + "/" + url.PathEscape(query) + ".json?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: mapbox build request")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: mapbox request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: mapbox read body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("geocode: mapbox returned status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: mapbox returned status %d", resp.StatusCode)
	}

	var mapboxResp mapboxResponse
	if err := json.Unmarshal(body, &mapboxResp); err != nil {
		return nil, eris.Wrap(err, "geocode: mapbox parse response")
	}

	if len(mapboxResp.Features) == 0 {
		return &Result{Matched: false, Source: ProviderMapbox}, nil
	}

	f := mapboxResp.Features[0]
	if len(f.Center) < 2 {
		return nil, eris.Errorf("geocode: mapbox feature has no center coordinates")
	}

	return &Result{
		Latitude:         f.Center[1],
		Longitude:        f.Center[0],
		FormattedAddress: f.PlaceName,
		Source:           ProviderMapbox,
		Matched:          true,
	}, nil
}
