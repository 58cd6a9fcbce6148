package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/darren-owldoor/owldoor-geocoder/internal/resilience"
)

const (
	nominatimEndpoint = "https://nominatim.openstreetmap.org/search"

	// Nominatim's usage policy requires an identifying User-Agent on every
	// request; anonymous clients get blocked.
	nominatimUserAgent = "owldoor-geocoder/1.0 (+https://github.com/darren-owldoor/owldoor-geocoder)"

	// Hard ceiling from the Nominatim usage policy: one request per second.
	nominatimInterval = time.Second
)

// nominatimResult is one entry of the Nominatim search response array.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// nominatimProvider geocodes via the free OpenStreetMap Nominatim service.
type nominatimProvider struct {
	endpoint string
	http     *http.Client
	limiter  Limiter
}

func newNominatim(endpoint string, hc *http.Client) *nominatimProvider {
	if endpoint == "" {
		endpoint = nominatimEndpoint
	}
	return &nominatimProvider{
		endpoint: endpoint,
		http:     hc,
		limiter:  NewIntervalLimiter(nominatimInterval),
	}
}

// Name implements Provider.
func (p *nominatimProvider) Name() string { return ProviderNominatim }

// Geocode implements Provider.
func (p *nominatimProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	if err := p.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", nominatimUserAgent)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	var matches []nominatimResult
	if err := json.Unmarshal(body, &matches); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	if len(matches) == 0 {
		return &Result{Matched: false, Source: ProviderNominatim}, nil
	}

	m := matches[0]
	lat, err := strconv.ParseFloat(m.Lat, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lat %q", m.Lat)
	}
	lon, err := strconv.ParseFloat(m.Lon, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: nominatim parse lon %q", m.Lon)
	}

	return &Result{
		Latitude:         lat,
		Longitude:        lon,
		FormattedAddress: m.DisplayName,
		Source:           ProviderNominatim,
		Matched:          true,
	}, nil
}
