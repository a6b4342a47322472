package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/introhq/introhq/internal/resilience"
)

const defaultGoogleURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleProvider geocodes free-text addresses via the Google Geocoding
// API. A missing API key makes the provider unavailable rather than an
// error; callers fall through to "coordinates unset".
type GoogleProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// GoogleOption configures the GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) GoogleOption {
	return func(g *GoogleProvider) {
		g.httpClient = hc
	}
}

// WithBaseURL overrides the API endpoint, used by tests.
func WithBaseURL(u string) GoogleOption {
	return func(g *GoogleProvider) {
		g.baseURL = u
	}
}

// WithRateLimit sets the requests-per-second limit for API calls.
func WithRateLimit(rps float64) GoogleOption {
	return func(g *GoogleProvider) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

// WithRetry overrides the retry policy for API calls.
func WithRetry(cfg resilience.RetryConfig) GoogleOption {
	return func(g *GoogleProvider) {
		g.retry = cfg
	}
}

// NewGoogleProvider creates a GoogleProvider with the given key and options.
func NewGoogleProvider(apiKey string, opts ...GoogleOption) *GoogleProvider {
	g := &GoogleProvider{
		apiKey:     apiKey,
		baseURL:    defaultGoogleURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name implements Provider.
func (g *GoogleProvider) Name() string { return "google" }

// Available implements Provider.
func (g *GoogleProvider) Available() bool { return g.apiKey != "" }

// googleResponse is the JSON response from the Google Geocoding API.
type googleResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode implements Provider. Transient HTTP failures are retried with
// backoff; rate limiting applies per attempt.
func (g *GoogleProvider) Geocode(ctx context.Context, address string) (*Result, error) {
	if g.apiKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}

	retry := g.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("google", "geocode")
	}

	body, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		return g.fetch(ctx, address)
	})
	if err != nil {
		return nil, err
	}

	var parsed googleResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}

	if parsed.Status != "OK" || len(parsed.Results) == 0 {
		return &Result{Matched: false}, nil
	}

	loc := parsed.Results[0].Geometry.Location
	lat, lng := loc.Lat, loc.Lng
	if !HasValidCoordinates(&lat, &lng) {
		return &Result{Matched: false}, nil
	}

	return &Result{
		Latitude:  lat,
		Longitude: lng,
		Matched:   true,
	}, nil
}

// fetch performs one rate-limited API request and returns the raw body.
func (g *GoogleProvider) fetch(ctx context.Context, address string) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit")
	}

	params := url.Values{
		"address": {address},
		"key":     {g.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: google returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}
	return body, nil
}
