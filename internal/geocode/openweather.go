package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const openWeatherBaseURL = "https://api.openweathermap.org"

// OpenWeatherClient uses the OpenWeather direct geocoding API. It reports
// no timezone; the zone is derived from the coordinates downstream.
type OpenWeatherClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewOpenWeatherClient(baseURL, apiKey string) *OpenWeatherClient {
	if baseURL == "" {
		baseURL = openWeatherBaseURL
	}
	return &OpenWeatherClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  newHTTPClient(),
	}
}

type openWeatherGeoResult struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	State   string  `json:"state"`
}

func (c *OpenWeatherClient) Lookup(ctx context.Context, place string) (*Location, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openweather api key is empty")
	}
	place = strings.TrimSpace(place)
	if place == "" {
		return nil, fmt.Errorf("openweather geocoding: empty place: %w", ErrNotFound)
	}

	query := url.Values{}
	query.Set("q", place)
	query.Set("limit", "1")
	query.Set("appid", c.apiKey)

	endpoint := c.baseURL + "/geo/1.0/direct?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("openweather geocoding request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openweather geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openweather geocoding bad status: %s", resp.Status)
	}

	var payload []openWeatherGeoResult
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("openweather geocoding decode: %w", err)
	}

	if len(payload) == 0 {
		return nil, fmt.Errorf("openweather geocoding %q: %w", place, ErrNotFound)
	}

	r := payload[0]
	return &Location{
		Provider:  ProviderOpenWeather,
		Name:      r.Name,
		Region:    r.State,
		Country:   r.Country,
		Latitude:  r.Lat,
		Longitude: r.Lon,
	}, nil
}
