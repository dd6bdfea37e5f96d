package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const openMeteoBaseURL = "https://geocoding-api.open-meteo.com"

type OpenMeteoClient struct {
	baseURL  string
	language string
	client   *http.Client
}

func NewOpenMeteoClient(baseURL, language string) *OpenMeteoClient {
	if baseURL == "" {
		baseURL = openMeteoBaseURL
	}
	if language == "" {
		language = "en"
	}
	return &OpenMeteoClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		client:   newHTTPClient(),
	}
}

type openMeteoGeoResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
		Admin1    string  `json:"admin1"`
		Timezone  string  `json:"timezone"`
	} `json:"results"`
}

func (c *OpenMeteoClient) Lookup(ctx context.Context, place string) (*Location, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return nil, fmt.Errorf("open-meteo geocoding: empty place: %w", ErrNotFound)
	}

	query := url.Values{}
	query.Set("name", place)
	query.Set("count", "1")
	query.Set("language", c.language)
	query.Set("format", "json")

	endpoint := c.baseURL + "/v1/search?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("open-meteo geocoding request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open-meteo geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("open-meteo geocoding bad status: %s", resp.Status)
	}

	var payload openMeteoGeoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("open-meteo geocoding decode: %w", err)
	}

	if len(payload.Results) == 0 {
		return nil, fmt.Errorf("open-meteo geocoding %q: %w", place, ErrNotFound)
	}

	r := payload.Results[0]
	return &Location{
		Provider:  ProviderOpenMeteo,
		Name:      r.Name,
		Region:    r.Admin1,
		Country:   r.Country,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Timezone:  r.Timezone,
	}, nil
}
