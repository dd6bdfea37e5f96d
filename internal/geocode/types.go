// Package geocode turns a free-text birth place into coordinates and,
// when the provider knows it, an IANA timezone.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound is returned when the provider has no match for the place.
var ErrNotFound = errors.New("place not found")

const (
	ProviderOpenMeteo   = "openmeteo"
	ProviderOpenWeather = "openweather"
)

type Provider interface {
	Lookup(ctx context.Context, place string) (*Location, error)
}

type Location struct {
	Provider  string  `json:"provider"`
	Name      string  `json:"name"`
	Region    string  `json:"region,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone,omitempty"` // empty when the provider does not report one
}

// Label renders "Name, Region, Country" skipping empty parts.
func (l *Location) Label() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.Name, l.Region, l.Country} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type Options struct {
	Provider string
	APIKey   string
	Language string
	BaseURL  string // overrides the provider's public endpoint
}

// New builds the provider named in opts.
func New(opts Options) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", ProviderOpenMeteo:
		return NewOpenMeteoClient(opts.BaseURL, opts.Language), nil
	case ProviderOpenWeather:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openweather api key is empty")
		}
		return NewOpenWeatherClient(opts.BaseURL, opts.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown geocoder provider %q", opts.Provider)
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
	}
}
