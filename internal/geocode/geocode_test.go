package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMeteoLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		assert.Equal(t, "New York", r.URL.Query().Get("name"))
		assert.Equal(t, "1", r.URL.Query().Get("count"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"name":"New York","latitude":40.71427,"longitude":-74.00597,
			"country":"United States","admin1":"New York","timezone":"America/New_York"}]}`))
	}))
	defer srv.Close()

	loc, err := NewOpenMeteoClient(srv.URL, "").Lookup(context.Background(), " New York ")
	require.NoError(t, err)

	assert.Equal(t, &Location{
		Provider:  ProviderOpenMeteo,
		Name:      "New York",
		Region:    "New York",
		Country:   "United States",
		Latitude:  40.71427,
		Longitude: -74.00597,
		Timezone:  "America/New_York",
	}, loc)
	assert.Equal(t, "New York, New York, United States", loc.Label())
}

func TestOpenMeteoLookup_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"generationtime_ms":0.5}`))
	}))
	defer srv.Close()

	c := NewOpenMeteoClient(srv.URL, "en")
	_, err := c.Lookup(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Lookup(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenMeteoLookup_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOpenMeteoClient(srv.URL, "en").Lookup(context.Background(), "Paris")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenWeatherLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geo/1.0/direct", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("appid"))
		assert.Equal(t, "Tokyo", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`[{"name":"Tokyo","lat":35.6828,"lon":139.759,"country":"JP","state":""}]`))
	}))
	defer srv.Close()

	loc, err := NewOpenWeatherClient(srv.URL, "secret").Lookup(context.Background(), "Tokyo")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenWeather, loc.Provider)
	assert.InDelta(t, 35.6828, loc.Latitude, 1e-9)
	assert.InDelta(t, 139.759, loc.Longitude, 1e-9)
	assert.Empty(t, loc.Timezone)
	assert.Equal(t, "Tokyo, JP", loc.Label())
}

func TestOpenWeatherLookup_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := NewOpenWeatherClient(srv.URL, "secret").Lookup(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewOpenWeatherClient(srv.URL, "").Lookup(context.Background(), "Tokyo")
	assert.ErrorContains(t, err, "api key")
}

func TestLookup_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewOpenMeteoClient(srv.URL, "en").Lookup(ctx, "Paris")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	p, err := New(Options{})
	require.NoError(t, err)
	assert.IsType(t, &OpenMeteoClient{}, p)

	p, err = New(Options{Provider: "OpenWeather", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenWeatherClient{}, p)

	_, err = New(Options{Provider: "openweather"})
	assert.Error(t, err)

	_, err = New(Options{Provider: "nominatim"})
	assert.Error(t, err)
}
