package chart

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mombiemala/nefeli-web-sub000/internal/birth"
	"github.com/mombiemala/nefeli-web-sub000/internal/ephemeris"
)

type zoneStub string

func (z zoneStub) GetTimezoneName(lng, lat float64) string { return string(z) }

func fptr(v float64) *float64 { return &v }

func parse(t *testing.T, raw birth.Raw) birth.Data {
	t.Helper()
	d, err := raw.Parse()
	require.NoError(t, err)
	return d
}

func newYorkEngine() *Engine {
	return NewEngine(EngineConfig{Resolver: birth.NewResolver(zoneStub("America/New_York"))})
}

func TestCompute_FullChart(t *testing.T) {
	e := newYorkEngine()
	c, err := e.Compute(parse(t, birth.Raw{
		Date: "1990-06-15", Time: "14:30",
		Latitude: fptr(40.7128), Longitude: fptr(-74.0060),
	}))
	require.NoError(t, err)

	assert.Equal(t, Gemini, c.Sun.Sign)
	require.NotNil(t, c.Rising)
	require.NotNil(t, c.Midheaven)
	assert.Equal(t, "America/New_York", c.Timezone)
	assert.Equal(t, birth.ZoneDerived, c.TimezoneSource)
	assert.Equal(t, birth.PrecisionExact, c.Precision)
	assert.Equal(t, time.Date(1990, 6, 15, 18, 30, 0, 0, time.UTC), c.Instant)
	assert.Equal(t, SectDay, c.Sect)
	assert.Empty(t, c.Warnings)

	for _, p := range []Placement{c.Sun, c.Moon, *c.Rising, *c.Midheaven} {
		assert.GreaterOrEqual(t, p.Degree, 0.0)
		assert.Less(t, p.Degree, 30.0)
		assert.GreaterOrEqual(t, p.Longitude, 0.0)
		assert.Less(t, p.Longitude, 360.0)
	}

	lst := LocalSiderealDegrees(c.Instant, -74.0060)
	assert.InDelta(t, Midheaven(lst), c.Midheaven.Longitude, 1e-9)
	assert.InDelta(t, Ascendant(lst, 40.7128, AscendantCompat), c.Rising.Longitude, 1e-9)
}

func TestCompute_ScenarioDefaultResolver(t *testing.T) {
	if testing.Short() {
		t.Skip("loads timezone boundaries")
	}
	r, err := birth.NewDefaultResolver()
	require.NoError(t, err)

	c, err := NewEngine(EngineConfig{Resolver: r}).Compute(parse(t, birth.Raw{
		Date: "1990-06-15", Time: "14:30",
		Latitude: fptr(40.7128), Longitude: fptr(-74.0060),
	}))
	require.NoError(t, err)

	assert.Equal(t, "America/New_York", c.Timezone)
	assert.Equal(t, Gemini, c.Sun.Sign)
	assert.NotNil(t, c.Rising)
	assert.NotNil(t, c.Midheaven)
}

func TestCompute_Completeness(t *testing.T) {
	e := newYorkEngine()

	tests := []struct {
		name      string
		raw       birth.Raw
		angles    bool
		precision birth.Precision
		source    birth.ZoneSource
	}{
		{
			name:      "date only",
			raw:       birth.Raw{Date: "1990-06-15"},
			precision: birth.PrecisionDay,
			source:    birth.ZoneNone,
		},
		{
			name:      "date and time without place",
			raw:       birth.Raw{Date: "1990-06-15", Time: "14:30"},
			precision: birth.PrecisionDay,
			source:    birth.ZoneNone,
		},
		{
			name:      "date and coordinates without time",
			raw:       birth.Raw{Date: "1990-06-15", Latitude: fptr(40.7128), Longitude: fptr(-74.006)},
			precision: birth.PrecisionDay,
			source:    birth.ZoneDerived,
		},
		{
			name:      "time and explicit zone without coordinates",
			raw:       birth.Raw{Date: "1990-06-15", Time: "14:30", Timezone: "Europe/London"},
			precision: birth.PrecisionExact,
			source:    birth.ZoneExplicit,
		},
		{
			name:      "everything",
			raw:       birth.Raw{Date: "1990-06-15", Time: "14:30", Latitude: fptr(40.7128), Longitude: fptr(-74.006)},
			angles:    true,
			precision: birth.PrecisionExact,
			source:    birth.ZoneDerived,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := e.Compute(parse(t, tt.raw))
			require.NoError(t, err)

			assert.Equal(t, tt.precision, c.Precision)
			assert.Equal(t, tt.source, c.TimezoneSource)
			if tt.angles {
				assert.NotNil(t, c.Rising)
				assert.NotNil(t, c.Midheaven)
				assert.NotEqual(t, SectUnknown, c.Sect)
			} else {
				assert.Nil(t, c.Rising)
				assert.Nil(t, c.Midheaven)
				assert.Equal(t, SectUnknown, c.Sect)
			}
		})
	}
}

func TestCompute_NullAnglesInJSON(t *testing.T) {
	c, err := newYorkEngine().Compute(parse(t, birth.Raw{Date: "1990-06-15"}))
	require.NoError(t, err)

	b, err := json.Marshal(c)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Contains(t, out, "rising")
	assert.Nil(t, out["rising"])
	assert.Nil(t, out["midheaven"])
	assert.Equal(t, "Gemini", out["sun"].(map[string]any)["sign"])
}

func TestCompute_RequireAngles(t *testing.T) {
	e := newYorkEngine()

	_, err := e.Compute(parse(t, birth.Raw{Date: "1990-06-15", Time: "14:30"}), WithRequireAngles())
	assert.ErrorIs(t, err, ErrMissingCoordinates)

	_, err = e.Compute(parse(t, birth.Raw{Date: "1990-06-15", Latitude: fptr(40.7), Longitude: fptr(-74)}), WithRequireAngles())
	assert.ErrorIs(t, err, ErrMissingBirthTime)

	c, err := e.Compute(parse(t, birth.Raw{Date: "1990-06-15", Time: "14:30", Latitude: fptr(40.7), Longitude: fptr(-74)}), WithRequireAngles())
	require.NoError(t, err)
	assert.NotNil(t, c.Rising)
}

func TestCompute_Errors(t *testing.T) {
	e := newYorkEngine()

	_, err := e.Compute(birth.Data{})
	assert.ErrorIs(t, err, ErrMissingBirthDate)
	assert.ErrorIs(t, err, birth.ErrMissingBirthDate)

	for _, lat := range []float64{90, -90, 91, math.NaN(), math.Inf(1)} {
		d := parse(t, birth.Raw{Date: "1990-06-15", Time: "12:00", Longitude: fptr(0), Latitude: fptr(0)})
		d.Coords.Lat = lat
		_, err = e.Compute(d)
		assert.ErrorIs(t, err, ErrInvalidLatitude, "lat=%v", lat)
	}

	for _, lon := range []float64{180.5, -181, math.NaN()} {
		d := parse(t, birth.Raw{Date: "1990-06-15", Latitude: fptr(10), Longitude: fptr(0)})
		d.Coords.Lon = lon
		_, err = e.Compute(d)
		assert.ErrorIs(t, err, ErrInvalidLongitude, "lon=%v", lon)
	}

	_, err = e.Compute(parse(t, birth.Raw{Date: "2021-03-14", Time: "02:30", Latitude: fptr(40.7), Longitude: fptr(-74)}))
	assert.ErrorIs(t, err, ErrInvalidBirthInstant)

	_, err = e.Compute(parse(t, birth.Raw{Date: "1990-06-15", Time: "12:00", Timezone: "Mars/Olympus_Mons"}))
	assert.ErrorIs(t, err, ErrTimezoneResolution)

	nowhere := NewEngine(EngineConfig{Resolver: birth.NewResolver(zoneStub(""))})
	_, err = nowhere.Compute(parse(t, birth.Raw{Date: "1990-06-15", Time: "12:00", Latitude: fptr(0), Longitude: fptr(-160)}))
	assert.ErrorIs(t, err, ErrTimezoneResolution)
}

type brokenEphemeris struct{ ephemeris.Meeus }

func (brokenEphemeris) MoonLongitude(time.Time) (float64, error) {
	return 0, ephemeris.ErrComputation
}

func TestCompute_EphemerisFailure(t *testing.T) {
	e := NewEngine(EngineConfig{Ephemeris: brokenEphemeris{}, Resolver: birth.NewResolver(zoneStub("UTC"))})
	_, err := e.Compute(parse(t, birth.Raw{Date: "2000-01-01", Time: "12:00", Timezone: "UTC"}))
	assert.True(t, errors.Is(err, ephemeris.ErrComputation))
}

func TestCompute_Deterministic(t *testing.T) {
	e := newYorkEngine()
	d := parse(t, birth.Raw{Date: "1984-11-03", Time: "06:15", Latitude: fptr(40.7128), Longitude: fptr(-74.006)})

	first, err := e.Compute(d)
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := e.Compute(d)
		require.NoError(t, err)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("chart changed between calls (-first +again):\n%s", diff)
		}
		againJSON, err := json.Marshal(again)
		require.NoError(t, err)
		assert.Equal(t, string(firstJSON), string(againJSON))
	}
}

func TestCompute_ReferenceSigns(t *testing.T) {
	// Positions checked against published almanac values.
	tests := []struct {
		name string
		raw  birth.Raw
		sun  Sign
		moon Sign
	}{
		{
			// J2000.0: Sun 280.37°, Moon 223.32°.
			name: "J2000",
			raw:  birth.Raw{Date: "2000-01-01", Time: "12:00", Timezone: "UTC"},
			sun:  Capricorn,
			moon: Scorpio,
		},
		{
			// Meeus example 25.a (Sun 199.91°) and 47.a (Moon 133.17°).
			name: "1992 October 13",
			raw:  birth.Raw{Date: "1992-10-13", Time: "00:00", Timezone: "UTC"},
			sun:  Libra,
		},
		{
			name: "1992 April 12",
			raw:  birth.Raw{Date: "1992-04-12", Time: "00:00", Timezone: "UTC"},
			sun:  Aries,
			moon: Leo,
		},
	}

	e := NewEngine(EngineConfig{Resolver: birth.NewResolver(nil)})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := e.Compute(parse(t, tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.sun, c.Sun.Sign)
			if tt.moon != Aries {
				assert.Equal(t, tt.moon, c.Moon.Sign)
			}
		})
	}
}

func TestCompute_DayPrecisionWarnings(t *testing.T) {
	e := newYorkEngine()

	// June solstice 2020 fell at 21:43 UTC on June 20, inside the New York
	// calendar day.
	c, err := e.Compute(parse(t, birth.Raw{Date: "2020-06-20", Latitude: fptr(40.7128), Longitude: fptr(-74.006)}))
	require.NoError(t, err)
	assert.Equal(t, birth.PrecisionDay, c.Precision)
	assert.Equal(t, Gemini, c.Sun.Sign, "local noon precedes the ingress")
	assert.Contains(t, c.Warnings, WarningSunSignUncertain)

	c, err = e.Compute(parse(t, birth.Raw{Date: "1990-06-15", Latitude: fptr(40.7128), Longitude: fptr(-74.006)}))
	require.NoError(t, err)
	assert.NotContains(t, c.Warnings, WarningSunSignUncertain)

	// Exact charts never carry the warnings.
	c, err = e.Compute(parse(t, birth.Raw{Date: "2020-06-20", Time: "12:00", Latitude: fptr(40.7128), Longitude: fptr(-74.006)}))
	require.NoError(t, err)
	assert.Empty(t, c.Warnings)
}

func TestCompute_Sect(t *testing.T) {
	e := newYorkEngine()
	nyc := func(date, clock string) birth.Data {
		return parse(t, birth.Raw{Date: date, Time: clock, Latitude: fptr(40.7128), Longitude: fptr(-74.006)})
	}

	c, err := e.Compute(nyc("1990-06-15", "14:30"))
	require.NoError(t, err)
	assert.Equal(t, SectDay, c.Sect)

	c, err = e.Compute(nyc("1990-06-15", "23:30"))
	require.NoError(t, err)
	assert.Equal(t, SectNight, c.Sect)

	c, err = e.Compute(nyc("1990-12-15", "03:00"))
	require.NoError(t, err)
	assert.Equal(t, SectNight, c.Sect)

	// Midnight sun over Tromsø.
	oslo := NewEngine(EngineConfig{Resolver: birth.NewResolver(zoneStub("Europe/Oslo"))})
	c, err = oslo.Compute(parse(t, birth.Raw{Date: "2020-06-21", Time: "00:30", Latitude: fptr(69.6496), Longitude: fptr(18.956)}))
	require.NoError(t, err)
	assert.Equal(t, SectDay, c.Sect)

	// Polar night.
	c, err = oslo.Compute(parse(t, birth.Raw{Date: "2020-12-21", Time: "12:00", Latitude: fptr(78.2232), Longitude: fptr(15.6267)}))
	require.NoError(t, err)
	assert.Equal(t, SectNight, c.Sect)
}

func TestEngine_Version(t *testing.T) {
	assert.Equal(t, "1/meeus/compat", NewEngine(EngineConfig{}).Version())
	assert.Equal(t, "1/approx/horizon", NewEngine(EngineConfig{
		Ephemeris: ephemeris.Approx{},
		Ascendant: AscendantHorizon,
	}).Version())
}

func TestEngine_HorizonAscendant(t *testing.T) {
	e := NewEngine(EngineConfig{
		Resolver:  birth.NewResolver(zoneStub("America/New_York")),
		Ascendant: AscendantHorizon,
	})
	c, err := e.Compute(parse(t, birth.Raw{Date: "1990-06-15", Time: "14:30", Latitude: fptr(40.7128), Longitude: fptr(-74.006)}))
	require.NoError(t, err)

	lst := LocalSiderealDegrees(c.Instant, -74.006)
	assert.InDelta(t, Ascendant(lst, 40.7128, AscendantHorizon), c.Rising.Longitude, 1e-9)
}

func TestChart_Summary(t *testing.T) {
	c := &Chart{Sun: PlacementFor(84.5), Moon: PlacementFor(200)}
	assert.Equal(t, "Sun Gemini 24°30', Moon Libra 20°00', Rising unknown, Midheaven unknown", c.Summary())
}
