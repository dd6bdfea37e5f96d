// Package chart computes the four placements (Sun, Moon, Rising,
// Midheaven) of a birth chart.
//
// The engine is pure and stateless: the same birth data always yields the
// same chart, and an Engine may be shared between goroutines.
package chart

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mombiemala/nefeli-web-sub000/internal/birth"
	"github.com/mombiemala/nefeli-web-sub000/internal/ephemeris"
)

// engineRevision is bumped whenever a change alters computed placements,
// so cached charts get recomputed.
const engineRevision = "1"

const (
	WarningSunSignUncertain  = "sun_sign_uncertain"
	WarningMoonSignUncertain = "moon_sign_uncertain"
)

var (
	// Re-exported so callers need only this package for errors.Is.
	ErrMissingBirthDate    = birth.ErrMissingBirthDate
	ErrInvalidBirthInstant = birth.ErrInvalidBirthInstant
	ErrTimezoneResolution  = birth.ErrTimezoneResolution

	// ErrMissingCoordinates is returned when angles are required but the
	// birth place has no coordinates.
	ErrMissingCoordinates = errors.New("latitude and longitude are required for rising and midheaven")

	// ErrMissingBirthTime is returned when angles are required but the
	// birth time is unknown.
	ErrMissingBirthTime = errors.New("birth time is required for rising and midheaven")

	// ErrInvalidLatitude covers out-of-range latitudes and the poles, where
	// the Ascendant is undefined.
	ErrInvalidLatitude = errors.New("latitude must be strictly between -90 and 90 degrees")

	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180 degrees")
)

// Chart is the computed Big 4 plus how it was obtained.
type Chart struct {
	Sun            Placement        `json:"sun"`
	Moon           Placement        `json:"moon"`
	Rising         *Placement       `json:"rising"`
	Midheaven      *Placement       `json:"midheaven"`
	Instant        time.Time        `json:"instant"`
	Timezone       string           `json:"timezone,omitempty"`
	TimezoneSource birth.ZoneSource `json:"timezone_source"`
	Precision      birth.Precision  `json:"precision"`
	Sect           Sect             `json:"sect"`
	Warnings       []string         `json:"warnings,omitempty"`
}

// Summary renders the four placements on one line.
func (c *Chart) Summary() string {
	rising, mc := "unknown", "unknown"
	if c.Rising != nil {
		rising = c.Rising.String()
	}
	if c.Midheaven != nil {
		mc = c.Midheaven.String()
	}
	return fmt.Sprintf("Sun %s, Moon %s, Rising %s, Midheaven %s", c.Sun, c.Moon, rising, mc)
}

type EngineConfig struct {
	Ephemeris ephemeris.Provider
	Resolver  *birth.Resolver
	Ascendant AscendantMethod
}

type Engine struct {
	ephemeris ephemeris.Provider
	resolver  *birth.Resolver
	ascendant AscendantMethod
}

func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		ephemeris: cfg.Ephemeris,
		resolver:  cfg.Resolver,
		ascendant: cfg.Ascendant,
	}
	if e.ephemeris == nil {
		e.ephemeris = ephemeris.Meeus{}
	}
	if e.resolver == nil {
		e.resolver = birth.NewResolver(nil)
	}
	if e.ascendant == "" {
		e.ascendant = AscendantCompat
	}
	return e
}

// Version identifies everything that influences the output: the engine
// revision, the ephemeris model and the Ascendant formula.
func (e *Engine) Version() string {
	return fmt.Sprintf("%s/%s/%s", engineRevision, e.ephemeris.Name(), e.ascendant)
}

func (e *Engine) Resolver() *birth.Resolver {
	return e.resolver
}

type computeOptions struct {
	requireAngles bool
}

// Option tweaks a single Compute call.
type Option func(*computeOptions)

// WithRequireAngles turns incomplete time/location into an error instead
// of nil Rising and Midheaven.
func WithRequireAngles() Option {
	return func(o *computeOptions) {
		o.requireAngles = true
	}
}

// Compute produces the chart for bd.
//
// Rising and Midheaven are nil unless birth time and coordinates are both
// known. Without a birth time the Sun and Moon are taken at local noon and
// the chart is marked day-precision.
func (e *Engine) Compute(bd birth.Data, opts ...Option) (*Chart, error) {
	var o computeOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !bd.HasDate() {
		return nil, ErrMissingBirthDate
	}
	if bd.Coords != nil {
		if err := ValidateCoordinates(*bd.Coords); err != nil {
			return nil, err
		}
	}
	if o.requireAngles {
		if bd.Coords == nil {
			return nil, ErrMissingCoordinates
		}
		if bd.Time == nil {
			return nil, ErrMissingBirthTime
		}
	}

	inst, err := e.resolver.Resolve(bd)
	if err != nil {
		return nil, err
	}

	sunLon, moonLon, err := e.luminaries(inst.UTC)
	if err != nil {
		return nil, err
	}

	c := &Chart{
		Sun:            PlacementFor(sunLon),
		Moon:           PlacementFor(moonLon),
		Instant:        inst.UTC,
		Timezone:       inst.Zone,
		TimezoneSource: inst.Source,
		Precision:      inst.Precision,
		Sect:           SectUnknown,
	}

	if inst.Precision == birth.PrecisionExact && bd.Coords != nil {
		lst := LocalSiderealDegrees(inst.UTC, bd.Coords.Lon)
		rising := PlacementFor(Ascendant(lst, bd.Coords.Lat, e.ascendant))
		mc := PlacementFor(Midheaven(lst))
		c.Rising = &rising
		c.Midheaven = &mc
		c.Sect = sectFor(inst, *bd.Coords)
	}

	if inst.Precision == birth.PrecisionDay {
		warnings, err := e.uncertainty(inst, c)
		if err != nil {
			return nil, err
		}
		c.Warnings = warnings
	}

	return c, nil
}

// ValidateCoordinates rejects values the angle formulas cannot handle.
func ValidateCoordinates(c birth.Coordinates) error {
	if math.IsNaN(c.Lat) || c.Lat <= -90 || c.Lat >= 90 {
		return fmt.Errorf("latitude %v: %w", c.Lat, ErrInvalidLatitude)
	}
	if math.IsNaN(c.Lon) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %v: %w", c.Lon, ErrInvalidLongitude)
	}
	return nil
}

func (e *Engine) luminaries(t time.Time) (float64, float64, error) {
	sun, err := e.ephemeris.SunLongitude(t)
	if err != nil {
		return 0, 0, fmt.Errorf("sun position: %w", err)
	}
	moon, err := e.ephemeris.MoonLongitude(t)
	if err != nil {
		return 0, 0, fmt.Errorf("moon position: %w", err)
	}
	return sun, moon, nil
}

// uncertainty checks whether the Sun or Moon changes sign during the span
// the real birth moment could fall in. With a zone that is the local day;
// without one it is every local day on Earth (UTC-12 to UTC+14).
func (e *Engine) uncertainty(inst birth.Instant, c *Chart) ([]string, error) {
	var start, end time.Time
	if inst.Location != nil {
		local := inst.UTC.In(inst.Location)
		start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, inst.Location)
		end = start.AddDate(0, 0, 1).Add(-time.Second)
	} else {
		start = inst.UTC.Add(-26 * time.Hour)
		end = inst.UTC.Add(24*time.Hour - time.Second)
	}

	sunStart, moonStart, err := e.luminaries(start)
	if err != nil {
		return nil, err
	}
	sunEnd, moonEnd, err := e.luminaries(end)
	if err != nil {
		return nil, err
	}

	var warnings []string
	if signOf(sunStart) != c.Sun.Sign || signOf(sunEnd) != c.Sun.Sign {
		warnings = append(warnings, WarningSunSignUncertain)
	}
	if signOf(moonStart) != c.Moon.Sign || signOf(moonEnd) != c.Moon.Sign {
		warnings = append(warnings, WarningMoonSignUncertain)
	}
	return warnings, nil
}

func signOf(lon float64) Sign {
	s, _ := SignFor(lon)
	return s
}
