package chart

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mombiemala/nefeli-web-sub000/internal/timeutil"
)

// MeanObliquity is the tilt of the ecliptic at J2000.0, in degrees.
// Precession and nutation are ignored; swap in a date-dependent value here
// if the chart ever needs to be ephemeris grade.
const MeanObliquity = 23.4392911

// AscendantMethod selects the Ascendant formula.
type AscendantMethod string

const (
	// AscendantCompat is atan2(sin θ·cos ε − tan φ·sin ε, cos θ), the
	// formula every stored profile chart was computed with.
	AscendantCompat AscendantMethod = "compat"

	// AscendantHorizon is the intersection of the ecliptic with the
	// eastern horizon: atan2(cos θ, −(sin θ·cos ε + tan φ·sin ε)).
	AscendantHorizon AscendantMethod = "horizon"
)

// ParseAscendantMethod maps a config value to a method. Empty selects
// AscendantCompat.
func ParseAscendantMethod(name string) (AscendantMethod, error) {
	switch AscendantMethod(strings.ToLower(strings.TrimSpace(name))) {
	case "", AscendantCompat:
		return AscendantCompat, nil
	case AscendantHorizon:
		return AscendantHorizon, nil
	default:
		return "", fmt.Errorf("unknown ascendant method %q (use %s or %s)", name, AscendantCompat, AscendantHorizon)
	}
}

// GreenwichSiderealHours returns Greenwich mean sidereal time in hours,
// [0, 24), from the linear polynomial in days since J2000.0.
func GreenwichSiderealHours(t time.Time) float64 {
	d := timeutil.DaysSinceJ2000(t)
	return timeutil.Normalize24(18.697374558 + 24.06570982441908*d)
}

// LocalSiderealDegrees returns local sidereal time in degrees for an
// observer at east-positive longitude lon.
func LocalSiderealDegrees(t time.Time, lon float64) float64 {
	return Normalize(GreenwichSiderealHours(t)*15 + lon)
}

// Midheaven returns the ecliptic longitude culminating on the meridian
// for local sidereal time lst (degrees).
func Midheaven(lst float64) float64 {
	theta := timeutil.Deg2Rad(lst)
	eps := timeutil.Deg2Rad(MeanObliquity)
	return Normalize(timeutil.Rad2Deg(math.Atan2(math.Sin(theta)*math.Cos(eps), math.Cos(theta))))
}

// Ascendant returns the rising ecliptic longitude for local sidereal time
// lst and latitude lat (degrees). lat must lie strictly inside (−90, 90).
func Ascendant(lst, lat float64, method AscendantMethod) float64 {
	theta := timeutil.Deg2Rad(lst)
	eps := timeutil.Deg2Rad(MeanObliquity)
	phi := timeutil.Deg2Rad(lat)

	var y, x float64
	switch method {
	case AscendantHorizon:
		y = math.Cos(theta)
		x = -(math.Sin(theta)*math.Cos(eps) + math.Tan(phi)*math.Sin(eps))
	default:
		y = math.Sin(theta)*math.Cos(eps) - math.Tan(phi)*math.Sin(eps)
		x = math.Cos(theta)
	}
	return Normalize(timeutil.Rad2Deg(math.Atan2(y, x)))
}
