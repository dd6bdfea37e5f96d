package ephemeris

import (
	"math"
	"time"

	"github.com/mombiemala/nefeli-web-sub000/internal/timeutil"
)

// Approx is a low/medium-precision model built from a handful of dominant
// periodic terms. The Sun is good to about 0.01°, the Moon to a few tenths
// of a degree.
type Approx struct{}

func (Approx) Name() string { return NameApprox }

// SunLongitude uses the NOAA / Meeus-style short solar model:
//
//	g = mean anomaly of the Sun
//	q = mean longitude of the Sun
//	L = q + 1.915 sin g + 0.020 sin 2g
func (Approx) SunLongitude(t time.Time) (float64, error) {
	d := timeutil.DaysSinceJ2000(t)

	g := timeutil.Deg2Rad(timeutil.Normalize360(357.529 + 0.98560028*d))
	q := timeutil.Normalize360(280.459 + 0.98564736*d)

	l := q + 1.915*math.Sin(g) + 0.020*math.Sin(2*g)
	return finiteLongitude("sun", l)
}

// MoonLongitude uses a truncated lunar series:
//
//	L'  = mean longitude of the Moon
//	M   = mean anomaly of the Sun
//	Mm  = mean anomaly of the Moon
//	D   = mean elongation of the Moon from the Sun
//	F   = argument of latitude of the Moon
func (Approx) MoonLongitude(t time.Time) (float64, error) {
	d := timeutil.DaysSinceJ2000(t)

	lp := timeutil.Normalize360(218.3164477 + 13.17639648*d)
	m := timeutil.Deg2Rad(timeutil.Normalize360(357.5291092 + 0.98560028*d))
	mm := timeutil.Deg2Rad(timeutil.Normalize360(134.9633964 + 13.06499295*d))
	dd := timeutil.Deg2Rad(timeutil.Normalize360(297.8501921 + 12.19074912*d))
	f := timeutil.Deg2Rad(timeutil.Normalize360(93.2720950 + 13.22935024*d))

	lon := lp +
		6.289*math.Sin(mm) +
		1.274*math.Sin(2*dd-mm) +
		0.658*math.Sin(2*dd) +
		0.214*math.Sin(2*mm) -
		0.186*math.Sin(m) -
		0.114*math.Sin(2*f)

	return finiteLongitude("moon", lon)
}
