package chart

import (
	"time"

	"github.com/nathan-osman/go-sunrise"

	"github.com/mombiemala/nefeli-web-sub000/internal/birth"
)

// Sect says whether the Sun was above the horizon at birth.
type Sect string

const (
	SectDay     Sect = "day"
	SectNight   Sect = "night"
	SectUnknown Sect = "unknown"
)

// horizonAltitude is the Sun's centre altitude at apparent sunrise/sunset.
const horizonAltitude = -0.833

// sectFor classifies an exact instant. Rise/set come from the local
// calendar date; polar day and polar night (no rise or no set) fall back
// to the Sun's elevation.
func sectFor(inst birth.Instant, c birth.Coordinates) Sect {
	loc := inst.Location
	if loc == nil {
		loc = time.UTC
	}
	local := inst.UTC.In(loc)

	rise, set := sunrise.SunriseSunset(c.Lat, c.Lon, local.Year(), local.Month(), local.Day())
	if rise.IsZero() || set.IsZero() || !set.After(rise) {
		if sunrise.Elevation(c.Lat, c.Lon, inst.UTC) > horizonAltitude {
			return SectDay
		}
		return SectNight
	}

	if !inst.UTC.Before(rise) && inst.UTC.Before(set) {
		return SectDay
	}
	return SectNight
}
