// Package ephemeris returns geocentric ecliptic longitudes of the Sun and
// the Moon. Longitudes are geometric (no aberration, no nutation) and
// normalized to [0, 360).
package ephemeris

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mombiemala/nefeli-web-sub000/internal/timeutil"
)

// ErrComputation is returned when a model produces a non-finite longitude.
var ErrComputation = errors.New("ephemeris computation failed")

// Provider computes ecliptic longitudes in degrees for an absolute instant.
type Provider interface {
	Name() string
	SunLongitude(t time.Time) (float64, error)
	MoonLongitude(t time.Time) (float64, error)
}

const (
	NameMeeus  = "meeus"
	NameApprox = "approx"
)

// New returns the provider registered under name. An empty name selects
// the Meeus model.
func New(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameMeeus:
		return Meeus{}, nil
	case NameApprox, "approximate":
		return Approx{}, nil
	default:
		return nil, fmt.Errorf("unknown ephemeris %q (use %s or %s)", name, NameMeeus, NameApprox)
	}
}

func finiteLongitude(body string, deg float64) (float64, error) {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0, fmt.Errorf("%s longitude: %w", body, ErrComputation)
	}
	return timeutil.Normalize360(deg), nil
}
