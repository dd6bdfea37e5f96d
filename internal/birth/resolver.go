package birth

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/ringsaturn/tzf"
)

// ZoneSource says how the zone of an Instant was obtained.
type ZoneSource string

const (
	ZoneExplicit ZoneSource = "explicit"
	ZoneDerived  ZoneSource = "derived"
	ZoneGeocoded ZoneSource = "geocoded"
	ZoneNone     ZoneSource = "none"
)

// Precision says how far the instant can be trusted.
type Precision string

const (
	// PrecisionExact means local time and zone were both known.
	PrecisionExact Precision = "exact"
	// PrecisionDay means only the calendar day is reliable.
	PrecisionDay Precision = "day"
)

// Instant is the resolved absolute birth moment.
type Instant struct {
	UTC       time.Time
	Location  *time.Location // nil when no zone could be found
	Zone      string
	Source    ZoneSource
	Precision Precision
}

// ZoneFinder maps a point to an IANA zone name. It returns "" when the
// point is in no known zone. Note the longitude-first argument order.
type ZoneFinder interface {
	GetTimezoneName(lng float64, lat float64) string
}

// Resolver converts birth data into an Instant. It is safe for concurrent use.
type Resolver struct {
	finder    ZoneFinder
	locations sync.Map // zone name -> *time.Location
}

func NewResolver(finder ZoneFinder) *Resolver {
	return &Resolver{finder: finder}
}

// NewDefaultResolver builds a Resolver over the bundled tzf boundary data.
func NewDefaultResolver() (*Resolver, error) {
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone boundaries: %w", err)
	}
	return NewResolver(finder), nil
}

// ZoneFor returns the IANA zone whose boundary contains the point.
func (r *Resolver) ZoneFor(lat, lon float64) (string, error) {
	if r.finder == nil {
		return "", fmt.Errorf("no timezone finder configured: %w", ErrTimezoneResolution)
	}
	name := strings.TrimSpace(r.finder.GetTimezoneName(lon, lat))
	if name == "" {
		return "", fmt.Errorf("no timezone at %.4f,%.4f: %w", lat, lon, ErrTimezoneResolution)
	}
	return name, nil
}

// Location loads an IANA zone, caching the result. "Local" is refused
// since it names whatever zone the host runs in.
func (r *Resolver) Location(name string) (*time.Location, error) {
	if cached, ok := r.locations.Load(name); ok {
		return cached.(*time.Location), nil
	}
	if name == "Local" {
		return nil, fmt.Errorf("%q is not an IANA zone: %w", name, ErrTimezoneResolution)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load %q: %v: %w", name, err, ErrTimezoneResolution)
	}
	if loc.String() != name {
		return nil, fmt.Errorf("%q loaded as %q: %w", name, loc.String(), ErrTimezoneResolution)
	}
	r.locations.Store(name, loc)
	return loc, nil
}

// Resolve combines local date, local time and zone into one UTC instant.
//
// Without a clock time the instant is local noon at day precision. Without
// any zone (no timezone, no coordinates) it is noon UTC at day precision.
func (r *Resolver) Resolve(d Data) (Instant, error) {
	if !d.HasDate() {
		return Instant{}, ErrMissingBirthDate
	}

	if d.Date.Year == 0 || !d.Date.IsValid() {
		return Instant{}, fmt.Errorf("date %s does not exist: %w", d.DateString(), ErrInvalidBirthInstant)
	}

	loc, zone, source, err := r.zone(d)
	if err != nil {
		return Instant{}, err
	}

	noon := civil.DateTime{Date: d.Date, Time: civil.Time{Hour: 12}}

	if loc == nil {
		return Instant{
			UTC:       noon.In(time.UTC),
			Source:    ZoneNone,
			Precision: PrecisionDay,
		}, nil
	}

	inst := Instant{
		Location: loc,
		Zone:     zone,
		Source:   source,
	}

	if d.Time == nil {
		local := noon.In(loc)
		if civil.DateTimeOf(local) != noon {
			return Instant{}, fmt.Errorf("%s does not exist in %s: %w", d.DateString(), zone, ErrInvalidBirthInstant)
		}
		inst.UTC = local.UTC()
		inst.Precision = PrecisionDay
		return inst, nil
	}

	wall := civil.DateTime{Date: d.Date, Time: *d.Time}
	if !wall.Time.IsValid() {
		return Instant{}, fmt.Errorf("time %s is out of range: %w", d.TimeString(), ErrInvalidBirthInstant)
	}
	local := wall.In(loc)

	// time.Date silently shifts wall clocks that fall in a DST gap.
	if civil.DateTimeOf(local) != wall {
		return Instant{}, fmt.Errorf("%s %s does not exist in %s: %w",
			d.DateString(), d.TimeString(), zone, ErrInvalidBirthInstant)
	}

	inst.UTC = local.UTC()
	inst.Precision = PrecisionExact
	return inst, nil
}

func (r *Resolver) zone(d Data) (*time.Location, string, ZoneSource, error) {
	if name := strings.TrimSpace(d.Timezone); name != "" {
		loc, err := r.Location(name)
		if err != nil {
			return nil, "", "", err
		}
		source := d.TimezoneSource
		if source == "" {
			source = ZoneExplicit
		}
		return loc, name, source, nil
	}

	if d.Coords == nil {
		return nil, "", ZoneNone, nil
	}

	name, err := r.ZoneFor(d.Coords.Lat, d.Coords.Lon)
	if err != nil {
		return nil, "", "", err
	}
	loc, err := r.Location(name)
	if err != nil {
		return nil, "", "", err
	}
	return loc, name, ZoneDerived, nil
}
