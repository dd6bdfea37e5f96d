package birth

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var clockLayouts = []string{
	"15:04:05",
	"15:04",
}

// Raw is birth data as it arrives over the wire or from flags.
type Raw struct {
	Date      string   `json:"date" yaml:"date"`
	Time      string   `json:"time,omitempty" yaml:"time,omitempty"`
	Place     string   `json:"place,omitempty" yaml:"place,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty" yaml:"longitude,omitempty"`
	Timezone  string   `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// ParseDate parses an ISO 8601 calendar date (YYYY-MM-DD).
func ParseDate(value string) (civil.Date, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return civil.Date{}, ErrMissingBirthDate
	}
	date, err := civil.ParseDate(trimmed)
	if err != nil {
		return civil.Date{}, fmt.Errorf("date %q: %v: %w", trimmed, err, ErrInvalidBirthInstant)
	}
	return date, nil
}

// ParseTime parses a local clock time (HH:MM or HH:MM:SS). A blank value
// means the time is unknown and yields nil.
func ParseTime(value string) (*civil.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	for _, layout := range clockLayouts {
		if parsed, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			tod := civil.TimeOf(parsed)
			return &tod, nil
		}
	}
	return nil, fmt.Errorf("time %q is not HH:MM[:SS]: %w", trimmed, ErrInvalidBirthInstant)
}

// Parse validates r and converts it into Data.
func (r Raw) Parse() (Data, error) {
	date, err := ParseDate(r.Date)
	if err != nil {
		return Data{}, err
	}
	tod, err := ParseTime(r.Time)
	if err != nil {
		return Data{}, err
	}

	d := Data{
		Date:     date,
		Time:     tod,
		Place:    strings.TrimSpace(r.Place),
		Timezone: strings.TrimSpace(r.Timezone),
	}

	switch {
	case r.Latitude != nil && r.Longitude != nil:
		d.Coords = &Coordinates{Lat: *r.Latitude, Lon: *r.Longitude}
	case r.Latitude != nil || r.Longitude != nil:
		return Data{}, ErrIncompleteCoordinates
	}

	return d, nil
}

// RawFrom is the inverse of Raw.Parse.
func RawFrom(d Data) Raw {
	r := Raw{
		Date:     d.DateString(),
		Place:    d.Place,
		Timezone: d.Timezone,
	}
	if d.Time != nil {
		r.Time = d.TimeString()
	}
	if d.Coords != nil {
		lat, lon := d.Coords.Lat, d.Coords.Lon
		r.Latitude = &lat
		r.Longitude = &lon
	}
	return r
}
