// Package birth turns a local birth date, clock time and place into one
// absolute instant.
package birth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

var (
	// ErrMissingBirthDate is returned when the one required field is absent.
	ErrMissingBirthDate = errors.New("birth date is required")

	// ErrInvalidBirthInstant is returned when date, time and zone do not
	// name exactly one instant (malformed input or a DST gap).
	ErrInvalidBirthInstant = errors.New("invalid birth instant")

	// ErrTimezoneResolution is returned when a zone was asked for but could
	// not be loaded or looked up.
	ErrTimezoneResolution = errors.New("timezone could not be resolved")

	// ErrIncompleteCoordinates is returned when only one of latitude and
	// longitude is supplied.
	ErrIncompleteCoordinates = errors.New("latitude and longitude must be given together")
)

// Coordinates is an observer location in WGS84 decimal degrees.
type Coordinates struct {
	Lat float64 `json:"latitude"`  // north positive
	Lon float64 `json:"longitude"` // east positive
}

// Data is the birth record a chart is computed from.
type Data struct {
	Date     civil.Date
	Time     *civil.Time // nil when the clock time is unknown
	Place    string
	Coords   *Coordinates
	Timezone string

	// TimezoneSource records where Timezone came from when it was not typed
	// in by the user (e.g. ZoneGeocoded). Empty means ZoneExplicit.
	TimezoneSource ZoneSource
}

// HasDate reports whether a calendar date was supplied.
func (d Data) HasDate() bool {
	return !d.Date.IsZero()
}

// DateString renders the date as YYYY-MM-DD.
func (d Data) DateString() string {
	if !d.HasDate() {
		return ""
	}
	return d.Date.String()
}

// TimeString renders the clock time as HH:MM:SS, or "" when unknown.
func (d Data) TimeString() string {
	if d.Time == nil {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:%02d", d.Time.Hour, d.Time.Minute, d.Time.Second)
}

// Fingerprint is a stable digest of every field that influences the chart.
// Place is a display label and is left out.
func (d Data) Fingerprint() string {
	var b strings.Builder
	b.WriteString(d.DateString())
	b.WriteByte('|')
	b.WriteString(d.TimeString())
	b.WriteByte('|')
	if d.Coords != nil {
		b.WriteString(decimal.NewFromFloat(d.Coords.Lat).StringFixed(6))
		b.WriteByte(',')
		b.WriteString(decimal.NewFromFloat(d.Coords.Lon).StringFixed(6))
	}
	b.WriteByte('|')
	b.WriteString(strings.TrimSpace(d.Timezone))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
