package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mombiemala/nefeli-web-sub000/internal/birth"
	"github.com/mombiemala/nefeli-web-sub000/internal/chart"
)

const (
	CoordsUser     = "user"
	CoordsGeocoded = "geocoded"
)

// Profile is a person's stored birth record.
type Profile struct {
	ID        string   `gorm:"primaryKey;size:36" json:"id"`
	Name      string   `json:"name"`
	BirthDate string   `gorm:"size:10;not null" json:"birth_date"`
	BirthTime *string  `gorm:"size:8" json:"birth_time"`
	Place     string   `json:"place,omitempty"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Timezone  string   `json:"timezone,omitempty"`

	// Where Timezone and the coordinates came from (user or geocoded).
	TimezoneSource string `gorm:"size:16" json:"timezone_source,omitempty"`
	CoordsSource   string `gorm:"size:16" json:"coords_source,omitempty"`

	// Fingerprint of the birth data, maintained by BeforeSave.
	Fingerprint string `gorm:"size:64;index" json:"-"`

	// Set when a background refresh fails; cleared by SaveChart and edits.
	RefreshFailedAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *Profile) BeforeSave(tx *gorm.DB) error {
	bd, err := p.BirthData()
	if err != nil {
		return err
	}
	p.Fingerprint = bd.Fingerprint()
	return nil
}

// BirthData converts the stored columns into the engine's input.
func (p *Profile) BirthData() (birth.Data, error) {
	raw := birth.Raw{
		Date:      p.BirthDate,
		Place:     p.Place,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Timezone:  p.Timezone,
	}
	if p.BirthTime != nil {
		raw.Time = *p.BirthTime
	}

	bd, err := raw.Parse()
	if err != nil {
		return birth.Data{}, err
	}
	if bd.Timezone != "" && p.TimezoneSource != "" {
		bd.TimezoneSource = birth.ZoneSource(p.TimezoneSource)
	}
	return bd, nil
}

// SetBirthData replaces every birth field from raw.
func (p *Profile) SetBirthData(raw birth.Raw) {
	p.BirthDate = raw.Date
	p.BirthTime = nil
	if raw.Time != "" {
		t := raw.Time
		p.BirthTime = &t
	}
	p.Place = raw.Place
	p.Latitude = raw.Latitude
	p.Longitude = raw.Longitude
	p.Timezone = raw.Timezone
	p.TimezoneSource = ""
	p.CoordsSource = ""
	if raw.Timezone != "" {
		p.TimezoneSource = string(birth.ZoneExplicit)
	}
	if raw.Latitude != nil {
		p.CoordsSource = CoordsUser
	}
}

// ChartRecord caches the computed chart of one profile.
type ChartRecord struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	ProfileID     string    `gorm:"size:36;uniqueIndex;not null" json:"profile_id"`
	Fingerprint   string    `gorm:"size:64;not null" json:"fingerprint"`
	EngineVersion string    `gorm:"size:64;index" json:"engine_version"`
	SunSign       string    `gorm:"size:16;index" json:"sun_sign"`
	MoonSign      string    `gorm:"size:16;index" json:"moon_sign"`
	RisingSign    *string   `gorm:"size:16" json:"rising_sign"`
	MidheavenSign *string   `gorm:"size:16" json:"midheaven_sign"`
	Precision     string    `gorm:"size:8" json:"precision"`
	Payload       string    `gorm:"type:text" json:"-"`
	ComputedAt    time.Time `gorm:"index" json:"computed_at"`
}

func NewChartRecord(profileID, fingerprint, engineVersion string, c *chart.Chart) (*ChartRecord, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}

	rec := &ChartRecord{
		ProfileID:     profileID,
		Fingerprint:   fingerprint,
		EngineVersion: engineVersion,
		SunSign:       c.Sun.Sign.String(),
		MoonSign:      c.Moon.Sign.String(),
		Precision:     string(c.Precision),
		Payload:       string(payload),
		ComputedAt:    time.Now().UTC(),
	}
	if c.Rising != nil {
		s := c.Rising.Sign.String()
		rec.RisingSign = &s
	}
	if c.Midheaven != nil {
		s := c.Midheaven.Sign.String()
		rec.MidheavenSign = &s
	}
	return rec, nil
}

// Chart decodes the stored payload.
func (r *ChartRecord) Chart() (*chart.Chart, error) {
	var c chart.Chart
	if err := json.Unmarshal([]byte(r.Payload), &c); err != nil {
		return nil, fmt.Errorf("decode chart for profile %s: %w", r.ProfileID, err)
	}
	return &c, nil
}

// Stale reports whether the record no longer matches the profile's birth
// data or the running engine.
func (r *ChartRecord) Stale(fingerprint, engineVersion string) bool {
	return r.Fingerprint != fingerprint || r.EngineVersion != engineVersion
}
