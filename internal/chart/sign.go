package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/mombiemala/nefeli-web-sub000/internal/timeutil"
)

// Sign is one of the twelve 30° zodiac slices, starting at 0° Aries.
type Sign int

const (
	Aries Sign = iota
	Taurus
	Gemini
	Cancer
	Leo
	Virgo
	Libra
	Scorpio
	Sagittarius
	Capricorn
	Aquarius
	Pisces
)

// SignWidth is the ecliptic width of every sign, in degrees.
const SignWidth = 30.0

var signNames = [12]string{
	"Aries", "Taurus", "Gemini", "Cancer", "Leo", "Virgo",
	"Libra", "Scorpio", "Sagittarius", "Capricorn", "Aquarius", "Pisces",
}

func (s Sign) String() string {
	if s < Aries || s > Pisces {
		return fmt.Sprintf("Sign(%d)", int(s))
	}
	return signNames[s]
}

func (s Sign) MarshalText() ([]byte, error) {
	if s < Aries || s > Pisces {
		return nil, fmt.Errorf("invalid sign %d", int(s))
	}
	return []byte(signNames[s]), nil
}

func (s *Sign) UnmarshalText(b []byte) error {
	parsed, err := ParseSign(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSign looks a sign up by name, case-insensitively.
func ParseSign(name string) (Sign, error) {
	trimmed := strings.TrimSpace(name)
	for i, n := range signNames {
		if strings.EqualFold(n, trimmed) {
			return Sign(i), nil
		}
	}
	return 0, fmt.Errorf("unknown sign %q", name)
}

// Normalize folds any longitude into [0, 360). It is idempotent.
func Normalize(lon float64) float64 {
	return timeutil.Normalize360(lon)
}

// SignFor maps a longitude to its sign and the degree within that sign,
// in [0, 30). The longitude is normalized first.
func SignFor(lon float64) (Sign, float64) {
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return Aries, 0
	}

	l := Normalize(lon)
	idx := int(math.Floor(l / SignWidth))
	deg := math.Mod(l, SignWidth)

	if deg >= SignWidth {
		deg = 0
		idx++
	}
	if deg < 0 {
		deg = 0
	}
	return Sign(idx % 12), deg
}

// Placement is a body or angle expressed as sign + degree.
type Placement struct {
	Sign      Sign    `json:"sign"`
	Degree    float64 `json:"degree"`
	Longitude float64 `json:"longitude"`
}

// PlacementFor converts an ecliptic longitude into a Placement.
func PlacementFor(lon float64) Placement {
	sign, deg := SignFor(lon)
	return Placement{
		Sign:      sign,
		Degree:    deg,
		Longitude: Normalize(lon),
	}
}

// String renders the placement as e.g. "Gemini 24°07'".
func (p Placement) String() string {
	whole := math.Floor(p.Degree)
	minutes := int(math.Floor((p.Degree - whole) * 60))
	return fmt.Sprintf("%s %02d°%02d'", p.Sign, int(whole), minutes)
}
