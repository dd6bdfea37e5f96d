package ephemeris

import (
	"math"
	"time"

	"github.com/mombiemala/nefeli-web-sub000/internal/timeutil"
)

// Meeus evaluates the series from "Astronomical Algorithms": the solar
// equation of the centre of chapter 25 (about 0.01°) and the 60-term
// lunar longitude series of chapter 47 (about 10").
//
// Instants are fed in as UT; ΔT is not applied.
type Meeus struct{}

func (Meeus) Name() string { return NameMeeus }

// SunLongitude returns the Sun's true geometric longitude referred to the
// mean equinox of date.
func (Meeus) SunLongitude(t time.Time) (float64, error) {
	c := timeutil.JulianCenturies(t)

	l0 := 280.46646 + 36000.76983*c + 0.0003032*c*c
	m := timeutil.Deg2Rad(357.52911 + 35999.05029*c - 0.0001537*c*c)

	center := (1.914602-0.004817*c-0.000014*c*c)*math.Sin(m) +
		(0.019993-0.000101*c)*math.Sin(2*m) +
		0.000289*math.Sin(3*m)

	return finiteLongitude("sun", l0+center)
}

// lunarTerm is one row of the periodic longitude series: multiples of
// D, M, M', F and the coefficient in 1e-6 degrees.
type lunarTerm struct {
	d, m, mp, f int8
	coeff       float64
}

var lunarLongitudeTerms = [...]lunarTerm{
	{0, 0, 1, 0, 6288774},
	{2, 0, -1, 0, 1274027},
	{2, 0, 0, 0, 658314},
	{0, 0, 2, 0, 213618},
	{0, 1, 0, 0, -185116},
	{0, 0, 0, 2, -114332},
	{2, 0, -2, 0, 58793},
	{2, -1, -1, 0, 57066},
	{2, 0, 1, 0, 53322},
	{2, -1, 0, 0, 45758},
	{0, 1, -1, 0, -40923},
	{1, 0, 0, 0, -34720},
	{0, 1, 1, 0, -30383},
	{2, 0, 0, -2, 15327},
	{0, 0, 1, 2, -12528},
	{0, 0, 1, -2, 10980},
	{4, 0, -1, 0, 10675},
	{0, 0, 3, 0, 10034},
	{4, 0, -2, 0, 8548},
	{2, 1, -1, 0, -7888},
	{2, 1, 0, 0, -6766},
	{1, 0, -1, 0, -5163},
	{1, 1, 0, 0, 4987},
	{2, -1, 1, 0, 4036},
	{2, 0, 2, 0, 3994},
	{4, 0, 0, 0, 3861},
	{2, 0, -3, 0, 3665},
	{0, 1, -2, 0, -2689},
	{2, 0, -1, 2, -2602},
	{2, -1, -2, 0, 2390},
	{1, 0, 1, 0, -2348},
	{2, -2, 0, 0, 2236},
	{0, 1, 2, 0, -2120},
	{0, 2, 0, 0, -2069},
	{2, -2, -1, 0, 2048},
	{2, 0, 1, -2, -1773},
	{2, 0, 0, 2, -1595},
	{4, -1, -1, 0, 1215},
	{0, 0, 2, 2, -1110},
	{3, 0, -1, 0, -892},
	{2, 1, 1, 0, -810},
	{4, -1, -2, 0, 759},
	{0, 2, -1, 0, -713},
	{2, 2, -1, 0, -700},
	{2, 1, -2, 0, 691},
	{2, -1, 0, -2, 596},
	{4, 0, 1, 0, 549},
	{0, 0, 4, 0, 537},
	{4, -1, 0, 0, 520},
	{1, 0, -2, 0, -487},
	{2, 1, 0, -2, -399},
	{0, 0, 2, -2, -381},
	{1, 1, 1, 0, 351},
	{3, 0, -2, 0, -340},
	{4, 0, -3, 0, 330},
	{2, -1, 2, 0, 327},
	{0, 2, 1, 0, -323},
	{1, 1, -1, 0, 299},
	{2, 0, 3, 0, 294},
}

// MoonLongitude returns the Moon's geocentric longitude referred to the
// mean equinox of date.
func (Meeus) MoonLongitude(t time.Time) (float64, error) {
	c := timeutil.JulianCenturies(t)
	c2, c3, c4 := c*c, c*c*c, c*c*c*c

	lp := 218.3164477 + 481267.88123421*c - 0.0015786*c2 + c3/538841 - c4/65194000
	d := 297.8501921 + 445267.1114034*c - 0.0018819*c2 + c3/545868 - c4/113065000
	m := 357.5291092 + 35999.0502909*c - 0.0001536*c2 + c3/24490000
	mp := 134.9633964 + 477198.8675055*c + 0.0087414*c2 + c3/69699 - c4/14712000
	f := 93.2720950 + 483202.0175233*c - 0.0036539*c2 - c3/3526000 + c4/863310000

	a1 := 119.75 + 131.849*c
	a2 := 53.09 + 479264.290*c

	// Eccentricity of the Earth's orbit scales terms containing M.
	e := 1 - 0.002516*c - 0.0000074*c2

	dr, mr := timeutil.Deg2Rad(d), timeutil.Deg2Rad(m)
	mpr, fr := timeutil.Deg2Rad(mp), timeutil.Deg2Rad(f)

	var sum float64
	for _, term := range lunarLongitudeTerms {
		arg := float64(term.d)*dr + float64(term.m)*mr + float64(term.mp)*mpr + float64(term.f)*fr
		coeff := term.coeff
		switch term.m {
		case 1, -1:
			coeff *= e
		case 2, -2:
			coeff *= e * e
		}
		sum += coeff * math.Sin(arg)
	}

	sum += 3958*math.Sin(timeutil.Deg2Rad(a1)) +
		1962*math.Sin(timeutil.Deg2Rad(lp-f)) +
		318*math.Sin(timeutil.Deg2Rad(a2))

	return finiteLongitude("moon", lp+sum/1e6)
}
