package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mombiemala/nefeli-web-sub000/internal/birth"
	"github.com/mombiemala/nefeli-web-sub000/internal/chart"
	"github.com/mombiemala/nefeli-web-sub000/internal/geocode"
)

const geocodeTimeout = 12 * time.Second

type chartRequest struct {
	birth.Raw
	RequireAngles bool `json:"require_angles"`
}

// placeResult records what geocoding contributed to a birth record.
type placeResult struct {
	location *geocode.Location
	zone     bool // the timezone came from the geocoder
}

// resolvePlace fills in coordinates (and the zone, when known) for a place
// given without coordinates. It is a no-op when geocoding is disabled.
func (s *Server) resolvePlace(ctx context.Context, raw *birth.Raw) (*placeResult, error) {
	if s.geocoder == nil || strings.TrimSpace(raw.Place) == "" || raw.Latitude != nil || raw.Longitude != nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()

	loc, err := s.geocoder.Lookup(ctx, raw.Place)
	if err != nil {
		return nil, &geocoderError{err: err}
	}

	lat, lon := loc.Latitude, loc.Longitude
	raw.Latitude = &lat
	raw.Longitude = &lon

	res := &placeResult{location: loc}
	if strings.TrimSpace(raw.Timezone) == "" && loc.Timezone != "" {
		raw.Timezone = loc.Timezone
		res.zone = true
	}

	s.logger.Debug("geocoded place",
		zap.String("place", raw.Place),
		zap.String("match", loc.Label()),
		zap.String("timezone", loc.Timezone))
	return res, nil
}

func (s *Server) computeChartHandler(c *gin.Context) {
	var req chartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}

	place, err := s.resolvePlace(c.Request.Context(), &req.Raw)
	if err != nil {
		s.fail(c, err)
		return
	}

	bd, err := req.Parse()
	if err != nil {
		s.fail(c, err)
		return
	}
	if place != nil && place.zone {
		bd.TimezoneSource = birth.ZoneGeocoded
	}

	var opts []chart.Option
	if req.RequireAngles {
		opts = append(opts, chart.WithRequireAngles())
	}

	result, err := s.engine.Compute(bd, opts...)
	if err != nil {
		s.fail(c, err)
		return
	}

	body := gin.H{
		"chart":   result,
		"summary": result.Summary(),
		"engine":  s.engine.Version(),
	}
	if place != nil {
		body["geocoded"] = place.location
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) timezoneHandler(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		badRequest(c, "invalid_latitude", "query parameter 'lat' must be a number")
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		badRequest(c, "invalid_longitude", "query parameter 'lng' must be a number")
		return
	}

	if err := chart.ValidateCoordinates(birth.Coordinates{Lat: lat, Lon: lng}); err != nil {
		s.fail(c, err)
		return
	}

	zone, err := s.engine.Resolver().ZoneFor(lat, lng)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"timezone":  zone,
		"latitude":  lat,
		"longitude": lng,
	})
}

func (s *Server) geocodeHandler(c *gin.Context) {
	if s.geocoder == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "geocoding is disabled",
			"code":  "geocoder_disabled",
		})
		return
	}

	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		badRequest(c, "missing_query", "query parameter 'q' is required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), geocodeTimeout)
	defer cancel()

	loc, err := s.geocoder.Lookup(ctx, q)
	if err != nil {
		s.fail(c, &geocoderError{err: err})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"location": loc,
		"label":    loc.Label(),
	})
}
