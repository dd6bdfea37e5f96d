package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mombiemala/nefeli-web-sub000/internal/birth"
	"github.com/mombiemala/nefeli-web-sub000/internal/chart"
	"github.com/mombiemala/nefeli-web-sub000/internal/geocode"
	"github.com/mombiemala/nefeli-web-sub000/internal/storage"
)

// geocoderError marks failures of the upstream geocoding service.
type geocoderError struct {
	err error
}

func (e *geocoderError) Error() string { return "geocoding failed: " + e.err.Error() }
func (e *geocoderError) Unwrap() error { return e.err }

var errorCodes = []struct {
	target error
	status int
	code   string
}{
	{chart.ErrMissingBirthDate, http.StatusBadRequest, "missing_birth_date"},
	{chart.ErrMissingBirthTime, http.StatusBadRequest, "missing_birth_time"},
	{chart.ErrMissingCoordinates, http.StatusBadRequest, "missing_coordinates"},
	{birth.ErrIncompleteCoordinates, http.StatusBadRequest, "incomplete_coordinates"},
	{chart.ErrInvalidBirthInstant, http.StatusBadRequest, "invalid_birth_instant"},
	{chart.ErrInvalidLatitude, http.StatusBadRequest, "invalid_latitude"},
	{chart.ErrInvalidLongitude, http.StatusBadRequest, "invalid_longitude"},
	{chart.ErrTimezoneResolution, http.StatusUnprocessableEntity, "timezone_resolution_failed"},
	{geocode.ErrNotFound, http.StatusUnprocessableEntity, "place_not_found"},
	{storage.ErrNotFound, http.StatusNotFound, "not_found"},
}

// statusFor maps an error to its HTTP status and machine-readable code.
func statusFor(err error) (int, string) {
	for _, e := range errorCodes {
		if errors.Is(err, e.target) {
			return e.status, e.code
		}
	}
	var gerr *geocoderError
	if errors.As(err, &gerr) {
		return http.StatusBadGateway, "geocoder_failed"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	_ = c.Error(err)
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  code,
	})
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": message,
		"code":  code,
	})
}
