package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mombiemala/nefeli-web-sub000/internal/birth"
	"github.com/mombiemala/nefeli-web-sub000/internal/storage"
)

type profileRequest struct {
	Name string `json:"name"`
	birth.Raw
}

// applyProfileRequest validates req, geocodes its place if needed and
// writes the result onto p.
func (s *Server) applyProfileRequest(c *gin.Context, p *storage.Profile, req *profileRequest) error {
	raw := req.Raw
	place, err := s.resolvePlace(c.Request.Context(), &raw)
	if err != nil {
		return err
	}

	bd, err := raw.Parse()
	if err != nil {
		return err
	}
	if place != nil && place.zone {
		bd.TimezoneSource = birth.ZoneGeocoded
	}

	// Charting up front rejects data the engine cannot use (DST gaps,
	// unknown zones, polar latitudes) before anything is stored.
	if _, err := s.engine.Compute(bd); err != nil {
		return err
	}

	p.Name = strings.TrimSpace(req.Name)
	p.SetBirthData(raw)
	if place != nil {
		p.CoordsSource = storage.CoordsGeocoded
		if place.zone {
			p.TimezoneSource = string(birth.ZoneGeocoded)
		}
	}
	return nil
}

func (s *Server) createProfileHandler(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}

	p := &storage.Profile{}
	if err := s.applyProfileRequest(c, p, &req); err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := s.db.CreateProfile(ctx, p); err != nil {
		s.fail(c, err)
		return
	}

	body := gin.H{"profile": p}
	if s.charts != nil {
		if result, err := s.charts.Recompute(ctx, p); err != nil {
			s.logger.Warn("initial chart failed", zap.String("profile_id", p.ID), zap.Error(err))
		} else {
			body["chart"] = result
		}
	}
	c.JSON(http.StatusCreated, body)
}

func (s *Server) listProfilesHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	profiles, err := s.db.ListProfiles(c.Request.Context(), limit, offset)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"profiles": profiles,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) getProfileHandler(c *gin.Context) {
	p, err := s.db.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) updateProfileHandler(c *gin.Context) {
	ctx := c.Request.Context()

	p, err := s.db.GetProfile(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_body", err.Error())
		return
	}

	if err := s.applyProfileRequest(c, p, &req); err != nil {
		s.fail(c, err)
		return
	}

	if err := s.db.UpdateProfile(ctx, p); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) deleteProfileHandler(c *gin.Context) {
	id := c.Param("id")
	if err := s.db.DeleteProfile(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	if s.publisher != nil {
		s.publisher.ClearProfile(id)
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) profileChartHandler(c *gin.Context) {
	if s.charts == nil {
		s.fail(c, fmt.Errorf("chart cache is not configured"))
		return
	}

	id := c.Param("id")
	result, cached, err := s.charts.ChartFor(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile_id": id,
		"chart":      result,
		"summary":    result.Summary(),
		"cached":     cached,
	})
}
