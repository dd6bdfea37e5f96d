package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mombiemala/nefeli-web-sub000/internal/chart"
	"github.com/mombiemala/nefeli-web-sub000/internal/geocode"
	"github.com/mombiemala/nefeli-web-sub000/internal/logging"
	"github.com/mombiemala/nefeli-web-sub000/internal/refresher"
	"github.com/mombiemala/nefeli-web-sub000/internal/storage"
)

// ProfileClearer drops published state of a deleted profile.
type ProfileClearer interface {
	ClearProfile(profileID string)
}

type Server struct {
	router      *gin.Engine
	server      *http.Server
	port        int
	readTimeout time.Duration

	db        *storage.Database
	engine    *chart.Engine
	charts    *refresher.Refresher
	geocoder  geocode.Provider
	publisher ProfileClearer
	logger    *zap.Logger
}

type ServerConfig struct {
	Port        int
	ReadTimeout time.Duration
	Database    *storage.Database
	Engine      *chart.Engine
	Refresher   *refresher.Refresher
	Geocoder    geocode.Provider // nil disables geocoding
	Publisher   ProfileClearer   // optional
	Logger      *zap.Logger
}

func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinMiddleware(logger))

	s := &Server{
		router:      router,
		port:        cfg.Port,
		readTimeout: cfg.ReadTimeout,
		db:          cfg.Database,
		engine:      cfg.Engine,
		charts:      cfg.Refresher,
		geocoder:    cfg.Geocoder,
		publisher:   cfg.Publisher,
		logger:      logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	api := s.router.Group("/api/v1")
	{
		api.POST("/charts", s.computeChartHandler)
		api.GET("/timezone", s.timezoneHandler)
		api.GET("/geocode", s.geocodeHandler)
		api.GET("/stats/signs", s.signStatsHandler)

		api.POST("/profiles", s.createProfileHandler)
		api.GET("/profiles", s.listProfilesHandler)
		api.GET("/profiles/:id", s.getProfileHandler)
		api.PUT("/profiles/:id", s.updateProfileHandler)
		api.DELETE("/profiles/:id", s.deleteProfileHandler)
		api.GET("/profiles/:id/chart", s.profileChartHandler)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.port),
		Handler:     s.router,
		ReadTimeout: s.readTimeout,
	}

	s.logger.Info("API server starting", zap.Int("port", s.port))
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) healthHandler(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"engine":    s.engine.Version(),
		"geocoding": s.geocoder != nil,
		"timestamp": time.Now(),
	}
	if s.charts != nil {
		body["refresher_running"] = s.charts.IsRunning()
		body["refresher"] = s.charts.Status()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) signStatsHandler(c *gin.Context) {
	counts, err := s.db.CountBySign(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sun_signs": counts})
}
