package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mombiemala/nefeli-web-sub000/config"
	"github.com/mombiemala/nefeli-web-sub000/internal/api"
	"github.com/mombiemala/nefeli-web-sub000/internal/birth"
	"github.com/mombiemala/nefeli-web-sub000/internal/chart"
	"github.com/mombiemala/nefeli-web-sub000/internal/ephemeris"
	"github.com/mombiemala/nefeli-web-sub000/internal/geocode"
	"github.com/mombiemala/nefeli-web-sub000/internal/logging"
	"github.com/mombiemala/nefeli-web-sub000/internal/mqtt"
	"github.com/mombiemala/nefeli-web-sub000/internal/refresher"
	"github.com/mombiemala/nefeli-web-sub000/internal/storage"
)

const geocodeCacheTTL = 24 * time.Hour

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nefeli",
		Short: "Birth chart service",
		Long:  "Computes Sun, Moon, Rising and Midheaven placements and serves them over HTTP and MQTT",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(chartCmd())
	rootCmd.AddCommand(timezoneCmd())
	rootCmd.AddCommand(geocodeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Log, verbose)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newEngine(cfg config.ChartConfig, resolver *birth.Resolver) (*chart.Engine, error) {
	provider, err := ephemeris.New(cfg.Ephemeris)
	if err != nil {
		return nil, err
	}
	method, err := chart.ParseAscendantMethod(cfg.Ascendant)
	if err != nil {
		return nil, err
	}
	return chart.NewEngine(chart.EngineConfig{
		Ephemeris: provider,
		Resolver:  resolver,
		Ascendant: method,
	}), nil
}

func newGeocoder(cfg config.GeocoderConfig) (geocode.Provider, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	provider, err := geocode.New(geocode.Options{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey,
		Language: cfg.Language,
		BaseURL:  cfg.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	return geocode.NewCached(provider, geocodeCacheTTL), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the chart service",
		Long:  "Start the API server, the chart refresher and the MQTT publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			resolver, err := birth.NewDefaultResolver()
			if err != nil {
				return err
			}
			engine, err := newEngine(cfg.Chart, resolver)
			if err != nil {
				return err
			}

			db, err := storage.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			logger.Info("database opened", zap.String("driver", cfg.Database.Driver))

			geocoder, err := newGeocoder(cfg.Geocoder)
			if err != nil {
				return err
			}

			publisher, err := mqtt.NewPublisher(mqtt.PublisherConfig{
				Broker:      cfg.MQTT.Broker,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				Enabled:     cfg.MQTT.Enabled,
			}, logger)
			if err != nil {
				logger.Warn("MQTT connection failed, publishing disabled", zap.Error(err))
				publisher, _ = mqtt.NewPublisher(mqtt.PublisherConfig{Enabled: false}, logger)
			}
			defer publisher.Close()

			ref := refresher.New(refresher.Config{
				Store:     db,
				Engine:    engine,
				Publisher: publisher,
				Interval:  cfg.Refresher.Interval,
				BatchSize: cfg.Refresher.BatchSize,
				Enabled:   cfg.Refresher.Enabled,
				Logger:    logger.Named("refresher"),
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go func() {
				if err := ref.Start(ctx); err != nil {
					logger.Error("refresher error", zap.Error(err))
				}
			}()

			var server *api.Server
			if cfg.API.Enabled {
				server = api.NewServer(api.ServerConfig{
					Port:        cfg.API.Port,
					ReadTimeout: cfg.API.ReadTimeout,
					Database:    db,
					Engine:      engine,
					Refresher:   ref,
					Geocoder:    geocoder,
					Publisher:   publisher,
					Logger:      logger.Named("api"),
				})

				go func() {
					if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("API server error", zap.Error(err))
					}
				}()
			}

			logger.Info("nefeli started", zap.String("engine", engine.Version()))

			<-ctx.Done()
			logger.Info("shutting down")

			if server != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(shutdownCtx); err != nil {
					logger.Warn("API shutdown", zap.Error(err))
				}
			}
			return nil
		},
	}
}

func chartCmd() *cobra.Command {
	var (
		raw           birth.Raw
		lat, lng      float64
		ephemerisName string
		output        string
		requireAngles bool
	)

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Compute a chart once and print it",
		Example: `  nefeli chart --date 1990-06-15 --time 14:30 --lat 40.7128 --lng -74.006
  nefeli chart --date 1990-06-15 --place "New York" --output yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if cmd.Flags().Changed("lat") {
				raw.Latitude = &lat
			}
			if cmd.Flags().Changed("lng") {
				raw.Longitude = &lng
			}
			if ephemerisName != "" {
				cfg.Chart.Ephemeris = ephemerisName
			}

			resolver, err := birth.NewDefaultResolver()
			if err != nil {
				return err
			}
			engine, err := newEngine(cfg.Chart, resolver)
			if err != nil {
				return err
			}

			geocodedZone := false
			if raw.Place != "" && raw.Latitude == nil && raw.Longitude == nil {
				geocoder, err := newGeocoder(cfg.Geocoder)
				if err != nil {
					return err
				}
				if geocoder == nil {
					return fmt.Errorf("--place needs geocoding enabled, or pass --lat and --lng")
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
				loc, err := geocoder.Lookup(ctx, raw.Place)
				cancel()
				if err != nil {
					return err
				}
				logger.Debug("geocoded place", zap.String("match", loc.Label()))
				raw.Latitude, raw.Longitude = &loc.Latitude, &loc.Longitude
				if raw.Timezone == "" && loc.Timezone != "" {
					raw.Timezone = loc.Timezone
					geocodedZone = true
				}
			}

			bd, err := raw.Parse()
			if err != nil {
				return err
			}
			if geocodedZone {
				bd.TimezoneSource = birth.ZoneGeocoded
			}

			var opts []chart.Option
			if requireAngles {
				opts = append(opts, chart.WithRequireAngles())
			}
			result, err := engine.Compute(bd, opts...)
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), result, output)
		},
	}

	cmd.Flags().StringVar(&raw.Date, "date", "", "birth date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&raw.Time, "time", "", "local birth time (HH:MM[:SS])")
	cmd.Flags().StringVar(&raw.Place, "place", "", "birth place, geocoded when no coordinates are given")
	cmd.Flags().StringVar(&raw.Timezone, "tz", "", "IANA timezone (derived from coordinates when empty)")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in decimal degrees, north positive")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude in decimal degrees, east positive")
	cmd.Flags().StringVar(&ephemerisName, "ephemeris", "", "ephemeris model (meeus or approx)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	cmd.Flags().BoolVar(&requireAngles, "require-angles", false, "fail unless rising and midheaven can be computed")
	_ = cmd.MarkFlagRequired("date")

	return cmd
}

func timezoneCmd() *cobra.Command {
	var lat, lng float64

	cmd := &cobra.Command{
		Use:   "timezone",
		Short: "Print the IANA timezone at a coordinate",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := chart.ValidateCoordinates(birth.Coordinates{Lat: lat, Lon: lng}); err != nil {
				return err
			}
			resolver, err := birth.NewDefaultResolver()
			if err != nil {
				return err
			}
			zone, err := resolver.ZoneFor(lat, lng)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), zone)
			return nil
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in decimal degrees")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude in decimal degrees")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")

	return cmd
}

func geocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode <place>",
		Short: "Look up the coordinates of a place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			cfg.Geocoder.Enabled = true

			geocoder, err := newGeocoder(cfg.Geocoder)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			return lookupPlace(ctx, cmd.OutOrStdout(), geocoder, logger.With(zap.String("provider", cfg.Geocoder.Provider)), args[0])
		},
	}
}

func lookupPlace(ctx context.Context, w io.Writer, geocoder geocode.Provider, logger *zap.Logger, place string) error {
	logger.Debug("geocoding place", zap.String("place", place))
	start := time.Now()
	loc, err := geocoder.Lookup(ctx, place)
	if err != nil {
		logger.Debug("geocoding failed", zap.String("place", place), zap.Error(err))
		return err
	}
	logger.Debug("geocoded place",
		zap.String("match", loc.Label()),
		zap.String("timezone", loc.Timezone),
		zap.Duration("took", time.Since(start)))
	return writeJSON(w, loc)
}
