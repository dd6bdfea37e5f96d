package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Chart     ChartConfig     `mapstructure:"chart"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Refresher RefresherConfig `mapstructure:"refresher"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Log       LogConfig       `mapstructure:"log"`
}

type APIConfig struct {
	Port        int           `mapstructure:"port"`
	Enabled     bool          `mapstructure:"enabled"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

type ChartConfig struct {
	Ephemeris string `mapstructure:"ephemeris"`
	Ascendant string `mapstructure:"ascendant"`
}

type GeocoderConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Provider string `mapstructure:"provider"`
	APIKey   string `mapstructure:"api_key"`
	Language string `mapstructure:"language"`
	BaseURL  string `mapstructure:"base_url"`
}

type RefresherConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads the config file (explicit path, or config.yaml in . and
// /etc/nefeli) and applies NEFELI_* environment overrides, e.g.
// NEFELI_DATABASE_DRIVER=postgres.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/nefeli")
	}

	v.SetEnvPrefix("nefeli")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8045)
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./nefeli.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("chart.ephemeris", "meeus")
	v.SetDefault("chart.ascendant", "compat")
	v.SetDefault("geocoder.enabled", true)
	v.SetDefault("geocoder.provider", "openmeteo")
	v.SetDefault("geocoder.api_key", "")
	v.SetDefault("geocoder.language", "en")
	v.SetDefault("geocoder.base_url", "")
	v.SetDefault("refresher.enabled", true)
	v.SetDefault("refresher.interval", "10m")
	v.SetDefault("refresher.batch_size", 50)
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic_prefix", "nefeli")
	v.SetDefault("mqtt.client_id", "nefeli")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Validate catches values that would only fail later at startup.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}

	if c.Refresher.Enabled && c.Refresher.Interval <= 0 {
		return fmt.Errorf("refresher.interval must be positive")
	}
	if c.Refresher.BatchSize <= 0 {
		c.Refresher.BatchSize = 50
	}
	return nil
}
