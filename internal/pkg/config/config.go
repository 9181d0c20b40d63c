package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Valkey      ValkeyConfig      `mapstructure:"valkey"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Overpass    OverpassConfig    `mapstructure:"overpass"`
	Discovery   DiscoveryConfig   `mapstructure:"discovery"`
	Geolocation GeolocationConfig `mapstructure:"geolocation"`
	Map         MapConfig         `mapstructure:"map"`
	Session     SessionConfig     `mapstructure:"session"`
	Ingest      IngestConfig      `mapstructure:"ingest"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type OverpassConfig struct {
	Endpoints      []string `mapstructure:"endpoints"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	UserAgent      string   `mapstructure:"user_agent"`
}

func (o OverpassConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

type DiscoveryConfig struct {
	Source           string  `mapstructure:"source"` // overpass | postgres
	RadiusKm         float64 `mapstructure:"radius_km"`
	RefreshDistanceM float64 `mapstructure:"refresh_distance_m"`
	CacheTTLSeconds  int     `mapstructure:"cache_ttl_seconds"`
	EmergencyPhone   string  `mapstructure:"emergency_phone"`
}

type GeolocationConfig struct {
	HighTimeoutSeconds int `mapstructure:"high_timeout_seconds"`
	HighMaxAgeSeconds  int `mapstructure:"high_max_age_seconds"`
	LowTimeoutSeconds  int `mapstructure:"low_timeout_seconds"`
	LowMaxAgeSeconds   int `mapstructure:"low_max_age_seconds"`
}

type MapConfig struct {
	FallbackLat  float64 `mapstructure:"fallback_lat"`
	FallbackLon  float64 `mapstructure:"fallback_lon"`
	WideZoom     int     `mapstructure:"wide_zoom"`
	CloseZoom    int     `mapstructure:"close_zoom"`
	RecenterZoom int     `mapstructure:"recenter_zoom"`
	SelectZoom   int     `mapstructure:"select_zoom"`
}

type SessionConfig struct {
	IdleTimeoutSeconds int `mapstructure:"idle_timeout_seconds"`
}

// IngestConfig is the bounding box the ingestor snapshots into PostGIS.
type IngestConfig struct {
	CenterLat float64 `mapstructure:"center_lat"`
	CenterLon float64 `mapstructure:"center_lon"`
	RadiusKm  float64 `mapstructure:"radius_km"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "safemap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "safemap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("overpass.endpoints", []string{
		"https://overpass-api.de/api/interpreter",
		"https://overpass.kumi.systems/api/interpreter",
	})
	v.SetDefault("overpass.timeout_seconds", 35) // query itself uses [timeout:25]
	v.SetDefault("overpass.user_agent", "SafeMap/1.0")
	v.SetDefault("discovery.source", "overpass")
	v.SetDefault("discovery.radius_km", 5.0)
	v.SetDefault("discovery.refresh_distance_m", 250.0)
	v.SetDefault("discovery.cache_ttl_seconds", 300)
	v.SetDefault("discovery.emergency_phone", "100")
	v.SetDefault("geolocation.high_timeout_seconds", 15)
	v.SetDefault("geolocation.high_max_age_seconds", 60)
	v.SetDefault("geolocation.low_timeout_seconds", 10)
	v.SetDefault("geolocation.low_max_age_seconds", 300)
	v.SetDefault("map.fallback_lat", 28.6139) // New Delhi
	v.SetDefault("map.fallback_lon", 77.2090)
	v.SetDefault("map.wide_zoom", 11)
	v.SetDefault("map.close_zoom", 15)
	v.SetDefault("map.recenter_zoom", 16)
	v.SetDefault("map.select_zoom", 17)
	v.SetDefault("session.idle_timeout_seconds", 1800)
	v.SetDefault("ingest.center_lat", 28.6139)
	v.SetDefault("ingest.center_lon", 77.2090)
	v.SetDefault("ingest.radius_km", 25.0)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: SAFEMAP_DISCOVERY_RADIUS_KM → discovery.radius_km
	v.SetEnvPrefix("SAFEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	switch c.Discovery.Source {
	case "overpass":
		if len(c.Overpass.Endpoints) == 0 {
			errs = append(errs, "overpass.endpoints must not be empty")
		}
	case "postgres":
		if !c.Database.Enabled {
			errs = append(errs, "discovery.source=postgres requires database.enabled")
		}
	default:
		errs = append(errs, fmt.Sprintf("discovery.source must be overpass or postgres, got %q", c.Discovery.Source))
	}
	if c.Discovery.RadiusKm <= 0 || c.Discovery.RadiusKm > 50 {
		errs = append(errs, fmt.Sprintf("discovery.radius_km must be in (0,50], got %g", c.Discovery.RadiusKm))
	}
	if c.Discovery.RefreshDistanceM < 0 {
		errs = append(errs, "discovery.refresh_distance_m must not be negative")
	}
	if c.Discovery.EmergencyPhone == "" {
		errs = append(errs, "discovery.emergency_phone is required")
	}
	if c.Geolocation.HighTimeoutSeconds <= 0 || c.Geolocation.LowTimeoutSeconds <= 0 {
		errs = append(errs, "geolocation timeouts must be positive")
	}
	if c.Map.FallbackLat < -90 || c.Map.FallbackLat > 90 || c.Map.FallbackLon < -180 || c.Map.FallbackLon > 180 {
		errs = append(errs, "map.fallback_lat/lon out of range")
	}
	if c.Session.IdleTimeoutSeconds <= 0 {
		errs = append(errs, "session.idle_timeout_seconds must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
