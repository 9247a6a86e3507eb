package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/dining-hotspots/internal/geo"
	"github.com/sells-group/dining-hotspots/internal/model"
	"github.com/sells-group/dining-hotspots/internal/pipeline"
	"github.com/sells-group/dining-hotspots/internal/source"
	"github.com/sells-group/dining-hotspots/internal/weighting"
	"github.com/sells-group/dining-hotspots/internal/zone"
)

// Config holds the full application configuration.
type Config struct {
	Log         LogConfig       `yaml:"log" mapstructure:"log"`
	Store       StoreConfig     `yaml:"store" mapstructure:"store"`
	Server      ServerConfig    `yaml:"server" mapstructure:"server"`
	Region      RegionConfig    `yaml:"region" mapstructure:"region"`
	Source      SourceConfig    `yaml:"source" mapstructure:"source"`
	Restaurants ClusterConfig   `yaml:"restaurants" mapstructure:"restaurants"`
	Dropoffs    DropoffConfig   `yaml:"dropoffs" mapstructure:"dropoffs"`
	Weighting   WeightingConfig `yaml:"weighting" mapstructure:"weighting"`
	Output      OutputConfig    `yaml:"output" mapstructure:"output"`
	// Workers bounds CPU parallelism; 0 uses GOMAXPROCS.
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// SourceConfig configures input decoding.
type SourceConfig struct {
	// Charset is the text encoding of CSV input, e.g. "windows-1252".
	// Empty means UTF-8.
	Charset string `yaml:"charset" mapstructure:"charset"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RegionConfig is the city bounding box. Points outside it are dropped
// before clustering.
type RegionConfig struct {
	MinLng float64 `yaml:"min_lng" mapstructure:"min_lng"`
	MinLat float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLng float64 `yaml:"max_lng" mapstructure:"max_lng"`
	MaxLat float64 `yaml:"max_lat" mapstructure:"max_lat"`
}

// ClusterConfig holds the clustering and buffer tunables of one collection.
type ClusterConfig struct {
	MinClusterSize int     `yaml:"min_cluster_size" mapstructure:"min_cluster_size"`
	MinSamples     int     `yaml:"min_samples" mapstructure:"min_samples"`
	EpsilonMeters  float64 `yaml:"epsilon_meters" mapstructure:"epsilon_meters"`
	BufferMeters   float64 `yaml:"buffer_meters" mapstructure:"buffer_meters"`
}

// DropoffConfig adds sampling and weighting to the drop-off clustering.
type DropoffConfig struct {
	ClusterConfig  `yaml:",inline" mapstructure:",squash"`
	SampleFraction float64 `yaml:"sample_fraction" mapstructure:"sample_fraction"`
	Seed           uint64  `yaml:"seed" mapstructure:"seed"`
	Scale          int     `yaml:"scale" mapstructure:"scale"`
}

// WeightingConfig is the time-of-day weight table.
type WeightingConfig struct {
	Windows []WindowConfig `yaml:"windows" mapstructure:"windows"`
}

// WindowConfig is one weight window with "HH:MM" clock bounds.
type WindowConfig struct {
	Day    string  `yaml:"day" mapstructure:"day"`
	Start  string  `yaml:"start" mapstructure:"start"`
	End    string  `yaml:"end" mapstructure:"end"`
	Weight float64 `yaml:"weight" mapstructure:"weight"`
}

// OutputConfig configures where run artifacts are written.
type OutputConfig struct {
	Dir  string `yaml:"dir" mapstructure:"dir"`
	TopK int    `yaml:"top_k" mapstructure:"top_k"`
}

// Load reads configuration from ./config.yaml, if present, and the
// environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from the given YAML file and the
// environment. An empty path falls back to an optional ./config.yaml; an
// explicit path must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("HOTSPOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "hotspots.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("region.min_lng", -74.3)
	v.SetDefault("region.min_lat", 40.4)
	v.SetDefault("region.max_lng", -73.7)
	v.SetDefault("region.max_lat", 41.0)
	v.SetDefault("restaurants.min_cluster_size", 8)
	v.SetDefault("restaurants.min_samples", 4)
	v.SetDefault("restaurants.epsilon_meters", 100)
	v.SetDefault("restaurants.buffer_meters", 111)
	v.SetDefault("dropoffs.min_cluster_size", 10)
	v.SetDefault("dropoffs.min_samples", 5)
	v.SetDefault("dropoffs.epsilon_meters", 100)
	v.SetDefault("dropoffs.buffer_meters", 166)
	v.SetDefault("dropoffs.sample_fraction", 0.1)
	v.SetDefault("dropoffs.seed", 42)
	v.SetDefault("dropoffs.scale", 10)
	v.SetDefault("weighting.windows", defaultWindows())
	v.SetDefault("output.dir", "data/processed")
	v.SetDefault("output.top_k", 0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func defaultWindows() []map[string]any {
	table := weighting.DefaultTable()
	out := make([]map[string]any, 0, len(table))
	for _, w := range table {
		out = append(out, map[string]any{
			"day":    w.Day.String(),
			"start":  weighting.FormatClock(w.Start),
			"end":    weighting.FormatClock(w.End),
			"weight": w.Weight,
		})
	}
	return out
}

// Table parses the configured windows.
func (w WeightingConfig) Table() (weighting.Table, error) {
	table := make(weighting.Table, 0, len(w.Windows))
	for i, wc := range w.Windows {
		field := fmt.Sprintf("weighting.windows[%d]", i)
		day, err := weighting.ParseDayType(wc.Day)
		if err != nil {
			return nil, model.NewParameterError(field, "%v", err)
		}
		start, err := weighting.ParseClock(wc.Start)
		if err != nil {
			return nil, model.NewParameterError(field, "%v", err)
		}
		end, err := weighting.ParseClock(wc.End)
		if err != nil {
			return nil, model.NewParameterError(field, "%v", err)
		}
		table = append(table, weighting.Window{Day: day, Start: start, End: end, Weight: wc.Weight})
	}
	return table, table.Validate()
}

// BBox returns the region as a containment predicate.
func (r RegionConfig) BBox() geo.BBoxRegion {
	return geo.NewBBoxRegion(r.MinLng, r.MinLat, r.MaxLng, r.MaxLat)
}

func (c ClusterConfig) zoneParams(kind model.ZoneKind, region geo.Region) zone.Params {
	return zone.Params{
		Kind:           kind,
		MinClusterSize: c.MinClusterSize,
		MinSamples:     c.MinSamples,
		EpsilonMeters:  c.EpsilonMeters,
		BufferMeters:   c.BufferMeters,
		Region:         region,
	}
}

// PipelineParams converts the configuration into validated pipeline
// parameters. Restaurants count once each; drop-offs are sampled and
// weighted by the window table.
func (c *Config) PipelineParams() (pipeline.Params, error) {
	if c.Region.MinLng >= c.Region.MaxLng || c.Region.MinLat >= c.Region.MaxLat {
		return pipeline.Params{}, model.NewParameterError("region", "min corner must be below and left of max corner")
	}
	table, err := c.Weighting.Table()
	if err != nil {
		return pipeline.Params{}, err
	}

	region := c.Region.BBox()
	p := pipeline.Params{
		Dining:  c.Restaurants.zoneParams(model.KindDining, region),
		Arrival: c.Dropoffs.zoneParams(model.KindArrival, region),
		Workers: c.Workers,
	}
	p.Arrival.Weighting = &zone.WeightingParams{
		Table:          table,
		Classifier:     weighting.ClassifyWeekend,
		SampleFraction: c.Dropoffs.SampleFraction,
		Seed:           c.Dropoffs.Seed,
		Scale:          c.Dropoffs.Scale,
	}
	if err := p.Validate(); err != nil {
		return pipeline.Params{}, err
	}
	return p, nil
}

// Validate checks the settings a command mode depends on. Modes: "zones"
// and "run" need valid clustering tunables, "run", "runs" and "serve" need a
// store, "serve" needs a port. Bad values are reported as
// *model.ParameterError.
func (c *Config) Validate(mode string) error {
	switch mode {
	case "zones":
		return c.validateTunables()
	case "run":
		if err := c.validateStore(); err != nil {
			return err
		}
		return c.validateTunables()
	case "runs":
		return c.validateStore()
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return model.NewParameterError("server.port", "out of range: %d", c.Server.Port)
		}
		if c.Server.RateLimit < 0 {
			return model.NewParameterError("server.rate_limit", "must be >= 0, got %g", c.Server.RateLimit)
		}
		return c.validateStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return model.NewParameterError("store.driver", "unknown driver %q", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		return model.NewParameterError("store.database_url", "is required")
	}
	return nil
}

func (c *Config) validateTunables() error {
	if c.Output.TopK < 0 {
		return model.NewParameterError("output.top_k", "must be >= 0, got %d", c.Output.TopK)
	}
	if c.Workers < 0 {
		return model.NewParameterError("workers", "must be >= 0, got %d", c.Workers)
	}
	if err := source.ValidateCharset(c.Source.Charset); err != nil {
		return model.NewParameterError("source.charset", "%v", err)
	}
	_, err := c.PipelineParams()
	return err
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
