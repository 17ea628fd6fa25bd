package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Learning  LearningConfig  `yaml:"learning" mapstructure:"learning"`
	Boundary  BoundaryConfig  `yaml:"boundary" mapstructure:"boundary"`
	Lookup    LookupConfig    `yaml:"lookup" mapstructure:"lookup"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Territory TerritoryConfig `yaml:"territory" mapstructure:"territory"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LearningConfig configures the boundary rule learner thresholds.
type LearningConfig struct {
	MinStreetAgreement float64 `yaml:"min_street_agreement" mapstructure:"min_street_agreement"`
	MinPrefixAgreement float64 `yaml:"min_prefix_agreement" mapstructure:"min_prefix_agreement"`
	MinPrefixSamples   int     `yaml:"min_prefix_samples" mapstructure:"min_prefix_samples"`
	MinRangeAgreement  float64 `yaml:"min_range_agreement" mapstructure:"min_range_agreement"`
}

// BoundaryConfig configures the per-ZIP boundary analyzer.
type BoundaryConfig struct {
	MinPoints      int     `yaml:"min_points" mapstructure:"min_points"`
	MeanGapDegrees float64 `yaml:"mean_gap_degrees" mapstructure:"mean_gap_degrees"`
	DominanceRatio float64 `yaml:"dominance_ratio" mapstructure:"dominance_ratio"`
	Workers        int     `yaml:"workers" mapstructure:"workers"`
	ValidateSample int     `yaml:"validate_sample" mapstructure:"validate_sample"`
}

// LookupConfig configures the runtime override lookup. PointsSnapshot is a
// geocoded observation snapshot loaded at startup to feed neighbor consensus;
// empty disables the consensus rung.
type LookupConfig struct {
	FuzzyDiscount    float64 `yaml:"fuzzy_discount" mapstructure:"fuzzy_discount"`
	MinSharedPrefix  int     `yaml:"min_shared_prefix" mapstructure:"min_shared_prefix"`
	NeighborRadiusMi float64 `yaml:"neighbor_radius_mi" mapstructure:"neighbor_radius_mi"`
	NeighborMinVotes int     `yaml:"neighbor_min_votes" mapstructure:"neighbor_min_votes"`
	NeighborMajority float64 `yaml:"neighbor_majority" mapstructure:"neighbor_majority"`
	PointsSnapshot   string  `yaml:"points_snapshot" mapstructure:"points_snapshot"`
}

// JinaConfig holds Jina AI Search settings for evidence verification.
type JinaConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	SearchBaseURL string  `yaml:"search_base_url" mapstructure:"search_base_url"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RPS           float64 `yaml:"rps" mapstructure:"rps"`
}

// AnthropicConfig holds Anthropic API settings for the disambiguator.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// NotionConfig holds the operator review-queue database IDs.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReviewDB string `yaml:"review_db" mapstructure:"review_db"`
}

// GeocodeConfig configures the Census geocoder used for coordinate backfill.
type GeocodeConfig struct {
	RPS float64 `yaml:"rps" mapstructure:"rps"`
}

// TerritoryConfig configures the service-territory shapefile lookup.
type TerritoryConfig struct {
	ShapefilePath string `yaml:"shapefile_path" mapstructure:"shapefile_path"`
	NameField     string `yaml:"name_field" mapstructure:"name_field"`
	StateField    string `yaml:"state_field" mapstructure:"state_field"`
}

// IngestConfig configures snapshot ingestion.
type IngestConfig struct {
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
	Workers int    `yaml:"workers" mapstructure:"workers"`
}

// ServerConfig configures the query server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("UTILITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "utility.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("learning.min_street_agreement", 0.70)
	v.SetDefault("learning.min_prefix_agreement", 0.80)
	v.SetDefault("learning.min_prefix_samples", 3)
	v.SetDefault("learning.min_range_agreement", 0.75)
	v.SetDefault("boundary.min_points", 4)
	v.SetDefault("boundary.mean_gap_degrees", 0.005)
	v.SetDefault("boundary.dominance_ratio", 2.0)
	v.SetDefault("boundary.workers", 8)
	v.SetDefault("boundary.validate_sample", 25)
	v.SetDefault("lookup.fuzzy_discount", 0.9)
	v.SetDefault("lookup.min_shared_prefix", 4)
	v.SetDefault("lookup.neighbor_radius_mi", 0.25)
	v.SetDefault("lookup.neighbor_min_votes", 3)
	v.SetDefault("lookup.neighbor_majority", 0.70)
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.timeout_secs", 15)
	v.SetDefault("jina.rps", 1)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("geocode.rps", 10)
	v.SetDefault("territory.name_field", "NAME")
	v.SetDefault("territory.state_field", "STATE")
	v.SetDefault("ingest.temp_dir", "/tmp/utility-cli")
	v.SetDefault("ingest.workers", 4)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
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
