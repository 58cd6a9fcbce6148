// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. CLI flags override these
// values per run.
type Config struct {
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ProviderConfig selects the geocoding backend.
type ProviderConfig struct {
	Name     string `yaml:"name" mapstructure:"name"`
	APIKey   string `yaml:"api_key" mapstructure:"api_key"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// BatchConfig configures the batch engine defaults.
type BatchConfig struct {
	ChunkSize int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
	Encoding  string `yaml:"encoding" mapstructure:"encoding"`
	CachePath string `yaml:"cache_path" mapstructure:"cache_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml (optional) and the environment
// (OWLDOOR_ prefix, e.g. OWLDOOR_PROVIDER_API_KEY).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("OWLDOOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("provider.name", "nominatim")
	v.SetDefault("batch.chunk_size", 1000)
	v.SetDefault("batch.delimiter", ",")
	v.SetDefault("batch.encoding", "utf8")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
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
