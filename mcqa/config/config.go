package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	internal "github.com/ZanzyTHEbar/mcqa-data/mcqa"
	"github.com/ZanzyTHEbar/mcqa-data/mcqa/cache"
	"github.com/ZanzyTHEbar/mcqa-data/mcqa/features"
	"github.com/ZanzyTHEbar/mcqa-data/mcqa/tokenizer"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Data      DataConfig      `mapstructure:"data"`
	Tokenizer TokenizerConfig `mapstructure:"tokenizer"`
	Encoder   EncoderConfig   `mapstructure:"encoder"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

// DataConfig locates the corpus root.
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// TokenizerConfig selects and loads the pretrained tokenizer.
type TokenizerConfig struct {
	Kind       string `mapstructure:"kind"`
	Path       string `mapstructure:"path"`
	Truncation string `mapstructure:"truncation"`
}

// EncoderConfig stores padding and conversion settings.
type EncoderConfig struct {
	MaxLength           int   `mapstructure:"maxLength"`
	PadOnLeft           bool  `mapstructure:"padOnLeft"`
	PadToken            int64 `mapstructure:"padToken"`
	PadTokenSegmentID   int64 `mapstructure:"padTokenSegmentId"`
	MaskPaddingWithZero bool  `mapstructure:"maskPaddingWithZero"`
	Workers             int   `mapstructure:"workers"`
	ProgressEvery       int   `mapstructure:"progressEvery"`
}

// CacheConfig stores feature cache settings.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// Options converts the encoder section into encoder options.
func (c EncoderConfig) Options() features.Options {
	return features.Options{
		MaxLength:           c.MaxLength,
		PadOnLeft:           c.PadOnLeft,
		PadToken:            c.PadToken,
		PadTokenSegmentID:   c.PadTokenSegmentID,
		MaskPaddingWithZero: c.MaskPaddingWithZero,
		Workers:             c.Workers,
		ProgressEvery:       c.ProgressEvery,
	}
}

// Resolve builds the tokenizer settings for the given max length.
func (c TokenizerConfig) Resolve(maxLength int) (tokenizer.Config, error) {
	strategy, err := tokenizer.ParseTruncationStrategy(c.Truncation)
	if err != nil {
		return tokenizer.Config{}, err
	}
	return tokenizer.Config{
		Kind:       c.Kind,
		Path:       c.Path,
		MaxSeqLen:  maxLength,
		Truncation: strategy,
	}, nil
}

// CacheKey identifies the features this configuration produces for split.
// Workers and ProgressEvery do not change the output and are left out.
func (c *Config) CacheKey(split string) cache.Key {
	e := c.Encoder
	return cache.Key{
		Split:     split,
		MaxLength: e.MaxLength,
		Tokenizer: c.Tokenizer.Kind,
		Settings: cache.Fingerprint(
			c.Tokenizer.Path,
			c.Tokenizer.Truncation,
			strconv.FormatBool(e.PadOnLeft),
			strconv.FormatInt(e.PadToken, 10),
			strconv.FormatInt(e.PadTokenSegmentID, 10),
			strconv.FormatBool(e.MaskPaddingWithZero),
		),
	}
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	defaults := features.DefaultOptions()
	v.SetDefault("data.dir", internal.DefaultDataDir)
	v.SetDefault("tokenizer.kind", "wordpiece")
	v.SetDefault("tokenizer.path", "vocab.txt")
	v.SetDefault("tokenizer.truncation", string(tokenizer.LongestFirst))
	v.SetDefault("encoder.maxLength", defaults.MaxLength)
	v.SetDefault("encoder.padOnLeft", defaults.PadOnLeft)
	v.SetDefault("encoder.padToken", defaults.PadToken)
	v.SetDefault("encoder.padTokenSegmentId", defaults.PadTokenSegmentID)
	v.SetDefault("encoder.maskPaddingWithZero", defaults.MaskPaddingWithZero)
	v.SetDefault("encoder.workers", defaults.Workers)
	v.SetDefault("encoder.progressEvery", defaults.ProgressEvery)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.dsn", internal.DefaultCacheDBPath)

	// encoder.maxLength becomes MCQA_ENCODER_MAXLENGTH
	v.SetEnvPrefix(strings.ToUpper(internal.DefaultAppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if cfg.Encoder.MaxLength <= 0 {
		return nil, fmt.Errorf("encoder.maxLength must be positive, got %d", cfg.Encoder.MaxLength)
	}
	return &cfg, nil
}
