package internal

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	DefaultAppName        = "mcqa"
	DefaultAppCMDShortCut = "mcqa"

	// DefaultConfigPath holds config.yaml and the feature cache.
	DefaultConfigPath  = configDir(DefaultAppName)
	DefaultCacheDBPath = filepath.Join(DefaultConfigPath, "cache", "features.db")

	DefaultDataDir = "."

	// huggingface-transformers v2.2 conversion defaults
	DefaultMaxLength     = 512
	DefaultProgressEvery = 2000
)

// configDir resolves the per-user config directory for app, falling back to
// a dot directory in the working directory when no user dir is known.
func configDir(app string) string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, app)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "."+app)
	}
	return "." + app
}

// GetLogger returns the stderr logger used by the CLI. MCQA_LOG_LEVEL
// (debug, info, warn, ...) overrides the info default.
func GetLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if raw := os.Getenv("MCQA_LOG_LEVEL"); raw != "" {
		if l, err := zerolog.ParseLevel(raw); err == nil {
			level = l
		}
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
