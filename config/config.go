package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Scoped lifestyle names accepted by INJECTOR_SCOPED_LIFESTYLE.
const (
	ScopedLifestyleContext      = "context"
	ScopedLifestyleRootFallback = "root-fallback"
)

// Config configures a container from the environment.
type Config struct {
	// CompileOnBuild compiles every registration when the container is built.
	CompileOnBuild bool
	// ScopedLifestyle names the default scoped lifestyle.
	ScopedLifestyle string
	Log             LogConfig
}

type LogConfig struct {
	Level       string // debug | info | warn | error
	Development bool
}

// Load reads the env files (.env when none is given) that exist and populates a
// Config from environment variables. Variables already set win over the files.
func Load(envFiles ...string) (*Config, error) {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// missing env files are optional
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "config: load %s", f)
		}
	}

	return &Config{
		CompileOnBuild:  envBool("INJECTOR_COMPILE_ON_BUILD", false),
		ScopedLifestyle: strings.ToLower(env("INJECTOR_SCOPED_LIFESTYLE", ScopedLifestyleContext)),
		Log: LogConfig{
			Level:       strings.ToLower(env("INJECTOR_LOG_LEVEL", "info")),
			Development: envBool("INJECTOR_LOG_DEVELOPMENT", false),
		},
	}, nil
}

// Validate checks the values that Load cannot default silently.
func (c *Config) Validate() error {
	switch c.ScopedLifestyle {
	case ScopedLifestyleContext, ScopedLifestyleRootFallback:
	default:
		return errors.Errorf("config: unknown scoped lifestyle %q", c.ScopedLifestyle)
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "config: log level")
	}
	return nil
}

// NewLogger builds the zap logger described by lc.
func NewLogger(lc LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, errors.Wrap(err, "config: log level")
	}

	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "config: build logger")
	}
	return logger, nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
