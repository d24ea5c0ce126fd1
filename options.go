package injector

import (
	"github.com/dozm/injector/config"
	"go.uber.org/zap"
)

// FromConfig returns an options configurator applying cfg. Unknown scoped lifestyle
// names and log levels keep the defaults; cfg.Validate reports them. A logger set
// before FromConfig runs is kept.
func FromConfig(cfg *config.Config) func(*Options) {
	return func(o *Options) {
		if cfg == nil {
			return
		}

		o.CompileOnBuild = cfg.CompileOnBuild

		switch cfg.ScopedLifestyle {
		case config.ScopedLifestyleContext:
			o.DefaultScopedLifestyle = ContextScopedLifestyle()
		case config.ScopedLifestyleRootFallback:
			o.DefaultScopedLifestyle = RootFallbackScopedLifestyle()
		}

		if o.Logger == nil && cfg.Log.Level != "" {
			if logger, err := config.NewLogger(cfg.Log); err == nil {
				o.Logger = logger
			}
		}
	}
}

// WithLogger returns an options configurator setting the container's logger.
func WithLogger(logger *zap.Logger) func(*Options) {
	return func(o *Options) {
		o.Logger = logger
	}
}
