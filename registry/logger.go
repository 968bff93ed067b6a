package registry

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/plugin-tracker/handle"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the registry package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the registry package's logger.
// This must be called before any registry operations.
func SetLogger(l *zap.Logger) {
	logger = l
}

func zapInstance(h handle.Instance) zap.Field {
	return zap.Uint32("instance", uint32(h))
}

func zapModule(h handle.Module) zap.Field {
	return zap.Uint32("module", uint32(h))
}
