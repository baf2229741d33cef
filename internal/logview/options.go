package logview

import "log/slog"

type controllerConfig struct {
	logger *slog.Logger
}

// ControllerOption customises a Controller.
type ControllerOption func(*controllerConfig)

// WithLogger routes fetch failures to logger.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *controllerConfig) {
		c.logger = logger
	}
}
