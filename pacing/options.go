package pacing

import "log/slog"

type options struct {
	logger *slog.Logger
}

// Option customizes a controller at construction.
type Option func(*options)

// WithLogger sets the logger used for diagnostic messages such as curve-fit failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
