package finchan

import (
	"golang.org/x/time/rate"
)

// options holds the configuration shared by channels and listeners.
type options struct {
	logger Logger

	// maxFrameSize bounds the declared payload length of inbound frames.
	maxFrameSize int

	// rateLimit and rateBurst, when set, cap the request rate a served
	// channel will accept. Each channel gets its own limiter. Over-rate
	// rounds get a failure Response instead of reaching the handler.
	rateLimit rate.Limit
	rateBurst int
}

// Option is a function that configures channel options.
type Option func(*options)

// checkOptions fills in default values for unset options.
func checkOptions(opts *options) {
	if opts.maxFrameSize <= 0 {
		opts.maxFrameSize = DefaultMaxFrameSize
	}
	if opts.logger == nil {
		opts.logger = defaultLogger()
	}
}

// MaxFrameSizeOption returns an Option that sets the maximum inbound frame
// payload size. Frames declaring a larger payload are rejected with
// ErrFrameTooLarge before any payload byte is read.
func MaxFrameSizeOption(size int) Option {
	return func(o *options) {
		o.maxFrameSize = size
	}
}

// LoggerOption returns an Option that sets the diagnostic sink.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// RateLimitOption returns an Option that caps the rate of request rounds a
// served channel accepts, with the given burst allowance.
func RateLimitOption(limit rate.Limit, burst int) Option {
	return func(o *options) {
		o.rateLimit = limit
		o.rateBurst = burst
	}
}
