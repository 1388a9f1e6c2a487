package allocator

import "github.com/rs/zerolog"

type options struct {
	log                  zerolog.Logger
	checkMinObservations bool
}

// Option configures an Allocator.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithMinObservationsCheck makes Predict reject inputs whose batch axis is shorter
// than MinObservations. Without it the value is advisory only.
func WithMinObservationsCheck() Option {
	return func(o *options) {
		o.checkMinObservations = true
	}
}
