package reader

import (
	"log/slog"

	"github.com/grokify/mogo/log/slogutil"
)

// Option configures readers built by this package.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	observers []Observer
	observer  Observer
}

// WithLogger sets the logger. If nil, a null logger is used (no logging).
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver registers an Observer for batch, skip and error events.
// It may be given more than once; observers are called in order.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slogutil.Null()
	}
	switch len(o.observers) {
	case 0:
		o.observer = nopObserver{}
	case 1:
		o.observer = o.observers[0]
	default:
		o.observer = multiObserver(o.observers)
	}
	return o
}
