package att26a

import "github.com/sirupsen/logrus"

// Options configures a Driver at construction time, mirroring the
// functional-options-over-a-struct shape serial.Options uses.
type Options struct {
	Log *logrus.Entry
}

// NewOptions returns the default Options: no logging.
func NewOptions() *Options {
	return &Options{}
}

// Option mutates an Options in place during Open.
type Option func(*Options)

// WithLogger attaches a logger for lifecycle, dispatch, and I/O-failure
// messages. A nil entry (the default) discards all log output.
func WithLogger(log *logrus.Entry) Option {
	return func(o *Options) {
		o.Log = log
	}
}

func newOptions(opts ...Option) *Options {
	o := NewOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}
