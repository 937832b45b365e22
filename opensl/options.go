// SPDX-License-Identifier: EPL-2.0

package opensl

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ik5/slaudio/internal/logger"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	log        logger.Logger
	registerer prometheus.Registerer
	now        func() time.Time
}

func defaultOptions() options {
	return options{
		log: logger.NewNop(),
		now: time.Now,
	}
}

// WithLogger sets the logger of the engine and its streams.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = logger.FromSlog(l)
	}
}

// WithRegisterer registers stream metrics with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// WithClock replaces the clock used to interpolate the play position between
// platform position updates.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
