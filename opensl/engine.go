// SPDX-License-Identifier: EPL-2.0

package opensl

import (
	"sync"
	"time"

	"github.com/ik5/slaudio/internal/logger"
	"github.com/ik5/slaudio/internal/metrics"
	"github.com/ik5/slaudio/platform"
)

// Engine is the process wide audio context. It is read-only after Init and
// safe for concurrent use.
type Engine struct {
	platform platform.Platform
	caps     platform.Capabilities
	engine   platform.Engine
	mix      platform.OutputMix

	log     logger.Logger
	metrics *metrics.StreamMetrics
	now     func() time.Time

	destroyOnce sync.Once
}

// Init probes p, opens its engine and creates the output mix. Anything
// created before a failure is released.
func Init(p platform.Platform, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.Module("opensl").With(logger.String("platform", p.Name()))

	caps, err := p.Probe()
	if err != nil {
		return nil, newError(ErrGeneric, err, "probe platform").Build()
	}
	if caps.APILevel > 0 && caps.APILevel < minSupportedAPI {
		return nil, newError(ErrNotSupported, nil, "platform too old").Context("api_level", caps.APILevel).Build()
	}
	if !caps.OutputLatency {
		return nil, newError(ErrGeneric, nil, "platform cannot report output latency").Build()
	}

	eng, err := p.OpenEngine(true)
	if err != nil {
		return nil, newError(ErrGeneric, err, "open engine").Build()
	}
	mix, err := eng.CreateOutputMix()
	if err != nil {
		eng.Destroy()
		return nil, newError(ErrGeneric, err, "create output mix").Build()
	}

	var m *metrics.StreamMetrics
	if o.registerer != nil {
		if m, err = metrics.NewStreamMetrics(o.registerer); err != nil {
			mix.Destroy()
			eng.Destroy()
			return nil, newError(ErrGeneric, err, "register metrics").Build()
		}
	}

	log.Info("engine initialized", logger.Int("api_level", caps.APILevel))

	return &Engine{
		platform: p,
		caps:     caps,
		engine:   eng,
		mix:      mix,
		log:      log,
		metrics:  m,
		now:      o.now,
	}, nil
}

func (e *Engine) BackendID() string { return backendIdentifier }

// MaxChannelCount is the number of channels the platform mixer handles.
func (e *Engine) MaxChannelCount() int { return maxMixerChannels }

// PreferredSampleRate is the native rate of the primary output.
func (e *Engine) PreferredSampleRate() (int, error) {
	rate, err := e.platform.PreferredSampleRate()
	if err != nil {
		return 0, newError(ErrGeneric, err, "preferred sample rate").Build()
	}
	if rate <= 0 {
		return 0, newError(ErrGeneric, nil, "preferred sample rate").Context("rate", rate).Build()
	}
	return rate, nil
}

// MinLatency is the primary output buffer size in frames. Streams at the
// native rate with this latency get the platform's fast path.
func (e *Engine) MinLatency(_ Params) (int, error) {
	if _, err := e.PreferredSampleRate(); err != nil {
		return 0, err
	}
	frames, err := e.platform.PrimaryFrameCount()
	if err != nil {
		return 0, newError(ErrGeneric, err, "primary frame count").Build()
	}
	return frames, nil
}

// Destroy releases the output mix and the engine. Streams must be destroyed
// first.
func (e *Engine) Destroy() {
	e.destroyOnce.Do(func() {
		e.mix.Destroy()
		e.engine.Destroy()
		e.log.Info("engine destroyed")
	})
}

func (e *Engine) mixerLatency() (time.Duration, error) {
	d, err := e.platform.OutputLatency()
	if err != nil {
		return 0, newError(ErrGeneric, err, "output latency").Build()
	}
	return d, nil
}
