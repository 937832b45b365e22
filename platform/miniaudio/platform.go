// SPDX-License-Identifier: EPL-2.0

package miniaudio

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/ik5/slaudio/internal/errors"
	"github.com/ik5/slaudio/internal/logger"
	"github.com/ik5/slaudio/platform"
)

// Sample rates miniaudio accepts.
const (
	MinSampleRate = 8000
	MaxSampleRate = 384000
)

const (
	maxChannels    = 254
	defaultPeriods = 2
	probeChannels  = 2
)

// Option configures a Platform.
type Option func(*Platform)

// WithBackends restricts the miniaudio backends tried, in order.
func WithBackends(backends ...malgo.Backend) Option {
	return func(p *Platform) {
		p.backends = slices.Clone(backends)
	}
}

// WithLogger logs device events to l.
func WithLogger(l *slog.Logger) Option {
	return func(p *Platform) {
		p.log = logger.FromSlog(l).Module("miniaudio")
	}
}

// WithPreferredRate skips probing the default playback device rate.
func WithPreferredRate(rate int) Option {
	return func(p *Platform) {
		p.preferredRate = rate
	}
}

// WithPeriodFrames sets the device period, 10ms at the preferred rate by
// default.
func WithPeriodFrames(frames int) Option {
	return func(p *Platform) {
		p.periodFrames = frames
	}
}

// WithSupportedRates limits the rates players and recorders accept. Other
// rates are rejected with platform.ErrContentUnsupported.
func WithSupportedRates(rates ...int) Option {
	return func(p *Platform) {
		p.supported = slices.Clone(rates)
	}
}

// Platform opens miniaudio devices on the default playback and capture
// endpoints.
type Platform struct {
	backends      []malgo.Backend
	log           logger.Logger
	preferredRate int
	periodFrames  int
	periods       int
	supported     []int

	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

func New(opts ...Option) *Platform {
	p := &Platform{
		log:     logger.NewNop(),
		periods: defaultPeriods,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Platform) Name() string { return "miniaudio" }

func (p *Platform) initContext() (*malgo.AllocatedContext, error) {
	ctx, err := malgo.InitContext(p.backends, malgo.ContextConfig{}, func(message string) {
		p.log.Debug("miniaudio", logger.String("message", message))
	})
	if err != nil {
		return nil, errors.New(err).
			Component("miniaudio").
			Category(errors.CategoryAudioDevice).
			Context("operation", "init_context").
			Build()
	}
	return ctx, nil
}

// Probe checks that a miniaudio context can be created.
func (p *Platform) Probe() (platform.Capabilities, error) {
	ctx, err := p.initContext()
	if err != nil {
		return platform.Capabilities{}, err
	}
	_ = ctx.Uninit()
	ctx.Free()
	return platform.Capabilities{OutputLatency: true}, nil
}

func (p *Platform) OpenEngine(threadSafe bool) (platform.Engine, error) {
	ctx, err := p.initContext()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()

	p.log.Info("engine opened", logger.Bool("thread_safe", threadSafe))
	return &engine{p: p, ctx: ctx}, nil
}

// PreferredSampleRate is the rate of the default playback device. It needs
// an open engine unless WithPreferredRate was given.
func (p *Platform) PreferredSampleRate() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.preferredRate > 0 {
		return p.preferredRate, nil
	}
	if p.ctx == nil {
		return 0, platform.ErrUnavailable
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = probeChannels
	cfg.SampleRate = 0

	dev, err := malgo.InitDevice(p.ctx.Context, cfg, malgo.DeviceCallbacks{})
	if err != nil {
		return 0, errors.New(err).
			Component("miniaudio").
			Category(errors.CategoryAudioDevice).
			Context("operation", "probe_rate").
			Build()
	}
	rate := int(dev.SampleRate())
	dev.Uninit()

	if rate <= 0 {
		return 0, platform.ErrUnavailable
	}
	p.preferredRate = rate
	return rate, nil
}

// PrimaryFrameCount is the device period in frames.
func (p *Platform) PrimaryFrameCount() (int, error) {
	if p.periodFrames > 0 {
		return p.periodFrames, nil
	}
	rate, err := p.PreferredSampleRate()
	if err != nil {
		return 0, err
	}
	return rate / 100, nil
}

// OutputLatency is the duration of the device periods.
func (p *Platform) OutputLatency() (time.Duration, error) {
	frames, err := p.PrimaryFrameCount()
	if err != nil {
		return 0, err
	}
	rate, err := p.PreferredSampleRate()
	if err != nil {
		return 0, err
	}
	return time.Duration(p.periods*frames) * time.Second / time.Duration(rate), nil
}

func (p *Platform) supports(f platform.PCMFormat) bool {
	if f.SampleRate < MinSampleRate || f.SampleRate > MaxSampleRate {
		return false
	}
	if f.Channels < 1 || f.Channels > maxChannels {
		return false
	}
	return len(p.supported) == 0 || slices.Contains(p.supported, f.SampleRate)
}

var (
	_ platform.Platform = (*Platform)(nil)
	_ platform.Engine   = (*engine)(nil)
	_ platform.Player   = (*player)(nil)
	_ platform.Recorder = (*recorder)(nil)

	_ platform.DeferredPauser = (*player)(nil)
	_ platform.DeferredPauser = (*recorder)(nil)
)

type engine struct {
	p    *Platform
	ctx  *malgo.AllocatedContext
	once sync.Once
}

func (e *engine) CreateOutputMix() (platform.OutputMix, error) {
	return outputMix{}, nil
}

func (e *engine) CreatePlayer(_ platform.OutputMix, cfg platform.PlayerConfig) (platform.Player, error) {
	if !e.p.supports(cfg.Format) {
		return nil, platform.ErrContentUnsupported
	}
	pl, err := newPlayer(e, cfg)
	if err != nil {
		return nil, err
	}
	return pl, nil
}

func (e *engine) CreateRecorder(cfg platform.RecorderConfig) (platform.Recorder, error) {
	if !e.p.supports(cfg.Format) {
		return nil, platform.ErrContentUnsupported
	}
	r, err := newRecorder(e, cfg)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (e *engine) Destroy() {
	e.once.Do(func() {
		e.p.mu.Lock()
		if e.p.ctx == e.ctx {
			e.p.ctx = nil
		}
		e.p.mu.Unlock()

		if e.ctx != nil {
			_ = e.ctx.Uninit()
			e.ctx.Free()
		}
		e.p.log.Info("engine closed")
	})
}

// outputMix is implicit in miniaudio, every device mixes into its endpoint.
type outputMix struct{}

func (outputMix) Destroy() {}
