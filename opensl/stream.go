// SPDX-License-Identifier: EPL-2.0

package opensl

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ik5/slaudio/handoff"
	"github.com/ik5/slaudio/internal/errors"
	"github.com/ik5/slaudio/internal/logger"
	"github.com/ik5/slaudio/internal/metrics"
	"github.com/ik5/slaudio/platform"
	"github.com/ik5/slaudio/resampler"
)

// StreamConfig describes a stream. At least one of Input and Output is set.
type StreamConfig struct {
	// Name identifies the stream in logs and metrics, a random id when empty.
	Name   string
	Input  *Params
	Output *Params
	// LatencyFrames is the size of one native buffer in frames.
	LatencyFrames int
	Data          DataCallback
	State         StateCallback
}

// Capture slot ownership in full-duplex mode.
const (
	slotFree int32 = iota
	slotPlatform
	slotHandoff
)

// handoffReserve is the number of capture slots that can be outside the
// handoff queue at once: the one being filled, the one just filled and the
// one the player callback is reading.
const handoffReserve = 3

// Stream is a playback, capture or full-duplex stream.
type Stream struct {
	engine  *Engine
	name    string
	log     logger.Logger
	metrics *metrics.StreamMetrics
	dataCb  DataCallback
	stateCb StateCallback

	outputEnabled bool
	inputEnabled  bool
	latencyFrames int

	// mu guards only draining, shutdown, written and destroyed.
	mu        sync.Mutex
	draining  bool
	shutdown  bool
	written   int64
	destroyed bool

	// Playback. The output index is owned by the player queue callback.
	player               platform.Player
	playQueue            platform.BufferQueue
	queuebuf             [][]byte
	queuebufIdx          int
	queuebufLen          int
	framesize            int
	bytesPerSec          int64
	inputRate            int
	outputConfiguredRate int

	// Position interpolation, guarded by posMu.
	posMu                    sync.Mutex
	lastPosition             int64
	lastPositionTimeStamp    time.Time
	lastCompensativePosition int64

	// Capture. The input index and total are owned by the recorder queue
	// callback.
	recorder         platform.Recorder
	recQueue         platform.BufferQueue
	inputBuffers     [][]byte
	inputSlots       []atomic.Int32
	inputIndex       int
	inputBufferLen   int
	inputFrameSize   int
	inputDeviceRate  int
	inputTotalFrames int64
	inputQueue       *handoff.Queue
	inputSilent      []byte

	resampler *resampler.Resampler
	opened    bool
}

// NewStream configures the native player and/or recorder and the resampler.
// The stream starts stopped.
func (e *Engine) NewStream(cfg StreamConfig) (*Stream, error) {
	if err := validateParams(cfg.Output); err != nil {
		e.log.Warn("output stream params not valid", logger.Error(err))
		return nil, err
	}
	if err := validateParams(cfg.Input); err != nil {
		e.log.Warn("input stream params not valid", logger.Error(err))
		return nil, err
	}
	if cfg.Input == nil && cfg.Output == nil {
		return nil, newError(ErrInvalidParameter, nil, "stream has neither input nor output").Build()
	}
	if cfg.Data == nil {
		return nil, newError(ErrInvalidParameter, nil, "nil data callback").Build()
	}
	if cfg.LatencyFrames < 1 {
		return nil, newError(ErrInvalidParameter, nil, "latency").Context("latency_frames", cfg.LatencyFrames).Build()
	}

	name := cfg.Name
	if name == "" {
		name = uuid.NewString()
	}

	s := &Stream{
		engine:        e,
		name:          name,
		log:           e.log.Module("stream").With(logger.String("stream", name)),
		metrics:       e.metrics,
		dataCb:        cfg.Data,
		stateCb:       cfg.State,
		outputEnabled: cfg.Output != nil,
		inputEnabled:  cfg.Input != nil,
		latencyFrames: cfg.LatencyFrames,
		shutdown:      true,
		inputIndex:    -1,
	}

	if cfg.Output != nil {
		s.log.Debug("playback params",
			logger.Int("rate", cfg.Output.Rate),
			logger.Int("channels", cfg.Output.Channels),
			logger.String("format", cfg.Output.Format.String()),
			logger.Int("latency_frames", s.latencyFrames))
		if err := s.configurePlayback(cfg.Output); err != nil {
			s.release()
			return nil, err
		}
	}

	if cfg.Input != nil {
		s.log.Debug("capture params",
			logger.Int("rate", cfg.Input.Rate),
			logger.Int("channels", cfg.Input.Channels),
			logger.String("format", cfg.Input.Format.String()),
			logger.Int("latency_frames", s.latencyFrames))
		if err := s.configureCapture(cfg.Input); err != nil {
			s.release()
			return nil, err
		}
	}

	if err := s.configureResampler(cfg.Input, cfg.Output); err != nil {
		s.release()
		return nil, err
	}

	s.opened = true
	s.metrics.StreamOpened()
	s.log.Info("stream initialized",
		logger.Int("output_rate", s.outputConfiguredRate),
		logger.Int("input_rate", s.inputDeviceRate),
		logger.Int("latency_frames", s.latencyFrames))
	return s, nil
}

// Name returns the stream identifier.
func (s *Stream) Name() string { return s.name }

// OutputRate is the rate the native player runs at, 0 without playback.
func (s *Stream) OutputRate() int { return s.outputConfiguredRate }

// InputRate is the rate the native recorder runs at, 0 without capture.
func (s *Stream) InputRate() int { return s.inputDeviceRate }

// LatencyFrames is the native buffer size in frames.
func (s *Stream) LatencyFrames() int { return s.latencyFrames }

func pcmFormat(p *Params, rate int) platform.PCMFormat {
	order, _ := p.Format.byteOrder()
	return platform.PCMFormat{Channels: p.Channels, SampleRate: rate, Order: order}
}

// preferredRate falls back to DefaultSampleRate when the platform cannot
// answer.
func (s *Stream) preferredRate() int {
	rate, err := s.engine.PreferredSampleRate()
	if err != nil {
		s.log.Debug("preferred rate unavailable, using default",
			logger.Int("rate", DefaultSampleRate), logger.Error(err))
		return DefaultSampleRate
	}
	return rate
}

func (s *Stream) configurePlayback(p *Params) error {
	e := s.engine
	s.inputRate = p.Rate
	s.framesize = p.Channels * 2
	s.lastPosition = -1
	s.lastCompensativePosition = -1

	latencyFrames := s.latencyFrames
	rate := p.Rate
	if e.caps.APILevel >= nativeRateAPI {
		// Drop the requested rate to fall back to the native one below.
		rate = 0
		lf, err := e.MinLatency(*p)
		if err != nil {
			lf = fastTrackLatencyFrames
		}
		latencyFrames = lf
		s.latencyFrames = latencyFrames
	}

	var (
		player platform.Player
		err    = platform.ErrContentUnsupported
	)
	if rate != 0 {
		player, err = e.engine.CreatePlayer(e.mix, platform.PlayerConfig{Format: pcmFormat(p, rate), Buffers: NBUFS})
	}
	if errors.Is(err, platform.ErrContentUnsupported) {
		requested := rate
		rate = s.preferredRate()
		s.log.Info("sample rate not supported, retrying with preferred rate",
			logger.Int("requested", requested), logger.Int("rate", rate))
		player, err = e.engine.CreatePlayer(e.mix, platform.PlayerConfig{Format: pcmFormat(p, rate), Buffers: NBUFS})
	}
	if err != nil {
		return newError(ErrGeneric, err, "create audio player").Context("rate", rate).Build()
	}
	s.player = player

	s.outputConfiguredRate = rate
	s.bytesPerSec = int64(rate) * int64(s.framesize)
	s.queuebufLen = s.framesize * latencyFrames

	capacity := NBUFS
	if s.inputEnabled {
		capacity = max(NBUFS, ceilDiv(rate, latencyFrames))
	}
	s.queuebuf = make([][]byte, capacity)
	for i := range s.queuebuf {
		s.queuebuf[i] = make([]byte, s.queuebufLen)
	}

	if err := player.RegisterCallback(s.playEvent); err != nil {
		return newError(ErrGeneric, err, "register play callback").Build()
	}
	// Reset the marker so the first real one is not swallowed.
	_ = player.SetMarkerPosition(0)
	if err := player.SetCallbackEventsMask(platform.EventHeadAtMarker); err != nil {
		return newError(ErrGeneric, err, "set play event mask").Build()
	}

	s.playQueue = player.Queue()
	callback := s.outputCallback
	if s.inputEnabled {
		callback = s.duplexOutputCallback
	}
	if err := s.playQueue.RegisterCallback(callback); err != nil {
		return newError(ErrGeneric, err, "register buffer queue callback").Build()
	}

	// One silent frame kicks off the queue callback once playing.
	buf := s.queuebuf[s.queuebufIdx][:s.framesize]
	s.queuebufIdx++
	clear(buf)
	if err := s.playQueue.Enqueue(buf); err != nil {
		return newError(ErrGeneric, err, "prime player queue").Build()
	}

	s.log.Debug("playback configured",
		logger.Int("rate", rate),
		logger.Int("buffers", capacity),
		logger.Int("buffer_bytes", s.queuebufLen))
	return nil
}

func (s *Stream) configureCapture(p *Params) error {
	e := s.engine
	s.inputDeviceRate = p.Rate

	rec, err := e.engine.CreateRecorder(platform.RecorderConfig{Format: pcmFormat(p, s.inputDeviceRate), Buffers: NBUFS})
	if errors.Is(err, platform.ErrContentUnsupported) {
		requested := s.inputDeviceRate
		if s.outputEnabled && s.outputConfiguredRate != 0 {
			// No capture rate query exists, match the player.
			s.inputDeviceRate = s.outputConfiguredRate
		} else {
			s.inputDeviceRate = s.preferredRate()
		}
		s.log.Info("capture rate not supported, retrying",
			logger.Int("requested", requested), logger.Int("rate", s.inputDeviceRate))
		rec, err = e.engine.CreateRecorder(platform.RecorderConfig{Format: pcmFormat(p, s.inputDeviceRate), Buffers: NBUFS})
	}
	if err != nil {
		return newError(ErrGeneric, err, "create audio recorder").Context("rate", s.inputDeviceRate).Build()
	}
	s.recorder = rec

	if err := rec.RegisterCallback(s.recordEvent); err != nil {
		return newError(ErrGeneric, err, "register record callback").Build()
	}
	_ = rec.SetMarkerPosition(0)
	if err := rec.SetCallbackEventsMask(platform.EventHeadAtMarker); err != nil {
		return newError(ErrGeneric, err, "set record event mask").Build()
	}

	s.recQueue = rec.Queue()
	callback := s.inputCallback
	if s.outputEnabled {
		callback = s.duplexInputCallback
	}
	if err := s.recQueue.RegisterCallback(callback); err != nil {
		return newError(ErrGeneric, err, "register recorder queue callback").Build()
	}

	s.inputFrameSize = p.Channels * 2
	s.inputBufferLen = s.inputFrameSize * s.latencyFrames

	slots := NBUFS
	if s.outputEnabled {
		capacity := max(NBUFS, ceilDiv(s.inputDeviceRate, s.latencyFrames))
		if s.inputQueue, err = handoff.New(capacity); err != nil {
			return newError(ErrGeneric, err, "create handoff queue").Build()
		}
		s.inputSilent = make([]byte, s.inputBufferLen)
		slots = capacity + handoffReserve
	}
	s.inputBuffers = make([][]byte, slots)
	for i := range s.inputBuffers {
		s.inputBuffers[i] = make([]byte, s.inputBufferLen)
	}
	s.inputSlots = make([]atomic.Int32, slots)
	s.inputIndex = -1

	if _, err := s.enqueueRecorder(); err != nil {
		return err
	}

	s.log.Debug("capture configured",
		logger.Int("rate", s.inputDeviceRate),
		logger.Int("buffers", slots),
		logger.Int("buffer_bytes", s.inputBufferLen))
	return nil
}

func (s *Stream) configureResampler(in, out *Params) error {
	cfg := resampler.Config{Callback: resampler.DataCallback(s.dataCb)}

	if in != nil {
		cfg.TargetRate = in.Rate
		cfg.Input = &resampler.Params{Channels: in.Channels, Rate: s.inputDeviceRate, Order: byteOrder(in.Format)}
	} else {
		cfg.TargetRate = out.Rate
	}
	if out != nil {
		cfg.Output = &resampler.Params{Channels: out.Channels, Rate: s.outputConfiguredRate, Order: byteOrder(out.Format)}
	}

	r, err := resampler.New(cfg)
	if err != nil {
		return newError(ErrGeneric, err, "create resampler").Build()
	}
	s.resampler = r
	return nil
}

func byteOrder(f SampleFormat) binary.ByteOrder {
	if order, _ := f.byteOrder(); order == platform.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// enqueueRecorder hands the next free capture buffer to the recorder and
// returns the index of the buffer filled before it, -1 on the first call.
func (s *Stream) enqueueRecorder() (int, error) {
	prev := s.inputIndex
	next := s.nextInputSlot(prev)
	if next < 0 {
		return -1, newError(ErrGeneric, nil, "no free capture buffer").Build()
	}

	s.inputSlots[next].Store(slotPlatform)
	if err := s.recQueue.Enqueue(s.inputBuffers[next]); err != nil {
		s.inputSlots[next].Store(slotFree)
		return -1, newError(ErrGeneric, err, "enqueue recorder").Build()
	}
	s.inputIndex = next
	return prev, nil
}

// nextInputSlot returns the first free slot after prev.
func (s *Stream) nextInputSlot(prev int) int {
	n := len(s.inputBuffers)
	for i := range n {
		k := (prev + 1 + i) % n
		if k != prev && s.inputSlots[k].Load() == slotFree {
			return k
		}
	}
	return -1
}

func (s *Stream) releaseInput(idx int) {
	if idx >= 0 {
		s.inputSlots[idx].Store(slotFree)
	}
}

// release tears down whatever has been created. Errors are logged and the
// first one returned. The native objects are destroyed, which waits for
// their callbacks, before anything those callbacks read is dropped.
func (s *Stream) release() error {
	var first error

	if s.recQueue != nil {
		if err := s.recQueue.Clear(); err != nil {
			first = newError(ErrGeneric, err, "clear recorder queue").Build()
			s.log.Error("failed to clear recorder buffer queue", logger.Error(err))
		}
	}
	if s.player != nil {
		s.player.Destroy()
	}
	if s.recorder != nil {
		s.recorder.Destroy()
	}

	s.player = nil
	s.playQueue = nil
	s.queuebuf = nil
	s.recorder = nil
	s.recQueue = nil
	s.inputBuffers = nil
	s.inputSlots = nil
	s.inputQueue = nil
	s.inputSilent = nil

	if s.resampler != nil {
		if err := s.resampler.Close(); err != nil && first == nil {
			first = newError(ErrGeneric, err, "close resampler").Build()
		}
		s.resampler = nil
	}

	if s.opened {
		s.metrics.StreamClosed(s.name)
		s.opened = false
	}
	return first
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
