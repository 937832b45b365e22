// SPDX-License-Identifier: EPL-2.0

package miniaudio

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/ik5/slaudio/internal/errors"
	"github.com/ik5/slaudio/internal/logger"
	"github.com/ik5/slaudio/platform"
)

// nativeOrder is the byte order of malgo.FormatS16 samples.
var nativeOrder = func() platform.ByteOrder {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], 1)
	if b[0] == 1 {
		return platform.LittleEndian
	}
	return platform.BigEndian
}()

// device is the part shared by players and recorders: one malgo device, its
// buffer queue and head, and the running state.
type device struct {
	log       logger.Logger
	dev       *malgo.Device
	queue     *bufferQueue
	head      head
	frameSize int
	swap      bool

	// running gates the data callback.
	running atomic.Bool

	stateMu   sync.Mutex
	gen       uint64
	destroyed bool

	// devMu serializes Start, Stop and Uninit of dev.
	devMu sync.Mutex
}

func newDevice(e *engine, typ malgo.DeviceType, f platform.PCMFormat, buffers int, data malgo.DataProc) (*device, error) {
	d := &device{
		log:       e.p.log.With(logger.Int("rate", f.SampleRate), logger.Int("channels", f.Channels)),
		queue:     newBufferQueue(buffers),
		frameSize: f.FrameSize(),
		swap:      f.Order != nativeOrder,
	}
	d.head.rate = f.SampleRate

	cfg := malgo.DefaultDeviceConfig(typ)
	cfg.SampleRate = uint32(f.SampleRate)
	cfg.Alsa.NoMMap = 1
	if e.p.periodFrames > 0 {
		cfg.PeriodSizeInFrames = uint32(e.p.periodFrames)
	}
	cfg.Periods = uint32(e.p.periods)
	if typ == malgo.Capture {
		cfg.Capture.Format = malgo.FormatS16
		cfg.Capture.Channels = uint32(f.Channels)
	} else {
		cfg.Playback.Format = malgo.FormatS16
		cfg.Playback.Channels = uint32(f.Channels)
	}

	dev, err := malgo.InitDevice(e.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: data,
		Stop: func() { d.log.Debug("device stopped") },
	})
	if err != nil {
		return nil, errors.New(err).
			Component("miniaudio").
			Category(errors.CategoryAudioDevice).
			Context("operation", "init_device").
			Context("rate", f.SampleRate).
			Context("channels", f.Channels).
			Build()
	}
	d.dev = dev
	return d, nil
}

func (d *device) objectState() platform.ObjectState {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.destroyed {
		return platform.ObjectUnrealized
	}
	return platform.ObjectRealized
}

// setRunning starts or stops the device. Stopping waits for the data
// callback in flight, so it must not be called from a device callback.
func (d *device) setRunning(run bool) error {
	gen, err := d.request(run)
	if err != nil {
		return err
	}
	return d.apply(gen, run)
}

// pauseDeferred gates the data callback at once and stops the device on
// another goroutine.
func (d *device) pauseDeferred() error {
	gen, err := d.request(false)
	if err != nil {
		return err
	}
	go func() { _ = d.apply(gen, false) }()
	return nil
}

func (d *device) request(run bool) (uint64, error) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.destroyed {
		return 0, platform.ErrDestroyed
	}
	d.gen++
	d.running.Store(run)
	return d.gen, nil
}

func (d *device) apply(gen uint64, run bool) error {
	d.devMu.Lock()
	defer d.devMu.Unlock()

	d.stateMu.Lock()
	stale := d.destroyed || d.gen != gen
	d.stateMu.Unlock()
	if stale {
		return nil
	}

	if run {
		if d.dev.IsStarted() {
			return nil
		}
		if err := d.dev.Start(); err != nil {
			d.log.Error("failed to start device", logger.Error(err))
			return errors.New(err).Component("miniaudio").Category(errors.CategoryAudioDevice).Context("operation", "start_device").Build()
		}
		return nil
	}

	if !d.dev.IsStarted() {
		return nil
	}
	if err := d.dev.Stop(); err != nil {
		d.log.Error("failed to stop device", logger.Error(err))
		return errors.New(err).Component("miniaudio").Category(errors.CategoryAudioDevice).Context("operation", "stop_device").Build()
	}
	return nil
}

func (d *device) destroy() {
	d.stateMu.Lock()
	if d.destroyed {
		d.stateMu.Unlock()
		return
	}
	d.destroyed = true
	d.running.Store(false)
	d.stateMu.Unlock()

	d.devMu.Lock()
	d.dev.Uninit()
	d.devMu.Unlock()
}

// completed runs the queue callback once per completed buffer and then the
// marker callback when the head reached it.
func (d *device) completed(buffers, frames int) {
	marker := d.head.advance(frames)
	if cb := d.queue.registered(); cb != nil {
		for range buffers {
			cb()
		}
	}
	if marker != nil {
		marker(platform.EventHeadAtMarker)
	}
}

type player struct {
	*device
	cfg       platform.PlayerConfig
	volume    atomic.Int32
	playState atomic.Int32
}

func newPlayer(e *engine, cfg platform.PlayerConfig) (*player, error) {
	pl := &player{cfg: cfg}
	pl.playState.Store(int32(platform.PlayStateStopped))

	d, err := newDevice(e, malgo.Playback, cfg.Format, cfg.Buffers, pl.onData)
	if err != nil {
		return nil, err
	}
	pl.device = d
	return pl, nil
}

// onData runs on the device thread.
func (pl *player) onData(out, _ []byte, _ uint32) {
	if !pl.running.Load() {
		clear(out)
		return
	}

	gain := millibelGain(int16(pl.volume.Load()))
	for len(out) > 0 && pl.running.Load() {
		n, done := pl.queue.render(out, pl.swap)
		applyGain(out[:n], gain)
		out = out[n:]
		pl.completed(done, n/pl.frameSize)
		if done == 0 {
			break
		}
	}
	// Underrun.
	clear(out)
}

func (pl *player) Queue() platform.BufferQueue { return pl.queue }

func (pl *player) ObjectState() platform.ObjectState { return pl.objectState() }

func (pl *player) SetPlayState(state platform.PlayState) error {
	if err := pl.setRunning(state == platform.PlayStatePlaying); err != nil {
		return err
	}
	pl.playState.Store(int32(state))
	return nil
}

func (pl *player) PauseDeferred() error {
	if err := pl.pauseDeferred(); err != nil {
		return err
	}
	pl.playState.Store(int32(platform.PlayStatePaused))
	return nil
}

func (pl *player) PlayState() (platform.PlayState, error) {
	return platform.PlayState(pl.playState.Load()), nil
}

func (pl *player) Position() (time.Duration, error) { return pl.head.position(), nil }

func (pl *player) SetMarkerPosition(pos time.Duration) error {
	pl.head.setMarker(pos)
	return nil
}

func (pl *player) SetCallbackEventsMask(mask platform.Event) error {
	pl.head.setMask(mask)
	return nil
}

func (pl *player) RegisterCallback(fn func(platform.Event)) error {
	pl.head.register(fn)
	return nil
}

// MaxVolumeLevel is unity gain, the device never amplifies.
func (pl *player) MaxVolumeLevel() (int16, error) { return 0, nil }

func (pl *player) SetVolumeLevel(millibel int16) error {
	pl.volume.Store(int32(min(millibel, 0)))
	return nil
}

func (pl *player) Destroy() { pl.destroy() }

type recorder struct {
	*device
	cfg         platform.RecorderConfig
	recordState atomic.Int32
}

func newRecorder(e *engine, cfg platform.RecorderConfig) (*recorder, error) {
	r := &recorder{cfg: cfg}
	r.recordState.Store(int32(platform.RecordStateStopped))

	d, err := newDevice(e, malgo.Capture, cfg.Format, cfg.Buffers, r.onData)
	if err != nil {
		return nil, err
	}
	r.device = d
	return r, nil
}

// onData runs on the device thread. Input that finds no queued buffer is
// lost.
func (r *recorder) onData(_, in []byte, _ uint32) {
	if !r.running.Load() {
		return
	}

	for len(in) > 0 && r.running.Load() {
		n, done := r.queue.capture(in, r.swap)
		in = in[n:]
		r.completed(done, n/r.frameSize)
		if done == 0 {
			break
		}
	}
	if len(in) > 0 {
		r.log.Debug("capture overrun", logger.Int("bytes", len(in)))
	}
}

func (r *recorder) Queue() platform.BufferQueue { return r.queue }

func (r *recorder) ObjectState() platform.ObjectState { return r.objectState() }

func (r *recorder) SetRecordState(state platform.RecordState) error {
	if err := r.setRunning(state == platform.RecordStateRecording); err != nil {
		return err
	}
	r.recordState.Store(int32(state))
	return nil
}

func (r *recorder) PauseDeferred() error {
	if err := r.pauseDeferred(); err != nil {
		return err
	}
	r.recordState.Store(int32(platform.RecordStatePaused))
	return nil
}

func (r *recorder) RecordState() (platform.RecordState, error) {
	return platform.RecordState(r.recordState.Load()), nil
}

func (r *recorder) SetMarkerPosition(pos time.Duration) error {
	r.head.setMarker(pos)
	return nil
}

func (r *recorder) SetCallbackEventsMask(mask platform.Event) error {
	r.head.setMask(mask)
	return nil
}

func (r *recorder) RegisterCallback(fn func(platform.Event)) error {
	r.head.register(fn)
	return nil
}

func (r *recorder) Destroy() { r.destroy() }

// millibelGain converts a level to a linear factor, 1 at 0 mB.
func millibelGain(mb int16) float64 {
	if mb >= 0 {
		return 1
	}
	if mb == platform.MillibelMin {
		return 0
	}
	return math.Pow(10, float64(mb)/2000)
}

// applyGain scales native endian 16-bit samples in place.
func applyGain(b []byte, gain float64) {
	if gain == 1 {
		return
	}
	for i := 0; i+1 < len(b); i += 2 {
		s := int16(binary.NativeEndian.Uint16(b[i:]))
		v := math.Round(float64(s) * gain)
		binary.NativeEndian.PutUint16(b[i:], uint16(int16(max(min(v, math.MaxInt16), math.MinInt16))))
	}
}
