// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"slices"
	"sync"
	"time"

	"github.com/ik5/slaudio/platform"
)

// Platform is an in-memory platform.Platform. Nothing runs on its own: tests
// drive buffer consumption and capture through Player.Consume and
// Recorder.Capture, which invoke the registered callbacks synchronously on the
// calling goroutine.
//
// The exported fields configure the platform and may be changed between
// calls from the test goroutine.
type Platform struct {
	Caps      platform.Capabilities
	ProbeErr  error
	OpenErr   error
	MixErr    error
	PlayerErr error
	// RecorderErr is returned by every CreateRecorder call.
	RecorderErr error

	PreferredRate int
	FrameCount    int
	FrameCountErr error
	MixerLatency  time.Duration
	LatencyErr    error
	MaxVolume     int16

	// Unsupported rates make player and recorder creation fail with
	// platform.ErrContentUnsupported.
	Unsupported map[int]bool

	mu      sync.Mutex
	engines []*Engine
}

// NewPlatform returns a platform with a 48 kHz primary output, 240 frame
// buffers and 20ms of mixer latency.
func NewPlatform() *Platform {
	return &Platform{
		Caps:          platform.Capabilities{OutputLatency: true},
		PreferredRate: 48000,
		FrameCount:    240,
		MixerLatency:  20 * time.Millisecond,
		Unsupported:   map[int]bool{},
	}
}

func (p *Platform) Name() string { return "fake" }

func (p *Platform) Probe() (platform.Capabilities, error) {
	return p.Caps, p.ProbeErr
}

func (p *Platform) OpenEngine(threadSafe bool) (platform.Engine, error) {
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	e := &Engine{p: p, ThreadSafe: threadSafe}
	p.mu.Lock()
	p.engines = append(p.engines, e)
	p.mu.Unlock()
	return e, nil
}

func (p *Platform) PreferredSampleRate() (int, error) {
	if p.PreferredRate == 0 {
		return 0, platform.ErrUnavailable
	}
	return p.PreferredRate, nil
}

func (p *Platform) PrimaryFrameCount() (int, error) {
	if p.FrameCountErr != nil {
		return 0, p.FrameCountErr
	}
	return p.FrameCount, nil
}

func (p *Platform) OutputLatency() (time.Duration, error) {
	return p.MixerLatency, p.LatencyErr
}

// Engines returns every engine opened so far.
func (p *Platform) Engines() []*Engine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.engines)
}

// LastEngine returns the most recently opened engine or nil.
func (p *Platform) LastEngine() *Engine {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.engines) == 0 {
		return nil
	}
	return p.engines[len(p.engines)-1]
}

type Engine struct {
	ThreadSafe bool

	p         *Platform
	mu        sync.Mutex
	destroyed bool
	mixes     []*OutputMix
	players   []*Player
	recorders []*Recorder

	playerAttempts   []platform.PlayerConfig
	recorderAttempts []platform.RecorderConfig
}

func (e *Engine) CreateOutputMix() (platform.OutputMix, error) {
	if e.p.MixErr != nil {
		return nil, e.p.MixErr
	}
	m := &OutputMix{}
	e.mu.Lock()
	e.mixes = append(e.mixes, m)
	e.mu.Unlock()
	return m, nil
}

func (e *Engine) CreatePlayer(_ platform.OutputMix, cfg platform.PlayerConfig) (platform.Player, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.playerAttempts = append(e.playerAttempts, cfg)
	if e.p.Unsupported[cfg.Format.SampleRate] {
		return nil, platform.ErrContentUnsupported
	}
	if e.p.PlayerErr != nil {
		return nil, e.p.PlayerErr
	}

	pl := &Player{
		Config:    cfg,
		queue:     newQueue(cfg.Buffers),
		playState: platform.PlayStateStopped,
		maxVolume: e.p.MaxVolume,
	}
	e.players = append(e.players, pl)
	return pl, nil
}

func (e *Engine) CreateRecorder(cfg platform.RecorderConfig) (platform.Recorder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.recorderAttempts = append(e.recorderAttempts, cfg)
	if e.p.Unsupported[cfg.Format.SampleRate] {
		return nil, platform.ErrContentUnsupported
	}
	if e.p.RecorderErr != nil {
		return nil, e.p.RecorderErr
	}

	r := &Recorder{
		Config:      cfg,
		queue:       newQueue(cfg.Buffers),
		recordState: platform.RecordStateStopped,
	}
	e.recorders = append(e.recorders, r)
	return r, nil
}

func (e *Engine) Destroy() {
	e.mu.Lock()
	e.destroyed = true
	e.mu.Unlock()
}

func (e *Engine) Destroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

// Mix returns the first output mix or nil.
func (e *Engine) Mix() *OutputMix {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.mixes) == 0 {
		return nil
	}
	return e.mixes[0]
}

// Player returns the most recently created player or nil.
func (e *Engine) Player() *Player {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.players) == 0 {
		return nil
	}
	return e.players[len(e.players)-1]
}

// Recorder returns the most recently created recorder or nil.
func (e *Engine) Recorder() *Recorder {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.recorders) == 0 {
		return nil
	}
	return e.recorders[len(e.recorders)-1]
}

// PlayerAttempts lists every CreatePlayer configuration, failed ones included.
func (e *Engine) PlayerAttempts() []platform.PlayerConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.playerAttempts)
}

func (e *Engine) RecorderAttempts() []platform.RecorderConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.recorderAttempts)
}

type OutputMix struct {
	mu        sync.Mutex
	destroyed bool
}

func (m *OutputMix) Destroy() {
	m.mu.Lock()
	m.destroyed = true
	m.mu.Unlock()
}

func (m *OutputMix) Destroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

// Queue is a platform.BufferQueue that keeps a copy of every enqueued buffer.
type Queue struct {
	// EnqueueErr makes every Enqueue fail.
	EnqueueErr error

	mu       sync.Mutex
	capacity int
	pending  [][]byte
	history  [][]byte
	index    int
	cleared  int
	callback func()
}

func newQueue(capacity int) *Queue {
	return &Queue{capacity: capacity}
}

func (q *Queue) Enqueue(buf []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.EnqueueErr != nil {
		return q.EnqueueErr
	}
	if q.capacity > 0 && len(q.pending) >= q.capacity {
		return platform.ErrBufferQueueFull
	}
	q.pending = append(q.pending, buf)
	q.history = append(q.history, slices.Clone(buf))
	return nil
}

func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.index = 0
	q.cleared++
	return nil
}

func (q *Queue) State() (platform.QueueState, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return platform.QueueState{Count: len(q.pending), Index: q.index}, nil
}

func (q *Queue) RegisterCallback(fn func()) error {
	q.mu.Lock()
	q.callback = fn
	q.mu.Unlock()
	return nil
}

// Fire runs the queue callback without completing a buffer, as a callback
// already in flight would.
func (q *Queue) Fire() {
	q.mu.Lock()
	cb := q.callback
	q.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Enqueued returns copies of every buffer enqueued so far, oldest first.
func (q *Queue) Enqueued() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.history)
}

// Pending is the number of buffers waiting to be consumed.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Cleared counts Clear calls.
func (q *Queue) Cleared() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cleared
}

// take removes the oldest pending buffer.
func (q *Queue) take() ([]byte, func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, nil, false
	}
	buf := q.pending[0]
	q.pending = q.pending[1:]
	q.index++
	return buf, q.callback, true
}

// head tracks a play or record position with a one-shot marker.
type head struct {
	position  time.Duration
	marker    time.Duration
	markerSet bool
	markers   []time.Duration
	mask      platform.Event
	callback  func(platform.Event)
}

func (h *head) setMarker(pos time.Duration) {
	h.marker = pos
	h.markerSet = pos > 0
	h.markers = append(h.markers, pos)
}

// advance moves the head and returns the callback to fire when the marker
// was reached.
func (h *head) advance(d time.Duration) func(platform.Event) {
	h.position += d
	if h.markerSet && h.position >= h.marker && h.mask&platform.EventHeadAtMarker != 0 {
		h.markerSet = false
		return h.callback
	}
	return nil
}

func bufferDuration(n int, f platform.PCMFormat) time.Duration {
	frameSize := f.FrameSize()
	if frameSize == 0 || f.SampleRate == 0 {
		return 0
	}
	return time.Duration(n/frameSize) * time.Second / time.Duration(f.SampleRate)
}

type Player struct {
	Config platform.PlayerConfig
	// PositionErr makes Position fail.
	PositionErr error
	// VolumeErr makes MaxVolumeLevel and SetVolumeLevel fail.
	VolumeErr error
	// BeforeDestroy runs at the start of Destroy, before the player is
	// marked destroyed.
	BeforeDestroy func()

	mu         sync.Mutex
	queue      *Queue
	playState  platform.PlayState
	states     []platform.PlayState
	head       head
	maxVolume  int16
	volume     int16
	volumeSets int
	deferred   int
	destroyed  bool
}

func (p *Player) Queue() platform.BufferQueue { return p.queue }

// FakeQueue returns the queue with its inspection helpers.
func (p *Player) FakeQueue() *Queue { return p.queue }

func (p *Player) ObjectState() platform.ObjectState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return platform.ObjectUnrealized
	}
	return platform.ObjectRealized
}

func (p *Player) SetPlayState(state platform.PlayState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return platform.ErrDestroyed
	}
	p.playState = state
	p.states = append(p.states, state)
	return nil
}

// PauseDeferred records a paused state like SetPlayState and counts it.
func (p *Player) PauseDeferred() error {
	if err := p.SetPlayState(platform.PlayStatePaused); err != nil {
		return err
	}
	p.mu.Lock()
	p.deferred++
	p.mu.Unlock()
	return nil
}

// DeferredPauses counts PauseDeferred calls.
func (p *Player) DeferredPauses() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deferred
}

func (p *Player) PlayState() (platform.PlayState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playState, nil
}

// States lists every SetPlayState value in order.
func (p *Player) States() []platform.PlayState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.states)
}

func (p *Player) Position() (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PositionErr != nil {
		return 0, p.PositionErr
	}
	return p.head.position.Truncate(time.Millisecond), nil
}

// SetPosition moves the play head without consuming buffers.
func (p *Player) SetPosition(pos time.Duration) {
	p.mu.Lock()
	p.head.position = pos
	p.mu.Unlock()
}

func (p *Player) SetMarkerPosition(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.head.setMarker(pos)
	return nil
}

// Markers lists every marker position set, in order.
func (p *Player) Markers() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.head.markers)
}

func (p *Player) SetCallbackEventsMask(mask platform.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.head.mask = mask
	return nil
}

func (p *Player) RegisterCallback(fn func(platform.Event)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.head.callback = fn
	return nil
}

func (p *Player) MaxVolumeLevel() (int16, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.VolumeErr != nil {
		return 0, p.VolumeErr
	}
	return p.maxVolume, nil
}

func (p *Player) SetVolumeLevel(millibel int16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.VolumeErr != nil {
		return p.VolumeErr
	}
	p.volume = millibel
	p.volumeSets++
	return nil
}

// VolumeLevel is the last level set.
func (p *Player) VolumeLevel() int16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *Player) Destroy() {
	if p.BeforeDestroy != nil {
		p.BeforeDestroy()
	}
	p.mu.Lock()
	p.destroyed = true
	p.mu.Unlock()
}

func (p *Player) Destroyed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed
}

// Consume plays the oldest queued buffer: the head advances by its duration,
// the queue callback runs and then, when the marker was reached, the play
// callback. It reports false when nothing was queued.
func (p *Player) Consume() bool {
	buf, queueCb, ok := p.queue.take()
	if !ok {
		return false
	}

	p.mu.Lock()
	markerCb := p.head.advance(bufferDuration(len(buf), p.Config.Format))
	p.mu.Unlock()

	if queueCb != nil {
		queueCb()
	}
	if markerCb != nil {
		markerCb(platform.EventHeadAtMarker)
	}
	return true
}

// FireMarker invokes the play callback with a marker event.
func (p *Player) FireMarker() {
	p.mu.Lock()
	cb := p.head.callback
	p.mu.Unlock()
	if cb != nil {
		cb(platform.EventHeadAtMarker)
	}
}

type Recorder struct {
	Config platform.RecorderConfig
	// BeforeDestroy runs at the start of Destroy, before the recorder is
	// marked destroyed.
	BeforeDestroy func()

	mu          sync.Mutex
	queue       *Queue
	recordState platform.RecordState
	states      []platform.RecordState
	head        head
	deferred    int
	destroyed   bool
}

func (r *Recorder) Queue() platform.BufferQueue { return r.queue }

func (r *Recorder) FakeQueue() *Queue { return r.queue }

func (r *Recorder) ObjectState() platform.ObjectState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return platform.ObjectUnrealized
	}
	return platform.ObjectRealized
}

func (r *Recorder) SetRecordState(state platform.RecordState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return platform.ErrDestroyed
	}
	r.recordState = state
	r.states = append(r.states, state)
	return nil
}

func (r *Recorder) PauseDeferred() error {
	if err := r.SetRecordState(platform.RecordStatePaused); err != nil {
		return err
	}
	r.mu.Lock()
	r.deferred++
	r.mu.Unlock()
	return nil
}

func (r *Recorder) DeferredPauses() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deferred
}

func (r *Recorder) RecordState() (platform.RecordState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recordState, nil
}

func (r *Recorder) States() []platform.RecordState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.states)
}

func (r *Recorder) SetMarkerPosition(pos time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head.setMarker(pos)
	return nil
}

func (r *Recorder) Markers() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.head.markers)
}

func (r *Recorder) SetCallbackEventsMask(mask platform.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head.mask = mask
	return nil
}

func (r *Recorder) RegisterCallback(fn func(platform.Event)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head.callback = fn
	return nil
}

func (r *Recorder) Destroy() {
	if r.BeforeDestroy != nil {
		r.BeforeDestroy()
	}
	r.mu.Lock()
	r.destroyed = true
	r.mu.Unlock()
}

func (r *Recorder) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

// Capture fills the oldest queued buffer with data, zero padded, and runs
// the queue callback followed by the record callback when the marker was
// reached. It reports false when no buffer was queued.
func (r *Recorder) Capture(data []byte) bool {
	buf, queueCb, ok := r.queue.take()
	if !ok {
		return false
	}
	n := copy(buf, data)
	clear(buf[n:])

	r.mu.Lock()
	markerCb := r.head.advance(bufferDuration(len(buf), r.Config.Format))
	r.mu.Unlock()

	if queueCb != nil {
		queueCb()
	}
	if markerCb != nil {
		markerCb(platform.EventHeadAtMarker)
	}
	return true
}

// FireMarker invokes the record callback with a marker event.
func (r *Recorder) FireMarker() {
	r.mu.Lock()
	cb := r.head.callback
	r.mu.Unlock()
	if cb != nil {
		cb(platform.EventHeadAtMarker)
	}
}
