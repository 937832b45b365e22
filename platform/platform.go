// SPDX-License-Identifier: EPL-2.0

package platform

import (
	"math"
	"time"
)

// MillibelMin is the lowest volume level a player accepts.
const MillibelMin int16 = math.MinInt16

// ByteOrder of 16-bit PCM samples inside native buffers.
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

func (o ByteOrder) String() string {
	if o == BigEndian {
		return "big-endian"
	}
	return "little-endian"
}

// PCMFormat describes interleaved signed 16-bit PCM.
type PCMFormat struct {
	Channels   int
	SampleRate int
	Order      ByteOrder
}

// FrameSize is the size of one interleaved frame in bytes.
func (f PCMFormat) FrameSize() int { return f.Channels * 2 }

// ObjectState of a native object.
type ObjectState int

const (
	ObjectUnrealized ObjectState = iota
	ObjectRealized
	ObjectSuspended
)

type PlayState int

const (
	PlayStateStopped PlayState = iota + 1
	PlayStatePaused
	PlayStatePlaying
)

func (s PlayState) String() string {
	switch s {
	case PlayStateStopped:
		return "stopped"
	case PlayStatePaused:
		return "paused"
	case PlayStatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

type RecordState int

const (
	RecordStateStopped RecordState = iota + 1
	RecordStatePaused
	RecordStateRecording
)

func (s RecordState) String() string {
	switch s {
	case RecordStateStopped:
		return "stopped"
	case RecordStatePaused:
		return "paused"
	case RecordStateRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// Event is a bit mask of play or record head events.
type Event uint32

const (
	EventHeadAtEnd    Event = 0x1
	EventHeadAtMarker Event = 0x2
	EventHeadAtNewPos Event = 0x4
)

// QueueState reports how many buffers are still queued and how many were
// consumed since the queue was created or cleared.
type QueueState struct {
	Count int
	Index int
}

// Capabilities are probed once when an engine is initialised.
type Capabilities struct {
	// APILevel of the host audio stack, 0 when unknown.
	APILevel int
	// OutputLatency reports whether Platform.OutputLatency can be answered.
	OutputLatency bool
}

// Platform is the entry point of a native audio service.
type Platform interface {
	Name() string
	Probe() (Capabilities, error)
	// OpenEngine creates and realizes the engine object.
	OpenEngine(threadSafe bool) (Engine, error)
	// PreferredSampleRate of the primary output, returns an error on 0.
	PreferredSampleRate() (int, error)
	// PrimaryFrameCount is the buffer size in frames of the primary output.
	PrimaryFrameCount() (int, error)
	// OutputLatency of the platform mixer.
	OutputLatency() (time.Duration, error)
}

// Engine creates native objects.
type Engine interface {
	CreateOutputMix() (OutputMix, error)
	// CreatePlayer creates and realizes a player rendering into mix.
	// It returns ErrContentUnsupported when the format is rejected.
	CreatePlayer(mix OutputMix, cfg PlayerConfig) (Player, error)
	// CreateRecorder creates and realizes a recorder on the default input.
	// It returns ErrContentUnsupported when the format is rejected.
	CreateRecorder(cfg RecorderConfig) (Recorder, error)
	Destroy()
}

type OutputMix interface {
	Destroy()
}

type PlayerConfig struct {
	Format PCMFormat
	// Buffers is the number of slots of the player's buffer queue.
	Buffers int
}

type RecorderConfig struct {
	Format  PCMFormat
	Buffers int
}

// BufferQueue is the native queue buffers are handed to.
type BufferQueue interface {
	Enqueue(buf []byte) error
	Clear() error
	State() (QueueState, error)
	// RegisterCallback sets the function invoked every time a buffer has
	// been consumed (players) or filled (recorders).
	RegisterCallback(fn func()) error
}

type Player interface {
	Queue() BufferQueue
	ObjectState() ObjectState
	SetPlayState(state PlayState) error
	PlayState() (PlayState, error)
	// Position is the play head, in milliseconds resolution.
	Position() (time.Duration, error)
	SetMarkerPosition(pos time.Duration) error
	SetCallbackEventsMask(mask Event) error
	RegisterCallback(fn func(Event)) error
	MaxVolumeLevel() (int16, error)
	SetVolumeLevel(millibel int16) error
	Destroy()
}

type Recorder interface {
	Queue() BufferQueue
	ObjectState() ObjectState
	SetRecordState(state RecordState) error
	RecordState() (RecordState, error)
	SetMarkerPosition(pos time.Duration) error
	SetCallbackEventsMask(mask Event) error
	RegisterCallback(fn func(Event)) error
	Destroy()
}

// DeferredPauser is implemented by players and recorders that can be paused
// from a queue or marker callback of any object created by the same engine.
// The object stops delivering callbacks right away, the native stop completes
// later.
type DeferredPauser interface {
	PauseDeferred() error
}
