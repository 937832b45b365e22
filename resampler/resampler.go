// SPDX-License-Identifier: EPL-2.0

// Package resampler bridges native 16-bit PCM buffers and the application data
// callback.
//
// A Resampler is created with the parameters the device actually runs at and
// the rate the application asked for. When both match it is a passthrough that
// only converts between bytes and samples. Otherwise captured audio is
// converted to the stream rate before the callback sees it and rendered audio
// is converted to the device rate after the callback produced it, both with
// cubic interpolation.
//
// # Fill
//
// Fill is the only entry point used by a stream:
//
//	// output only: produce up to 480 device frames into buf
//	n, err := r.Fill(nil, nil, buf, 480)
//
//	// input only: hand a filled capture buffer to the callback
//	frames := len(capture) / frameSize
//	n, err := r.Fill(capture, &frames, nil, 0)
//
//	// full duplex
//	n, err := r.Fill(capture, &frames, buf, 480)
//
// A result lower than requested means the callback has no more data. A
// negative callback result is reported as ErrCallback.
package resampler

import (
	"encoding/binary"
	"fmt"

	"github.com/ik5/slaudio/utils"
)

// DataCallback is invoked with interleaved samples at the stream rate. input
// is nil for output-only streams and output is nil for input-only streams. It
// returns the number of frames produced (or consumed for input-only streams);
// a negative value aborts the stream.
type DataCallback func(input, output []int16, frames int) int

// Params of one direction as seen by the device.
type Params struct {
	Channels int
	Rate     int
	// Order of samples inside native buffers, little endian when nil.
	Order binary.ByteOrder
}

type Config struct {
	// Input is nil when capture is disabled.
	Input *Params
	// Output is nil when playback is disabled.
	Output *Params
	// TargetRate is the rate the data callback runs at.
	TargetRate int
	Callback   DataCallback
	// MaxPendingFrames bounds the duplex input backlog, one second of audio
	// at TargetRate by default.
	MaxPendingFrames int
}

type Resampler struct {
	cb         DataCallback
	in, out    *Params
	targetRate int

	inConv, outConv *converter
	ended           bool
	closed          bool

	inPCM    []int16
	inF      []float32
	convF    []float32
	cbIn     []int16
	duplexIn []int16
	cbOut    []int16
	cbOutF   []float32
	outF     []float32
	outPCM   []int16

	pending    []int16
	maxPending int
}

func New(cfg Config) (*Resampler, error) {
	if cfg.Callback == nil {
		return nil, fmt.Errorf("%w: nil data callback", ErrInvalidConfig)
	}
	if cfg.Input == nil && cfg.Output == nil {
		return nil, fmt.Errorf("%w: neither input nor output", ErrInvalidConfig)
	}
	if cfg.TargetRate <= 0 {
		return nil, fmt.Errorf("%w: target rate %d", ErrInvalidConfig, cfg.TargetRate)
	}

	r := &Resampler{
		cb:         cfg.Callback,
		targetRate: cfg.TargetRate,
		maxPending: cfg.MaxPendingFrames,
	}
	if r.maxPending <= 0 {
		r.maxPending = cfg.TargetRate
	}

	var err error
	if r.in, err = normalize(cfg.Input); err != nil {
		return nil, err
	}
	if r.out, err = normalize(cfg.Output); err != nil {
		return nil, err
	}

	if r.in != nil && r.in.Rate != r.targetRate {
		r.inConv = newConverter(r.in.Channels, r.in.Rate, r.targetRate)
	}
	if r.out != nil && r.out.Rate != r.targetRate {
		r.outConv = newConverter(r.out.Channels, r.targetRate, r.out.Rate)
	}

	return r, nil
}

func normalize(p *Params) (*Params, error) {
	if p == nil {
		return nil, nil
	}
	if p.Channels <= 0 || p.Rate <= 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrInvalidConfig, p.Channels, p.Rate)
	}
	cp := *p
	if cp.Order == nil {
		cp.Order = binary.LittleEndian
	}
	return &cp, nil
}

// Passthrough reports whether no rate conversion takes place.
func (r *Resampler) Passthrough() bool { return r.inConv == nil && r.outConv == nil }

// Fill runs one buffer cycle, see the package documentation. For input-only
// streams the result counts device input frames, otherwise device output
// frames.
func (r *Resampler) Fill(input []byte, inputFrames *int, output []byte, outputFrames int) (int, error) {
	if r.closed {
		return -1, ErrClosed
	}

	switch {
	case r.out == nil:
		if inputFrames == nil {
			return -1, fmt.Errorf("%w: input frame count required", ErrInvalidConfig)
		}
		return r.fillInput(input, *inputFrames)
	case r.in == nil:
		return r.fillOutput(output, outputFrames)
	default:
		if inputFrames != nil {
			r.queueInput(input, *inputFrames)
		}
		return r.fillOutput(output, outputFrames)
	}
}

// Reset drops converter state and pending input so a stream that ended can
// be started again. It must not run concurrently with Fill.
func (r *Resampler) Reset() {
	r.ended = false
	r.pending = r.pending[:0]
	if r.inConv != nil {
		r.inConv.reset()
	}
	if r.outConv != nil {
		r.outConv.reset()
	}
}

// Close releases the scratch buffers. Fill fails afterwards.
func (r *Resampler) Close() error {
	r.closed = true
	r.inPCM, r.inF, r.convF, r.cbIn, r.duplexIn = nil, nil, nil, nil, nil
	r.cbOut, r.cbOutF, r.outF, r.outPCM, r.pending = nil, nil, nil, nil, nil
	return nil
}

func (r *Resampler) decodeInput(input []byte, frames int) []int16 {
	ch := r.in.Channels
	r.inPCM = grow(r.inPCM, frames*ch)
	n := utils.DecodePCM16(r.inPCM, input, r.in.Order)
	return r.inPCM[:n-n%ch]
}

func (r *Resampler) fillInput(input []byte, frames int) (int, error) {
	ch := r.in.Channels
	pcm := r.decodeInput(input, frames)
	n := len(pcm) / ch

	if r.inConv == nil {
		got := r.cb(pcm, nil, n)
		if got < 0 {
			return got, ErrCallback
		}
		return got, nil
	}

	converted := r.convertInput(pcm)
	if converted == 0 {
		// Still filling the interpolation lookahead.
		return n, nil
	}
	got := r.cb(r.cbIn[:converted*ch], nil, converted)
	if got < 0 {
		return got, ErrCallback
	}
	return n * got / converted, nil
}

// convertInput moves pcm through the input converter into cbIn and returns
// the number of stream-rate frames available there.
func (r *Resampler) convertInput(pcm []int16) int {
	ch := r.in.Channels
	r.inF = grow(r.inF, len(pcm))
	for i, s := range pcm {
		r.inF[i] = utils.Int16ToFloat32(s)
	}
	r.inConv.push(r.inF)

	maxOut := int(float64(len(pcm)/ch)/r.inConv.step) + 2
	r.convF = grow(r.convF, maxOut*ch)
	n := r.inConv.pull(r.convF, maxOut)

	r.cbIn = grow(r.cbIn, n*ch)
	for i := range r.cbIn {
		r.cbIn[i] = utils.Float32ToInt16(r.convF[i])
	}
	return n
}

func (r *Resampler) queueInput(input []byte, frames int) {
	if frames <= 0 || len(input) == 0 {
		return
	}
	ch := r.in.Channels
	pcm := r.decodeInput(input, frames)
	if r.inConv != nil {
		n := r.convertInput(pcm)
		pcm = r.cbIn[:n*ch]
	}
	r.pending = append(r.pending, pcm...)

	// Drop the oldest input when the callback falls behind the capture side.
	if over := len(r.pending) - r.maxPending*ch; over > 0 {
		r.pending = r.pending[:copy(r.pending, r.pending[over:])]
	}
}

// invoke calls the data callback for want stream-rate frames, leaving its
// output in cbOut.
func (r *Resampler) invoke(want int) (int, error) {
	r.cbOut = grow(r.cbOut, want*r.out.Channels)
	clear(r.cbOut)

	var in []int16
	if r.in != nil {
		// Underruns are padded with silence.
		r.duplexIn = grow(r.duplexIn, want*r.in.Channels)
		in = r.duplexIn
		n := copy(in, r.pending)
		clear(in[n:])
		r.pending = r.pending[:copy(r.pending, r.pending[n:])]
	}

	got := r.cb(in, r.cbOut, want)
	if got < 0 {
		return got, ErrCallback
	}
	return got, nil
}

func (r *Resampler) fillOutput(output []byte, frames int) (int, error) {
	ch := r.out.Channels

	if r.outConv == nil {
		got, err := r.invoke(frames)
		if err != nil {
			return got, err
		}
		utils.EncodePCM16(output, r.cbOut[:min(got, frames)*ch], r.out.Order)
		return got, nil
	}

	r.outF = grow(r.outF, frames*ch)
	produced := 0
	for {
		produced += r.outConv.pull(r.outF[produced*ch:], frames-produced)
		if produced == frames || r.ended {
			break
		}

		want := r.outConv.needed(frames - produced)
		got, err := r.invoke(want)
		if err != nil {
			return got, err
		}
		if got > want {
			return got, fmt.Errorf("%w: %d frames produced, %d requested", ErrCallback, got, want)
		}

		r.cbOutF = grow(r.cbOutF, got*ch)
		for i := range r.cbOutF {
			r.cbOutF[i] = utils.Int16ToFloat32(r.cbOut[i])
		}
		r.outConv.push(r.cbOutF)
		if got < want {
			r.ended = true
			r.outConv.pushEdge()
		}
	}

	r.outPCM = grow(r.outPCM, produced*ch)
	for i := range r.outPCM {
		r.outPCM[i] = utils.Float32ToInt16(r.outF[i])
	}
	utils.EncodePCM16(output, r.outPCM, r.out.Order)

	return produced, nil
}

// grow returns s resized to n, reallocating only when it lacks capacity.
func grow[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}
