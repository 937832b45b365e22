// SPDX-License-Identifier: EPL-2.0

package resampler

import "github.com/ik5/slaudio/utils"

// converter streams interleaved float frames from one rate to another using
// cubic interpolation. Source frames are pushed in blocks of any size and
// output frames are pulled as soon as enough lookahead is buffered.
type converter struct {
	channels int
	// step is how many source frames one output frame advances.
	step float64

	// buf holds pending source frames. pos indexes the next output frame
	// inside buf and is kept >= 1 so one frame of history precedes it.
	buf []float32
	pos float64

	// One-pole low-pass applied on push when downsampling.
	useFilter   bool
	filterAlpha float32
	filterState []float32
	filterReady bool
}

func newConverter(channels, srcRate, dstRate int) *converter {
	step := float64(srcRate) / float64(dstRate)
	c := &converter{
		channels:    channels,
		step:        step,
		buf:         make([]float32, channels, channels*1024),
		pos:         1,
		useFilter:   step > 1.0,
		filterState: make([]float32, channels),
	}
	if c.useFilter {
		c.filterAlpha = 0.5
	}
	return c
}

// reset drops buffered frames and filter state, as after newConverter.
func (c *converter) reset() {
	c.buf = c.buf[:c.channels]
	clear(c.buf)
	c.pos = 1
	clear(c.filterState)
	c.filterReady = false
}

// push appends source frames.
func (c *converter) push(frames []float32) {
	start := len(c.buf)
	c.buf = append(c.buf, frames...)
	if !c.useFilter {
		return
	}

	added := c.buf[start:]
	if !c.filterReady && len(added) >= c.channels {
		// Seed with the first sample to avoid a warm-up transient.
		copy(c.filterState, added[:c.channels])
		c.filterReady = true
	}
	for i := 0; i+c.channels <= len(added); i += c.channels {
		for ch := range c.channels {
			v := c.filterAlpha*added[i+ch] + (1-c.filterAlpha)*c.filterState[ch]
			added[i+ch] = v
			c.filterState[ch] = v
		}
	}
}

// pushEdge repeats the last buffered frame twice so the tail of a finished
// stream can be interpolated.
func (c *converter) pushEdge() {
	if len(c.buf) < c.channels {
		return
	}
	last := c.buf[len(c.buf)-c.channels:]
	edge := make([]float32, 0, 2*c.channels)
	edge = append(edge, last...)
	edge = append(edge, last...)
	c.buf = append(c.buf, edge...)
}

// available is the number of buffered source frames.
func (c *converter) available() int { return len(c.buf) / c.channels }

// needed estimates how many more source frames are required to produce n
// output frames.
func (c *converter) needed(n int) int {
	last := c.pos + float64(n-1)*c.step
	want := int(last) + 3 - c.available()
	return max(want, 1)
}

// pull writes up to n output frames into dst and returns how many were made.
func (c *converter) pull(dst []float32, n int) int {
	ch := c.channels
	avail := c.available()
	produced := 0

	for produced < n {
		i := int(c.pos)
		if i+2 >= avail {
			break
		}
		x := float32(c.pos - float64(i))
		utils.CubicInterpolateFrame(
			dst[produced*ch:(produced+1)*ch],
			c.buf[(i-1)*ch:i*ch],
			c.buf[i*ch:(i+1)*ch],
			c.buf[(i+1)*ch:(i+2)*ch],
			c.buf[(i+2)*ch:(i+3)*ch],
			x,
		)
		produced++
		c.pos += c.step
	}

	// Drop consumed frames, keep one frame of history.
	if drop := int(c.pos) - 1; drop > 0 {
		drop = min(drop, avail)
		n := copy(c.buf, c.buf[drop*ch:])
		c.buf = c.buf[:n]
		c.pos -= float64(drop)
	}

	return produced
}
