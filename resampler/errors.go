// SPDX-License-Identifier: EPL-2.0

package resampler

import "errors"

var (
	// ErrCallback is returned by Fill when the data callback reports an error
	// or produces more frames than it was asked for.
	ErrCallback = errors.New("resampler: data callback failed")

	// ErrInvalidConfig is returned by New for inconsistent parameters.
	ErrInvalidConfig = errors.New("resampler: invalid configuration")
)

// ErrClosed is returned by Fill after Close.
var ErrClosed = errors.New("resampler: closed")
