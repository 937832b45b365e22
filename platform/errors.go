// SPDX-License-Identifier: EPL-2.0

package platform

import "errors"

var (
	// ErrContentUnsupported is returned when a player or recorder cannot be
	// created for the requested PCM format, most often its sample rate.
	ErrContentUnsupported = errors.New("content unsupported")

	// ErrBufferQueueFull is returned by Enqueue when every queue slot is taken.
	ErrBufferQueueFull = errors.New("buffer queue full")

	// ErrDestroyed is returned by operations on a destroyed object.
	ErrDestroyed = errors.New("object destroyed")

	// ErrUnavailable is returned by capability queries the platform cannot answer.
	ErrUnavailable = errors.New("capability unavailable")
)
