// SPDX-License-Identifier: EPL-2.0

package opensl

import (
	"fmt"

	"github.com/ik5/slaudio/internal/errors"
)

var (
	// ErrGeneric reports a failed platform call.
	ErrGeneric = errors.NewStd("opensl: generic error")

	// ErrInvalidFormat reports an unsupported channel count or sample format.
	ErrInvalidFormat = errors.NewStd("opensl: invalid format")

	// ErrNotSupported reports a platform or operation this backend cannot
	// serve.
	ErrNotSupported = errors.NewStd("opensl: not supported")

	// ErrInvalidState reports an operation the stream's state forbids.
	ErrInvalidState = errors.NewStd("opensl: invalid state")

	// ErrInvalidParameter reports a malformed stream configuration.
	ErrInvalidParameter = errors.NewStd("opensl: invalid parameter")
)

// newError wraps sentinel, and cause when present, into an enhanced error.
func newError(sentinel error, cause error, op string) *errors.ErrorBuilder {
	var err error
	if cause != nil {
		err = fmt.Errorf("%w: %s: %w", sentinel, op, cause)
	} else {
		err = fmt.Errorf("%w: %s", sentinel, op)
	}

	category := errors.CategoryAudioDevice
	switch sentinel {
	case ErrInvalidFormat, ErrInvalidParameter:
		category = errors.CategoryValidation
	case ErrInvalidState:
		category = errors.CategoryState
	}

	return errors.New(err).Component("opensl").Category(category)
}
