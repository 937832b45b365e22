// SPDX-License-Identifier: EPL-2.0

// Package errors wraps errors with the component that raised them, a category
// and free-form context, and passes the standard library helpers through so it
// can replace the errors package in imports.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// ErrorCategory groups errors for logging and metrics.
type ErrorCategory string

const (
	CategoryGeneric       ErrorCategory = "generic"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryFileParsing   ErrorCategory = "file-parsing"
	CategoryAudio         ErrorCategory = "audio-processing"
	CategoryAudioDevice   ErrorCategory = "audio-device"
	CategoryBuffer        ErrorCategory = "audio-buffer"
	CategoryState         ErrorCategory = "state"
	CategoryResource      ErrorCategory = "resource"
	CategoryNetwork       ErrorCategory = "network"
)

// ComponentUnknown is used when no component was set.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with additional context and metadata.
type EnhancedError struct {
	Err       error
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time
	component string
}

// Error returns the wrapped message followed by the sorted context pairs.
func (ee *EnhancedError) Error() string {
	if len(ee.Context) == 0 {
		return ee.Err.Error()
	}

	var b strings.Builder
	b.WriteString(ee.Err.Error())
	b.WriteString(" (")
	for i, k := range slices.Sorted(maps.Keys(ee.Context)) {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, ee.Context[k])
	}
	b.WriteString(")")
	return b.String()
}

func (ee *EnhancedError) Unwrap() error { return ee.Err }

// Is matches another EnhancedError by category, anything else through the
// wrapped chain.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return stderrors.Is(ee.Err, target)
}

func (ee *EnhancedError) GetComponent() string { return ee.component }

func (ee *EnhancedError) GetCategory() string { return string(ee.Category) }

// GetContext returns a copy of the context map.
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	return maps.Clone(ee.Context)
}

// ErrorBuilder provides a fluent interface for creating enhanced errors.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts building an enhanced error around err.
func New(err error) *ErrorBuilder {
	if err == nil {
		err = stderrors.New("unknown error")
	}
	return &ErrorBuilder{err: err}
}

// Newf is New with a formatted error; %w verbs are honored.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
		component: eb.component,
	}
	if ee.component == "" {
		ee.component = ComponentUnknown
	}
	if ee.Category == "" {
		ee.Category = categoryOf(eb.err)
	}
	return ee
}

// categoryOf inherits the category of a wrapped EnhancedError.
func categoryOf(err error) ErrorCategory {
	var inner *EnhancedError
	if stderrors.As(err, &inner) && inner.Category != "" {
		return inner.Category
	}
	return CategoryGeneric
}

// IsCategory reports whether err carries an EnhancedError of category.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	return stderrors.As(err, &ee) && ee.Category == category
}

// CategoryOf returns the category of err, CategoryGeneric when it has none.
func CategoryOf(err error) ErrorCategory { return categoryOf(err) }

func NewStd(text string) error { return stderrors.New(text) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Unwrap(err error) error { return stderrors.Unwrap(err) }

func Join(errs ...error) error { return stderrors.Join(errs...) }
