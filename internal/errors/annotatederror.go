package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
)

// AnnotatedError carries the call site and slog attributes of an error so that the log line points to where it
// happened and what it was about.
type AnnotatedError struct {
	// msg is the error message.
	msg string
	// wrapped is the cause, nil for errors created with New.
	wrapped error
	// pc is the program counter of the caller of New or Wrap.
	pc uintptr
	// attrs are added to the log event when the error is logged with SlogError.
	attrs []slog.Attr
}

func newAnnotated(msg string, wrapped error, attrs []slog.Attr) *AnnotatedError {
	var pcs [1]uintptr
	// Skip runtime.Callers, newAnnotated and the exported constructor.
	runtime.Callers(3, pcs[:]) //nolint:mnd // see above
	return &AnnotatedError{
		msg:     msg,
		wrapped: wrapped,
		pc:      pcs[0],
		attrs:   attrs,
	}
}

// New creates an error annotated with the caller location and the given attributes.
func New(msg string, attrs ...slog.Attr) error {
	return newAnnotated(msg, nil, attrs)
}

// NewSentinel creates a plain error meant to be compared with Is.
func NewSentinel(msg string) error {
	return errors.New(msg)
}

// Wrap adds a message, the caller location and attributes to err. Wrapping nil returns nil.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	return newAnnotated(msg, err, attrs)
}

// Error implements error interface.
func (e *AnnotatedError) Error() string {
	if e.wrapped == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %s", e.msg, e.wrapped.Error())
}

// Unwrap returns the wrapped cause.
func (e *AnnotatedError) Unwrap() error {
	return e.wrapped
}

// LogValue collects the source location and attributes of the whole chain of annotated errors.
func (e *AnnotatedError) LogValue() slog.Value {
	frames := runtime.CallersFrames([]uintptr{e.pc})
	source, _ := frames.Next()
	attrs := []slog.Attr{
		slog.String("msg", e.Error()),
		slog.String("source", fmt.Sprintf("%s:%d", source.File, source.Line)),
	}
	attrs = append(attrs, e.attrs...)

	var inner *AnnotatedError
	if errors.As(e.wrapped, &inner) {
		attrs = append(attrs, slog.Any("cause", inner))
	}

	return slog.GroupValue(attrs...)
}

// SlogError returns an attribute for logging err. Annotated errors expand to their source and attributes.
func SlogError(err error) slog.Attr {
	var annotated *AnnotatedError
	if errors.As(err, &annotated) {
		return slog.Any("error", annotated)
	}
	return slog.String("error", fmt.Sprint(err))
}

// As exposes stdlib errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is exposes stdlib errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Join exposes stdlib errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Unwrap exposes stdlib errors.Unwrap.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}
