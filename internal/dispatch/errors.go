package dispatch

import (
	"fmt"

	"github.com/pkg/errors"
)

// ParseError reports a variables or extensions field holding malformed JSON text.
type ParseError struct {
	Field string
	Text  string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid JSON: %v", e.Err)
	}
	return fmt.Sprintf("invalid JSON in %q: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// InvalidArgumentError reports a request field with an unsupported shape.
type InvalidArgumentError struct {
	Field string
	Value any
}

func (e *InvalidArgumentError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("unexpected parameter: %#v", e.Value)
	}
	return fmt.Sprintf("unexpected parameter %q: %#v", e.Field, e.Value)
}

// ExecutionError wraps any failure returned by the Executor.
// Its message is the cause's message.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string { return e.Err.Error() }

func (e *ExecutionError) Unwrap() error { return e.Err }

func newParseError(field, text string, err error) error {
	return errors.WithStack(&ParseError{Field: field, Text: text, Err: err})
}

func newInvalidArgumentError(field string, v any) error {
	return errors.WithStack(&InvalidArgumentError{Field: field, Value: v})
}

func newExecutionError(err error) error {
	return errors.WithStack(&ExecutionError{Err: err})
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Backtrace renders the innermost stack trace recorded in err's chain,
// one "file:line function" entry per frame. It returns nil when no
// stack was recorded.
func Backtrace(err error) []string {
	var st errors.StackTrace
	for e := err; e != nil; e = errors.Unwrap(e) {
		if t, ok := e.(stackTracer); ok {
			st = t.StackTrace()
		}
	}
	if len(st) == 0 {
		return nil
	}
	out := make([]string, len(st))
	for i, f := range st {
		out[i] = fmt.Sprintf("%s:%d %n", f, f, f)
	}
	return out
}
