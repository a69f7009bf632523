package vm

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Runtime errors
// ---------------------------------------------------------------------------

var (
	// ErrNotContinuable is returned by Continue on a context that is not
	// suspended inside a native call.
	ErrNotContinuable = errors.New("context is not continuable")

	// ErrContextBusy is returned when a context is re-entered while it is
	// already executing. Natives must call back through a SubContext.
	ErrContextBusy = errors.New("context is already running")
)

// TraceFrame is one entry of a script stack trace.
type TraceFrame struct {
	File string
	Line int
}

func (f TraceFrame) String() string {
	return fmt.Sprintf("at %s, line %d", f.File, f.Line)
}

// RuntimeError is raised by failing script code. Trace lists the active
// frames innermost first. Value holds the argument of die() when it was not
// a string, and is only valid until the context is reused.
type RuntimeError struct {
	Message string
	Value   Value
	Trace   []TraceFrame

	cause error
}

func (e *RuntimeError) Error() string {
	return e.Message
}

// Unwrap returns the host error a native function failed with, if any.
func (e *RuntimeError) Unwrap() error {
	return e.cause
}

// FormatTrace renders err with one "at FILE, line N" line per frame. Errors
// that are not RuntimeErrors are rendered as their message.
func FormatTrace(err error) string {
	var re *RuntimeError
	if !errors.As(err, &re) {
		return err.Error()
	}
	var sb strings.Builder
	sb.WriteString(re.Message)
	for _, f := range re.Trace {
		sb.WriteString("\n  ")
		sb.WriteString(f.String())
	}
	return sb.String()
}

func errOutOfMemory() *RuntimeError {
	return &RuntimeError{Message: "out of memory", Value: Nil}
}

// ---------------------------------------------------------------------------
// Raising (panic/recover at the Call boundary)
// ---------------------------------------------------------------------------

// trace snapshots the frame stack, innermost first.
func (c *Context) trace() []TraceFrame {
	tr := make([]TraceFrame, 0, c.fp)
	for i := c.fp - 1; i >= 0; i-- {
		f := &c.frames[i]
		tr = append(tr, TraceFrame{
			File: c.rt.GoString(f.code.File),
			Line: f.code.LineAt(f.ip - 1),
		})
	}
	return tr
}

// raise aborts the running instruction with a RuntimeError.
func (c *Context) raise(format string, args ...any) {
	panic(&RuntimeError{
		Message: fmt.Sprintf(format, args...),
		Value:   Nil,
		Trace:   c.trace(),
	})
}

// raiseErr surfaces a native function's failure. RuntimeErrors pass through
// unchanged apart from gaining a trace; anything else is wrapped.
func (c *Context) raiseErr(err error) {
	var re *RuntimeError
	if errors.As(err, &re) {
		if re.Trace == nil {
			re.Trace = c.trace()
		}
		panic(re)
	}
	panic(&RuntimeError{
		Message: err.Error(),
		Value:   Nil,
		Trace:   c.trace(),
		cause:   err,
	})
}

// Die builds the error a native returns to abort the script with v. String
// and number values become the message; anything else is carried in Value.
func (c *Context) Die(v Value) error {
	msg := "script error"
	if v.IsScalar() {
		msg = c.rt.toString(v)
	}
	return &RuntimeError{Message: msg, Value: v}
}

// Errorf builds a plain runtime error for a native to return.
func Errorf(format string, args ...any) error {
	return &RuntimeError{Message: fmt.Sprintf(format, args...), Value: Nil}
}

// protect runs fn and converts a raised RuntimeError into a return value.
// A failure inside a native call leaves the frames in place so the context
// can be continued; any other failure unwinds the context completely.
func (c *Context) protect(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		re, ok := r.(*RuntimeError)
		if !ok {
			panic(r)
		}
		if re.Trace == nil {
			re.Trace = c.trace()
		}
		c.err = re
		if c.nativeBase >= 0 && c.fp > 0 {
			c.suspended = true
			c.resumeSP = c.nativeBase
		} else {
			c.unwind()
		}
		c.nativeBase = -1
		err = re
	}()
	fn()
	return nil
}
