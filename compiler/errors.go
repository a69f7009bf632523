package compiler

import (
	"fmt"
)

// Error is a compile-time failure: a lexical, structural or code
// generation error at a source line.
type Error struct {
	File    string
	Line    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
}

// throw aborts the current compile stage. Stage entry points recover it
// with recoverError.
func throw(file string, line int, format string, args ...any) {
	panic(&Error{File: file, Line: line, Message: fmt.Sprintf(format, args...)})
}

func recoverError(err *error) {
	if r := recover(); r != nil {
		ce, ok := r.(*Error)
		if !ok {
			panic(r)
		}
		*err = ce
	}
}
