package classrt

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidClass   = errors.New("invalid class")
	ErrDuplicateClass = errors.New("duplicate class")
	ErrUnknownParent  = errors.New("unknown parent class")
	ErrUnknownClass   = errors.New("unknown class")
	ErrMethodNotFound = errors.New("method not found")
	ErrRecursionLimit = errors.New("recursion depth exceeded")
)

const (
	runtimeErrorFrameHead = 8
	runtimeErrorFrameTail = 8
)

// DefinitionError reports a registration or resolution failure. Err is one
// of the package sentinels; match it with errors.Is.
type DefinitionError struct {
	Op    string
	Class string
	Name  string
	Err   error
}

func (e *DefinitionError) Error() string {
	subject := e.Class
	if subject == "" {
		subject = "<anonymous>"
	}
	switch {
	case errors.Is(e.Err, ErrMethodNotFound):
		return fmt.Sprintf("%s %s#%s: %v", e.Op, subject, e.Name, e.Err)
	case e.Name != "":
		return fmt.Sprintf("%s %s: %v %q", e.Op, subject, e.Err, e.Name)
	default:
		return fmt.Sprintf("%s %s: %v", e.Op, subject, e.Err)
	}
}

func (e *DefinitionError) Unwrap() error { return e.Err }

type StackFrame struct {
	Function string
}

// RuntimeError is returned when a constructor or method body fails. Frames
// run innermost first.
type RuntimeError struct {
	Message string
	Frames  []StackFrame
	Err     error
}

func (re *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(re.Message)
	renderFrame := func(frame StackFrame) {
		fmt.Fprintf(&b, "\n  at %s", frame.Function)
	}

	if len(re.Frames) <= runtimeErrorFrameHead+runtimeErrorFrameTail {
		for _, frame := range re.Frames {
			renderFrame(frame)
		}
		return b.String()
	}

	for _, frame := range re.Frames[:runtimeErrorFrameHead] {
		renderFrame(frame)
	}
	omitted := len(re.Frames) - (runtimeErrorFrameHead + runtimeErrorFrameTail)
	fmt.Fprintf(&b, "\n  ... %d frames omitted ...", omitted)
	for _, frame := range re.Frames[len(re.Frames)-runtimeErrorFrameTail:] {
		renderFrame(frame)
	}

	return b.String()
}

func (re *RuntimeError) Unwrap() error { return re.Err }

func definitionError(op, class, name string, err error) error {
	return &DefinitionError{Op: op, Class: class, Name: name, Err: err}
}
