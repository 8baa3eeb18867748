package classrt

import (
	"context"
	"errors"
	"fmt"
)

// Execution is the state of one top-level Construct or Invoke call. Bodies
// receive it to emit output and to make further calls that share the same
// call stack and recursion budget.
type Execution struct {
	runtime      *Runtime
	ctx          context.Context
	recursionCap int
	callStack    []callFrame
}

type callFrame struct {
	Function string
	Class    *ClassDef
	Method   string
}

func (exec *Execution) Context() context.Context { return exec.ctx }

func (exec *Execution) Runtime() *Runtime { return exec.runtime }

// Depth is the number of frames currently on the call stack.
func (exec *Execution) Depth() int { return len(exec.callStack) }

// Emit forwards v to the runtime's sink.
func (exec *Execution) Emit(v Value) {
	exec.runtime.sink.Emit(v)
}

// Construct runs the constructor chain of def root-to-leaf.
func (exec *Execution) Construct(def *ClassDef, args []Value) (*Instance, error) {
	if !exec.runtime.registry.Contains(def) {
		name := ""
		if def != nil {
			name = def.Name
		}
		return nil, definitionError("construct", name, "", ErrUnknownClass)
	}

	inst := newInstance(def)
	for _, level := range def.chain {
		if level.Constructor == nil {
			continue
		}
		if err := exec.pushFrame(callFrame{Function: level.Name + ".new", Class: level}); err != nil {
			return nil, err
		}
		err := level.Constructor(exec, inst, args)
		if err != nil {
			err = exec.wrapError(err)
		}
		exec.popFrame()
		if err != nil {
			return nil, err
		}
	}

	exec.runtime.logger.Debug("construct", "class", def.Name, "levels", len(def.chain))
	return inst, nil
}

// Invoke performs single dispatch of name on inst's dynamic class.
func (exec *Execution) Invoke(inst *Instance, name string, args []Value) (Value, error) {
	if inst == nil || inst.Class == nil {
		return NewNil(), definitionError("invoke", "", name, ErrUnknownClass)
	}
	method := findMethod(inst.Class, name)
	if method == nil {
		return NewNil(), definitionError("invoke", inst.Class.Name, name, ErrMethodNotFound)
	}
	exec.runtime.logger.Debug("dispatch", "receiver", inst.Class.Name, "method", name, "owner", method.Owner.Name)
	return exec.call(method, inst, args)
}

// Super calls the definition of the running method that the running body's
// class shadows, starting the search at that class's parent.
func (exec *Execution) Super(self *Instance, args []Value) (Value, error) {
	frame, ok := exec.currentFrame()
	if !ok || frame.Method == "" {
		return NewNil(), errors.New("super called outside a method body")
	}
	method := findMethod(frame.Class.Parent, frame.Method)
	if method == nil {
		return NewNil(), definitionError("super", frame.Class.Name, frame.Method, ErrMethodNotFound)
	}
	exec.runtime.logger.Debug("super", "from", frame.Class.Name, "method", frame.Method, "owner", method.Owner.Name)
	return exec.call(method, self, args)
}

func (exec *Execution) call(method *Method, self *Instance, args []Value) (Value, error) {
	frame := callFrame{Function: method.Owner.Name + "#" + method.Name, Class: method.Owner, Method: method.Name}
	if err := exec.pushFrame(frame); err != nil {
		return NewNil(), err
	}
	defer exec.popFrame()

	result, err := method.Fn(exec, self, args)
	if err != nil {
		return NewNil(), exec.wrapError(err)
	}
	return result, nil
}

func (exec *Execution) pushFrame(frame callFrame) error {
	if err := exec.ctx.Err(); err != nil {
		return err
	}
	if exec.recursionCap > 0 && len(exec.callStack) >= exec.recursionCap {
		return exec.wrapError(fmt.Errorf("%w (limit %d)", ErrRecursionLimit, exec.recursionCap))
	}
	exec.callStack = append(exec.callStack, frame)
	return nil
}

func (exec *Execution) popFrame() {
	if len(exec.callStack) == 0 {
		return
	}
	exec.callStack = exec.callStack[:len(exec.callStack)-1]
}

func (exec *Execution) currentFrame() (callFrame, bool) {
	if len(exec.callStack) == 0 {
		return callFrame{}, false
	}
	return exec.callStack[len(exec.callStack)-1], true
}

func (exec *Execution) wrapError(err error) error {
	if err == nil {
		return nil
	}
	var runtimeErr *RuntimeError
	if errors.As(err, &runtimeErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	frames := make([]StackFrame, 0, len(exec.callStack))
	for i := len(exec.callStack) - 1; i >= 0; i-- {
		frames = append(frames, StackFrame{Function: exec.callStack[i].Function})
	}
	return &RuntimeError{Message: err.Error(), Frames: frames, Err: err}
}
