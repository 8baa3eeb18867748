package classrt

import (
	"context"
	"fmt"
	"maps"
)

// Session binds instances to variable names so a host can drive a runtime
// step by step.
type Session struct {
	runtime *Runtime
	vars    map[string]*Instance
}

func NewSession(rt *Runtime) *Session {
	return &Session{runtime: rt, vars: make(map[string]*Instance)}
}

func (s *Session) Runtime() *Runtime { return s.runtime }

// New constructs class and binds the instance to name, replacing any
// previous binding.
func (s *Session) New(ctx context.Context, class, name string, args []Value) (*Instance, error) {
	inst, err := s.runtime.ConstructByName(ctx, class, args)
	if err != nil {
		return nil, err
	}
	s.vars[name] = inst
	return inst, nil
}

// Call invokes method on the instance bound to name.
func (s *Session) Call(ctx context.Context, name, method string, args []Value) (Value, error) {
	inst, ok := s.vars[name]
	if !ok {
		return NewNil(), fmt.Errorf("undefined variable %q", name)
	}
	return s.runtime.Invoke(ctx, inst, method, args)
}

// Exec runs one main step. Construction steps return the new instance.
func (s *Session) Exec(ctx context.Context, step MainStep) (Value, error) {
	if err := step.validate(); err != nil {
		return NewNil(), err
	}
	args, err := valuesFromGo(step.Args)
	if err != nil {
		return NewNil(), err
	}
	if step.New != "" {
		inst, err := s.New(ctx, step.New, step.As, args)
		if err != nil {
			return NewNil(), err
		}
		return NewInstance(inst), nil
	}
	return s.Call(ctx, step.On, step.Call, args)
}

func (s *Session) Lookup(name string) (*Instance, bool) {
	inst, ok := s.vars[name]
	return inst, ok
}

// Vars lists bound variable names, sorted.
func (s *Session) Vars() []string {
	return sortedMethodNames(s.vars)
}

func (s *Session) Reset() {
	s.vars = make(map[string]*Instance)
}

// Run executes the program's main steps in a new session and returns it.
func (p *Program) Run(ctx context.Context, rt *Runtime) (*Session, error) {
	session := NewSession(rt)
	for i, step := range p.Main {
		if _, err := session.Exec(ctx, step); err != nil {
			return session, fmt.Errorf("main step %d: %w", i+1, err)
		}
	}
	return session, nil
}

// Bindings returns a copy of the session's variables.
func (s *Session) Bindings() map[string]*Instance {
	return maps.Clone(s.vars)
}
