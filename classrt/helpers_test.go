package classrt

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
)

func requireErrorContains(t testing.TB, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got nil", want)
	}
	if got := err.Error(); !strings.Contains(got, want) {
		t.Fatalf("unexpected error: %s", got)
	}
}

func requireErrorIs(t testing.TB, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

func requireStrings(t testing.TB, got, want []string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func mustDefine(t testing.TB, reg *Registry, name, parent string, ctor ConstructorFunc, methods map[string]MethodFunc) *ClassDef {
	t.Helper()
	def, err := reg.Define(name, parent, ctor, methods)
	if err != nil {
		t.Fatalf("define %s: %v", name, err)
	}
	return def
}

func mustConstruct(t testing.TB, rt *Runtime, def *ClassDef, args []Value) *Instance {
	t.Helper()
	inst, err := rt.Construct(context.Background(), def, args)
	if err != nil {
		t.Fatalf("construct %s: %v", def.Name, err)
	}
	return inst
}

func emitting(v Value) MethodFunc {
	return func(exec *Execution, self *Instance, args []Value) (Value, error) {
		exec.Emit(v)
		return NewNil(), nil
	}
}

func tracingConstructor(label string) ConstructorFunc {
	return func(exec *Execution, self *Instance, args []Value) error {
		exec.Emit(NewString(label))
		return nil
	}
}

func chainNames(chain []*ClassDef) []string {
	names := make([]string, len(chain))
	for i, def := range chain {
		names[i] = def.Name
	}
	return names
}

// newAnimals registers the Animal/Cat/Dog hierarchy with no-op constructors.
func newAnimals(t testing.TB) (*Registry, *Runtime, *RecordingSink) {
	t.Helper()
	reg := NewRegistry()
	mustDefine(t, reg, "Animal", "", nil, map[string]MethodFunc{"speak": emitting(NewInt(0))})
	mustDefine(t, reg, "Cat", "Animal", nil, map[string]MethodFunc{"speak": emitting(NewInt(1))})
	mustDefine(t, reg, "Dog", "Animal", nil, map[string]MethodFunc{"speak": emitting(NewInt(2))})
	sink := &RecordingSink{}
	return reg, NewRuntime(reg, sink, Config{}), sink
}
