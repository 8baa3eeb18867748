package classrt

import (
	"errors"
	"fmt"
	"sort"
)

func compileConstructor(body []Step) ConstructorFunc {
	steps := append([]Step(nil), body...)
	return func(exec *Execution, self *Instance, args []Value) error {
		_, err := runSteps(exec, self, args, steps)
		return err
	}
}

// compileMethod turns a step list into a method body. The method returns the
// value of a return step, otherwise the result of the last call or super
// step, otherwise nil.
func compileMethod(body []Step) MethodFunc {
	steps := append([]Step(nil), body...)
	return func(exec *Execution, self *Instance, args []Value) (Value, error) {
		return runSteps(exec, self, args, steps)
	}
}

func runSteps(exec *Execution, self *Instance, args []Value, steps []Step) (Value, error) {
	last := NewNil()
	for _, step := range steps {
		switch {
		case step.Emit != nil:
			v, err := FromGo(step.Emit)
			if err != nil {
				return NewNil(), err
			}
			exec.Emit(v)
		case step.EmitArg != nil:
			v, err := argAt(args, *step.EmitArg)
			if err != nil {
				return NewNil(), err
			}
			exec.Emit(v)
		case step.EmitIvar != "":
			v, ok := self.Ivars[step.EmitIvar]
			if !ok {
				return NewNil(), fmt.Errorf("undefined instance variable @%s on %s", step.EmitIvar, self.Class.Name)
			}
			exec.Emit(v)
		case step.EmitClass:
			exec.Emit(NewString(self.Class.Name))
		case step.Set != "":
			v, err := setValue(step, args)
			if err != nil {
				return NewNil(), err
			}
			self.Ivars[step.Set] = v
		case step.Call != "":
			callArgs, err := valuesFromGo(step.Args)
			if err != nil {
				return NewNil(), err
			}
			result, err := exec.Invoke(self, step.Call, callArgs)
			if err != nil {
				return NewNil(), err
			}
			last = result
		case step.Super:
			superArgs := args
			if step.Args != nil {
				converted, err := valuesFromGo(step.Args)
				if err != nil {
					return NewNil(), err
				}
				superArgs = converted
			}
			result, err := exec.Super(self, superArgs)
			if err != nil {
				return NewNil(), err
			}
			last = result
		case step.Return != nil:
			return FromGo(step.Return)
		case step.Fail != "":
			return NewNil(), errors.New(step.Fail)
		}
	}
	return last, nil
}

func setValue(step Step, args []Value) (Value, error) {
	if step.FromArg != nil {
		return argAt(args, *step.FromArg)
	}
	return FromGo(step.Value)
}

func argAt(args []Value, idx int) (Value, error) {
	if idx < 0 || idx >= len(args) {
		return NewNil(), fmt.Errorf("argument index %d out of range (%d given)", idx, len(args))
	}
	return args[idx], nil
}

func sortedMethodNames[T any](methods map[string]T) []string {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
