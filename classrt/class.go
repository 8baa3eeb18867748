package classrt

import "sort"

// ConstructorFunc is one level of a constructor chain. It runs with self
// already allocated and tagged with its dynamic class.
type ConstructorFunc func(exec *Execution, self *Instance, args []Value) error

// MethodFunc is a method body bound to its receiver at call time.
type MethodFunc func(exec *Execution, self *Instance, args []Value) (Value, error)

// ClassDef describes a registered class. It is created by Registry.Define
// and must not be modified afterwards.
type ClassDef struct {
	Name        string
	Parent      *ClassDef
	Constructor ConstructorFunc
	Methods     map[string]MethodFunc

	chain    []*ClassDef
	registry *Registry
}

// Method is the result of a method lookup: the body plus the class that
// defines it, which may be an ancestor of the class the lookup started at.
type Method struct {
	Name  string
	Owner *ClassDef
	Fn    MethodFunc
}

type Instance struct {
	Class *ClassDef
	Ivars map[string]Value
}

func newInstance(def *ClassDef) *Instance {
	return &Instance{Class: def, Ivars: make(map[string]Value)}
}

// Chain returns the root-first ancestry chain ending at c.
func (c *ClassDef) Chain() []*ClassDef {
	if c.chain == nil {
		return buildChain(c)
	}
	out := make([]*ClassDef, len(c.chain))
	copy(out, c.chain)
	return out
}

// IsSubclassOf reports whether parent appears strictly above c in its chain.
func (c *ClassDef) IsSubclassOf(parent *ClassDef) bool {
	for cur := c.Parent; cur != nil; cur = cur.Parent {
		if cur == parent {
			return true
		}
	}
	return false
}

// Defines reports whether c itself, ignoring ancestors, defines method name.
func (c *ClassDef) Defines(name string) bool {
	_, ok := c.Methods[name]
	return ok
}

// MethodNames lists the methods c defines itself, sorted.
func (c *ClassDef) MethodNames() []string {
	names := make([]string, 0, len(c.Methods))
	for name := range c.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *ClassDef) String() string { return c.Name }

// IsA reports whether the instance's dynamic class is def or descends from it.
func (inst *Instance) IsA(def *ClassDef) bool {
	return inst.Class == def || inst.Class.IsSubclassOf(def)
}

func buildChain(c *ClassDef) []*ClassDef {
	depth := 0
	for cur := c; cur != nil; cur = cur.Parent {
		depth++
	}
	chain := make([]*ClassDef, depth)
	for cur := c; cur != nil; cur = cur.Parent {
		depth--
		chain[depth] = cur
	}
	return chain
}
