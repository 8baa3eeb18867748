package classrt

import (
	"maps"
	"sync"
)

// Registry owns a set of class definitions and answers ancestry queries.
// Definitions are write-once per name; the table is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*ClassDef
	order   []*ClassDef
}

func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*ClassDef)}
}

// Define registers a class. parent is the name of a previously defined class,
// or "" for a root class. A nil constructor is a no-op. The methods map is
// copied.
func (r *Registry) Define(name, parent string, ctor ConstructorFunc, methods map[string]MethodFunc) (*ClassDef, error) {
	if name == "" {
		return nil, definitionError("define", "", "", ErrInvalidClass)
	}
	for methodName, fn := range methods {
		if methodName == "" || fn == nil {
			return nil, definitionError("define", name, methodName, ErrInvalidClass)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.classes[name]; exists {
		return nil, definitionError("define", name, "", ErrDuplicateClass)
	}
	var parentDef *ClassDef
	if parent != "" {
		def, ok := r.classes[parent]
		if !ok {
			return nil, definitionError("define", name, parent, ErrUnknownParent)
		}
		parentDef = def
	}

	def := &ClassDef{
		Name:        name,
		Parent:      parentDef,
		Constructor: ctor,
		Methods:     make(map[string]MethodFunc, len(methods)),
		registry:    r,
	}
	maps.Copy(def.Methods, methods)
	def.chain = buildChain(def)

	r.classes[name] = def
	r.order = append(r.order, def)
	return def, nil
}

// Lookup returns the class registered under name.
func (r *Registry) Lookup(name string) (*ClassDef, error) {
	r.mu.RLock()
	def, ok := r.classes[name]
	r.mu.RUnlock()
	if !ok {
		return nil, definitionError("lookup", name, "", ErrUnknownClass)
	}
	return def, nil
}

// Contains reports whether def is the class this registry holds under
// def.Name.
func (r *Registry) Contains(def *ClassDef) bool {
	if def == nil || def.registry != r {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.classes[def.Name] == def
}

// Classes returns every registered class in definition order.
func (r *Registry) Classes() []*ClassDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ClassDef, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// AncestryChain returns the root-first chain ending at def.
func (r *Registry) AncestryChain(def *ClassDef) []*ClassDef {
	if def == nil {
		return nil
	}
	return def.Chain()
}

// LookupMethod finds the nearest definition of name starting at def and
// walking toward the root.
func (r *Registry) LookupMethod(def *ClassDef, name string) (*Method, error) {
	if def == nil {
		return nil, definitionError("lookup", "", name, ErrUnknownClass)
	}
	if m := findMethod(def, name); m != nil {
		return m, nil
	}
	return nil, definitionError("lookup", def.Name, name, ErrMethodNotFound)
}

func findMethod(def *ClassDef, name string) *Method {
	for cur := def; cur != nil; cur = cur.Parent {
		if fn, ok := cur.Methods[name]; ok {
			return &Method{Name: name, Owner: cur, Fn: fn}
		}
	}
	return nil
}
