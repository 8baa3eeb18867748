package classrt

import "fmt"

type Warning struct {
	Location string
	Message  string
}

func (w Warning) String() string {
	return w.Location + ": " + w.Message
}

// Shadowed returns the ancestor definition that def's own method name
// overrides, if any.
func (r *Registry) Shadowed(def *ClassDef, name string) (*Method, bool) {
	if def == nil {
		return nil, false
	}
	m := findMethod(def.Parent, name)
	return m, m != nil
}

// Subclasses returns every registered class that descends from def, in
// definition order.
func (r *Registry) Subclasses(def *ClassDef) []*ClassDef {
	var out []*ClassDef
	for _, candidate := range r.Classes() {
		if candidate.IsSubclassOf(def) {
			out = append(out, candidate)
		}
	}
	return out
}

// Check compiles the program into a scratch registry and reports steps that
// will fail or do nothing at run time. Compile errors are returned as err.
func (p *Program) Check() (*Registry, []Warning, error) {
	reg := NewRegistry()
	if _, err := p.Compile(reg); err != nil {
		return nil, nil, err
	}

	var warnings []Warning
	warn := func(location, format string, args ...any) {
		warnings = append(warnings, Warning{Location: location, Message: fmt.Sprintf(format, args...)})
	}

	for _, class := range p.Classes {
		def, err := reg.Lookup(class.Name)
		if err != nil {
			continue
		}
		for i, step := range class.Constructor {
			if step.Call != "" && !respondsInHierarchy(reg, def, step.Call) {
				warn(fmt.Sprintf("%s.new step %d", def.Name, i+1), "call %s is not defined for %s or its subclasses", step.Call, def.Name)
			}
		}
		for _, name := range sortedMethodNames(class.Methods) {
			for i, step := range class.Methods[name] {
				location := fmt.Sprintf("%s#%s step %d", def.Name, name, i+1)
				switch {
				case step.Call != "" && !respondsInHierarchy(reg, def, step.Call):
					warn(location, "call %s is not defined for %s or its subclasses", step.Call, def.Name)
				case step.Super:
					if _, ok := reg.Shadowed(def, name); !ok {
						warn(location, "super has no ancestor definition of %s", name)
					}
				}
			}
		}
	}

	bound := make(map[string]*ClassDef)
	used := make(map[string]bool)
	var order []string
	for i, step := range p.Main {
		location := fmt.Sprintf("main step %d", i+1)
		if step.New != "" {
			def, err := reg.Lookup(step.New)
			if err != nil {
				warn(location, "unknown class %s", step.New)
			}
			if _, seen := bound[step.As]; !seen {
				order = append(order, step.As)
			}
			bound[step.As] = def
			continue
		}
		def, ok := bound[step.On]
		if !ok {
			warn(location, "undefined variable %q", step.On)
			continue
		}
		used[step.On] = true
		if def != nil && findMethod(def, step.Call) == nil {
			warn(location, "%s does not respond to %s", def.Name, step.Call)
		}
	}
	for _, name := range order {
		if !used[name] {
			warn("main", "variable %q is never used", name)
		}
	}

	return reg, warnings, nil
}

// respondsInHierarchy reports whether a call of name made by a body of def
// can resolve for some receiver: def or an ancestor defines it, or a
// subclass does (the body then acts as a template method).
func respondsInHierarchy(reg *Registry, def *ClassDef, name string) bool {
	if findMethod(def, name) != nil {
		return true
	}
	for _, sub := range reg.Subclasses(def) {
		if sub.Defines(name) {
			return true
		}
	}
	return false
}
