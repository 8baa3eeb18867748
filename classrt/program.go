package classrt

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
)

// Program is a declarative host program: class definitions followed by a
// sequence of construct and call steps.
type Program struct {
	Classes []ClassSpec `toml:"class"`
	Main    []MainStep  `toml:"main"`
}

type ClassSpec struct {
	Name        string            `toml:"name"`
	Parent      string            `toml:"parent"`
	Constructor []Step            `toml:"constructor"`
	Methods     map[string][]Step `toml:"methods"`
}

// Step is one action of a constructor or method body. Exactly one action
// key must be set; Value, FromArg and Args qualify the action.
type Step struct {
	Emit      any    `toml:"emit"`
	EmitArg   *int   `toml:"emit_arg"`
	EmitIvar  string `toml:"emit_ivar"`
	EmitClass bool   `toml:"emit_class"`
	Set       string `toml:"set"`
	Value     any    `toml:"value"`
	FromArg   *int   `toml:"from_arg"`
	Call      string `toml:"call"`
	Args      []any  `toml:"args"`
	Super     bool   `toml:"super"`
	Return    any    `toml:"return"`
	Fail      string `toml:"fail"`
}

// MainStep either constructs an instance (New + As) or calls a method on a
// previously bound variable (Call + On).
type MainStep struct {
	New  string `toml:"new"`
	As   string `toml:"as"`
	Call string `toml:"call"`
	On   string `toml:"on"`
	Args []any  `toml:"args"`
}

// LoadProgram reads and validates a program file.
func LoadProgram(path string) (*Program, error) {
	var prog Program
	md, err := toml.DecodeFile(path, &prog)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := finishDecode(&prog, md); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &prog, nil
}

// ParseProgram decodes and validates program source.
func ParseProgram(src string) (*Program, error) {
	var prog Program
	md, err := toml.Decode(src, &prog)
	if err != nil {
		return nil, err
	}
	if err := finishDecode(&prog, md); err != nil {
		return nil, err
	}
	return &prog, nil
}

func finishDecode(prog *Program, md toml.MetaData) error {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return prog.Validate()
}

// Validate checks the shape of every step without resolving names.
func (p *Program) Validate() error {
	var errs []error
	for i, class := range p.Classes {
		if class.Name == "" {
			errs = append(errs, fmt.Errorf("class #%d: name required", i+1))
			continue
		}
		for j, step := range class.Constructor {
			if err := step.validate(false); err != nil {
				errs = append(errs, fmt.Errorf("%s.new step %d: %w", class.Name, j+1, err))
			}
		}
		for _, name := range sortedMethodNames(class.Methods) {
			for j, step := range class.Methods[name] {
				if err := step.validate(true); err != nil {
					errs = append(errs, fmt.Errorf("%s#%s step %d: %w", class.Name, name, j+1, err))
				}
			}
		}
	}
	for i, step := range p.Main {
		if err := step.validate(); err != nil {
			errs = append(errs, fmt.Errorf("main step %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

func (s Step) actions() []string {
	var actions []string
	if s.Emit != nil {
		actions = append(actions, "emit")
	}
	if s.EmitArg != nil {
		actions = append(actions, "emit_arg")
	}
	if s.EmitIvar != "" {
		actions = append(actions, "emit_ivar")
	}
	if s.EmitClass {
		actions = append(actions, "emit_class")
	}
	if s.Set != "" {
		actions = append(actions, "set")
	}
	if s.Call != "" {
		actions = append(actions, "call")
	}
	if s.Super {
		actions = append(actions, "super")
	}
	if s.Return != nil {
		actions = append(actions, "return")
	}
	if s.Fail != "" {
		actions = append(actions, "fail")
	}
	return actions
}

func (s Step) validate(inMethod bool) error {
	actions := s.actions()
	switch len(actions) {
	case 0:
		return errors.New("step has no action")
	case 1:
	default:
		return fmt.Errorf("step has several actions: %s", strings.Join(actions, ", "))
	}

	action := actions[0]
	if action != "set" && (s.Value != nil || s.FromArg != nil) {
		return fmt.Errorf("%s does not take value or from_arg", action)
	}
	if action == "set" && s.Value != nil && s.FromArg != nil {
		return errors.New("set takes either value or from_arg, not both")
	}
	if action != "call" && action != "super" && s.Args != nil {
		return fmt.Errorf("%s does not take args", action)
	}
	if action == "super" && !inMethod {
		return errors.New("super is only valid in methods; constructors chain automatically")
	}
	for _, idx := range []*int{s.EmitArg, s.FromArg} {
		if idx != nil && *idx < 0 {
			return fmt.Errorf("negative argument index %d", *idx)
		}
	}
	for _, raw := range []any{s.Emit, s.Value, s.Return} {
		if _, err := FromGo(raw); err != nil {
			return err
		}
	}
	if _, err := valuesFromGo(s.Args); err != nil {
		return err
	}
	return nil
}

func (m MainStep) validate() error {
	switch {
	case m.New != "" && m.Call != "":
		return errors.New("step has both new and call")
	case m.New != "":
		if m.As == "" {
			return fmt.Errorf("new %s requires as", m.New)
		}
		if m.On != "" {
			return errors.New("new does not take on")
		}
	case m.Call != "":
		if m.On == "" {
			return fmt.Errorf("call %s requires on", m.Call)
		}
		if m.As != "" {
			return errors.New("call does not take as")
		}
	default:
		return errors.New("step has no action")
	}
	_, err := valuesFromGo(m.Args)
	return err
}

// Compile defines every class of the program in file order.
func (p *Program) Compile(reg *Registry) ([]*ClassDef, error) {
	defs := make([]*ClassDef, 0, len(p.Classes))
	for _, class := range p.Classes {
		var ctor ConstructorFunc
		if len(class.Constructor) > 0 {
			ctor = compileConstructor(class.Constructor)
		}
		methods := make(map[string]MethodFunc, len(class.Methods))
		for name, body := range class.Methods {
			methods[name] = compileMethod(body)
		}
		def, err := reg.Define(class.Name, class.Parent, ctor, methods)
		if err != nil {
			return defs, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Encode writes the program as canonical TOML.
func (p *Program) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.Indent = ""
	return enc.Encode(p.canonical())
}

type canonicalClass struct {
	Name        string                      `toml:"name"`
	Parent      string                      `toml:"parent,omitempty"`
	Constructor []map[string]any            `toml:"constructor,omitempty"`
	Methods     map[string][]map[string]any `toml:"methods,omitempty"`
}

type canonicalProgram struct {
	Classes []canonicalClass `toml:"class,omitempty"`
	Main    []map[string]any `toml:"main,omitempty"`
}

func (p *Program) canonical() canonicalProgram {
	out := canonicalProgram{}
	for _, class := range p.Classes {
		cc := canonicalClass{Name: class.Name, Parent: class.Parent}
		for _, step := range class.Constructor {
			cc.Constructor = append(cc.Constructor, step.fields())
		}
		if len(class.Methods) > 0 {
			cc.Methods = make(map[string][]map[string]any, len(class.Methods))
			for name, body := range class.Methods {
				steps := make([]map[string]any, 0, len(body))
				for _, step := range body {
					steps = append(steps, step.fields())
				}
				cc.Methods[name] = steps
			}
		}
		out.Classes = append(out.Classes, cc)
	}
	for _, step := range p.Main {
		out.Main = append(out.Main, step.fields())
	}
	return out
}

func (s Step) fields() map[string]any {
	fields := make(map[string]any)
	if s.Emit != nil {
		fields["emit"] = s.Emit
	}
	if s.EmitArg != nil {
		fields["emit_arg"] = *s.EmitArg
	}
	if s.EmitIvar != "" {
		fields["emit_ivar"] = s.EmitIvar
	}
	if s.EmitClass {
		fields["emit_class"] = true
	}
	if s.Set != "" {
		fields["set"] = s.Set
	}
	if s.Value != nil {
		fields["value"] = s.Value
	}
	if s.FromArg != nil {
		fields["from_arg"] = *s.FromArg
	}
	if s.Call != "" {
		fields["call"] = s.Call
	}
	if s.Super {
		fields["super"] = true
	}
	if s.Args != nil {
		fields["args"] = s.Args
	}
	if s.Return != nil {
		fields["return"] = s.Return
	}
	if s.Fail != "" {
		fields["fail"] = s.Fail
	}
	return fields
}

func (m MainStep) fields() map[string]any {
	fields := make(map[string]any)
	if m.New != "" {
		fields["new"] = m.New
		fields["as"] = m.As
	}
	if m.Call != "" {
		fields["call"] = m.Call
		fields["on"] = m.On
	}
	if m.Args != nil {
		fields["args"] = m.Args
	}
	return fields
}

func valuesFromGo(raw []any) ([]Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	values := make([]Value, len(raw))
	for i, item := range raw {
		v, err := FromGo(item)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}
