package classrt

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func compileTestProgram(t testing.TB, src string) (*Program, *Runtime, *RecordingSink) {
	t.Helper()
	prog, err := ParseProgram(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	reg := NewRegistry()
	if _, err := prog.Compile(reg); err != nil {
		t.Fatalf("compile: %v", err)
	}
	sink := &RecordingSink{}
	return prog, NewRuntime(reg, sink, Config{}), sink
}

func TestExampleProgramsRun(t *testing.T) {
	cases := []struct {
		file string
		want []string
	}{
		{"animals.toml", []string{"1", "2"}},
		{"shapes.toml", []string{
			"Shape.new", "Rect.new", "Square.new",
			"unit square", "Square",
			"square area", "rect area",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.file, func(t *testing.T) {
			prog, err := LoadProgram(filepath.Join("..", "examples", tc.file))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			reg := NewRegistry()
			if _, err := prog.Compile(reg); err != nil {
				t.Fatalf("compile: %v", err)
			}
			sink := &RecordingSink{}
			if _, err := prog.Run(context.Background(), NewRuntime(reg, sink, Config{})); err != nil {
				t.Fatalf("run: %v", err)
			}
			requireStrings(t, sink.Strings(), tc.want)
		})
	}
}

func TestProgramRawBaseInstanceUsesBaseMethod(t *testing.T) {
	prog, rt, sink := compileTestProgram(t, `
[[class]]
name = "Animal"
methods = { speak = [{ emit = 0 }] }

[[class]]
name = "Cat"
parent = "Animal"
methods = { speak = [{ emit = 1 }] }

[[main]]
new = "Animal"
as = "a"

[[main]]
call = "speak"
on = "a"
`)

	session, err := prog.Run(context.Background(), rt)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireStrings(t, sink.Strings(), []string{"0"})
	if inst, ok := session.Lookup("a"); !ok || inst.Class.Name != "Animal" {
		t.Fatalf("expected a bound to an Animal, got %v", inst)
	}
}

func TestProgramArgsAndInstanceState(t *testing.T) {
	prog, rt, sink := compileTestProgram(t, `
[[class]]
name = "Pet"
constructor = [{ set = "name", from_arg = 0 }, { set = "sound", value = "..." }]

[class.methods]
greet = [{ emit_ivar = "name" }, { emit_ivar = "sound" }, { emit_arg = 1 }]

[[main]]
new = "Pet"
as = "rex"
args = ["Rex"]

[[main]]
call = "greet"
on = "rex"
args = [true, 3.5]
`)

	if _, err := prog.Run(context.Background(), rt); err != nil {
		t.Fatalf("run: %v", err)
	}
	requireStrings(t, sink.Strings(), []string{"Rex", "...", "3.5"})
}

func TestProgramImplicitAndExplicitReturn(t *testing.T) {
	_, rt, _ := compileTestProgram(t, `
[[class]]
name = "Base"

[class.methods]
id = [{ return = 1 }, { emit = "unreachable" }]
forward = [{ call = "id" }]
nothing = [{ emit = "x" }]
`)
	ctx := context.Background()
	inst, err := rt.ConstructByName(ctx, "Base", nil)
	if err != nil {
		t.Fatalf("construct: %v", err)
	}

	id, err := rt.Invoke(ctx, inst, "id", nil)
	if err != nil || id.Int() != 1 {
		t.Fatalf("id: %v %v", id, err)
	}
	forward, err := rt.Invoke(ctx, inst, "forward", nil)
	if err != nil || forward.Int() != 1 {
		t.Fatalf("forward: %v %v", forward, err)
	}
	nothing, err := rt.Invoke(ctx, inst, "nothing", nil)
	if err != nil || !nothing.IsNil() {
		t.Fatalf("nothing: %v %v", nothing, err)
	}
}

func TestProgramFailingConstructorAbortsMain(t *testing.T) {
	prog, rt, sink := compileTestProgram(t, `
[[class]]
name = "Base"
constructor = [{ emit = "base" }]

[[class]]
name = "Broken"
parent = "Base"
constructor = [{ fail = "no legs" }, { emit = "never" }]

[[main]]
new = "Broken"
as = "b"
`)

	session, err := prog.Run(context.Background(), rt)
	requireErrorContains(t, err, "main step 1: no legs")
	requireErrorContains(t, err, "at Broken.new")
	if _, ok := session.Lookup("b"); ok {
		t.Fatalf("failed construction must not bind a variable")
	}
	requireStrings(t, sink.Strings(), []string{"base"})
}

func TestProgramRuntimeErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing ivar",
			src: `[[class]]
name = "A"
methods = { m = [{ emit_ivar = "ghost" }] }
[[main]]
new = "A"
as = "a"
[[main]]
call = "m"
on = "a"`,
			want: "undefined instance variable @ghost on A",
		},
		{
			name: "arg out of range",
			src: `[[class]]
name = "A"
methods = { m = [{ emit_arg = 2 }] }
[[main]]
new = "A"
as = "a"
[[main]]
call = "m"
on = "a"
args = [1]`,
			want: "argument index 2 out of range (1 given)",
		},
		{
			name: "undefined variable",
			src: `[[class]]
name = "A"
[[main]]
call = "m"
on = "nobody"`,
			want: `undefined variable "nobody"`,
		},
		{
			name: "missing method",
			src: `[[class]]
name = "A"
[[main]]
new = "A"
as = "a"
[[main]]
call = "fly"
on = "a"`,
			want: "invoke A#fly: method not found",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prog, rt, _ := compileTestProgram(t, tc.src)
			_, err := prog.Run(context.Background(), rt)
			requireErrorContains(t, err, tc.want)
		})
	}
}

func TestParseProgramValidation(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"unknown key", "[[class]]\nname = \"A\"\ncolour = \"red\"\n", "unknown keys: class.colour"},
		{"missing name", "[[class]]\nparent = \"A\"\n", "class #1: name required"},
		{"two actions", "[[class]]\nname = \"A\"\nmethods = { m = [{ emit = 1, call = \"x\" }] }\n", "A#m step 1: step has several actions: emit, call"},
		{"no action", "[[class]]\nname = \"A\"\nmethods = { m = [{ args = [1] }] }\n", "A#m step 1: step has no action"},
		{"super in constructor", "[[class]]\nname = \"A\"\nconstructor = [{ super = true }]\n", "A.new step 1: super is only valid in methods"},
		{"value without set", "[[class]]\nname = \"A\"\nmethods = { m = [{ emit = 1, value = 2 }] }\n", "emit does not take value or from_arg"},
		{"negative index", "[[class]]\nname = \"A\"\nmethods = { m = [{ emit_arg = -1 }] }\n", "negative argument index -1"},
		{"unsupported literal", "[[class]]\nname = \"A\"\nmethods = { m = [{ emit = [1, 2] }] }\n", "unsupported literal"},
		{"new without as", "[[main]]\nnew = \"A\"\n", "main step 1: new A requires as"},
		{"call without on", "[[main]]\ncall = \"m\"\n", "main step 1: call m requires on"},
		{"empty main step", "[[main]]\nargs = [1]\n", "main step 1: step has no action"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseProgram(tc.src)
			requireErrorContains(t, err, tc.want)
		})
	}
}

func TestCompileRequiresParentsFirst(t *testing.T) {
	prog, err := ParseProgram(`
[[class]]
name = "Cat"
parent = "Animal"

[[class]]
name = "Animal"
`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defs, err := prog.Compile(NewRegistry())
	requireErrorIs(t, err, ErrUnknownParent)
	if len(defs) != 0 {
		t.Fatalf("expected no classes defined, got %v", chainNames(defs))
	}
}

func TestCompileDuplicateClass(t *testing.T) {
	prog, err := ParseProgram("[[class]]\nname = \"A\"\n[[class]]\nname = \"A\"\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = prog.Compile(NewRegistry())
	requireErrorIs(t, err, ErrDuplicateClass)
}

func TestEncodeIsCanonical(t *testing.T) {
	prog, err := LoadProgram(filepath.Join("..", "examples", "shapes.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	var first bytes.Buffer
	if err := prog.Encode(&first); err != nil {
		t.Fatalf("encode: %v", err)
	}
	reparsed, err := ParseProgram(first.String())
	if err != nil {
		t.Fatalf("reparse encoded program: %v\n%s", err, first.String())
	}
	var second bytes.Buffer
	if err := reparsed.Encode(&second); err != nil {
		t.Fatalf("encode reparsed: %v", err)
	}
	if first.String() != second.String() {
		t.Fatalf("encoding is not stable:\n%s\n---\n%s", first.String(), second.String())
	}

	_, rt, sink := compileTestProgram(t, first.String())
	if _, err := reparsed.Run(context.Background(), rt); err != nil {
		t.Fatalf("run reparsed: %v", err)
	}
	if got := strings.Join(sink.Strings(), ","); got != "Shape.new,Rect.new,Square.new,unit square,Square,square area,rect area" {
		t.Fatalf("reparsed program behaves differently: %s", got)
	}
}

func TestLoadProgramReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("[[class]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadProgram(path)
	requireErrorContains(t, err, "load "+path)
}
