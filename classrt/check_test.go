package classrt

import "testing"

func TestCheckExamplesHaveNoWarnings(t *testing.T) {
	for _, file := range []string{"animals.toml", "shapes.toml"} {
		prog, err := LoadProgram("../examples/" + file)
		if err != nil {
			t.Fatalf("%s: load: %v", file, err)
		}
		reg, warnings, err := prog.Check()
		if err != nil {
			t.Fatalf("%s: check: %v", file, err)
		}
		if len(warnings) != 0 {
			t.Fatalf("%s: unexpected warnings: %v", file, warnings)
		}
		if reg.Len() != len(prog.Classes) {
			t.Fatalf("%s: expected %d classes, got %d", file, len(prog.Classes), reg.Len())
		}
	}
}

func TestCheckReportsSuspiciousSteps(t *testing.T) {
	prog, err := ParseProgram(`
[[class]]
name = "Animal"

[class.methods]
describe = [{ call = "sound" }]
speak = [{ super = true }]
wander = [{ call = "teleport" }]

[[class]]
name = "Cat"
parent = "Animal"

[class.methods]
sound = [{ emit = "meow" }]

[[main]]
new = "Cat"
as = "cat"

[[main]]
new = "Ghost"
as = "boo"

[[main]]
call = "fly"
on = "cat"

[[main]]
call = "speak"
on = "dog"
`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	_, warnings, err := prog.Check()
	if err != nil {
		t.Fatalf("check: %v", err)
	}

	got := make([]string, len(warnings))
	for i, w := range warnings {
		got[i] = w.String()
	}
	requireStrings(t, got, []string{
		"Animal#speak step 1: super has no ancestor definition of speak",
		"Animal#wander step 1: call teleport is not defined for Animal or its subclasses",
		"main step 2: unknown class Ghost",
		"main step 3: Cat does not respond to fly",
		`main step 4: undefined variable "dog"`,
		`main: variable "boo" is never used`,
	})
}

func TestCheckReturnsCompileErrors(t *testing.T) {
	prog, err := ParseProgram("[[class]]\nname = \"Cat\"\nparent = \"Animal\"\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, _, err = prog.Check()
	requireErrorIs(t, err, ErrUnknownParent)
}
