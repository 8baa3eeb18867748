package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mgomes/classrt/classrt"
)

const unformattedProgram = `# comments are dropped by fmt
[[class]]
name   =   "Animal"
methods = { speak = [ { emit = 0 } ] }

[[main]]
new = "Animal"
as = "a"
`

func TestFmtCommandRequiresPath(t *testing.T) {
	err := fmtCommand(nil)
	if err == nil {
		t.Fatalf("expected path required error")
	}
	if !strings.Contains(err.Error(), "path required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFmtCommandCheckDetectsUnformattedFiles(t *testing.T) {
	path := writeProgram(t, unformattedProgram)
	err := fmtCommand([]string{"-check", path})
	if err == nil {
		t.Fatalf("expected formatting check failure")
	}
	if !strings.Contains(err.Error(), "need formatting") {
		t.Fatalf("unexpected check error: %v", err)
	}
}

func TestFmtCommandWriteIsIdempotent(t *testing.T) {
	path := writeProgram(t, unformattedProgram)
	if err := fmtCommand([]string{"-w", path}); err != nil {
		t.Fatalf("fmt -w failed: %v", err)
	}
	if err := fmtCommand([]string{"-check", path}); err != nil {
		t.Fatalf("formatted file still needs formatting: %v", err)
	}

	prog, err := classrt.LoadProgram(path)
	if err != nil {
		t.Fatalf("formatted file does not load: %v", err)
	}
	if len(prog.Classes) != 1 || prog.Classes[0].Name != "Animal" || len(prog.Main) != 1 {
		t.Fatalf("formatting changed program contents: %+v", prog)
	}
}

func TestFmtCommandPrintsFormattedOutput(t *testing.T) {
	path := writeProgram(t, unformattedProgram)
	out, err := captureStdout(t, func() error {
		return fmtCommand([]string{path})
	})
	if err != nil {
		t.Fatalf("fmt failed: %v", err)
	}
	want, err := formatProgramSource(unformattedProgram)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if out != want {
		t.Fatalf("unexpected fmt output:\n%s", out)
	}
	if strings.Contains(out, "comments are dropped") {
		t.Fatalf("expected comments to be dropped")
	}
}

func TestFmtCommandRejectsInvalidPrograms(t *testing.T) {
	path := writeProgram(t, "[[class]]\nparent = \"A\"\n")
	err := fmtCommand([]string{"-check", path})
	if err == nil || !strings.Contains(err.Error(), "name required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCollectProgramFilesWalksDirectories(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.toml", "a.toml", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(""), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	files, err := collectProgramFiles([]string{dir, filepath.Join(dir, "a.toml")})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "a.toml" || filepath.Base(files[1]) != "b.toml" {
		t.Fatalf("unexpected files: %v", files)
	}
}
