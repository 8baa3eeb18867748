package main

import (
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mgomes/classrt/classrt"
)

var (
	classNameStyle = lipgloss.NewStyle().Bold(true)
	overrideStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

func checkCommand(args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(new(flagErrorSink))
	if err := fs.Parse(args); err != nil {
		return err
	}

	remaining := fs.Args()
	if len(remaining) == 0 {
		return errors.New("classrt check: program path required")
	}

	programPath, err := filepath.Abs(remaining[0])
	if err != nil {
		return fmt.Errorf("resolve program path: %w", err)
	}
	prog, err := classrt.LoadProgram(programPath)
	if err != nil {
		return err
	}

	reg, warnings, err := prog.Check()
	if err != nil {
		return fmt.Errorf("check compile failed: %w", err)
	}

	for _, def := range reg.Classes() {
		fmt.Println(describeClass(reg, def))
	}

	if len(warnings) == 0 {
		fmt.Println("No issues found")
		return nil
	}
	for _, warning := range warnings {
		fmt.Println(warningStyle.Render(fmt.Sprintf("%s: %s", programPath, warning)))
	}
	return fmt.Errorf("check found %d issue(s)", len(warnings))
}

// describeClass renders one class as its ancestry chain followed by the
// methods it defines, marking overrides.
func describeClass(reg *classrt.Registry, def *classrt.ClassDef) string {
	chain := reg.AncestryChain(def)
	names := make([]string, len(chain))
	for i, ancestor := range chain {
		names[i] = ancestor.Name
	}

	var b strings.Builder
	b.WriteString(classNameStyle.Render(def.Name))
	b.WriteString(" [" + strings.Join(names, " > ") + "]")
	for _, name := range def.MethodNames() {
		b.WriteString("\n  #" + name)
		if shadowed, ok := reg.Shadowed(def, name); ok {
			b.WriteString(" " + overrideStyle.Render("overrides "+shadowed.Owner.Name+"#"+name))
		}
	}
	return b.String()
}
