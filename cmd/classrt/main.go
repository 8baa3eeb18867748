package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mgomes/classrt/classrt"
)

func main() {
	if err := runCLI(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCLI(args []string) error {
	if len(args) < 2 {
		return usageError()
	}
	switch args[1] {
	case "run":
		return runCommand(args[2:])
	case "check":
		return checkCommand(args[2:])
	case "fmt":
		return fmtCommand(args[2:])
	case "repl":
		return runREPL()
	case "lsp":
		return runLSP()
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		return usageError()
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(new(flagErrorSink))
	trace := fs.Bool("trace", false, "log construction and dispatch to stderr")
	recursionLimit := fs.Int("recursion-limit", 0, "maximum nested calls per top-level call (default 64)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	remaining := fs.Args()
	if len(remaining) == 0 {
		return errors.New("classrt run: program path required")
	}
	programPath, err := filepath.Abs(remaining[0])
	if err != nil {
		return fmt.Errorf("resolve program path: %w", err)
	}
	prog, err := classrt.LoadProgram(programPath)
	if err != nil {
		return err
	}

	reg := classrt.NewRegistry()
	if _, err := prog.Compile(reg); err != nil {
		return fmt.Errorf("compile failed: %w", err)
	}

	cfg := classrt.Config{RecursionLimit: *recursionLimit}
	if *trace {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	sink := classrt.NewWriterSink(os.Stdout)
	rt := classrt.NewRuntime(reg, sink, cfg)
	if _, err := prog.Run(context.Background(), rt); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	return sink.Err()
}

func usageError() error {
	printUsage()
	return errors.New("invalid command")
}

func printUsage() {
	prog := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [flags] [args...]\n", prog)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  run [-trace] [-recursion-limit n] <program.toml>")
	fmt.Fprintln(os.Stderr, "    define the program's classes and execute its main steps")
	fmt.Fprintln(os.Stderr, "  check <program.toml>")
	fmt.Fprintln(os.Stderr, "    print the class hierarchy and report suspicious steps")
	fmt.Fprintln(os.Stderr, "  fmt [-w] [-check] <path...>")
	fmt.Fprintln(os.Stderr, "    rewrite program files in canonical form")
	fmt.Fprintln(os.Stderr, "  repl")
	fmt.Fprintln(os.Stderr, "    start an interactive session")
	fmt.Fprintln(os.Stderr, "  lsp")
	fmt.Fprintln(os.Stderr, "    serve diagnostics, completion and hover for program files over stdio")
}

type flagErrorSink struct{}

func (flagErrorSink) Write(p []byte) (int, error) {
	return len(p), nil
}
