// Package classrt implements a small object model runtime. It supports:
//   - Class registration with at most one parent per class, parents defined
//     before children (see Registry.Define).
//   - Construction that runs every constructor in the ancestry chain once,
//     root class first.
//   - Single dispatch: a call resolves to the nearest definition found by
//     walking from the receiver's dynamic class toward the root.
//   - An opt-in super call from inside a method body.
//
// Bodies write output through a Sink. Programs can be described in TOML
// (see Program) and driven by a host such as cmd/classrt.
package classrt
