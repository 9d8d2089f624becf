// Package linker resolves module imports against host definitions.
//
// # Main Types
//
//   - Linker: holds host definitions and checks imports against them
//   - Bindings: the provider module chosen for each import
//   - Definition: a read-only description for tooling
//
// # Definitions
//
// Functions, globals, memories and tables are defined under a module and a
// name, the two halves of a core wasm import:
//
//	l := linker.NewWithDefaults(rt)
//	l.DefineFunc("env", "add", func(a, b int32) int32 { return a + b })
//	l.DefineGlobal("env", "base", int64(40), false)
//	l.DefineMemory("env", "memory", wasm.Limits{Min: 1})
//
// Typed functions may take a leading context.Context and then an
// api.Module (the calling instance), followed by params of type int32,
// uint32, int64, uint64, float32 or float64. They return values of the same
// types and optionally a trailing error; a non-nil error traps the caller.
//
// DefineModule re-exports the exports of an instantiated module, which is
// how one instance satisfies another's imports.
//
// # Resolution
//
// Resolve checks each import in declaration order. A missing definition
// fails with
//
//	unknown import: `env::log` has not been defined
//
// and a definition of the wrong kind, signature, value type, mutability or
// limits fails with
//
//	incompatible import type for `env::g` specified: expected ..., found ...
//
// Each definition gets its own provider module on first use. Redefining a
// name only affects later resolutions; instances already linked keep the
// provider they were bound to.
//
// # Thread Safety
//
// Linker is safe for concurrent use.
package linker
