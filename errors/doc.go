// Package errors provides structured error types for the wasm-host library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: member path, Go/wasm type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).
//		Path("counter").
//		GoType("float32").
//		ValueType("i32").
//		Detail("incompatible type").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnknownImport("env", "log")
//	err := errors.Immutable("version")
//
// The package-level sentinels (ErrLink, ErrImmutable, ErrTrap, ...) match by
// Phase and Kind, treating empty fields as wildcards:
//
//	if errors.Is(err, wasmerrors.ErrMissingImport) { ... }
//
// Runtime traps surface as *TrapError, which carries the trap message and the
// guest backtrace.
package errors
