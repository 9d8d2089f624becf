// Package wasmhost is a WebAssembly embedding API for Go.
//
// It loads core WebAssembly modules, lets the host supply imports
// (functions, globals, memories, tables and whole instances), instantiates
// modules against them and exposes the resulting exports as typed,
// name-addressable externs.
//
// # Architecture Overview
//
//	wasmhost/           Root package with the Memory interfaces
//	├── runtime/        Instances, extern wrappers and dynamic member access
//	├── linker/         Host definitions, import type checking, link errors
//	├── engine/         wazero runtime ownership and trap translation
//	├── wasm/           Binary parsing, module builder, import rewriting
//	├── errors/         Structured error types
//	└── cmd/wasmhost/   Command line explorer
//
// # Quick Start
//
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	if err := rt.DefineGlobal("env", "base", int32(40), false); err != nil {
//	    log.Fatal(err)
//	}
//
//	mod, err := rt.LoadModule(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	result, err := inst.InvokeMember(ctx, "add", int32(1), int32(2))
//
// # Dynamic Access
//
// Every instance can be driven by export name without static types:
//
//	d := inst.Dynamic()
//	v, ok, err := d.Get("counter")
//	ok, err = d.Set("counter", int32(11))
//	r, ok, err := d.Invoke(ctx, "increment")
//
// A miss reports ok == false; type and mutability violations are errors.
//
// # Thread Safety
//
// Runtime, Module and Linker are safe for concurrent use. Instance is NOT
// thread-safe and should be used by a single goroutine, or access must be
// synchronized. Closing an instance waits for in-flight calls.
package wasmhost
