// Package runtime loads WebAssembly modules, links them against host
// definitions and exposes the exports of the resulting instances.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	// Host imports
//	rt.DefineFunc("env", "log", func(x int32) { fmt.Println(x) })
//	rt.DefineGlobal("env", "counter", int32(0), true)
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
//	add, _ := inst.Function("add")
//	sum, err := add.Call(ctx, int32(2), int32(3)) // int32(5)
//
// # Exports
//
// An Instance partitions its exports by kind, keeping export order:
//
//	Functions()  []*Function
//	Globals()    []*Global
//	Tables()     []*Table
//	Memories()   []*Memory
//	Instances()  []*ExternInstance
//	Modules()    []*ExternModule
//
// Functions and globals are also indexed by name. When a module exports
// two items of one kind under the same name, the later one wins.
//
// # Values
//
// Values are one of i32, i64, f32 or f64, carried by Value. Host values
// convert with ValueOf:
//
//	Go type           wasm type
//	───────────────────────────
//	int32, uint32     i32
//	int64, uint64     i64
//	float32           f32
//	float64           f64
//
// Every other Go type, int and pointers included, is rejected with
// errors.ErrTypeMismatch. An untyped constant is an int, so write
// inst.SetMember("g", int32(10)) rather than inst.SetMember("g", 10).
//
// # Dynamic Access
//
// Dynamic resolves members by name through the same indices:
//
//	d := inst.Dynamic()
//	d.Set("counter", int32(10))
//	v, found, err := d.Get("counter")
//	res, found, err := d.Invoke(ctx, "add", int32(1), int32(2))
//
// # Errors
//
// Link failures match errors.ErrLink and name the import as `module::name`.
// Traps are *errors.TrapError with a message and backtrace frames. Use of
// an extern after its instance was closed matches errors.ErrDisposed.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. You can call
// Module.Instantiate() from multiple goroutines concurrently.
//
// Instance is NOT thread-safe. Each goroutine should have its own
// Instance, or access must be synchronized externally. Close is the
// exception: it waits for calls in flight.
//
// # Resource Management
//
// Always close instances when done. Closing an instance closes its
// nested instances first, invalidates its externs and then releases the
// underlying module. Closing twice is a no-op.
package runtime
