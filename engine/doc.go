// Package engine owns the wazero runtime used to compile and run modules.
//
// WazeroEngine wraps a wazero.Runtime with the host's configuration:
// memory limits, an optional on-disk compilation cache, interruption on
// context cancellation and debug info for backtraces.
//
//	eng, err := engine.NewWazeroEngineWithConfig(ctx, &engine.Config{
//	    MemoryLimitPages:    256, // 16MB
//	    CompilationCacheDir: cacheDir,
//	})
//	compiled, err := eng.Compile(ctx, bin)
//	mod, err := eng.Instantiate(ctx, compiled, "app")
//
// Instantiate never calls exported _start functions; only the module's
// start section runs.
//
// # Traps
//
// TranslateError turns wazero call failures into *errors.TrapError with the
// trap message and the guest backtrace, one frame per entry. Calls
// interrupted through CloseOnContextDone surface as traps wrapping
// *sys.ExitError.
//
// # Memory
//
// WazeroMemory adapts api.Memory to wasmhost.Memory with bounds-checked,
// little-endian accessors that return structured out-of-bounds errors.
//
// # Thread Safety
//
// WazeroEngine is safe for concurrent use.
package engine
