package runtime

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"

	wasmhost "github.com/wippyai/wasm-host"
	"github.com/wippyai/wasm-host/engine"
	"github.com/wippyai/wasm-host/errors"
)

// Handle is the runtime side of a live instance: it resolves exports by
// name and releases the instance. Lookups return nil when the export is
// absent or has a different kind.
type Handle interface {
	Name() string
	Function(name string) FunctionRef
	Global(name string) GlobalRef
	Memory(name string) MemoryRef
	// Instance returns the handle of a nested instance export. The
	// returned handle is owned by the caller.
	Instance(name string) (Handle, error)
	Close(ctx context.Context) error
}

// FunctionRef calls an exported function with raw stack values.
// api.Function satisfies it.
type FunctionRef interface {
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// GlobalRef reads an exported global. api.Global satisfies it.
type GlobalRef interface {
	Get() uint64
}

// MutableGlobalRef is a GlobalRef that can be written. api.MutableGlobal
// satisfies it.
type MutableGlobalRef interface {
	GlobalRef
	Set(v uint64)
}

// MemoryRef is a bounds-checked view of an exported memory.
type MemoryRef interface {
	wasmhost.Memory
	wasmhost.MemorySizer
	wasmhost.MemoryGrower
}

// closer is implemented by handles that can be closed behind our back,
// e.g. when the runtime or the providing linker shuts down.
type closer interface {
	IsClosed() bool
}

// wazeroHandle adapts an api.Module. A non-owning handle never closes the
// module; host-defined providers belong to the linker. forwards holds the
// function exports that re-export an import, resolved to the provider.
type wazeroHandle struct {
	mod      api.Module
	forwards map[string]api.Function
	owned    bool
}

func newWazeroHandle(mod api.Module, owned bool) *wazeroHandle {
	return &wazeroHandle{mod: mod, owned: owned}
}

func (h *wazeroHandle) Name() string { return h.mod.Name() }

func (h *wazeroHandle) Function(name string) FunctionRef {
	if fn, ok := h.forwards[name]; ok {
		return fn
	}
	fn := exportedFunction(h.mod, name)
	if fn == nil {
		return nil
	}
	return fn
}

// exportedFunction is mod.ExportedFunction, reporting nil where wazero
// panics on a re-exported import it cannot resolve.
func exportedFunction(mod api.Module, name string) (fn api.Function) {
	defer func() {
		if recover() != nil {
			fn = nil
		}
	}()
	return mod.ExportedFunction(name)
}

func (h *wazeroHandle) Global(name string) GlobalRef {
	g := h.mod.ExportedGlobal(name)
	if g == nil {
		return nil
	}
	return g
}

func (h *wazeroHandle) Memory(name string) MemoryRef {
	mem := h.mod.ExportedMemory(name)
	if mem == nil {
		return nil
	}
	return engine.NewWazeroMemory(mem, name)
}

func (h *wazeroHandle) Instance(name string) (Handle, error) {
	return nil, errors.Unsupported(errors.PhaseInstance, "core modules cannot export instance "+name)
}

func (h *wazeroHandle) IsClosed() bool { return h.mod.IsClosed() }

func (h *wazeroHandle) Close(ctx context.Context) error {
	if !h.owned {
		return nil
	}
	return h.mod.Close(ctx)
}

// handleRef owns one Handle. Operations on the handle hold the read lock;
// release takes the write lock, so it waits for calls in flight and runs
// at most once.
type handleRef struct {
	h        Handle
	name     string
	mu       sync.RWMutex
	released bool
}

func newHandleRef(h Handle) *handleRef {
	return &handleRef{h: h, name: h.Name()}
}

// acquire read-locks the handle for one operation on the extern what.
// The returned func unlocks it.
func (r *handleRef) acquire(what, name string) (Handle, func(), error) {
	r.mu.RLock()
	if r.released {
		r.mu.RUnlock()
		return nil, nil, errors.Disposed(what, name)
	}
	if c, ok := r.h.(closer); ok && c.IsClosed() {
		r.mu.RUnlock()
		return nil, nil, errors.Disposed(what, name)
	}
	return r.h, r.mu.RUnlock, nil
}

// markReleased flips the released flag. It reports false if the handle was
// already released.
func (r *handleRef) markReleased() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return false
	}
	r.released = true
	return true
}

// isReleased reports whether markReleased has run.
func (r *handleRef) isReleased() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.released
}

// close releases the underlying handle. Callers run it once, after
// markReleased succeeded.
func (r *handleRef) close(ctx context.Context) error {
	return r.h.Close(ctx)
}
