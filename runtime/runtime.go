package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/engine"
	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/linker"
	"github.com/wippyai/wasm-host/wasm"
)

// Runtime loads modules and holds the host definitions they import.
// Safe for concurrent use.
type Runtime struct {
	engine *engine.WazeroEngine
	linker *linker.Linker
	seq    atomic.Uint64
	mu     sync.Mutex
	closed bool
}

// New creates a runtime configured by opts.
func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig creates a runtime from cfg. A nil cfg uses defaults.
func NewWithConfig(ctx context.Context, cfg *Config) (*Runtime, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger != nil {
		SetLogger(cfg.Logger)
		engine.SetLogger(cfg.Logger)
		linker.SetLogger(cfg.Logger)
	}

	eng, err := engine.NewWazeroEngineWithConfig(ctx, cfg.engineConfig())
	if err != nil {
		return nil, errors.Load("create engine", err)
	}

	return &Runtime{
		engine: eng,
		linker: linker.New(eng.Runtime(), cfg.linkerOptions()),
	}, nil
}

// Linker returns the linker holding the host definitions.
func (r *Runtime) Linker() *linker.Linker {
	return r.linker
}

// Engine returns the underlying wazero engine.
func (r *Runtime) Engine() *engine.WazeroEngine {
	return r.engine
}

// DefineFunc defines a Go function as module::name. See linker.DefineFunc
// for the accepted signatures.
func (r *Runtime) DefineFunc(module, name string, fn any) error {
	return r.linker.DefineFunc(module, name, fn)
}

// DefineHost defines every exported method of h. Method names are
// converted from PascalCase to snake_case (GetValue -> get_value).
func (r *Runtime) DefineHost(h linker.Host) error {
	return r.linker.DefineHost(h)
}

// DefineGlobal defines module::name as a global initialized to v. The
// value kind follows from v as in ValueOf; any other Go type is rejected
// before anything is instantiated.
func (r *Runtime) DefineGlobal(module, name string, v any, mutable bool) error {
	val, err := ValueOf(v)
	if err != nil {
		return hostError(err, module, name)
	}
	return r.linker.DefineGlobal(module, name, val, mutable)
}

// DefineMemory defines module::name as a memory with limits t.
func (r *Runtime) DefineMemory(module, name string, t MemoryType) error {
	if t.Shared {
		return errors.Unsupported(errors.PhaseHost, "shared host memories")
	}
	return r.linker.DefineMemory(module, name, t.limits())
}

// DefineTable defines module::name as a table of type t.
func (r *Runtime) DefineTable(module, name string, t TableType) error {
	return r.linker.DefineTable(module, name, t.wasmType())
}

// DefineInstance makes every export of inst importable from module.
func (r *Runtime) DefineInstance(module string, inst *Instance) error {
	if inst.IsClosed() {
		return errors.Disposed("instance", inst.Name())
	}
	wh, ok := inst.ref.h.(*wazeroHandle)
	if !ok || inst.module == nil {
		return errors.Unsupported(errors.PhaseHost, "only instances created by Module.Instantiate can be defined")
	}
	descs, err := inst.module.parsed.ExportDescs()
	if err != nil {
		return errors.Wrap(errors.PhaseHost, errors.KindInvalidData, err, "describe exports of "+inst.Name())
	}
	return r.linker.DefineModule(module, wh.mod, descs)
}

// HostGlobal returns the host-defined global module::name. Reads and
// writes are shared with every instance importing it.
func (r *Runtime) HostGlobal(ctx context.Context, module, name string) (*Global, error) {
	mod, err := r.hostExport(ctx, module, name, wasm.KindGlobal)
	if err != nil {
		return nil, err
	}
	g := mod.ExportedGlobal(name)
	if g == nil {
		return nil, errors.NotFound(errors.PhaseHost, "global", errors.QualifiedName(module, name))
	}
	k, err := kindOf(wasm.ValType(g.Type()))
	if err != nil {
		return nil, err
	}
	_, mutable := g.(api.MutableGlobal)

	h := newWazeroHandle(mod, false)
	return newGlobal(newHandleRef(h), h, name, 0, &GlobalType{Value: k, Mutable: mutable})
}

// HostMemory returns the host-defined memory module::name.
func (r *Runtime) HostMemory(ctx context.Context, module, name string) (*Memory, error) {
	mod, err := r.hostExport(ctx, module, name, wasm.KindMemory)
	if err != nil {
		return nil, err
	}
	mem := mod.ExportedMemory(name)
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseHost, "memory", errors.QualifiedName(module, name))
	}
	def := mem.Definition()
	t := &MemoryType{Min: def.Min()}
	t.Max, t.HasMax = def.Max()

	h := newWazeroHandle(mod, false)
	return newMemory(newHandleRef(h), h, name, 0, t)
}

func (r *Runtime) hostExport(ctx context.Context, module, name string, want wasm.ExternalKind) (api.Module, error) {
	mod, kind, err := r.linker.Export(ctx, module, name)
	if err != nil {
		return nil, err
	}
	if kind != want {
		return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Path(module, name).
			Detail("%s is a %s, not a %s", errors.QualifiedName(module, name), kind, want).
			Build()
	}
	return mod, nil
}

// LoadModule parses and compiles a binary module.
func (r *Runtime) LoadModule(ctx context.Context, bin []byte) (*Module, error) {
	return r.LoadModuleNamed(ctx, "module", bin)
}

// LoadModuleNamed is LoadModule with a name used as the prefix of
// instance names.
func (r *Runtime) LoadModuleNamed(ctx context.Context, name string, bin []byte) (*Module, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, errors.InvalidInput(errors.PhaseLoad, "runtime is closed")
	}
	return loadModule(ctx, r, name, bin)
}

func (r *Runtime) nextInstanceName(base string) string {
	return fmt.Sprintf("%s-%d", base, r.seq.Add(1))
}

// Close releases the host definitions and every instance still open.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	lerr := r.linker.Close(ctx)
	eerr := r.engine.Close(ctx)
	if lerr != nil {
		Logger().Warn("close linker", zap.Error(lerr))
	}
	return stderrors.Join(lerr, eerr)
}

// hostError relocates a value conversion error to the definition site.
func hostError(err error, module, name string) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		e.Phase = errors.PhaseHost
		e.Path = []string{module, name}
	}
	return err
}
