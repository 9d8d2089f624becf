package linker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/wasm"
)

// Options configures linker behavior.
type Options struct {
	// AllowShadowing lets a definition replace an earlier one with the same
	// module and name. When false, redefinition is a registration error.
	AllowShadowing bool
}

// DefaultOptions returns default linker configuration.
func DefaultOptions() Options {
	return Options{
		AllowShadowing: true,
	}
}

// Linker manages host definitions and resolves module imports against them.
// Thread-safe.
type Linker struct {
	runtime   wazero.Runtime
	defs      map[importKey]*definition
	providers []api.Module
	options   Options
	seq       uint64
	mu        sync.Mutex
	closed    bool
}

type importKey struct {
	module string
	name   string
}

// Definition describes a host definition for tooling.
type Definition struct {
	Module   string
	Name     string
	Type     string
	Provider string // provider module name, empty until first use
	Kind     wasm.ExternalKind
}

// Bindings maps each resolved import to the name of its provider module.
type Bindings map[importKey]string

// Provider returns the provider module bound to module::name.
func (b Bindings) Provider(module, name string) (string, bool) {
	p, ok := b[importKey{module, name}]
	return p, ok
}

// Rename is suitable as the rename callback of wasm.RewriteImports.
func (b Bindings) Rename(module, name string) (string, bool) {
	return b.Provider(module, name)
}

// New creates a new Linker with the given wazero runtime and options.
func New(rt wazero.Runtime, opts Options) *Linker {
	return &Linker{
		runtime: rt,
		defs:    make(map[importKey]*definition),
		options: opts,
	}
}

// NewWithDefaults creates a new Linker with default options.
func NewWithDefaults(rt wazero.Runtime) *Linker {
	return New(rt, DefaultOptions())
}

// Runtime returns the wazero runtime.
func (l *Linker) Runtime() wazero.Runtime {
	return l.runtime
}

// Options returns the configuration.
func (l *Linker) Options() Options {
	return l.options
}

func (l *Linker) define(d *definition) error {
	if d.module == "" && d.name == "" {
		return errors.InvalidInput(errors.PhaseHost, "definition needs a module or a name")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errors.Registration(errors.PhaseHost, d.module, d.name,
			errors.InvalidInput(errors.PhaseHost, "linker is closed"))
	}
	key := importKey{d.module, d.name}
	if prev, ok := l.defs[key]; ok {
		if !l.options.AllowShadowing {
			return errors.Registration(errors.PhaseHost, d.module, d.name,
				errors.InvalidInput(errors.PhaseHost, "already defined"))
		}
		Logger().Debug("definition shadowed",
			zap.String("module", d.module),
			zap.String("name", d.name),
			zap.String("previous", prev.typeString()),
			zap.String("type", d.typeString()))
	}
	l.defs[key] = d
	return nil
}

// DefineRawFunc defines a function from a raw stack-based handler.
func (l *Linker) DefineRawFunc(module, name string, params, results []api.ValueType, fn api.GoModuleFunc) error {
	if fn == nil {
		return errors.InvalidInput(errors.PhaseHost, "function handler cannot be nil")
	}
	return l.define(newFuncDefinition(module, name, params, results, fn))
}

// DefineFunc defines a typed Go function. See the package documentation
// for the accepted signatures.
func (l *Linker) DefineFunc(module, name string, fn any) error {
	params, results, raw, err := wrapFunc(fn)
	if err != nil {
		return errors.Registration(errors.PhaseHost, module, name, err)
	}
	return l.define(newFuncDefinition(module, name, params, results, raw))
}

// DefineGlobal defines a global initialized to v. The value type follows
// from v's Go type: int32 and uint32 are i32, int64 and uint64 are i64,
// float32 is f32, float64 is f64. A Valuer supplies its own type.
func (l *Linker) DefineGlobal(module, name string, v any, mutable bool) error {
	t, bits, err := hostValue(v, []string{module, name})
	if err != nil {
		return err
	}
	return l.define(newGlobalDefinition(module, name, wasm.GlobalType{Type: t, Mutable: mutable}, bits))
}

// DefineMemory defines a linear memory with limits in 64KiB pages.
func (l *Linker) DefineMemory(module, name string, limits wasm.Limits) error {
	if limits.HasMax && limits.Max < limits.Min {
		return errors.InvalidInput(errors.PhaseHost,
			fmt.Sprintf("memory %s: maximum %d below minimum %d", errors.QualifiedName(module, name), limits.Max, limits.Min))
	}
	return l.define(newMemoryDefinition(module, name, wasm.MemoryType{Limits: limits}))
}

// DefineTable defines a table. A zero element type means funcref.
func (l *Linker) DefineTable(module, name string, t wasm.TableType) error {
	if t.Elem == 0 {
		t.Elem = wasm.ValFuncRef
	}
	if t.Elem != wasm.ValFuncRef && t.Elem != wasm.ValExtern {
		return errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Path(module, name).
			ValueType(t.Elem.String()).
			Detail("table elements must be funcref or externref").
			Build()
	}
	if t.Limits.HasMax && t.Limits.Max < t.Limits.Min {
		return errors.InvalidInput(errors.PhaseHost,
			fmt.Sprintf("table %s: maximum %d below minimum %d", errors.QualifiedName(module, name), t.Limits.Max, t.Limits.Min))
	}
	return l.define(newTableDefinition(module, name, t))
}

// DefineModule re-exports every item of an instantiated module under
// module. exports describes the items, usually from wasm.Module.ExportDescs.
func (l *Linker) DefineModule(module string, source api.Module, exports []wasm.ExportDesc) error {
	if source == nil {
		return errors.InvalidInput(errors.PhaseHost, "source module cannot be nil")
	}
	for i := range exports {
		if err := l.define(newReexport(module, source, exports[i])); err != nil {
			return err
		}
	}
	return nil
}

// Resolve type-checks every import against the current definitions and
// materializes the providers they need. Imports are checked in order and
// the first failure is returned.
func (l *Linker) Resolve(ctx context.Context, imports []wasm.Import) (Bindings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, errors.New(errors.PhaseLinking, errors.KindInvalidInput).Detail("linker is closed").Build()
	}

	bindings := make(Bindings, len(imports))
	for i := range imports {
		imp := &imports[i]
		d, ok := l.defs[importKey{imp.Module, imp.Name}]
		if !ok {
			return nil, errors.UnknownImport(imp.Module, imp.Name)
		}
		if err := checkImport(imp, d); err != nil {
			return nil, err
		}
		provider, err := l.materialize(ctx, d)
		if err != nil {
			return nil, err
		}
		bindings[importKey{imp.Module, imp.Name}] = provider.Name()
	}
	return bindings, nil
}

// Export returns the provider module exporting module::name under name,
// materializing it if needed.
func (l *Linker) Export(ctx context.Context, module, name string) (api.Module, wasm.ExternalKind, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.defs[importKey{module, name}]
	if !ok {
		return nil, 0, errors.NotFound(errors.PhaseHost, "definition", module+"::"+name)
	}
	mod, err := l.materialize(ctx, d)
	if err != nil {
		return nil, 0, err
	}
	return mod, d.kind, nil
}

// materialize returns d's provider, instantiating it on first use.
// Caller holds l.mu.
func (l *Linker) materialize(ctx context.Context, d *definition) (api.Module, error) {
	if d.provider != nil {
		if d.provider.IsClosed() {
			return nil, errors.New(errors.PhaseLinking, errors.KindMissingImport).
				Path(d.module, d.name).
				Detail("provider of %s has been closed", errors.QualifiedName(d.module, d.name)).
				Build()
		}
		return d.provider, nil
	}

	l.seq++
	providerName := fmt.Sprintf("%s::%s#%d", d.module, d.name, l.seq)
	mod, err := d.build(ctx, l.runtime, providerName)
	if err != nil {
		return nil, errors.Registration(errors.PhaseLinking, d.module, d.name, err)
	}
	d.provider = mod
	l.providers = append(l.providers, mod)

	Logger().Debug("provider materialized",
		zap.String("module", d.module),
		zap.String("name", d.name),
		zap.String("provider", providerName))
	return mod, nil
}

// Lookup returns the current definition of module::name.
func (l *Linker) Lookup(module, name string) (Definition, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.defs[importKey{module, name}]
	if !ok {
		return Definition{}, false
	}
	return d.describe(), true
}

// Definitions lists all current definitions sorted by module and name.
func (l *Linker) Definitions() []Definition {
	l.mu.Lock()
	out := make([]Definition, 0, len(l.defs))
	for _, d := range l.defs {
		out = append(out, d.describe())
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Close releases every provider module the linker instantiated, newest
// first. Re-exported source modules are not owned and stay open.
func (l *Linker) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	var firstErr error
	for i := len(l.providers) - 1; i >= 0; i-- {
		if err := l.providers[i].Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.providers = nil
	return firstErr
}
