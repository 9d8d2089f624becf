package runtime

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/linker"
	"github.com/wippyai/wasm-host/wasm"
)

// Module is a loaded, validated module. Instantiate may be called
// concurrently.
type Module struct {
	runtime  *Runtime
	parsed   *wasm.Module
	compiled map[string]wazero.CompiledModule
	name     string
	bin      []byte
	exports  []ExportType
	imports  []ImportType
	mu       sync.Mutex
	closed   bool
}

// unboundImportModule stands in for empty import module names while
// validating a module before its imports are bound.
const unboundImportModule = "unbound"

func loadModule(ctx context.Context, r *Runtime, name string, bin []byte) (*Module, error) {
	parsed, err := wasm.ParseModule(bin)
	if err != nil {
		return nil, errors.Load("parse module", err)
	}
	descs, err := parsed.ExportDescs()
	if err != nil {
		return nil, errors.Load("resolve exports", err)
	}
	exports, err := exportTypesOf(descs)
	if err != nil {
		return nil, err
	}
	imports, err := importTypesOf(parsed.Imports)
	if err != nil {
		return nil, err
	}

	// Compile once up front so invalid modules fail here, not at
	// instantiation. wazero rejects empty import module names, which the
	// linker only replaces once imports are bound.
	check := bin
	if len(parsed.Imports) > 0 {
		check, err = wasm.RewriteImports(bin, func(module, _ string) (string, bool) {
			return unboundImportModule, module == ""
		})
		if err != nil {
			return nil, errors.Load("rewrite imports", err)
		}
	}
	compiled, err := r.engine.Compile(ctx, check)
	if err != nil {
		return nil, err
	}

	m := &Module{
		runtime:  r,
		parsed:   parsed,
		compiled: make(map[string]wazero.CompiledModule),
		name:     name,
		bin:      bin,
		exports:  exports,
		imports:  imports,
	}
	if len(parsed.Imports) == 0 {
		m.compiled[""] = compiled
	} else {
		_ = compiled.Close(ctx)
	}

	Logger().Debug("module loaded",
		zap.String("module", name),
		zap.Int("imports", len(imports)),
		zap.Int("exports", len(exports)))
	return m, nil
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Exports returns the export descriptors in declaration order.
func (m *Module) Exports() []ExportType {
	return append([]ExportType(nil), m.exports...)
}

// Imports returns the import descriptors in declaration order.
func (m *Module) Imports() []ImportType {
	return append([]ImportType(nil), m.imports...)
}

// Instantiate links the module against the runtime's current host
// definitions and creates an instance with a generated name.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	return m.InstantiateNamed(ctx, m.runtime.nextInstanceName(m.name))
}

// InstantiateNamed is Instantiate with an explicit instance name, which
// must be unique within the runtime. Link failures are reported through
// errors.ErrLink, naming the offending import.
func (m *Module) InstantiateNamed(ctx context.Context, name string) (*Instance, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, errors.Disposed("module", m.name)
	}

	bindings, err := m.runtime.linker.Resolve(ctx, m.parsed.Imports)
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	compiled, err := m.compile(ctx, bindings)
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	mod, err := m.runtime.engine.Instantiate(ctx, compiled, name)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	h := newWazeroHandle(mod, true)
	if h.forwards, err = m.forwardedFuncs(bindings); err != nil {
		_ = mod.Close(ctx)
		return nil, errors.Instantiation(err)
	}
	inst, err := newInstance(ctx, h, m.exports, nil, -1)
	if err != nil {
		return nil, err
	}
	inst.module = m
	return inst, nil
}

// compile returns the module compiled against bindings. Import modules
// are rewritten to the bound providers, so each distinct set of bindings
// compiles once.
func (m *Module) compile(ctx context.Context, bindings linker.Bindings) (wazero.CompiledModule, error) {
	key := m.bindingKey(bindings)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.Disposed("module", m.name)
	}
	if c, ok := m.compiled[key]; ok {
		return c, nil
	}

	bin, err := wasm.RewriteImports(m.bin, bindings.Rename)
	if err != nil {
		return nil, errors.Load("rewrite imports", err)
	}
	c, err := m.runtime.engine.Compile(ctx, bin)
	if err != nil {
		return nil, err
	}
	m.compiled[key] = c
	return c, nil
}

// forwardedFuncs resolves function exports that re-export an imported
// function to the export of the bound provider.
func (m *Module) forwardedFuncs(bindings linker.Bindings) (map[string]api.Function, error) {
	var imported []*wasm.Import
	for i := range m.parsed.Imports {
		if m.parsed.Imports[i].Kind == wasm.KindFunc {
			imported = append(imported, &m.parsed.Imports[i])
		}
	}
	if len(imported) == 0 {
		return nil, nil
	}

	var fwd map[string]api.Function
	for _, exp := range m.parsed.Exports {
		if exp.Kind != wasm.KindFunc || int(exp.Index) >= len(imported) {
			continue
		}
		imp := imported[exp.Index]
		provider, _ := bindings.Provider(imp.Module, imp.Name)
		mod := m.runtime.engine.Runtime().Module(provider)
		if mod == nil {
			return nil, errors.New(errors.PhaseInstance, errors.KindMissingImport).
				Path(exp.Name).
				Detail("provider of %s is not running", errors.QualifiedName(imp.Module, imp.Name)).
				Build()
		}
		fn := exportedFunction(mod, imp.Name)
		if fn == nil {
			return nil, errors.Unsupported(errors.PhaseInstance,
				"re-export of "+errors.QualifiedName(imp.Module, imp.Name)+" as "+exp.Name)
		}
		if fwd == nil {
			fwd = make(map[string]api.Function)
		}
		fwd[exp.Name] = fn
	}
	return fwd, nil
}

func (m *Module) bindingKey(bindings linker.Bindings) string {
	if len(m.parsed.Imports) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.parsed.Imports))
	for _, imp := range m.parsed.Imports {
		p, _ := bindings.Provider(imp.Module, imp.Name)
		parts = append(parts, p)
	}
	sort.Strings(parts)
	return strings.Join(parts, "\x00")
}

// Close releases the compiled code. Instances already created keep
// running; further instantiation fails.
func (m *Module) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var firstErr error
	for key, c := range m.compiled {
		if err := c.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.compiled, key)
	}
	return firstErr
}
