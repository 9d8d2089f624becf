package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/zap"

	wasmhost "github.com/wippyai/wasm-host"
	"github.com/wippyai/wasm-host/errors"
)

// WazeroEngine owns a wazero runtime and its optional compilation cache.
type WazeroEngine struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache
	mu      sync.Mutex
	closed  bool
}

// Config holds configuration for engine creation
type Config struct {
	// CompilationCacheDir persists compiled machine code across processes.
	// Empty disables the on-disk cache.
	CompilationCacheDir string

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// CloseOnContextDone interrupts running guest code when the call
	// context is cancelled or its deadline passes.
	CloseOnContextDone bool

	// DebugInfo keeps DWARF-derived source positions in trap backtraces.
	DebugInfo bool

	// EnableThreads enables the WebAssembly threads proposal (experimental).
	// This allows atomic operations and shared memory within WASM modules.
	// Note: Thread operations are guest-only and not exposed to host functions.
	EnableThreads bool
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	runtimeCfg := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(cfg.CloseOnContextDone).
		WithDebugInfoEnabled(cfg.DebugInfo)

	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	if cfg.EnableThreads {
		runtimeCfg = runtimeCfg.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
	}

	var cache wazero.CompilationCache
	if cfg.CompilationCacheDir != "" {
		c, err := wazero.NewCompilationCacheWithDir(cfg.CompilationCacheDir)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "open compilation cache")
		}
		cache = c
		runtimeCfg = runtimeCfg.WithCompilationCache(cache)
	}

	Logger().Debug("engine created",
		zap.Uint32("memory_limit_pages", cfg.MemoryLimitPages),
		zap.String("cache_dir", cfg.CompilationCacheDir),
		zap.Bool("close_on_context_done", cfg.CloseOnContextDone))

	return &WazeroEngine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		cache:   cache,
	}, nil
}

// Runtime returns the underlying wazero runtime.
func (e *WazeroEngine) Runtime() wazero.Runtime {
	return e.runtime
}

// Compile validates and compiles a binary module.
func (e *WazeroEngine) Compile(ctx context.Context, bin []byte) (wazero.CompiledModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.Load("compile failed", err)
	}
	return compiled, nil
}

// Instantiate instantiates a compiled module under name. The module's
// start section runs; exported _start functions are not called.
func (e *WazeroEngine) Instantiate(ctx context.Context, compiled wazero.CompiledModule, name string) (api.Module, error) {
	cfg := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions()
	mod, err := e.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, TranslateError(err)
	}
	return mod, nil
}

// Close closes every module instantiated in the runtime, then the cache.
func (e *WazeroEngine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	err := e.runtime.Close(ctx)
	if e.cache != nil {
		if cerr := e.cache.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// WazeroMemory wraps wazero memory to implement wasmhost.Memory
type WazeroMemory struct {
	mem  api.Memory
	name string
}

// NewWazeroMemory adapts mem. name labels out-of-bounds errors.
func NewWazeroMemory(mem api.Memory, name string) *WazeroMemory {
	return &WazeroMemory{mem: mem, name: name}
}

func (m *WazeroMemory) outOfBounds(offset uint32, length uint64) error {
	return errors.OutOfBounds(errors.PhaseRuntime, []string{m.name}, uint64(offset), length, uint64(m.Size()))
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, m.outOfBounds(offset, uint64(length))
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return m.outOfBounds(offset, uint64(len(data)))
	}
	return nil
}

func (m *WazeroMemory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 1)
	}
	return v, nil
}

func (m *WazeroMemory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 2)
	}
	return v, nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 4)
	}
	return v, nil
}

func (m *WazeroMemory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, m.outOfBounds(offset, 8)
	}
	return v, nil
}

func (m *WazeroMemory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return m.outOfBounds(offset, 1)
	}
	return nil
}

func (m *WazeroMemory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return m.outOfBounds(offset, 2)
	}
	return nil
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return m.outOfBounds(offset, 4)
	}
	return nil
}

func (m *WazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return m.outOfBounds(offset, 8)
	}
	return nil
}

// Size returns the memory size in bytes.
func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// Pages returns the memory size in 64KiB pages.
func (m *WazeroMemory) Pages() uint32 {
	return m.Size() / 65536
}

// Grow adds delta pages and returns the previous page count.
func (m *WazeroMemory) Grow(delta uint32) (uint32, error) {
	prev, ok := m.mem.Grow(delta)
	if !ok {
		return 0, errors.New(errors.PhaseRuntime, errors.KindOutOfBounds).
			Path(m.name).
			Detail("cannot grow memory by %d pages from %d", delta, m.Pages()).
			Build()
	}
	return prev, nil
}

var (
	_ wasmhost.Memory       = (*WazeroMemory)(nil)
	_ wasmhost.MemorySizer  = (*WazeroMemory)(nil)
	_ wasmhost.MemoryGrower = (*WazeroMemory)(nil)
)
