package runtime

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/engine"
	"github.com/wippyai/wasm-host/linker"
)

// Config holds configuration for runtime creation.
type Config struct {
	// Logger, when set, is installed as the logger of the runtime, engine
	// and linker packages.
	Logger *zap.Logger

	// CompilationCacheDir persists compiled code across processes.
	CompilationCacheDir string

	// MemoryLimitPages caps every memory, in 64KiB pages. 0 keeps the
	// wazero default of 65536 pages (4GiB).
	MemoryLimitPages uint32

	// CloseOnContextDone interrupts guest code when the call context is
	// done. The call then fails with a trap wrapping *sys.ExitError.
	CloseOnContextDone bool

	// DebugInfo keeps source positions in trap backtraces.
	DebugInfo bool

	// EnableThreads enables the threads proposal (shared memories, atomics).
	EnableThreads bool

	// DisallowShadowing makes redefining a host import an error.
	DisallowShadowing bool
}

// Option configures a Runtime.
type Option func(*Config)

// WithLogger sets the logger for the runtime, engine and linker packages.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithCompilationCache enables the on-disk compilation cache in dir.
func WithCompilationCache(dir string) Option {
	return func(c *Config) { c.CompilationCacheDir = dir }
}

// WithMemoryLimitPages caps memories at pages 64KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *Config) { c.MemoryLimitPages = pages }
}

// WithCloseOnContextDone interrupts guest code when the call context is done.
func WithCloseOnContextDone() Option {
	return func(c *Config) { c.CloseOnContextDone = true }
}

// WithDebugInfo keeps source positions in trap backtraces.
func WithDebugInfo() Option {
	return func(c *Config) { c.DebugInfo = true }
}

// WithThreads enables the threads proposal.
func WithThreads() Option {
	return func(c *Config) { c.EnableThreads = true }
}

// WithoutShadowing rejects redefinition of host imports.
func WithoutShadowing() Option {
	return func(c *Config) { c.DisallowShadowing = true }
}

func (c *Config) engineConfig() *engine.Config {
	return &engine.Config{
		CompilationCacheDir: c.CompilationCacheDir,
		MemoryLimitPages:    c.MemoryLimitPages,
		CloseOnContextDone:  c.CloseOnContextDone,
		DebugInfo:           c.DebugInfo,
		EnableThreads:       c.EnableThreads,
	}
}

func (c *Config) linkerOptions() linker.Options {
	opts := linker.DefaultOptions()
	opts.AllowShadowing = !c.DisallowShadowing
	return opts
}
