package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/runtime"
)

var rootCmd = &cobra.Command{
	Use:   "wasmhost",
	Short: "Inspect and drive WebAssembly modules",
	Long: `wasmhost - load a WebAssembly module, link it against host globals and
work with the exports of its instance.

Imports are satisfied from --define-global flags. Exported functions can be
invoked, exported globals read and written, either one command at a time or
interactively with repl and explore.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringArray("define-global", nil,
		"Host global as module::name=kind:value[:mut] (can be repeated)")
	rootCmd.PersistentFlags().Uint32("memory-limit-pages", 0, "Cap memories at this many 64KiB pages (0: no cap)")
	rootCmd.PersistentFlags().String("cache-dir", "", "Directory for the compilation cache")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log runtime activity to stderr")
}

// session is a runtime with one instance of the module given on the
// command line.
type session struct {
	rt   *runtime.Runtime
	mod  *runtime.Module
	inst *runtime.Instance
	log  *zap.Logger
}

func (s *session) Close(ctx context.Context) {
	if s.inst != nil {
		_ = s.inst.Close(ctx)
	}
	if s.mod != nil {
		_ = s.mod.Close(ctx)
	}
	if err := s.rt.Close(ctx); err != nil {
		s.log.Warn("close runtime", zap.Error(err))
	}
	_ = s.log.Sync()
}

func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

// newRuntime builds a runtime from the persistent flags and defines the
// requested host globals.
func newRuntime(ctx context.Context, cmd *cobra.Command) (*runtime.Runtime, *zap.Logger, error) {
	flags := cmd.Root().PersistentFlags()
	pages, _ := flags.GetUint32("memory-limit-pages")
	cacheDir, _ := flags.GetString("cache-dir")
	globals, _ := flags.GetStringArray("define-global")

	log, err := newLogger(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	opts := []runtime.Option{runtime.WithLogger(log)}
	if pages > 0 {
		opts = append(opts, runtime.WithMemoryLimitPages(pages))
	}
	if cacheDir != "" {
		opts = append(opts, runtime.WithCompilationCache(cacheDir))
	}

	rt, err := runtime.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create runtime: %w", err)
	}

	for _, def := range globals {
		g, err := parseGlobalDef(def)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, nil, err
		}
		if err := rt.DefineGlobal(g.module, g.name, g.value, g.mutable); err != nil {
			_ = rt.Close(ctx)
			return nil, nil, err
		}
		log.Debug("host global defined",
			zap.String("module", g.module),
			zap.String("name", g.name),
			zap.Any("value", g.value),
			zap.Bool("mutable", g.mutable))
	}
	return rt, log, nil
}

// loadModule reads and compiles file without instantiating it.
func loadModule(ctx context.Context, cmd *cobra.Command, file string) (*session, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	rt, log, err := newRuntime(ctx, cmd)
	if err != nil {
		return nil, err
	}
	s := &session{rt: rt, log: log}

	s.mod, err = rt.LoadModuleNamed(ctx, moduleName(file), data)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	return s, nil
}

// openSession loads file and instantiates it.
func openSession(ctx context.Context, cmd *cobra.Command, file string) (*session, error) {
	s, err := loadModule(ctx, cmd, file)
	if err != nil {
		return nil, err
	}
	s.inst, err = s.mod.Instantiate(ctx)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	return s, nil
}

func moduleName(file string) string {
	return strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
}
