// Package wasm reads and writes the declaration parts of WebAssembly
// binary modules.
//
// It decodes what a host needs to bind a module: function signatures,
// imports, exports and the types of tables, memories and globals. Function
// bodies and segments are skipped; compilation and validation are left to
// the engine.
//
// # Parsing
//
//	module, err := wasm.ParseModule(data)
//	if err != nil {
//	    return err
//	}
//	exports, err := module.ExportDescs()
//
// # Building
//
// Builder encodes small modules, used for synthesized host modules and in
// tests:
//
//	b := wasm.NewBuilder()
//	g := b.Global(wasm.ValI32, true, wasm.I32Const(0))
//	b.Export("counter", wasm.KindGlobal, g)
//	f := b.Func([]wasm.ValType{wasm.ValI32, wasm.ValI32}, []wasm.ValType{wasm.ValI32}, nil,
//	    wasm.LocalGet(0), wasm.LocalGet(1), wasm.Op(wasm.OpI32Add))
//	b.Export("add", wasm.KindFunc, f)
//	bin := b.Bytes()
//
// # Rewriting
//
// RewriteImportModules renames import modules without touching any other
// section, which lets a linker bind the same guest to different providers.
package wasm
