package linker

import (
	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/wasm"
)

// checkImport reports whether d satisfies imp. Functions need an identical
// signature, globals the same value type and mutability, tables the same
// element type. Memory and table limits must fit inside the imported ones.
func checkImport(imp *wasm.Import, d *definition) error {
	mismatch := func() error {
		return errors.IncompatibleImport(imp.Module, imp.Name, imp.TypeString(), d.typeString())
	}
	if imp.Kind != d.kind {
		return mismatch()
	}

	switch imp.Kind {
	case wasm.KindFunc:
		if !imp.Func.Equal(d.fn) {
			return mismatch()
		}
	case wasm.KindGlobal:
		if *imp.Global != *d.global {
			return mismatch()
		}
	case wasm.KindMemory:
		if imp.Memory.Shared != d.memory.Shared || !limitsMatch(imp.Memory.Limits, d.memory.Limits) {
			return mismatch()
		}
	case wasm.KindTable:
		if imp.Table.Elem != d.table.Elem || !limitsMatch(imp.Table.Limits, d.table.Limits) {
			return mismatch()
		}
	}
	return nil
}

// limitsMatch implements import subtyping for limits.
func limitsMatch(imported, defined wasm.Limits) bool {
	if defined.Min < imported.Min {
		return false
	}
	if !imported.HasMax {
		return true
	}
	return defined.HasMax && defined.Max <= imported.Max
}
