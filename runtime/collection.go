package runtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/errors"
)

// ExternCollection partitions an instance's exports by kind. Each list
// keeps the original export order.
type ExternCollection struct {
	functions []*Function
	globals   []*Global
	tables    []*Table
	memories  []*Memory
	instances []*ExternInstance
	modules   []*ExternModule
	once      sync.Once
}

// newExternCollection builds one wrapper per export. Nested instances are
// built through the arena under node. On failure every nested instance
// built so far is closed.
func newExternCollection(ctx context.Context, ref *handleRef, exports []ExportType, a *arena, node int) (*ExternCollection, error) {
	c := &ExternCollection{}
	if err := c.build(ctx, ref, exports, a, node); err != nil {
		for _, e := range c.instances {
			_ = e.inst.Close(ctx)
		}
		return nil, err
	}
	return c, nil
}

func (c *ExternCollection) build(ctx context.Context, ref *handleRef, exports []ExportType, a *arena, node int) error {
	h := ref.h
	for i, exp := range exports {
		switch t := exp.Type.(type) {
		case *FuncType:
			f, err := newFunction(ref, h, exp.Name, i, t)
			if err != nil {
				return err
			}
			c.functions = append(c.functions, f)
		case *GlobalType:
			g, err := newGlobal(ref, h, exp.Name, i, t)
			if err != nil {
				return err
			}
			c.globals = append(c.globals, g)
		case *MemoryType:
			m, err := newMemory(ref, h, exp.Name, i, t)
			if err != nil {
				return err
			}
			c.memories = append(c.memories, m)
		case *TableType:
			c.tables = append(c.tables, &Table{ref: ref, typ: t, name: exp.Name, index: i})
		case *ModuleType:
			c.modules = append(c.modules, &ExternModule{typ: t, name: exp.Name, index: i})
		case *InstanceType:
			child, err := h.Instance(exp.Name)
			if err != nil {
				return errors.Wrap(errors.PhaseInstance, errors.KindInstantiation, err, "nested instance "+exp.Name)
			}
			inst, err := newInstance(ctx, child, t.Exports, a, node)
			if err != nil {
				return err
			}
			c.instances = append(c.instances, &ExternInstance{inst: inst, typ: t, name: exp.Name, index: i})
		default:
			return errors.New(errors.PhaseInstance, errors.KindUnsupported).
				Path(ref.name, exp.Name).
				Detail("export has no type").
				Build()
		}
	}
	return nil
}

// dispose drops the memory views and closes the nested instances. Safe
// to call more than once.
func (c *ExternCollection) dispose(ctx context.Context) {
	c.once.Do(func() {
		for _, m := range c.memories {
			m.mem = nil
		}
		for _, e := range c.instances {
			if err := e.inst.Close(ctx); err != nil {
				Logger().Warn("close nested instance", zap.String("instance", e.name), zap.Error(err))
			}
		}
	})
}

// Functions returns the exported functions in export order.
func (c *ExternCollection) Functions() []*Function { return append([]*Function(nil), c.functions...) }

// Globals returns the exported globals in export order.
func (c *ExternCollection) Globals() []*Global { return append([]*Global(nil), c.globals...) }

// Tables returns the exported tables in export order.
func (c *ExternCollection) Tables() []*Table { return append([]*Table(nil), c.tables...) }

// Memories returns the exported memories in export order.
func (c *ExternCollection) Memories() []*Memory { return append([]*Memory(nil), c.memories...) }

// Instances returns the nested instance exports in export order.
func (c *ExternCollection) Instances() []*ExternInstance {
	return append([]*ExternInstance(nil), c.instances...)
}

// Modules returns the nested module exports in export order.
func (c *ExternCollection) Modules() []*ExternModule { return append([]*ExternModule(nil), c.modules...) }
