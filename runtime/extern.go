package runtime

// Table is an exported table. wazero exposes no element access, so a
// Table only describes the export.
type Table struct {
	ref   *handleRef
	typ   *TableType
	name  string
	index int
}

// Name returns the export name.
func (t *Table) Name() string { return t.name }

// Type returns the element type and limits.
func (t *Table) Type() *TableType { return t.typ }

// Index returns the position of the table in the instance's export list.
func (t *Table) Index() int { return t.index }

// ExternModule is a module re-exported by an instance. It is not
// instantiated on its own.
type ExternModule struct {
	typ   *ModuleType
	name  string
	index int
}

// Name returns the export name.
func (m *ExternModule) Name() string { return m.name }

// Type returns the module's imports and exports.
func (m *ExternModule) Type() *ModuleType { return m.typ }

// Index returns the position of the module in the instance's export list.
func (m *ExternModule) Index() int { return m.index }

// ExternInstance is a nested instance export. The child is owned by the
// exporting instance and closed with it.
type ExternInstance struct {
	inst  *Instance
	typ   *InstanceType
	name  string
	index int
}

// Name returns the export name.
func (e *ExternInstance) Name() string { return e.name }

// Type returns the nested instance's exports.
func (e *ExternInstance) Type() *InstanceType { return e.typ }

// Index returns the position of the instance in the exporting instance's
// export list.
func (e *ExternInstance) Index() int { return e.index }

// Instance returns the nested instance.
func (e *ExternInstance) Instance() *Instance { return e.inst }
