package runtime

import "context"

// Dynamic exposes an instance by member name: globals are read and
// written, functions invoked. It uses the same name indices as
// Instance.Function and Instance.Global, so both views always agree.
type Dynamic struct {
	inst *Instance
}

// Get returns the value of the global name as int32, int64, float32 or
// float64.
func (d *Dynamic) Get(name string) (any, bool, error) {
	v, found, err := d.inst.TryGetMember(name)
	if !found || err != nil {
		return nil, found, err
	}
	return v.Any(), true, nil
}

// Set assigns value to the global name.
func (d *Dynamic) Set(name string, value any) (bool, error) {
	return d.inst.TrySetMember(name, value)
}

// Invoke calls the function name.
func (d *Dynamic) Invoke(ctx context.Context, name string, args ...any) (any, bool, error) {
	return d.inst.TryInvokeMember(ctx, name, args...)
}

// Members lists the names Get, Set and Invoke can resolve, sorted.
func (d *Dynamic) Members() []string {
	return d.inst.memberNames()
}
