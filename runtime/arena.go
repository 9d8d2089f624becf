package runtime

import "sync"

// arena is the ownership tree of one root instance and its nested
// instances. Nodes are addressed by index; a parent holds the indices of
// its children in export order.
type arena struct {
	nodes []arenaNode
	mu    sync.Mutex
}

type arenaNode struct {
	inst     *Instance
	children []int
	parent   int
}

func newArena() *arena {
	return &arena{}
}

// reserve allocates a node under parent (-1 for a root). The node joins
// its parent's children only once attached.
func (a *arena) reserve(parent int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nodes = append(a.nodes, arenaNode{parent: parent})
	return len(a.nodes) - 1
}

// attach binds a fully built instance to its node.
func (a *arena) attach(idx int, inst *Instance) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nodes[idx].inst = inst
	if p := a.nodes[idx].parent; p >= 0 {
		a.nodes[p].children = append(a.nodes[p].children, idx)
	}
}

// descendants returns the instances below idx in post-order: each child's
// subtree before the child, children in export order. idx itself is not
// included.
func (a *arena) descendants(idx int) []*Instance {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*Instance
	var walk func(int)
	walk = func(n int) {
		for _, c := range a.nodes[n].children {
			walk(c)
			out = append(out, a.nodes[c].inst)
		}
	}
	walk(idx)
	return out
}

// parent returns the owning instance of idx, or nil for a root.
func (a *arena) parent(idx int) *Instance {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := a.nodes[idx].parent
	if p < 0 {
		return nil
	}
	return a.nodes[p].inst
}
