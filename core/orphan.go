package core

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// OrphanIndex is a parent-to-children multimap used to track objects whose
// immediate predecessor is not yet known. K is the hash-like key type
// (block hash or tx hash). Instantiated once for blocks and once for
// transactions by Schedule.
type OrphanIndex[K comparable] struct {
	children map[K]mapset.Set[K] // parent -> set of children
	parent   map[K]K             // child -> parent, for edge removal
}

// NewOrphanIndex builds an empty index.
func NewOrphanIndex[K comparable]() *OrphanIndex[K] {
	return &OrphanIndex[K]{
		children: make(map[K]mapset.Set[K]),
		parent:   make(map[K]K),
	}
}

// AddEdge records that child's immediate predecessor is parent.
func (o *OrphanIndex[K]) AddEdge(parent, child K) {
	set, ok := o.children[parent]
	if !ok {
		set = mapset.NewThreadUnsafeSet[K]()
		o.children[parent] = set
	}
	set.Add(child)
	o.parent[child] = parent
}

// Children returns the direct children of parent, if any.
func (o *OrphanIndex[K]) Children(parent K) []K {
	set, ok := o.children[parent]
	if !ok {
		return nil
	}
	return set.ToSlice()
}

// removeEdge drops a single child's parent-edge bookkeeping.
func (o *OrphanIndex[K]) removeEdge(child K) {
	parent, ok := o.parent[child]
	if !ok {
		return
	}
	delete(o.parent, child)
	if set, ok := o.children[parent]; ok {
		set.Remove(child)
		if set.Cardinality() == 0 {
			delete(o.children, parent)
		}
	}
}

// RemoveBranch removes root and every descendant reachable through the
// index, returning the full set of removed keys (root included). A
// visited set guards against cycles a malicious peer might introduce by
// advertising contradictory parents.
func (o *OrphanIndex[K]) RemoveBranch(root K) []K {
	visited := mapset.NewThreadUnsafeSet[K]()
	var removed []K
	stack := []K{root}
	for len(stack) > 0 {
		n := len(stack) - 1
		k := stack[n]
		stack = stack[:n]
		if visited.Contains(k) {
			continue
		}
		visited.Add(k)
		removed = append(removed, k)
		stack = append(stack, o.Children(k)...)
	}
	for _, k := range removed {
		if set, ok := o.children[k]; ok {
			set.Clear()
			delete(o.children, k)
		}
	}
	o.removeEdge(root)
	for _, k := range removed {
		delete(o.parent, k)
	}
	return removed
}

// Forget removes child's edge without touching its descendants; used when
// a parent resolves and the child is promoted out of the orphan index.
func (o *OrphanIndex[K]) Forget(child K) {
	o.removeEdge(child)
}
