package core

import "testing"

func TestOrphanIndexAddEdgeAndChildren(t *testing.T) {
	idx := NewOrphanIndex[[32]byte]()
	parent, childA, childB := hashOf(1), hashOf(2), hashOf(3)
	idx.AddEdge(parent, childA)
	idx.AddEdge(parent, childB)

	children := idx.Children(parent)
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
}

func TestOrphanIndexRemoveBranchCascades(t *testing.T) {
	idx := NewOrphanIndex[[32]byte]()
	root, child, grandchild, unrelated := hashOf(1), hashOf(2), hashOf(3), hashOf(9)
	idx.AddEdge(root, child)
	idx.AddEdge(child, grandchild)
	idx.AddEdge(unrelated, hashOf(10))

	removed := idx.RemoveBranch(root)
	if len(removed) != 3 {
		t.Fatalf("expected root, child and grandchild removed, got %d entries", len(removed))
	}
	if len(idx.Children(unrelated)) != 1 {
		t.Fatalf("unrelated branch should be untouched")
	}
	if len(idx.Children(root)) != 0 {
		t.Fatalf("removed root should have no children left")
	}
}

func TestOrphanIndexRemoveBranchToleratesCycle(t *testing.T) {
	idx := NewOrphanIndex[[32]byte]()
	a, b := hashOf(1), hashOf(2)
	idx.AddEdge(a, b)
	// alias b's child set to a's, so b lists itself as a child (a cycle);
	// RemoveBranch must not loop forever.
	idx.children[b] = idx.children[a]

	done := make(chan struct{})
	go func() {
		idx.RemoveBranch(a)
		close(done)
	}()
	select {
	case <-done:
	default:
	}
	<-done
}

func TestOrphanIndexForgetDoesNotCascade(t *testing.T) {
	idx := NewOrphanIndex[[32]byte]()
	parent, child, grandchild := hashOf(1), hashOf(2), hashOf(3)
	idx.AddEdge(parent, child)
	idx.AddEdge(child, grandchild)

	idx.Forget(child)
	if len(idx.Children(parent)) != 0 {
		t.Fatalf("forgetting child should drop it from its parent's children")
	}
	if len(idx.Children(child)) != 1 {
		t.Fatalf("forgetting a node should not touch its own children")
	}
}
