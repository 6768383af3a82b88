package models

import (
	"sort"

	"famtree/pkg/domain"
)

// Tree is one owner's genealogical universe: a set of persons unique by
// identity.
//
// Invariants:
//   - Owner is a member from construction onwards and can never be removed
//   - membership is keyed by IdentityKey; order is irrelevant
//   - children is derived by BuildFamilyLinks and never persisted
type Tree struct {
	ID    domain.TreeID
	Owner *Person

	nodes    map[IdentityKey]*Person
	children map[IdentityKey][]*Person
}

// NewTree builds a tree holding only its owner and records ownership on the
// owner.
func NewTree(id domain.TreeID, owner *Person) *Tree {
	if owner == nil {
		panic("models: NewTree requires an owner")
	}
	t := &Tree{
		ID:       id,
		Owner:    owner,
		nodes:    map[IdentityKey]*Person{owner.Identity(): owner},
		children: make(map[IdentityKey][]*Person),
	}
	owner.Tree = t
	return t
}

// Contains reports membership by identity.
func (t *Tree) Contains(p *Person) bool {
	if p == nil {
		return false
	}
	_, ok := t.nodes[p.Identity()]
	return ok
}

// Get returns the member carrying key.
func (t *Tree) Get(k IdentityKey) (*Person, bool) {
	p, ok := t.nodes[k]
	return p, ok
}

// Add inserts p and reports whether it was absent.
func (t *Tree) Add(p *Person) bool {
	k := p.Identity()
	if _, ok := t.nodes[k]; ok {
		return false
	}
	t.nodes[k] = p
	return true
}

// Remove deletes p from the node set. The owner is never removed.
func (t *Tree) Remove(p *Person) bool {
	if p == nil || t.Owner.Equal(p) {
		return false
	}
	k := p.Identity()
	if _, ok := t.nodes[k]; !ok {
		return false
	}
	delete(t.nodes, k)
	delete(t.children, k)
	return true
}

// Rekey moves a member indexed under oldKey to its current identity.
func (t *Tree) Rekey(oldKey IdentityKey) {
	p, ok := t.nodes[oldKey]
	if !ok {
		return
	}
	delete(t.nodes, oldKey)
	t.nodes[p.Identity()] = p
	if kids, ok := t.children[oldKey]; ok {
		delete(t.children, oldKey)
		t.children[p.Identity()] = kids
	}
}

// Len returns the member count.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Nodes returns the members ordered by identity.
func (t *Tree) Nodes() []*Person {
	out := make([]*Person, 0, len(t.nodes))
	for _, p := range t.nodes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identity().String() < out[j].Identity().String()
	})
	return out
}

// Children returns the children registered for parent by the last
// BuildFamilyLinks pass.
func (t *Tree) Children(parent *Person) []*Person {
	return append([]*Person(nil), t.children[parent.Identity()]...)
}

// ResetChildren clears the derived children adjacency.
func (t *Tree) ResetChildren() {
	t.children = make(map[IdentityKey][]*Person)
}

// AddChild registers child under parent in the derived adjacency.
func (t *Tree) AddChild(parent, child *Person) {
	k := parent.Identity()
	for _, c := range t.children[k] {
		if c.Equal(child) {
			return
		}
	}
	t.children[k] = append(t.children[k], child)
}
