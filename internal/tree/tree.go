// Package tree implements a string-keyed tree whose nodes are either a leaf
// value or a mapping to subtrees. Trees are merged leaf-wise: equal leaves
// at the same path are fine, anything else at the same path is a conflict.
package tree

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrEmptyPath is returned when a value is inserted without a key path.
var ErrEmptyPath = errors.New("tree: empty key path")

// ConflictError reports two different values claiming the same path.
type ConflictError struct {
	Path []string
}

func (e *ConflictError) Error() string {
	return "tree: conflict at " + strings.Join(e.Path, ".")
}

// Node is either a leaf holding a value or a branch holding children.
type Node[V any] struct {
	value    V
	leaf     bool
	keys     []string
	children map[string]*Node[V]
}

// NewBranch returns an empty branch node.
func NewBranch[V any]() *Node[V] {
	return &Node[V]{children: make(map[string]*Node[V])}
}

// NewLeaf returns a leaf node holding v.
func NewLeaf[V any](v V) *Node[V] {
	return &Node[V]{value: v, leaf: true}
}

// Path builds the chain of branches described by path with v at its end.
func Path[V any](path []string, v V) (*Node[V], error) {
	if len(path) == 0 {
		return nil, ErrEmptyPath
	}
	node := NewLeaf(v)
	for i := len(path) - 1; i >= 0; i-- {
		parent := NewBranch[V]()
		parent.set(path[i], node)
		node = parent
	}
	return node, nil
}

// IsLeaf reports whether n holds a value.
func (n *Node[V]) IsLeaf() bool { return n.leaf }

// Value returns the leaf value.
func (n *Node[V]) Value() (V, bool) {
	return n.value, n.leaf
}

// Keys returns the child keys in first-inserted order.
func (n *Node[V]) Keys() []string {
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

// Child returns the subtree stored under key.
func (n *Node[V]) Child(key string) (*Node[V], bool) {
	c, ok := n.children[key]
	return c, ok
}

// Remove detaches and returns the subtree under key.
func (n *Node[V]) Remove(key string) (*Node[V], bool) {
	c, ok := n.children[key]
	if !ok {
		return nil, false
	}
	delete(n.children, key)
	for i, k := range n.keys {
		if k == key {
			n.keys = append(n.keys[:i], n.keys[i+1:]...)
			break
		}
	}
	return c, true
}

// Insert places v at path, failing with *ConflictError if the path is taken
// by a different value or crosses an existing leaf.
func (n *Node[V]) Insert(path []string, v V, equal func(a, b V) bool) error {
	other, err := Path(path, v)
	if err != nil {
		return err
	}
	return n.Merge(other, equal)
}

// Merge merges other into n. The merge is all-or-nothing: on conflict n is
// left unchanged.
func (n *Node[V]) Merge(other *Node[V], equal func(a, b V) bool) error {
	if err := n.check(other, equal, nil); err != nil {
		return err
	}
	n.apply(other)
	return nil
}

func (n *Node[V]) check(other *Node[V], equal func(a, b V) bool, path []string) error {
	if n.leaf || other.leaf {
		if n.leaf && other.leaf && equal(n.value, other.value) {
			return nil
		}
		return &ConflictError{Path: append([]string(nil), path...)}
	}
	for _, key := range other.keys {
		mine, ok := n.children[key]
		if !ok {
			continue
		}
		if err := mine.check(other.children[key], equal, append(path, key)); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node[V]) apply(other *Node[V]) {
	if n.leaf {
		return
	}
	for _, key := range other.keys {
		theirs := other.children[key]
		if mine, ok := n.children[key]; ok {
			mine.apply(theirs)
			continue
		}
		n.set(key, theirs.clone())
	}
}

func (n *Node[V]) set(key string, child *Node[V]) {
	if n.children == nil {
		n.children = make(map[string]*Node[V])
	}
	if _, ok := n.children[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.children[key] = child
}

func (n *Node[V]) clone() *Node[V] {
	if n.leaf {
		return NewLeaf(n.value)
	}
	c := NewBranch[V]()
	for _, key := range n.keys {
		c.set(key, n.children[key].clone())
	}
	return c
}

// Walk visits every leaf depth-first in key insertion order.
func (n *Node[V]) Walk(fn func(path []string, v V)) {
	n.walk(nil, fn)
}

func (n *Node[V]) walk(path []string, fn func(path []string, v V)) {
	if n.leaf {
		fn(append([]string(nil), path...), n.value)
		return
	}
	for _, key := range n.keys {
		n.children[key].walk(append(path, key), fn)
	}
}

// Leaves returns every leaf value in walk order.
func (n *Node[V]) Leaves() []V {
	var out []V
	n.Walk(func(_ []string, v V) {
		out = append(out, v)
	})
	return out
}

// Len counts the leaves below n.
func (n *Node[V]) Len() int {
	if n.leaf {
		return 1
	}
	total := 0
	for _, c := range n.children {
		total += c.Len()
	}
	return total
}

// MarshalJSON encodes leaves as their value and branches as objects.
func (n *Node[V]) MarshalJSON() ([]byte, error) {
	if n.leaf {
		return json.Marshal(n.value)
	}
	if n.children == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(n.children)
}
