/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package tree provides an append-only arena tree. Nodes are addressed by
// opaque ids handed out by the tree itself; ids are monotonic per tree
// instance, so building the same structure twice yields the same ids.
package tree

import (
	"errors"
	"fmt"
)

// NodeID identifies a node within the tree that allocated it. The zero value
// is never a valid id.
type NodeID uint32

// ErrUnknownNode is returned when an id was not allocated by this tree.
var ErrUnknownNode = errors.New("tree: unknown node id")

type node[T any] struct {
	value    T
	parent   NodeID // 0 for roots
	children []NodeID
}

// Tree is an arena of values of type T. Nodes are only ever added, never
// removed or reparented. Not safe for concurrent mutation.
type Tree[T any] struct {
	nodes map[NodeID]*node[T]
	roots []NodeID
	next  NodeID
}

// New returns an empty tree.
func New[T any]() *Tree[T] {
	return &Tree[T]{nodes: make(map[NodeID]*node[T])}
}

func (t *Tree[T]) alloc(v T, parent NodeID) NodeID {
	t.next++
	id := t.next
	t.nodes[id] = &node[T]{value: v, parent: parent}
	return id
}

// Push adds a root node. Roots are siblings of each other in insertion order.
func (t *Tree[T]) Push(v T) NodeID {
	id := t.alloc(v, 0)
	t.roots = append(t.roots, id)
	return id
}

// PushWithParent adds v as the last child of parent.
func (t *Tree[T]) PushWithParent(v T, parent NodeID) (NodeID, error) {
	p, ok := t.nodes[parent]
	if !ok {
		return 0, fmt.Errorf("push child: %w (%d)", ErrUnknownNode, parent)
	}
	id := t.alloc(v, parent)
	p.children = append(p.children, id)
	return id, nil
}

// Get returns the value stored at id.
func (t *Tree[T]) Get(id NodeID) (T, bool) {
	n, ok := t.nodes[id]
	if !ok {
		var zero T
		return zero, false
	}
	return n.value, true
}

// Len returns the number of nodes.
func (t *Tree[T]) Len() int { return len(t.nodes) }

// First returns the first root, or false on an empty tree.
func (t *Tree[T]) First() (NodeID, bool) {
	if len(t.roots) == 0 {
		return 0, false
	}
	return t.roots[0], true
}

// ChildrenOf returns the child ids of id in insertion order. The returned
// slice is shared; callers must not modify it.
func (t *Tree[T]) ChildrenOf(id NodeID) []NodeID {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	return n.children
}

// ParentOf returns the parent of id, or false for roots and unknown ids.
func (t *Tree[T]) ParentOf(id NodeID) (NodeID, bool) {
	n, ok := t.nodes[id]
	if !ok || n.parent == 0 {
		return 0, false
	}
	return n.parent, true
}

// siblingsOf returns the sibling list containing id: the parent's children,
// or the root list for roots.
func (t *Tree[T]) siblingsOf(id NodeID) []NodeID {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	if n.parent == 0 {
		return t.roots
	}
	return t.nodes[n.parent].children
}

// NextSiblingOf returns the sibling directly after id.
func (t *Tree[T]) NextSiblingOf(id NodeID) (NodeID, bool) {
	sibs := t.siblingsOf(id)
	for i, s := range sibs {
		if s == id && i+1 < len(sibs) {
			return sibs[i+1], true
		}
	}
	return 0, false
}

// PreviousSiblingOf returns the sibling directly before id.
func (t *Tree[T]) PreviousSiblingOf(id NodeID) (NodeID, bool) {
	sibs := t.siblingsOf(id)
	for i, s := range sibs {
		if s == id && i > 0 {
			return sibs[i-1], true
		}
	}
	return 0, false
}

// Next returns the document-order successor of id, skipping id's own
// children: the next sibling if there is one, otherwise the next sibling of
// the closest ancestor that has one.
func (t *Tree[T]) Next(id NodeID) (NodeID, bool) {
	for {
		if sib, ok := t.NextSiblingOf(id); ok {
			return sib, true
		}
		parent, ok := t.ParentOf(id)
		if !ok {
			return 0, false
		}
		id = parent
	}
}

// FindBy returns the first node (in allocation order) whose value satisfies
// pred.
func (t *Tree[T]) FindBy(pred func(T) bool) (NodeID, bool) {
	for id := NodeID(1); id <= t.next; id++ {
		if n, ok := t.nodes[id]; ok && pred(n.value) {
			return id, true
		}
	}
	return 0, false
}
