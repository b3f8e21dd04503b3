/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package tree

import (
	"errors"
	"testing"
)

// buildSample builds:
//
//	a
//	    b
//	        d
//	    c
//	e
func buildSample(t *testing.T) (*Tree[string], map[string]NodeID) {
	t.Helper()
	tr := New[string]()
	ids := map[string]NodeID{}
	ids["a"] = tr.Push("a")
	var err error
	if ids["b"], err = tr.PushWithParent("b", ids["a"]); err != nil {
		t.Fatalf("push b: %v", err)
	}
	if ids["d"], err = tr.PushWithParent("d", ids["b"]); err != nil {
		t.Fatalf("push d: %v", err)
	}
	if ids["c"], err = tr.PushWithParent("c", ids["a"]); err != nil {
		t.Fatalf("push c: %v", err)
	}
	ids["e"] = tr.Push("e")
	return tr, ids
}

func TestPushAndGet(t *testing.T) {
	tr, ids := buildSample(t)
	if tr.Len() != 5 {
		t.Fatalf("len: %d", tr.Len())
	}
	for name, id := range ids {
		v, ok := tr.Get(id)
		if !ok || v != name {
			t.Fatalf("get %s: %q %v", name, v, ok)
		}
	}
	if _, ok := tr.Get(999); ok {
		t.Fatalf("get of unknown id should fail")
	}
	if first, ok := tr.First(); !ok || first != ids["a"] {
		t.Fatalf("first: %d %v", first, ok)
	}
}

func TestPushWithParentUnknown(t *testing.T) {
	tr := New[string]()
	if _, err := tr.PushWithParent("x", 42); !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}
}

func TestRelations(t *testing.T) {
	tr, ids := buildSample(t)

	kids := tr.ChildrenOf(ids["a"])
	if len(kids) != 2 || kids[0] != ids["b"] || kids[1] != ids["c"] {
		t.Fatalf("children of a: %v", kids)
	}
	if p, ok := tr.ParentOf(ids["d"]); !ok || p != ids["b"] {
		t.Fatalf("parent of d: %d %v", p, ok)
	}
	if _, ok := tr.ParentOf(ids["a"]); ok {
		t.Fatalf("root has no parent")
	}
	if sib, ok := tr.NextSiblingOf(ids["b"]); !ok || sib != ids["c"] {
		t.Fatalf("next sibling of b: %d %v", sib, ok)
	}
	if sib, ok := tr.PreviousSiblingOf(ids["c"]); !ok || sib != ids["b"] {
		t.Fatalf("prev sibling of c: %d %v", sib, ok)
	}
	if _, ok := tr.NextSiblingOf(ids["d"]); ok {
		t.Fatalf("d has no next sibling")
	}
	// Roots are siblings of each other.
	if sib, ok := tr.NextSiblingOf(ids["a"]); !ok || sib != ids["e"] {
		t.Fatalf("next sibling of a: %d %v", sib, ok)
	}
}

func TestNextWalksDocumentOrder(t *testing.T) {
	tr, ids := buildSample(t)

	// Next skips children: from b it goes to c, not d.
	if n, ok := tr.Next(ids["b"]); !ok || n != ids["c"] {
		t.Fatalf("next of b: %d %v", n, ok)
	}
	// From d it climbs to b and lands on c.
	if n, ok := tr.Next(ids["d"]); !ok || n != ids["c"] {
		t.Fatalf("next of d: %d %v", n, ok)
	}
	// From c it climbs to a and lands on the root sibling e.
	if n, ok := tr.Next(ids["c"]); !ok || n != ids["e"] {
		t.Fatalf("next of c: %d %v", n, ok)
	}
	if _, ok := tr.Next(ids["e"]); ok {
		t.Fatalf("e is the last node")
	}
}

func TestFindBy(t *testing.T) {
	tr, ids := buildSample(t)
	id, ok := tr.FindBy(func(v string) bool { return v == "c" })
	if !ok || id != ids["c"] {
		t.Fatalf("find c: %d %v", id, ok)
	}
	if _, ok := tr.FindBy(func(v string) bool { return v == "zz" }); ok {
		t.Fatalf("find of absent value should fail")
	}
}

func TestIDsAreDeterministicPerTree(t *testing.T) {
	build := func() []NodeID {
		tr := New[int]()
		a := tr.Push(1)
		b, _ := tr.PushWithParent(2, a)
		c, _ := tr.PushWithParent(3, b)
		return []NodeID{a, b, c}
	}
	first, second := build(), build()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("ids differ between identical builds: %v vs %v", first, second)
		}
	}
}
