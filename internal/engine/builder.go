/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package engine executes parsed dialogue scripts. Build turns a script into
// a command tree plus a marker table; Engine steps through that tree one
// command per tick, pausing at choices.
package engine

import (
	"errors"

	"godialoguewriter/internal/script"
	"godialoguewriter/internal/tree"
)

// ErrEmptyScript is returned by Build for scripts without a single command.
var ErrEmptyScript = errors.New("engine: script contains no commands")

// Build walks a script depth first and produces the command tree, the marker
// table and the entry node. Only command lines become nodes: a block's
// commands are children of the line that opened the block, comments are
// skipped and a marker binds to the next command in document order. The entry
// node is the command bound to %START%, falling back to the first command.
func Build(s *script.Script) (*tree.Tree[script.Command], map[string]tree.NodeID, tree.NodeID, error) {
	b := &builder{
		tr:      tree.New[script.Command](),
		markers: make(map[string]tree.NodeID),
	}
	if err := b.walk(s.Elements, 0); err != nil {
		return nil, nil, 0, err
	}
	entry, ok := b.markers[script.MarkerStart]
	if !ok {
		if entry, ok = b.tr.First(); !ok {
			return nil, nil, 0, ErrEmptyScript
		}
	}
	return b.tr, b.markers, entry, nil
}

type builder struct {
	tr      *tree.Tree[script.Command]
	markers map[string]tree.NodeID
	pending string
	armed   bool
}

// walk appends the commands of els under parent (0 for the root level).
// last tracks the most recent command node at this level; a block attaches
// its contents there. Of two markers in a row the later one wins, and a
// marker name seen twice rebinds; both shapes are rejected by the checker
// before an engine ever sees them.
func (b *builder) walk(els []script.Element, parent tree.NodeID) error {
	var last tree.NodeID
	for _, el := range els {
		switch e := el.(type) {
		case script.Command:
			var id tree.NodeID
			if parent == 0 {
				id = b.tr.Push(e)
			} else {
				var err error
				if id, err = b.tr.PushWithParent(e, parent); err != nil {
					return err
				}
			}
			if b.armed {
				b.markers[b.pending] = id
				b.armed = false
			}
			last = id
		case script.Marker:
			b.pending, b.armed = e.Name, true
		case script.Comment:
			// no execution meaning
		case *script.Block:
			p := last
			if p == 0 {
				p = parent
			}
			if err := b.walk(e.Elements, p); err != nil {
				return err
			}
		}
	}
	return nil
}
