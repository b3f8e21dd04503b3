/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package engine

import (
	"errors"
	"fmt"

	"godialoguewriter/internal/script"
	"godialoguewriter/internal/tree"
)

// Errors reported for calls that are illegal in the engine's current state.
var (
	ErrChoicePending     = errors.New("engine: a choice is pending, call Choose before Tick")
	ErrNoChoicePending   = errors.New("engine: no choice is pending")
	ErrScriptEnded       = errors.New("engine: script has ended")
	ErrUnknownMarker     = errors.New("engine: unknown marker")
	ErrChoiceOutOfRange  = errors.New("engine: choice index out of range")
	ErrChoiceWithoutBody = errors.New("engine: chosen option has no block")
)

type state int

const (
	awaitingTick state = iota
	awaitingChoice
	done
)

// Tick is the result of one execution step: its 1-based number and the
// commands emitted during the step. A tick past the end of the script is
// empty and does not advance the number.
type Tick struct {
	Number   int
	Commands []script.Command
}

// Engine steps through a built command tree. It is single threaded; the
// caller serializes access. The tree and marker table are never modified
// after New.
//
// At every point the engine is in one of three states: awaiting the next
// Tick, awaiting a Choose, or done. Choices behave differently depending on
// how the current node was reached: a choice line reached sequentially opens
// the decision point for its whole run of consecutive choice siblings
// (choosing enters that option's block), while the children of a node that
// all start with choices form a menu where choosing positions execution at
// the chosen line itself.
type Engine struct {
	tr      *tree.Tree[script.Command]
	markers map[string]tree.NodeID

	state   state
	node    tree.NodeID   // current node while awaitingTick
	chosen  bool          // node was reached via Choose
	options []tree.NodeID // menu while awaitingChoice
	descend bool          // choosing enters the option's block
	steps   int
}

// New builds the script and returns an engine positioned at the entry node.
func New(s *script.Script) (*Engine, error) {
	tr, markers, entry, err := Build(s)
	if err != nil {
		return nil, err
	}
	return &Engine{tr: tr, markers: markers, node: entry}, nil
}

// Finished reports whether the script has ended.
func (e *Engine) Finished() bool { return e.state == done }

// Steps returns the number of ticks executed so far.
func (e *Engine) Steps() int { return e.steps }

// PendingChoices returns the commands of the currently open menu, or nil
// when no choice is pending.
func (e *Engine) PendingChoices() []script.Command {
	if e.state != awaitingChoice {
		return nil
	}
	out := make([]script.Command, len(e.options))
	for i, id := range e.options {
		out[i], _ = e.tr.Get(id)
	}
	return out
}

// Tick executes one step: it emits the command at the current node and moves
// on. Ticking a finished engine returns an empty tick with the final step
// number; ticking while a choice is open returns ErrChoicePending.
func (e *Engine) Tick() (Tick, error) {
	switch e.state {
	case done:
		return Tick{Number: e.steps}, nil
	case awaitingChoice:
		return Tick{}, ErrChoicePending
	}

	cmd, ok := e.tr.Get(e.node)
	if !ok {
		return Tick{}, fmt.Errorf("engine: node %d vanished", e.node)
	}
	e.steps++
	t := Tick{Number: e.steps, Commands: []script.Command{cmd}}

	if !e.chosen && cmd.Name == script.CmdChoice {
		// A choice line reached sequentially: it and its consecutive
		// choice siblings form one decision point.
		e.options = e.choiceRun(e.node)
		e.descend = true
		e.state = awaitingChoice
		return t, nil
	}

	children := e.tr.ChildrenOf(e.node)
	if len(children) > 0 {
		if first, ok := e.tr.Get(children[0]); ok && first.Name == script.CmdChoice {
			e.options = leadingChoices(e.tr, children)
			e.descend = false
			e.state = awaitingChoice
			return t, nil
		}
		e.node = children[0]
		e.chosen = false
		return t, nil
	}

	if next, ok := e.advance(e.node); ok {
		e.node = next
		e.chosen = false
		return t, nil
	}
	e.state = done
	return t, nil
}

// advance is the document-order successor used after a leaf: the next
// sibling, else the next sibling of the closest ancestor that has one. When
// the walk climbs out of a choice branch the remaining choices of the same
// decision point are already resolved and are skipped.
func (e *Engine) advance(id tree.NodeID) (tree.NodeID, bool) {
	for {
		if sib, ok := e.tr.NextSiblingOf(id); ok {
			return sib, true
		}
		parent, ok := e.tr.ParentOf(id)
		if !ok {
			return 0, false
		}
		id = parent
		if cmd, ok := e.tr.Get(id); ok && cmd.Name == script.CmdChoice {
			run := e.choiceRun(id)
			id = run[len(run)-1]
		}
	}
}

// Choose resolves the open menu with the 0-based option index.
func (e *Engine) Choose(i int) error {
	switch e.state {
	case done:
		return ErrScriptEnded
	case awaitingTick:
		return ErrNoChoicePending
	}
	if i < 0 || i >= len(e.options) {
		return fmt.Errorf("%w: %d of %d", ErrChoiceOutOfRange, i, len(e.options))
	}
	target := e.options[i]
	if e.descend {
		kids := e.tr.ChildrenOf(target)
		if len(kids) == 0 {
			cmd, _ := e.tr.Get(target)
			return fmt.Errorf("%w: %s", ErrChoiceWithoutBody, cmd.String())
		}
		e.node = kids[0]
		e.chosen = false
	} else {
		e.node = target
		e.chosen = true
	}
	e.options = nil
	e.state = awaitingTick
	return nil
}

// Goto jumps to the command bound to the named marker, from any state,
// including done. %END% needs no bound command: with nothing following it in
// the script, jumping there ends the script.
func (e *Engine) Goto(name string) error {
	id, ok := e.markers[name]
	if !ok {
		if name == script.MarkerEnd {
			e.options = nil
			e.state = done
			return nil
		}
		return fmt.Errorf("%w: %q", ErrUnknownMarker, name)
	}
	e.node = id
	e.chosen = false
	e.options = nil
	e.state = awaitingTick
	return nil
}

// choiceRun gathers id plus every directly following sibling that is also a
// choice command.
func (e *Engine) choiceRun(id tree.NodeID) []tree.NodeID {
	run := []tree.NodeID{id}
	for {
		sib, ok := e.tr.NextSiblingOf(run[len(run)-1])
		if !ok {
			break
		}
		cmd, ok := e.tr.Get(sib)
		if !ok || cmd.Name != script.CmdChoice {
			break
		}
		run = append(run, sib)
	}
	return run
}

// leadingChoices returns the prefix of ids that are choice commands.
func leadingChoices(tr *tree.Tree[script.Command], ids []tree.NodeID) []tree.NodeID {
	out := make([]tree.NodeID, 0, len(ids))
	for _, id := range ids {
		cmd, ok := tr.Get(id)
		if !ok || cmd.Name != script.CmdChoice {
			break
		}
		out = append(out, id)
	}
	return out
}
