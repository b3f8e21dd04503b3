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
	"testing"

	"godialoguewriter/internal/script"
)

func mustEngine(t *testing.T, src string) *Engine {
	t.Helper()
	s, err := script.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	e, err := New(s)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

// mustTick asserts one tick emitting a single command rendered as want.
func mustTick(t *testing.T, e *Engine, number int, want string) {
	t.Helper()
	tk, err := e.Tick()
	if err != nil {
		t.Fatalf("tick %d: %v", number, err)
	}
	if tk.Number != number {
		t.Fatalf("tick number %d, want %d", tk.Number, number)
	}
	if len(tk.Commands) != 1 {
		t.Fatalf("tick %d: %d commands", number, len(tk.Commands))
	}
	if got := tk.Commands[0].String(); got != want {
		t.Fatalf("tick %d: got %q want %q", number, got, want)
	}
}

func TestLinearScript(t *testing.T) {
	e := mustEngine(t, `%START%
A |SAY| "one"
B |SAY| "two"
A |SAY| "three"
%END%
`)
	mustTick(t, e, 1, `A |SAY| "one"`)
	mustTick(t, e, 2, `B |SAY| "two"`)
	mustTick(t, e, 3, `A |SAY| "three"`)
	if !e.Finished() {
		t.Fatalf("engine should be done")
	}
	// Ticking a finished engine is an empty no-op that keeps the counter.
	for i := 0; i < 2; i++ {
		tk, err := e.Tick()
		if err != nil {
			t.Fatalf("tick after end: %v", err)
		}
		if tk.Number != 3 || len(tk.Commands) != 0 {
			t.Fatalf("tick after end: %+v", tk)
		}
	}
	if e.Steps() != 3 {
		t.Fatalf("steps: %d", e.Steps())
	}
}

// A choice line reached sequentially opens a menu over its run of choice
// siblings, and choosing enters the chosen option's block.
func TestTopLevelChoiceRun(t *testing.T) {
	e := mustEngine(t, `%START%
A |SAY| "hi"
|CHOICE| "yes"
    B |SAY| "ok"
|CHOICE| "no"
    B |SAY| "not ok"
%END%
`)
	mustTick(t, e, 1, `A |SAY| "hi"`)
	mustTick(t, e, 2, `|CHOICE| "yes"`)

	if _, err := e.Tick(); !errors.Is(err, ErrChoicePending) {
		t.Fatalf("tick during menu: %v", err)
	}
	opts := e.PendingChoices()
	if len(opts) != 2 || opts[0].Suffix != `"yes"` || opts[1].Suffix != `"no"` {
		t.Fatalf("pending choices: %v", opts)
	}
	if err := e.Choose(1); err != nil {
		t.Fatalf("choose: %v", err)
	}
	mustTick(t, e, 3, `B |SAY| "not ok"`)
	if !e.Finished() {
		t.Fatalf("engine should be done")
	}
}

// A node whose children are choice lines opens a menu over the children, and
// choosing plays the chosen line on the next tick.
func TestNestedChoiceMenu(t *testing.T) {
	e := mustEngine(t, `%START%
DAISY |SAY| "What do you want to do today?"
    |CHOICE| "Go to the beach"
        LUIGI |SAY| "Lets go to the beach!"
        |GOTO| BEACH
    |CHOICE| "Stay home"
        LUIGI |SAY| "Lets stay home."
%BEACH%
DAISY |SAY| "The water is so nice!"
%END%
`)
	mustTick(t, e, 1, `DAISY |SAY| "What do you want to do today?"`)
	opts := e.PendingChoices()
	if len(opts) != 2 {
		t.Fatalf("pending choices: %v", opts)
	}
	if err := e.Choose(0); err != nil {
		t.Fatalf("choose: %v", err)
	}
	mustTick(t, e, 2, `|CHOICE| "Go to the beach"`)
	mustTick(t, e, 3, `LUIGI |SAY| "Lets go to the beach!"`)
	mustTick(t, e, 4, `|GOTO| BEACH`)
	if err := e.Goto("BEACH"); err != nil {
		t.Fatalf("goto: %v", err)
	}
	mustTick(t, e, 5, `DAISY |SAY| "The water is so nice!"`)
	if !e.Finished() {
		t.Fatalf("engine should be done")
	}
}

func TestSecondBranchFallsThrough(t *testing.T) {
	e := mustEngine(t, `%START%
DAISY |SAY| "Where to?"
    |CHOICE| "Beach"
        LUIGI |SAY| "Beach it is."
    |CHOICE| "Home"
        LUIGI |SAY| "Home it is."
DAISY |SAY| "Off we go."
%END%
`)
	mustTick(t, e, 1, `DAISY |SAY| "Where to?"`)
	if err := e.Choose(1); err != nil {
		t.Fatalf("choose: %v", err)
	}
	mustTick(t, e, 2, `|CHOICE| "Home"`)
	mustTick(t, e, 3, `LUIGI |SAY| "Home it is."`)
	// After the branch the walk climbs out to the next top level line.
	mustTick(t, e, 4, `DAISY |SAY| "Off we go."`)
	if !e.Finished() {
		t.Fatalf("engine should be done")
	}
}

func TestFirstBranchSkipsSiblingChoices(t *testing.T) {
	e := mustEngine(t, `%START%
DAISY |SAY| "Where to?"
    |CHOICE| "Beach"
        LUIGI |SAY| "Beach it is."
    |CHOICE| "Home"
        LUIGI |SAY| "Home it is."
DAISY |SAY| "Off we go."
%END%
`)
	mustTick(t, e, 1, `DAISY |SAY| "Where to?"`)
	if err := e.Choose(0); err != nil {
		t.Fatalf("choose: %v", err)
	}
	mustTick(t, e, 2, `|CHOICE| "Beach"`)
	mustTick(t, e, 3, `LUIGI |SAY| "Beach it is."`)
	// The unchosen "Home" branch is skipped on the way out.
	mustTick(t, e, 4, `DAISY |SAY| "Off we go."`)
	if !e.Finished() {
		t.Fatalf("engine should be done")
	}
}

func TestNestedBlocksFlattenToLinearFlow(t *testing.T) {
	e := mustEngine(t, `%START%
A |SAY| "a"
    B |SAY| "b"
        C |SAY| "c"
A |SAY| "d"
%END%
`)
	for i, want := range []string{`A |SAY| "a"`, `B |SAY| "b"`, `C |SAY| "c"`, `A |SAY| "d"`} {
		mustTick(t, e, i+1, want)
	}
	if !e.Finished() {
		t.Fatalf("engine should be done")
	}
}

func TestGotoLoop(t *testing.T) {
	e := mustEngine(t, `%START%
%MENU%
A |SAY| "menu"
|GOTO| MENU
%END%
`)
	mustTick(t, e, 1, `A |SAY| "menu"`)
	mustTick(t, e, 2, `|GOTO| MENU`)
	if err := e.Goto("MENU"); err != nil {
		t.Fatalf("goto: %v", err)
	}
	mustTick(t, e, 3, `A |SAY| "menu"`)
	if e.Finished() {
		t.Fatalf("loop must not finish")
	}
}

func TestGotoFromDone(t *testing.T) {
	e := mustEngine(t, `%START%
%AGAIN%
A |SAY| "hi"
%END%
`)
	mustTick(t, e, 1, `A |SAY| "hi"`)
	if !e.Finished() {
		t.Fatalf("should be done")
	}
	if err := e.Goto("AGAIN"); err != nil {
		t.Fatalf("goto from done: %v", err)
	}
	mustTick(t, e, 2, `A |SAY| "hi"`)
}

func TestGotoEndFinishesScript(t *testing.T) {
	// %END% has no command after it, so it never enters the marker table;
	// jumping there must still end the script instead of failing.
	e := mustEngine(t, `%START%
A |SAY| "hi"
|GOTO| END
%END%
`)
	mustTick(t, e, 1, `A |SAY| "hi"`)
	mustTick(t, e, 2, `|GOTO| END`)
	if err := e.Goto("END"); err != nil {
		t.Fatalf("goto end: %v", err)
	}
	if !e.Finished() {
		t.Fatalf("engine should be done after goto end")
	}
	tk, err := e.Tick()
	if err != nil || len(tk.Commands) != 0 {
		t.Fatalf("tick after end: %+v, %v", tk, err)
	}
}

func TestGotoEndWithTrailingCommandsJumpsThere(t *testing.T) {
	// With commands after %END% the marker binds normally and goto plays on.
	e := mustEngine(t, `%START%
|GOTO| END
%END%
A |SAY| "epilogue"
`)
	mustTick(t, e, 1, `|GOTO| END`)
	if err := e.Goto("END"); err != nil {
		t.Fatalf("goto end: %v", err)
	}
	mustTick(t, e, 2, `A |SAY| "epilogue"`)
}

// A non-choice line among choice children is not a menu entry; it plays after
// the chosen branch resolves.
func TestMenuExcludesTrailingNonChoiceChild(t *testing.T) {
	e := mustEngine(t, `%START%
A |SAY| "pick"
    |CHOICE| "one"
        B |SAY| "one it is"
    |CHOICE| "two"
        B |SAY| "two it is"
    B |SAY| "either way"
%END%
`)
	mustTick(t, e, 1, `A |SAY| "pick"`)
	opts := e.PendingChoices()
	if len(opts) != 2 || opts[0].Suffix != `"one"` || opts[1].Suffix != `"two"` {
		t.Fatalf("pending choices: %v", opts)
	}
	if err := e.Choose(1); err != nil {
		t.Fatalf("choose: %v", err)
	}
	mustTick(t, e, 2, `|CHOICE| "two"`)
	mustTick(t, e, 3, `B |SAY| "two it is"`)
	mustTick(t, e, 4, `B |SAY| "either way"`)
	if !e.Finished() {
		t.Fatalf("engine should be done")
	}
}

func TestStateErrors(t *testing.T) {
	e := mustEngine(t, `%START%
A |SAY| "hi"
    |CHOICE| "a"
        B |SAY| "a!"
    |CHOICE| "b"
        B |SAY| "b!"
%END%
`)
	if err := e.Choose(0); !errors.Is(err, ErrNoChoicePending) {
		t.Fatalf("choose without menu: %v", err)
	}
	if err := e.Goto("NOPE"); !errors.Is(err, ErrUnknownMarker) {
		t.Fatalf("unknown marker: %v", err)
	}
	mustTick(t, e, 1, `A |SAY| "hi"`)
	if err := e.Choose(7); !errors.Is(err, ErrChoiceOutOfRange) {
		t.Fatalf("out of range: %v", err)
	}
	if err := e.Choose(-1); !errors.Is(err, ErrChoiceOutOfRange) {
		t.Fatalf("negative index: %v", err)
	}
	if err := e.Choose(0); err != nil {
		t.Fatalf("choose: %v", err)
	}
	mustTick(t, e, 2, `|CHOICE| "a"`)
	mustTick(t, e, 3, `B |SAY| "a!"`)
	if !e.Finished() {
		t.Fatalf("should be done")
	}
	if err := e.Choose(0); !errors.Is(err, ErrScriptEnded) {
		t.Fatalf("choose after end: %v", err)
	}
}

func TestChooseIntoChoiceWithoutBlock(t *testing.T) {
	// The checker rejects blockless choices; the engine still refuses to
	// walk into one instead of getting stuck.
	e := mustEngine(t, `%START%
A |SAY| "hi"
|CHOICE| "dead end"
%END%
`)
	mustTick(t, e, 1, `A |SAY| "hi"`)
	mustTick(t, e, 2, `|CHOICE| "dead end"`)
	if err := e.Choose(0); !errors.Is(err, ErrChoiceWithoutBody) {
		t.Fatalf("expected ErrChoiceWithoutBody, got %v", err)
	}
}

func TestEmptyScript(t *testing.T) {
	s, err := script.Parse("// nothing here\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := New(s); !errors.Is(err, ErrEmptyScript) {
		t.Fatalf("expected ErrEmptyScript, got %v", err)
	}
}

func TestMarkerBindsAcrossBlockBoundary(t *testing.T) {
	e := mustEngine(t, `%START%
A |SAY| "one"
%INNER%
    B |SAY| "two"
%END%
`)
	if err := e.Goto("INNER"); err != nil {
		t.Fatalf("goto: %v", err)
	}
	mustTick(t, e, 1, `B |SAY| "two"`)
}
