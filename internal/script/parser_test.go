/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"strings"
	"testing"
)

const daisyScript = `// Daisy talks to Luigi.
%START%
DAISY |SAY| "Hello Luigi!"
LUIGI |SAY| "Oh hello, Daisy!"
DAISY |SAY| "What do you want to do today?"
    |CHOICE| "Go to the beach"
        LUIGI |SAY| "Lets go to the beach!"
        |GOTO| BEACH
    |CHOICE| "Stay home"
        LUIGI |SAY| "Lets stay home."
%BEACH%
DAISY |SAY| "The water is so nice!"
%END%
`

func TestParseRoundTrip(t *testing.T) {
	s, err := Parse(daisyScript)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := s.String(); got != daisyScript {
		t.Fatalf("round trip mismatch:\n--- got ---\n%s\n--- want ---\n%s", got, daisyScript)
	}
}

func TestParseDropsBlankLines(t *testing.T) {
	in := "%START%\n\nA |SAY| \"hi\"\n\n\n%END%\n"
	want := "%START%\nA |SAY| \"hi\"\n%END%\n"
	s, err := Parse(in)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := s.String(); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestParseWithoutFinalNewline(t *testing.T) {
	// Rendering is line based, so a missing final newline comes back as one.
	in := "%START%\nA |SAY| \"hi\"\n%END%"
	s, err := Parse(in)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := s.String(); got != in+"\n" {
		t.Fatalf("got %q want %q", got, in+"\n")
	}
}

func TestParseElementShapes(t *testing.T) {
	s, err := Parse(daisyScript)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(s.Elements) != 9 {
		t.Fatalf("want 9 top level elements, got %d", len(s.Elements))
	}
	if c, ok := s.Elements[0].(Comment); !ok || c.Text != "Daisy talks to Luigi." {
		t.Fatalf("element 0: %#v", s.Elements[0])
	}
	if m, ok := s.Elements[1].(Marker); !ok || m.Name != "START" {
		t.Fatalf("element 1: %#v", s.Elements[1])
	}
	cmd, ok := s.Elements[2].(Command)
	if !ok || cmd.Name != CmdSay || cmd.Prefix != "DAISY" || cmd.Suffix != `"Hello Luigi!"` {
		t.Fatalf("element 2: %#v", s.Elements[2])
	}
	// The block follows the line that opens it.
	blk, ok := s.Elements[5].(*Block)
	if !ok {
		t.Fatalf("element 5 should be the choice block: %#v", s.Elements[5])
	}
	if len(blk.Elements) != 4 {
		t.Fatalf("choice block should hold 2 choices + 2 nested blocks, got %d", len(blk.Elements))
	}
	choice, ok := blk.Elements[0].(Command)
	if !ok || choice.Name != CmdChoice || choice.Prefix != "" {
		t.Fatalf("first nested element: %#v", blk.Elements[0])
	}
	inner, ok := blk.Elements[1].(*Block)
	if !ok || len(inner.Elements) != 2 {
		t.Fatalf("inner block: %#v", blk.Elements[1])
	}
	if g, ok := inner.Elements[1].(Command); !ok || g.Name != CmdGoto || g.Suffix != "BEACH" {
		t.Fatalf("goto line: %#v", inner.Elements[1])
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		line  int
		inMsg string
	}{
		{"tab indent", "%START%\n\tA |SAY| \"x\"\n", 2, "tab"},
		{"odd indent", "%START%\n  A |SAY| \"x\"\n", 2, "multiple of 4"},
		{"indent jump", "%START%\nA |SAY| \"x\"\n        B |SAY| \"y\"\n", 3, "jumps"},
		{"lowercase marker", "%start%\n", 1, "marker name"},
		{"unterminated marker", "%START\n", 1, "%NAME%"},
		{"no pipes", "hello there\n", 1, "|NAME|"},
		{"three pipes", "A |SAY| \"a|b\"\n", 1, "|NAME|"},
		{"empty name", "A || x\n", 1, "command name"},
		{"comment no space", "//bad\n", 1, "space"},
	}
	for _, tc := range cases {
		s, err := Parse(tc.in)
		if err == nil {
			t.Fatalf("%s: expected error, got script %v", tc.name, s)
		}
		pe, ok := err.(*ParseError)
		if !ok {
			t.Fatalf("%s: error type %T", tc.name, err)
		}
		if pe.Line != tc.line {
			t.Fatalf("%s: line %d want %d (%v)", tc.name, pe.Line, tc.line, pe)
		}
		if !strings.Contains(pe.Msg, tc.inMsg) {
			t.Fatalf("%s: msg %q should mention %q", tc.name, pe.Msg, tc.inMsg)
		}
		if s != nil {
			t.Fatalf("%s: no partial script on error", tc.name)
		}
	}
}

func TestCommandString(t *testing.T) {
	cases := []struct {
		cmd  Command
		want string
	}{
		{Command{Name: CmdSay, Prefix: "DAISY", Suffix: `"Hi!"`}, `DAISY |SAY| "Hi!"`},
		{Command{Name: CmdChoice, Suffix: `"Go"`}, `|CHOICE| "Go"`},
		{Command{Name: CmdGoto, Suffix: "END"}, "|GOTO| END"},
		{Command{Name: "WAIT"}, "|WAIT|"},
	}
	for _, tc := range cases {
		if got := tc.cmd.String(); got != tc.want {
			t.Fatalf("got %q want %q", got, tc.want)
		}
	}
}

func TestStructureDump(t *testing.T) {
	s, err := Parse("%START%\nA |SAY| \"hi\"\n    |CHOICE| \"go\"\n        B |SAY| \"ok\"\n%END%\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := "script\n" +
		"    marker START\n" +
		"    command SAY\n" +
		"    block\n" +
		"        command CHOICE\n" +
		"        block\n" +
		"            command SAY\n" +
		"    marker END\n"
	if got := s.Structure(); got != want {
		t.Fatalf("structure mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestBlockStringRendersOneLevelDeep(t *testing.T) {
	s, err := Parse("A |SAY| \"hi\"\n    B |SAY| \"ho\"\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	blk, ok := s.Elements[1].(*Block)
	if !ok {
		t.Fatalf("element 1: %#v", s.Elements[1])
	}
	if got := blk.String(); got != "B |SAY| \"ho\"\n" {
		t.Fatalf("block string: %q", got)
	}
}
