/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "strings"

// Script represents a parsed dialogue script: an ordered list of elements at
// indentation level zero. Blank lines in the source are discarded; everything
// else survives parsing so that String() reproduces the input.

// Command names with engine or checker semantics. Any other |NAME| parses
// fine; the checker decides how to treat unknown names.
const (
	CmdSay     = "SAY"
	CmdChoice  = "CHOICE"
	CmdGoto    = "GOTO"
	CmdSet     = "SET"
	CmdIf      = "IF"
	CmdTrigger = "TRIGGER"
)

// Marker names reserved for script begin and end.
const (
	MarkerStart = "START"
	MarkerEnd   = "END"
)

// indentUnit is one indentation level in the source text.
const indentUnit = "    "

// Element is one entry of a script or block: a Command, a Marker, a Comment
// or a *Block. A *Block is a sibling element that follows the line it belongs
// to, one indentation level deeper.
type Element interface {
	String() string
	writeTo(b *strings.Builder, level int)
}

// Line is an Element that occupies a single source line and carries execution
// meaning: a Command or a Marker.
type Line interface {
	Element
	line()
}

// Command is a single executable line: optional prefix, a |NAME| and an
// optional suffix. For `DAISY |SAY| "Hi!"` the prefix is `DAISY`, the name
// `SAY` and the suffix `"Hi!"`.
type Command struct {
	Name   string
	Prefix string
	Suffix string
}

func (c Command) line() {}

func (c Command) String() string {
	var b strings.Builder
	if c.Prefix != "" {
		b.WriteString(c.Prefix)
		b.WriteByte(' ')
	}
	b.WriteByte('|')
	b.WriteString(c.Name)
	b.WriteByte('|')
	if c.Suffix != "" {
		b.WriteByte(' ')
		b.WriteString(c.Suffix)
	}
	return b.String()
}

func (c Command) writeTo(b *strings.Builder, level int) {
	writeIndented(b, level, c.String())
}

// Marker is a jump label line such as %MAIN-MENU%. Names are uppercase with
// dashes; START and END are reserved.
type Marker struct {
	Name string
}

func (m Marker) line() {}

func (m Marker) String() string { return "%" + m.Name + "%" }

func (m Marker) writeTo(b *strings.Builder, level int) {
	writeIndented(b, level, m.String())
}

// Comment is a `// text` line. It has no execution meaning but is kept so
// formatting round-trips.
type Comment struct {
	Text string
}

func (c Comment) String() string {
	if c.Text == "" {
		return "//"
	}
	return "// " + c.Text
}

func (c Comment) writeTo(b *strings.Builder, level int) {
	writeIndented(b, level, c.String())
}

// Block is a run of elements one indentation level deeper than the line that
// opened it. It appears in the element list right after that line.
type Block struct {
	Elements []Element
}

func (bl *Block) String() string {
	var b strings.Builder
	bl.writeTo(&b, -1)
	return b.String()
}

func (bl *Block) writeTo(b *strings.Builder, level int) {
	for _, el := range bl.Elements {
		el.writeTo(b, level+1)
	}
}

// Script is the root element list.
type Script struct {
	Elements []Element
}

// String renders the script back to source text. For any text accepted by
// Parse the output equals the input minus blank lines. Every rendered line
// is newline terminated, so input missing a final newline gains one.
func (s *Script) String() string {
	var b strings.Builder
	for _, el := range s.Elements {
		el.writeTo(&b, 0)
	}
	return b.String()
}

// Structure returns an indented dump of the element kinds, for debugging and
// the `structure` CLI command.
func (s *Script) Structure() string {
	var b strings.Builder
	b.WriteString("script\n")
	structureOf(&b, s.Elements, 1)
	return b.String()
}

func structureOf(b *strings.Builder, els []Element, level int) {
	ind := strings.Repeat(indentUnit, level)
	for _, el := range els {
		switch e := el.(type) {
		case Command:
			b.WriteString(ind)
			b.WriteString("command ")
			b.WriteString(e.Name)
			b.WriteByte('\n')
		case Marker:
			b.WriteString(ind)
			b.WriteString("marker ")
			b.WriteString(e.Name)
			b.WriteByte('\n')
		case Comment:
			b.WriteString(ind)
			b.WriteString("comment\n")
		case *Block:
			b.WriteString(ind)
			b.WriteString("block\n")
			structureOf(b, e.Elements, level+1)
		}
	}
}

func writeIndented(b *strings.Builder, level int, s string) {
	for i := 0; i < level; i++ {
		b.WriteString(indentUnit)
	}
	b.WriteString(s)
	b.WriteByte('\n')
}
