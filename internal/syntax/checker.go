/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package syntax validates parsed scripts beyond what the parser enforces:
// marker discipline, per-command shapes and reachability. The engine assumes
// scripts passed these checks.
package syntax

import (
	"fmt"

	applog "godialoguewriter/internal/log"
	"godialoguewriter/internal/script"
)

// Severity decides how a configurable rule reacts.
type Severity int

const (
	Allow Severity = iota
	Warn
	Deny
)

// Options configures the rules that are not hard errors in every dialect.
type Options struct {
	// UnknownCommands applies to command names outside the known
	// vocabulary (SAY, CHOICE, GOTO and the reserved SET, IF, TRIGGER).
	UnknownCommands Severity
	// TopLevelBlocks applies to a block that does not follow a command or
	// marker line and therefore hangs off nothing.
	TopLevelBlocks Severity
}

// DefaultOptions denies unknown commands and allows orphan blocks.
func DefaultOptions() Options {
	return Options{UnknownCommands: Deny, TopLevelBlocks: Allow}
}

// CheckError is a single validation failure.
type CheckError struct {
	Msg string
}

func (e *CheckError) Error() string { return "syntax: " + e.Msg }

func failf(format string, args ...any) error {
	return &CheckError{Msg: fmt.Sprintf(format, args...)}
}

var knownCommands = map[string]bool{
	script.CmdSay:     true,
	script.CmdChoice:  true,
	script.CmdGoto:    true,
	script.CmdSet:     true,
	script.CmdIf:      true,
	script.CmdTrigger: true,
}

// Check validates s with DefaultOptions.
func Check(s *script.Script) error { return CheckWithOptions(s, DefaultOptions()) }

// CheckWithOptions validates s and returns the first violation found, or nil.
// Rules with Warn severity log through the application logger and do not
// fail the check.
func CheckWithOptions(s *script.Script, opts Options) error {
	c := &checker{opts: opts, markers: map[string]bool{}}

	if err := c.collectMarkers(s.Elements); err != nil {
		return err
	}
	if err := c.checkStart(s.Elements); err != nil {
		return err
	}
	if err := c.checkElements(s.Elements); err != nil {
		return err
	}
	if c.commands == 0 {
		return failf("script contains no commands")
	}
	if err := c.bindMarkers(s.Elements); err != nil {
		return err
	}
	if p := c.pendingMarker; p != "" && p != script.MarkerEnd {
		return failf("marker %%%s%% is not followed by a command", p)
	}
	return nil
}

type checker struct {
	opts          Options
	markers       map[string]bool
	commands      int
	pendingMarker string
}

// collectMarkers gathers all marker names up front so GOTO targets anywhere
// in the script resolve, and rejects duplicates.
func (c *checker) collectMarkers(els []script.Element) error {
	for _, el := range els {
		switch e := el.(type) {
		case script.Marker:
			if c.markers[e.Name] {
				return failf("marker %s declared twice", e.String())
			}
			c.markers[e.Name] = true
		case *script.Block:
			if err := c.collectMarkers(e.Elements); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkStart requires the first element other than comments to be %START%.
func (c *checker) checkStart(els []script.Element) error {
	for _, el := range els {
		if _, ok := el.(script.Comment); ok {
			continue
		}
		if m, ok := el.(script.Marker); ok && m.Name == script.MarkerStart {
			return nil
		}
		return failf("script must begin with %%%s%%", script.MarkerStart)
	}
	return failf("script must begin with %%%s%%", script.MarkerStart)
}

// checkElements walks one container, looking at each element together with
// its successor.
func (c *checker) checkElements(els []script.Element) error {
	for i, el := range els {
		var next script.Element
		if i+1 < len(els) {
			next = els[i+1]
		}
		switch e := el.(type) {
		case script.Command:
			c.commands++
			if err := c.checkCommand(e, next); err != nil {
				return err
			}
		case script.Marker:
			if e.Name == script.MarkerEnd && c.commands == 0 {
				return failf("%s before the first command", e.String())
			}
			if m, ok := next.(script.Marker); ok {
				return failf("marker %s directly follows marker %s", m.String(), e.String())
			}
		case script.Comment:
			// always fine
		case *script.Block:
			if i == 0 || !isLine(els[i-1]) {
				if err := c.report(c.opts.TopLevelBlocks, "block does not follow a command or marker line"); err != nil {
					return err
				}
			}
			if err := c.checkElements(e.Elements); err != nil {
				return err
			}
		}
	}
	return nil
}

// bindMarkers replays the binding the engine performs: a marker attaches to
// the next command in document order, comments in between change nothing and
// a later marker takes over an unbound one. A marker the engine could never
// resolve fails here. %END% is exempt as the predecessor since the engine
// treats a jump to an unbound %END% as the end of the script.
func (c *checker) bindMarkers(els []script.Element) error {
	for _, el := range els {
		switch e := el.(type) {
		case script.Command:
			c.pendingMarker = ""
		case script.Marker:
			if p := c.pendingMarker; p != "" && p != script.MarkerEnd {
				return failf("marker %s follows marker %%%s%% with no command between", e.String(), p)
			}
			c.pendingMarker = e.Name
		case *script.Block:
			if err := c.bindMarkers(e.Elements); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *checker) checkCommand(cmd script.Command, next script.Element) error {
	switch cmd.Name {
	case script.CmdSay:
		if cmd.Suffix == "" {
			return failf("%s has nothing to say", cmd.String())
		}
	case script.CmdChoice:
		if cmd.Prefix != "" {
			return failf("%s must not have a prefix", cmd.String())
		}
		if cmd.Suffix == "" {
			return failf("%s has no option text", cmd.String())
		}
		if _, ok := next.(*script.Block); !ok {
			return failf("%s is not followed by a block", cmd.String())
		}
	case script.CmdGoto:
		if cmd.Prefix != "" {
			return failf("%s must not have a prefix", cmd.String())
		}
		if cmd.Suffix == "" {
			return failf("%s has no target marker", cmd.String())
		}
		if !c.markers[cmd.Suffix] {
			return failf("%s targets an undeclared marker", cmd.String())
		}
		// Anything after a GOTO in the same block is unreachable,
		// unless it is a marker that can be jumped to.
		if next != nil {
			if _, ok := next.(script.Marker); !ok {
				if _, ok := next.(script.Comment); !ok {
					return failf("unreachable element after %s", cmd.String())
				}
			}
		}
	default:
		if !knownCommands[cmd.Name] {
			if err := c.report(c.opts.UnknownCommands, fmt.Sprintf("unknown command %s", cmd.String())); err != nil {
				return err
			}
		}
	}
	return nil
}

// report applies a severity to a finding.
func (c *checker) report(sev Severity, msg string) error {
	switch sev {
	case Deny:
		return &CheckError{Msg: msg}
	case Warn:
		applog.WithComponent("syntax").Warn(msg)
	}
	return nil
}

func isLine(el script.Element) bool {
	_, ok := el.(script.Line)
	return ok
}
