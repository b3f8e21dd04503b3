/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package ui hosts the optional desktop front end. The playback session logic
// lives outside the fyne build tag so it compiles and tests headless.
package ui

import (
	"errors"
	"fmt"
	"strings"

	"godialoguewriter/internal/engine"
	"godialoguewriter/internal/script"
)

// Session drives an engine for an interactive front end: it accumulates the
// spoken transcript and exposes the open choice menu as display strings.
type Session struct {
	eng     *engine.Engine
	lines   []string
	options []string
}

// NewSession builds a session and plays up to the first choice or the end.
func NewSession(s *script.Script) (*Session, error) {
	eng, err := engine.New(s)
	if err != nil {
		return nil, err
	}
	sess := &Session{eng: eng}
	if err := sess.play(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Transcript returns the dialogue lines spoken so far.
func (s *Session) Transcript() []string { return s.lines }

// Options returns the labels of the open choice menu, or nil when none is open.
func (s *Session) Options() []string { return s.options }

// Done reports whether the script has ended.
func (s *Session) Done() bool { return s.eng.Finished() }

// Choose resolves the open menu by zero-based index and plays on.
func (s *Session) Choose(i int) error {
	if len(s.options) == 0 {
		return errors.New("no choice is open")
	}
	if err := s.eng.Choose(i); err != nil {
		return err
	}
	s.options = nil
	return s.play()
}

// Restart jumps back to the start marker and replays from a clean transcript.
func (s *Session) Restart() error {
	if err := s.eng.Goto(script.MarkerStart); err != nil {
		return err
	}
	s.lines = nil
	s.options = nil
	return s.play()
}

// play ticks until a choice opens or the script ends.
func (s *Session) play() error {
	for !s.eng.Finished() {
		tick, err := s.eng.Tick()
		if errors.Is(err, engine.ErrChoicePending) {
			for _, c := range s.eng.PendingChoices() {
				s.options = append(s.options, displayText(c.Suffix))
			}
			return nil
		}
		if err != nil {
			return err
		}
		for _, cmd := range tick.Commands {
			if err := s.apply(cmd); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) apply(cmd script.Command) error {
	switch cmd.Name {
	case script.CmdSay:
		text := displayText(cmd.Suffix)
		if cmd.Prefix != "" {
			text = cmd.Prefix + ": " + text
		}
		s.lines = append(s.lines, text)
	case script.CmdGoto:
		return s.eng.Goto(cmd.Suffix)
	case script.CmdChoice:
		// menu handling happens on the next tick
	default:
		return fmt.Errorf("command %s is not implemented", cmd.Name)
	}
	return nil
}

func displayText(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
