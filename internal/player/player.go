/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package player plays a dialogue script on a terminal: SAY lines are
// printed, GOTO jumps are followed and choices become a numbered menu read
// from the input.
package player

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"godialoguewriter/internal/engine"
	applog "godialoguewriter/internal/log"
	"godialoguewriter/internal/script"
)

// Player drives an engine until the script ends. Reader and writer are
// injectable; the CLI passes stdin and stdout.
type Player struct {
	eng *engine.Engine
	in  *bufio.Scanner
	out io.Writer
}

// New parses nothing; it takes an already validated script.
func New(s *script.Script, in io.Reader, out io.Writer) (*Player, error) {
	eng, err := engine.New(s)
	if err != nil {
		return nil, err
	}
	return &Player{eng: eng, in: bufio.NewScanner(in), out: out}, nil
}

// Run ticks the engine to completion.
func (p *Player) Run() error {
	log := applog.WithComponent("player")
	for !p.eng.Finished() {
		tick, err := p.eng.Tick()
		if errors.Is(err, engine.ErrChoicePending) {
			if err := p.promptChoice(); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		for _, cmd := range tick.Commands {
			if err := p.play(cmd); err != nil {
				return err
			}
		}
	}
	log.Debug("script finished", "steps", p.eng.Steps())
	return nil
}

func (p *Player) play(cmd script.Command) error {
	switch cmd.Name {
	case script.CmdSay:
		if cmd.Prefix != "" {
			fmt.Fprintf(p.out, "%s:\t%s\n", cmd.Prefix, unquote(cmd.Suffix))
		} else {
			fmt.Fprintln(p.out, unquote(cmd.Suffix))
		}
	case script.CmdGoto:
		return p.eng.Goto(cmd.Suffix)
	case script.CmdChoice:
		// the menu is rendered when the engine asks for a decision
	default:
		return fmt.Errorf("player: command %s is not implemented", cmd.String())
	}
	return nil
}

// promptChoice renders the open menu and reads a 1-based index until the
// input yields a valid one.
func (p *Player) promptChoice() error {
	opts := p.eng.PendingChoices()
	for i, opt := range opts {
		fmt.Fprintf(p.out, "%d) %s\n", i+1, unquote(opt.Suffix))
	}
	for {
		fmt.Fprint(p.out, "> ")
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return fmt.Errorf("player: read choice: %w", err)
			}
			return fmt.Errorf("player: input ended while a choice was pending")
		}
		n, err := strconv.Atoi(strings.TrimSpace(p.in.Text()))
		if err != nil || n < 1 || n > len(opts) {
			fmt.Fprintf(p.out, "enter a number between 1 and %d\n", len(opts))
			continue
		}
		return p.eng.Choose(n - 1)
	}
}

// unquote strips one pair of surrounding double quotes for display.
func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
