/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package player

import (
	"bytes"
	"strings"
	"testing"

	"godialoguewriter/internal/script"
	"godialoguewriter/internal/syntax"
)

func run(t *testing.T, src, input string) (string, error) {
	t.Helper()
	s, err := script.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var out bytes.Buffer
	p, err := New(s, strings.NewReader(input), &out)
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	err = p.Run()
	return out.String(), err
}

func TestRunLinearScript(t *testing.T) {
	out, err := run(t, `%START%
DAISY |SAY| "Hello Luigi!"
LUIGI |SAY| "Oh hello, Daisy!"
|SAY| "And so the day went by."
%END%
`, "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "DAISY:\tHello Luigi!\nLUIGI:\tOh hello, Daisy!\nAnd so the day went by.\n"
	if out != want {
		t.Fatalf("output:\n%q\nwant:\n%q", out, want)
	}
}

func TestRunWithChoiceAndGoto(t *testing.T) {
	out, err := run(t, `%START%
DAISY |SAY| "What now?"
    |CHOICE| "Beach"
        LUIGI |SAY| "Beach!"
        |GOTO| DONE
    |CHOICE| "Home"
        LUIGI |SAY| "Home!"
%DONE%
DAISY |SAY| "Ok."
%END%
`, "1\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"1) Beach\n", "2) Home\n", "> ", "LUIGI:\tBeach!\n", "DAISY:\tOk.\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "Home!") {
		t.Fatalf("unchosen branch leaked into output: %q", out)
	}
}

func TestRunRejectsBadChoiceInputThenRecovers(t *testing.T) {
	out, err := run(t, `%START%
A |SAY| "pick"
    |CHOICE| "a"
        A |SAY| "you picked a"
    |CHOICE| "b"
        A |SAY| "you picked b"
%END%
`, "nope\n9\n2\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.Count(out, "enter a number between 1 and 2"); got != 2 {
		t.Fatalf("want 2 rejections, got %d in %q", got, out)
	}
	if !strings.Contains(out, "you picked b") {
		t.Fatalf("missing chosen branch: %q", out)
	}
}

func TestRunFailsWhenInputEndsMidChoice(t *testing.T) {
	_, err := run(t, `%START%
A |SAY| "pick"
    |CHOICE| "a"
        A |SAY| "ok"
    |CHOICE| "b"
        A |SAY| "ok"
%END%
`, "")
	if err == nil || !strings.Contains(err.Error(), "input ended") {
		t.Fatalf("expected input ended error, got %v", err)
	}
}

func TestRunFollowsGotoEnd(t *testing.T) {
	src := `%START%
A |SAY| "hi"
|GOTO| END
%END%
`
	s, err := script.Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := syntax.Check(s); err != nil {
		t.Fatalf("check: %v", err)
	}
	out, err := run(t, src, "")
	if err != nil {
		t.Fatalf("a checked script must play through, got: %v", err)
	}
	if out != "A:\thi\n" {
		t.Fatalf("output: %q", out)
	}
}

func TestRunRejectsReservedCommands(t *testing.T) {
	_, err := run(t, "%START%\n|SET| mood=glad\n%END%\n", "")
	if err == nil || !strings.Contains(err.Error(), "not implemented") {
		t.Fatalf("expected not implemented error, got %v", err)
	}
}
