/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"
)

// ParseError reports the first structural problem in a script text, with a
// 1-based line and column.
type ParseError struct {
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Msg)
}

var reMarkerName = regexp.MustCompile(`^[A-Z-]+$`)

// Parse parses a dialogue script text into its element tree.
// Supported syntax:
//   - Indentation is exactly 4 spaces per level; tabs are rejected. A line
//     indented one level deeper than its predecessor opens a Block; jumping
//     more than one level is an error.
//   - Markers: %NAME% with NAME in [A-Z-]+.
//   - Comments: lines starting with "// ".
//   - Everything else is a command line `PREFIX |NAME| SUFFIX` with optional
//     prefix and suffix; the pipe is reserved as the name delimiter.
//
// Blank lines are discarded. On the first problem Parse returns a nil script
// and a *ParseError; there is no partial result.
func Parse(input string) (*Script, error) {
	s := &Script{}
	// stack[0] is the root element list; deeper entries are open blocks.
	stack := []*[]Element{&s.Elements}

	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}

		indent := 0
		for indent < len(raw) && raw[indent] == ' ' {
			indent++
		}
		if indent < len(raw) && raw[indent] == '\t' {
			return nil, &ParseError{Line: lineNo, Column: indent + 1, Msg: "tab in indentation; use 4 spaces per level"}
		}
		if indent%4 != 0 {
			return nil, &ParseError{Line: lineNo, Column: indent + 1, Msg: fmt.Sprintf("indentation of %d spaces is not a multiple of 4", indent)}
		}
		level := indent / 4

		depth := len(stack) - 1
		switch {
		case level == depth+1:
			// Open a new block as a sibling of the preceding element.
			blk := &Block{}
			*stack[depth] = append(*stack[depth], blk)
			stack = append(stack, &blk.Elements)
		case level > depth+1:
			return nil, &ParseError{Line: lineNo, Column: indent + 1, Msg: fmt.Sprintf("indentation jumps from level %d to %d", depth, level)}
		case level < depth:
			stack = stack[:level+1]
		}

		el, err := parseContent(raw[indent:], lineNo, indent)
		if err != nil {
			return nil, err
		}
		*stack[len(stack)-1] = append(*stack[len(stack)-1], el)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Line: lineNo, Column: 1, Msg: err.Error()}
	}
	return s, nil
}

// parseContent classifies one already de-indented line. col offsets in errors
// are relative to the whole line, hence the indent argument.
func parseContent(content string, lineNo, indent int) (Element, error) {
	switch {
	case content == "//":
		return Comment{}, nil
	case strings.HasPrefix(content, "// "):
		return Comment{Text: content[3:]}, nil
	case strings.HasPrefix(content, "//"):
		return nil, &ParseError{Line: lineNo, Column: indent + 3, Msg: "comment needs a space after //"}
	case strings.HasPrefix(content, "%"):
		if !strings.HasSuffix(content, "%") || len(content) < 3 {
			return nil, &ParseError{Line: lineNo, Column: indent + 1, Msg: "marker must have the form %NAME%"}
		}
		name := content[1 : len(content)-1]
		if !reMarkerName.MatchString(name) {
			return nil, &ParseError{Line: lineNo, Column: indent + 2, Msg: fmt.Sprintf("marker name %q must match [A-Z-]+", name)}
		}
		return Marker{Name: name}, nil
	default:
		return parseCommand(content, lineNo, indent)
	}
}

func parseCommand(content string, lineNo, indent int) (Element, error) {
	if strings.Count(content, "|") != 2 {
		return nil, &ParseError{Line: lineNo, Column: indent + 1, Msg: "command line needs exactly one |NAME| part"}
	}
	open := strings.IndexByte(content, '|')
	last := strings.LastIndexByte(content, '|')
	name := content[open+1 : last]
	if !reMarkerName.MatchString(name) {
		return nil, &ParseError{Line: lineNo, Column: indent + open + 2, Msg: fmt.Sprintf("command name %q must match [A-Z-]+", name)}
	}

	var cmd Command
	cmd.Name = name
	if open > 0 {
		if content[open-1] != ' ' {
			return nil, &ParseError{Line: lineNo, Column: indent + open, Msg: "prefix must be separated from |NAME| by a space"}
		}
		cmd.Prefix = content[:open-1]
		if cmd.Prefix == "" || strings.TrimSpace(cmd.Prefix) != cmd.Prefix {
			return nil, &ParseError{Line: lineNo, Column: indent + 1, Msg: "prefix must not start or end with a space"}
		}
	}
	if last < len(content)-1 {
		if content[last+1] != ' ' {
			return nil, &ParseError{Line: lineNo, Column: indent + last + 2, Msg: "suffix must be separated from |NAME| by a space"}
		}
		cmd.Suffix = content[last+2:]
		if cmd.Suffix == "" || strings.TrimSpace(cmd.Suffix) != cmd.Suffix {
			return nil, &ParseError{Line: lineNo, Column: indent + last + 2, Msg: "suffix must not start or end with a space"}
		}
	}
	return cmd, nil
}
