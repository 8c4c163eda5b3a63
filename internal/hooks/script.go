package hooks

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Serialize turns a command task into a program and its arguments. A textual
// task is split on single spaces with no quote handling; empty tokens from
// repeated spaces are dropped. A structured task passes through unchanged.
func Serialize(t Task) Script {
	if t.Script != nil {
		args := make([]string, len(t.Script.Args))
		copy(args, t.Script.Args)
		return Script{Command: t.Script.Command, Args: args}
	}

	var tokens []string
	for _, tok := range strings.Split(t.Line, " ") {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return Script{Args: []string{}}
	}
	return Script{Command: tokens[0], Args: tokens[1:]}
}

// Line returns the text a shell should interpret for a command task. Textual
// tasks are returned as written. Structured tasks have every argument quoted
// so it reaches the program as a single word.
func Line(t Task) (string, error) {
	if t.Script == nil {
		return t.Line, nil
	}

	words := make([]string, 0, len(t.Script.Args)+1)
	words = append(words, t.Script.Command)
	for _, arg := range t.Script.Args {
		quoted, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("cannot quote argument %q: %w", arg, err)
		}
		words = append(words, quoted)
	}
	return strings.Join(words, " "), nil
}
