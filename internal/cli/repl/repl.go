package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultPrompt is printed before every line.
const DefaultPrompt = "ncasign> "

// ExecFunc runs one parsed command line.
type ExecFunc func(ctx context.Context, args []string) error

// Options configures a REPL.
type Options struct {
	Input  io.Reader
	Output io.Writer
	Prompt string

	// Exec runs each command. Required.
	Exec ExecFunc

	// Commands feeds "help" and completion.
	Commands []string

	// History is optional. Nil keeps no history.
	History *History
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	opts      Options
	completer *Completer
}

// New creates a new REPL instance.
func New(opts Options) *REPL {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	return &REPL{
		opts:      opts,
		completer: NewCompleter(opts.Commands),
	}
}

// Run reads lines until exit, EOF or ctx is done. Command errors are
// printed and do not end the loop.
func (r *REPL) Run(ctx context.Context) error {
	if r.opts.Exec == nil {
		return errors.New("repl: no Exec function")
	}
	reader := bufio.NewReader(r.opts.Input)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(r.opts.Output, r.opts.Prompt)

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		eof := errors.Is(err, io.EOF)

		line = strings.TrimSpace(line)
		if line != "" {
			if done := r.handle(ctx, line); done {
				return nil
			}
		}
		if eof {
			fmt.Fprintln(r.opts.Output)
			return nil
		}
	}
}

// handle runs one line and reports whether the loop should end.
func (r *REPL) handle(ctx context.Context, line string) bool {
	if r.opts.History != nil {
		r.opts.History.Add(line)
	}

	switch line {
	case "exit", "quit":
		return true
	case "help":
		for _, c := range r.completer.Commands() {
			fmt.Fprintf(r.opts.Output, "  %s\n", c)
		}
		return false
	case "history":
		if r.opts.History != nil {
			for i, e := range r.opts.History.Entries() {
				fmt.Fprintf(r.opts.Output, "%4d  %s\n", i+1, e)
			}
		}
		return false
	}

	args, err := SplitArgs(line)
	if err != nil {
		fmt.Fprintf(r.opts.Output, "Error: %v\n", err)
		return false
	}
	if err := r.opts.Exec(ctx, args); err != nil {
		fmt.Fprintf(r.opts.Output, "Error: %v\n", err)
	}
	return false
}

// SplitArgs splits a line into words. Single and double quotes group
// words; a backslash escapes the next character outside single quotes.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, ch := range line {
		switch {
		case escaped:
			cur.WriteRune(ch)
			escaped = false
		case ch == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				cur.WriteRune(ch)
			}
		case ch == '"' || ch == '\'':
			quote = ch
			inWord = true
		case ch == ' ' || ch == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(ch)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, nil
}
