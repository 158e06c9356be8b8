package command

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/ncabridge-go/internal/cli/repl"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Run commands interactively",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history",
				Usage: "history file (empty disables it)",
				Value: repl.DefaultHistoryPath(),
			},
		},
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}

	history := repl.NewHistory(c.String("history"), 0)
	if err := history.Load(); err != nil {
		env.Log.Warn("history not loaded", "error", err)
	}

	in := c.App.Reader
	if in == nil {
		in = os.Stdin
	}
	global := forwardedFlags(c)

	r := repl.New(repl.Options{
		Input:    in,
		Output:   c.App.Writer,
		Exec:     shellExec(c, global),
		Commands: commandPaths(App().Commands, ""),
		History:  history,
	})
	err = r.Run(c.Context)

	if serr := history.Save(); serr != nil {
		env.Log.Warn("history not saved", "error", serr)
	}
	return err
}

// shellExec runs each line as a fresh ncasign invocation that inherits
// the shell's global flags.
func shellExec(parent *cli.Context, global []string) repl.ExecFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) > 0 && args[0] == "shell" {
			return errors.New("already in a shell")
		}
		app := App()
		app.Reader = parent.App.Reader
		app.Writer = parent.App.Writer
		app.ErrWriter = parent.App.ErrWriter
		app.ExitErrHandler = func(*cli.Context, error) {}

		argv := append([]string{AppName}, global...)
		return app.RunContext(ctx, append(argv, args...))
	}
}

// forwardedFlags rebuilds the global flags set on the shell invocation.
func forwardedFlags(c *cli.Context) []string {
	var out []string
	for _, f := range globalFlags() {
		name := f.Names()[0]
		if !c.IsSet(name) {
			continue
		}
		if _, ok := f.(*cli.BoolFlag); ok {
			if c.Bool(name) {
				out = append(out, "--"+name)
			}
			continue
		}
		out = append(out, "--"+name, c.String(name))
	}
	return out
}

// commandPaths lists every command as "parent child" strings.
func commandPaths(cmds []*cli.Command, prefix string) []string {
	var out []string
	for _, cmd := range cmds {
		if cmd.Hidden {
			continue
		}
		path := strings.TrimSpace(prefix + " " + cmd.Name)
		out = append(out, path)
		out = append(out, commandPaths(cmd.Subcommands, path)...)
	}
	return out
}
