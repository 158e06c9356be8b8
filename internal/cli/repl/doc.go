// Package repl runs ncasign commands from an interactive prompt.
//
// Each line is split shell-style and handed to an Exec function, so the
// shell shares the command tree with single-command mode. History is kept
// in ~/.ncabridge/history.
package repl
