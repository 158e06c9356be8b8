// Package command defines the ncasign command tree.
//
// Commands sign data with the local agent (directly, or through a running
// ncabridge when --bridge is set) and drive the document portal flows:
// login, document create/cosign/pending/signed and partner search. Results
// go to the app's Writer in table, JSON or YAML form; progress and
// diagnostics go to its ErrWriter.
package command
