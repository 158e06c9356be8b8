// Package main provides the entry point for ncasign.
//
// ncasign is the command-line client for NCALayer signing. It signs
// payloads through the local agent, either directly or through a running
// ncabridge, and drives the document workflow of a signing portal.
//
// Usage:
//
//	ncasign sign --file contract.pdf --base64
//	ncasign --bridge http://127.0.0.1:13580 sign QUJD
//	ncasign login && ncasign document create contract.pdf -p 42
//	ncasign shell
//
// Exit status is 0 on success, 2 for invalid arguments, 3 when the agent
// cannot be reached, 4 when signing timed out, 5 when the agent declined
// the request and 1 otherwise.
package main
