// Package config holds the ncasign client configuration.
//
// The file lives at ~/.ncabridge/cli.yaml and remembers the portal URL,
// the agent endpoint, the preferred output format and the portal user ID
// of the last successful login. Environment variables and command-line
// flags override it through Merge.
package config
