// Package confloader loads layered configuration with koanf.
//
// Sources, lowest priority first:
//
//  1. Defaults supplied by the caller
//  2. A YAML file
//  3. Environment variables (NCABRIDGE_ prefix)
//  4. Explicit overrides, typically command-line flags
//
// Environment variable names map to keys by lowercasing and treating a
// double underscore as the nesting separator:
// NCABRIDGE_AGENT__SIGN_TIMEOUT sets agent.sign_timeout. Keys registered
// with WithListKeys take comma separated values.
//
// Watcher reports changes to the configuration file so a running server
// can re-apply the settings that are safe to change live.
package confloader
