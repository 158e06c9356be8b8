// Package output renders ncasign results.
//
// Results are printed as an aligned table (the default), JSON or YAML.
// Spinner and ProgressReader write to stderr while the CLI waits on the
// agent or reads a large file, so stdout stays machine readable.
package output
