// Package tlsroots builds the TLS configurations ncabridge needs.
//
//   - roots.go: trust pools for the agent's loopback certificate
//   - watcher.go: hot reload of the bridge server's own key pair
//
// The local agent serves wss:// with a certificate issued by a national
// root that is rarely in the system pool, so the agent client trusts the
// system pool plus any configured CA files.
package tlsroots
