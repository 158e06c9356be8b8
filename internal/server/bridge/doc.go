// Package bridge keeps one long-lived agent connection for the local HTTP
// server. It connects lazily on first use and reconnects on the next
// request after the agent drops the connection; there is no background
// retry.
package bridge
