// Package connection manages the transport connection to the local signing agent.
//
// This package owns a single secure WebSocket to the agent:
//
//   - manager.go: connection state machine and lifecycle
//   - registry.go: ordered inbound message handler registry
//   - state.go: connection states
//
// Features:
//
//   - One live connection per Manager
//   - Fan-out of every inbound text frame to handlers in registration order
//   - Self-removing handlers via Subscription.Cancel
//   - No automatic reconnection; Done() reports a dropped connection
package connection
