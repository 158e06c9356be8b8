package connection

// State is the lifecycle state of a Manager.
type State int32

const (
	// StateDisconnected means no connection exists.
	StateDisconnected State = iota
	// StateConnecting means a handshake is in progress.
	StateConnecting
	// StateConnected means the connection is open and Send may be used.
	StateConnected
	// StateFailed means the last handshake failed.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
