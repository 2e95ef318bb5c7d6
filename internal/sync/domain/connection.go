package domain

// ConnectionState definition transport connection state
type ConnectionState string

const (
	// Disconnected no active connection
	Disconnected ConnectionState = "disconnected"
	// Connecting dial or backoff retry in progress
	Connecting ConnectionState = "connecting"
	// Connected socket established and authenticated
	Connected ConnectionState = "connected"
)

// ConnectionInfo read-only connection snapshot for listeners
type ConnectionInfo struct {
	State     ConnectionState `json:"state"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
}
