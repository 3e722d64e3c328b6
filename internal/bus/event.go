package bus

import "time"

// Event kinds published by the capture daemon.
const (
	KindMessageCaptured = "capture.message"
	KindStatusChanged   = "capture.status_changed"
	KindHistoryCleared  = "capture.history_cleared"
	KindPairingCode     = "transport.pairing_code"
	KindConnected       = "transport.connected"
	KindDisconnected    = "transport.disconnected"
)

// Event is one notification delivered to subscribers.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
