package bus

import "time"

// Event kinds published by the daemon. Subscribers filter by prefix,
// e.g. "wa." for everything coming off the messaging session.
const (
	KindWAMessage     = "wa.message"  // payload: *sync.Inbound (live message)
	KindSyncRun       = "sync.run"    // payload: per-run counters
	KindMessageSaved  = "message.saved"
	KindSendAck       = "message.send_ack"
	KindSendFailed    = "message.send_failed"
	KindStatusChanged = "session.status_changed"
	KindLoggedOut     = "session.logged_out"
)

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
