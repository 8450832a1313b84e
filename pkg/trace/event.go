package trace

import "time"

// Event is a single driver event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// Op is the operation that produced the event.
	Op Op `cbor:"2,keyasint"`

	// Driver is the name of the driver handling the event.
	Driver string `cbor:"3,keyasint,omitempty"`

	// Node is the namespace node name, e.g. "pcd-dev-0".
	Node string `cbor:"4,keyasint,omitempty"`

	// Device is the device number in "major:minor" form.
	Device string `cbor:"5,keyasint,omitempty"`

	// Serial is the serial number from the device's platform data.
	Serial string `cbor:"6,keyasint,omitempty"`

	// SessionID identifies the file session for I/O events.
	SessionID string `cbor:"7,keyasint,omitempty"`

	// Offset is the session offset after the operation.
	Offset int64 `cbor:"8,keyasint,omitempty"`

	// Requested is the byte count asked for by the caller.
	Requested int `cbor:"9,keyasint,omitempty"`

	// Transferred is the byte count actually moved.
	Transferred int `cbor:"10,keyasint,omitempty"`

	// Truncated is set when the transfer was shortened to fit the buffer.
	Truncated bool `cbor:"11,keyasint,omitempty"`

	// Error is the error message, if the operation failed.
	Error string `cbor:"12,keyasint,omitempty"`
}

// Op identifies the traced operation.
type Op uint8

// Traced operations.
const (
	OpLoad Op = iota
	OpUnload
	OpProbe
	OpRemove
	OpOpen
	OpClose
	OpRead
	OpWrite
	OpSeek
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpLoad:
		return "LOAD"
	case OpUnload:
		return "UNLOAD"
	case OpProbe:
		return "PROBE"
	case OpRemove:
		return "REMOVE"
	case OpOpen:
		return "OPEN"
	case OpClose:
		return "CLOSE"
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpSeek:
		return "SEEK"
	default:
		return "UNKNOWN"
	}
}

// Failed reports whether the event records an error.
func (e Event) Failed() bool {
	return e.Error != ""
}
