package core

import "encoding/json"

// EventKind names a point in a provider attempt's lifecycle.
type EventKind string

// Event kinds, in the order a single attempt emits them.
const (
	UploadBegin   EventKind = "upload_begin"
	UploadSuccess EventKind = "upload_success"
	UploadFail    EventKind = "upload_fail"
	PinBegin      EventKind = "pin_begin"
	PinSuccess    EventKind = "pin_success"
	PinFail       EventKind = "pin_fail"
	// UploadProgress reports bytes read from the archive during an upload.
	UploadProgress EventKind = "upload_progress"
)

// Event is a progress or result notification for one provider.
type Event struct {
	Kind     EventKind
	Provider string

	// Payload is set on UploadSuccess.
	Payload json.RawMessage
	// CID is set on PinSuccess.
	CID string
	// Err is set on UploadFail and PinFail.
	Err error

	// BytesTransferred and TotalBytes are set on UploadProgress.
	BytesTransferred int64
	TotalBytes       int64
}

// Observer receives events during a publish run.
// Events from the concurrent provider group arrive from several goroutines,
// so implementations must be safe for concurrent use.
type Observer interface {
	OnEvent(e Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(e Event)

// OnEvent calls f(e).
func (f ObserverFunc) OnEvent(e Event) { f(e) }
