// Package progress implements the progress hub: a topic-based websocket
// pub/sub broker that pushes job status transitions and log lines to
// connected GUI clients, and doubles as the snapshot.Reporter a Runner run
// publishes through.
//
// Topic naming convention:
//
//	job:<id>  — status and log updates for a specific backup job
package progress

// MessageType identifies the kind of event carried by a Message. The GUI
// uses this field to route the payload to the correct store update.
type MessageType string

const (
	// MsgJobStatus is sent when a job transitions between states
	// (idle -> running -> completed | cancelled | failed).
	MsgJobStatus MessageType = "job.status"

	// MsgJobLog is sent for each line emitted by the transfer process
	// during an active backup.
	MsgJobLog MessageType = "job.log"

	// MsgPing names a keepalive message type. The hub never publishes it:
	// keepalive is done with websocket ping frames from the client's write
	// pump.
	MsgPing MessageType = "ping"
)

// Message is the envelope for every websocket frame sent to clients.
//
//	{"type":"job.status","topic":"job:photos","payload":{"status":"running","message":"starting backup"}}
type Message struct {
	Type    MessageType `json:"type"`
	Topic   string      `json:"topic"`
	Payload any         `json:"payload"`
}

// JobStatusPayload is the payload shape for MsgJobStatus.
type JobStatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JobLogPayload is the payload shape for MsgJobLog.
type JobLogPayload struct {
	Level string `json:"level"`
	Line  string `json:"line"`
}
