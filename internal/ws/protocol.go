package ws

import (
	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/analysis"
	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/notify"
)

type MessageType string

const (
	// MsgNotification carries a platform notification for the client to
	// raise (title, body, dedupe ID).
	MsgNotification MessageType = "notification"
	// MsgTitle tells clients the authoritative page title changed.
	MsgTitle MessageType = "title"
	// MsgPermissionRequest asks clients to run the ask-once notification
	// permission prompt and report back.
	MsgPermissionRequest MessageType = "permission_request"
	// MsgPollDone carries the delivered snapshot for a finished poll.
	MsgPollDone MessageType = "poll_done"
	// MsgPollError reports a poll that gave up.
	MsgPollError MessageType = "poll_error"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type TitlePayload struct {
	Title string `json:"title"`
}

type PollDonePayload struct {
	Key      string             `json:"key"`
	Snapshot *analysis.Snapshot `json:"snapshot"`
}

type PollErrorPayload struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// NotificationPayload wraps notify.Notification for the wire.
type NotificationPayload struct {
	notify.Notification
}

// ClientMessage is the inbound message format. Clients report page
// visibility transitions and their notification permission state.
type ClientMessage struct {
	Type string `json:"type"` // "visibility" | "permission"

	// Visible is set for visibility messages: true when the page just
	// transitioned from hidden to visible.
	Visible bool `json:"visible,omitempty"`

	// State is set for permission messages: "granted", "denied", or
	// "undecided".
	State string `json:"state,omitempty"`
}
