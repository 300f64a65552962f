// Package protocol defines the wire types exchanged between the grabbot
// daemon and the on-device accessibility shim over a single WebSocket
// connection. The shim streams notification events in; the daemon issues
// UI automation requests (snapshot, click, set-text, home) and pushes log
// lines out.
package protocol

import "encoding/json"

// ProtocolVersion is bumped on any incompatible wire change.
const ProtocolVersion = 1

// Message type discriminators (top-level "type" field).
const (
	TypeNotification = "notification" // shim → daemon
	TypeResult       = "result"       // shim → daemon (reply to a request)
	TypeRequest      = "request"      // daemon → shim
	TypeLog          = "log"          // daemon → shim (log viewer push)
)

// UI automation method names (Request.Method).
const (
	MethodUISnapshot = "ui.snapshot"
	MethodUIClick    = "ui.click"
	MethodUISetText  = "ui.setText"
	MethodUIHome     = "ui.home"
)

// Message is the envelope for every frame in either direction. Exactly one
// of the payload fields is set, according to Type.
type Message struct {
	Type string `json:"type"`

	// TypeNotification
	Notification *Notification `json:"notification,omitempty"`

	// TypeRequest
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// TypeResult (ID is shared with TypeRequest)
	OK    bool            `json:"ok,omitempty"`
	Node  *Node           `json:"node,omitempty"`
	Error string          `json:"error,omitempty"`

	// TypeLog
	Line string `json:"line,omitempty"`
}

// Notification carries one OS notification observation. The daemon reads
// exactly these three fields.
type Notification struct {
	SourceApp string `json:"source_app"`
	Title     string `json:"title"`
	Text      string `json:"text"`
}

// Node is one element of a UI tree snapshot. The shim assigns IDs that stay
// valid for the lifetime of the snapshot, so follow-up click/set-text
// requests can reference located elements.
type Node struct {
	ID          string  `json:"id"`
	Class       string  `json:"class,omitempty"`
	Text        string  `json:"text,omitempty"`
	ContentDesc string  `json:"content_desc,omitempty"`
	Children    []*Node `json:"children,omitempty"`
}

// ClickParams targets a node from the most recent snapshot.
type ClickParams struct {
	NodeID string `json:"node_id"`
}

// SetTextParams writes text into an editable node.
type SetTextParams struct {
	NodeID string `json:"node_id"`
	Text   string `json:"text"`
}
