package bus

import "time"

// NotificationEvent represents one notification observation received from the
// device shim. Created per inbound frame, consumed once by the pipeline, then
// discarded.
type NotificationEvent struct {
	SourceApp  string    `json:"source_app"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Event represents a server-side event broadcast to subscribers (the bridge
// forwards log events to the shim's log viewer).
type Event struct {
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// Event names.
const (
	EventLog     = "log"     // payload: string (one log line)
	EventAttempt = "attempt" // payload: AttemptPayload
	EventStats   = "stats"   // payload: StatsPayload
)

// AttemptPayload describes one reply attempt outcome.
type AttemptPayload struct {
	AttemptID string `json:"attempt_id"`
	Success   bool   `json:"success"`
	Digit     string `json:"digit,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// StatsPayload carries the running counters.
type StatsPayload struct {
	TotalAttempts int `json:"total_attempts"`
	SuccessCount  int `json:"success_count"`
}

// EventHandler handles a broadcast event.
type EventHandler func(Event)

// EventPublisher abstracts event broadcast + subscription. Used by the bridge
// and the pipeline to decouple from the concrete MessageBus.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event Event)
}
