// Package meeting is the boundary to the conferencing collaborator: joining
// a session, the AGENT_METRICS publish/subscribe topic, and per-participant
// activity signals. It carries no reconciliation logic; raw payloads pass
// through to the engine untouched.
package meeting

import (
	"context"
	"strings"
)

// TopicAgentMetrics is the shared pubsub topic the agent publishes
// telemetry, transcript fragments, and generic events on.
const TopicAgentMetrics = "AGENT_METRICS"

type Config struct {
	Server      string // signaling endpoint, e.g. wss://signal.example.com
	MeetingID   string
	Token       string
	DisplayName string // local participant name shown to the agent
}

type EventType int

const (
	EventJoined EventType = iota
	EventLeft
	EventMessage  // payload received on the subscribed topic
	EventActivity // active-speaker or mic transition
	EventError    // session failed; no further events follow
)

// Event is one occurrence on the session. All events are delivered on a
// single channel so consumers observe them strictly in arrival order.
type Event struct {
	Type EventType

	// EventMessage
	Payload []byte

	// EventActivity
	AgentSpeaking bool
	UserSpeaking  bool
	MicOn         bool

	// EventError
	Err error
}

type Session interface {
	// Connect joins the meeting and subscribes to the metrics topic.
	Connect(ctx context.Context) error
	// Events returns the session event stream. The channel is closed after
	// EventLeft or EventError.
	Events() <-chan Event
	// ToggleMic flips the local microphone state.
	ToggleMic()
	// Close leaves the meeting and releases the connection.
	Close() error
}

// isAgentName reports whether a participant display name identifies the
// voice agent. The agent joins either under a generic "Agent" name or as
// its persona.
func isAgentName(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "agent") || strings.Contains(n, "haley")
}
