package engine

// State is the derived conversation-activity state. It is a heuristic over
// speaker-activity signals, not a verified protocol state machine; consumers
// depend on its exact transition quirks (thinking is only ever entered from
// listening, never directly from speaking).
type State string

const (
	StateOffline   State = "offline"
	StateListening State = "listening"
	StateThinking  State = "thinking"
	StateSpeaking  State = "speaking"
)

func nextState(prev State, joined, agentSpeaking, userSpeaking bool) State {
	if !joined {
		return StateOffline
	}
	if agentSpeaking {
		return StateSpeaking
	}
	if userSpeaking {
		return StateListening
	}
	switch prev {
	case StateListening:
		return StateThinking
	case StateSpeaking:
		return StateListening
	case StateOffline:
		return StateListening
	}
	return prev
}
