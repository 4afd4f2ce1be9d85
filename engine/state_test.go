package engine

import "testing"

func TestNextState(t *testing.T) {
	tests := []struct {
		name          string
		prev          State
		joined        bool
		agentSpeaking bool
		userSpeaking  bool
		want          State
	}{
		{"not joined always offline", StateSpeaking, false, true, true, StateOffline},
		{"agent speaking wins", StateListening, true, true, true, StateSpeaking},
		{"user speaking listens", StateThinking, true, false, true, StateListening},
		{"silence after listening means thinking", StateListening, true, false, false, StateThinking},
		{"silence after speaking means listening", StateSpeaking, true, false, false, StateListening},
		{"joining from offline starts listening", StateOffline, true, false, false, StateListening},
		{"thinking holds through silence", StateThinking, true, false, false, StateThinking},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextState(tt.prev, tt.joined, tt.agentSpeaking, tt.userSpeaking)
			if got != tt.want {
				t.Errorf("nextState(%v, %v, %v, %v) = %v, want %v",
					tt.prev, tt.joined, tt.agentSpeaking, tt.userSpeaking, got, tt.want)
			}
		})
	}
}

func TestNextStateNeverThinkingFromSpeaking(t *testing.T) {
	// Thinking is only entered from listening. A speaking agent that goes
	// silent must pass through listening first.
	got := nextState(StateSpeaking, true, false, false)
	if got == StateThinking {
		t.Error("speaking transitioned directly to thinking")
	}
}
