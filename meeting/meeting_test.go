package meeting

import (
	"context"
	"testing"
)

func TestIsAgentName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Agent", true},
		{"Voice Agent (prod)", true},
		{"haley", true},
		{"Haley Smith", true},
		{"Alice", false},
		{"", false},
		{"agentless", true}, // substring match is intentional
	}

	for _, tt := range tests {
		if got := isAgentName(tt.name); got != tt.want {
			t.Errorf("isAgentName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestApplyParticipantDerivesActivity(t *testing.T) {
	s := NewPubSub(Config{})

	ev := s.applyParticipant(wireFrame{ParticipantID: "p1", DisplayName: "Haley", IsSpeaking: true})
	if !ev.AgentSpeaking || ev.UserSpeaking {
		t.Errorf("agent speaking frame: %+v", ev)
	}

	ev = s.applyParticipant(wireFrame{ParticipantID: "p2", DisplayName: "me", IsLocal: true, IsSpeaking: true, MicOn: true})
	if !ev.AgentSpeaking {
		t.Error("agent activity forgotten after a second frame")
	}
	if !ev.UserSpeaking || !ev.MicOn {
		t.Errorf("local speaking frame: %+v", ev)
	}

	ev = s.applyParticipant(wireFrame{ParticipantID: "p1", DisplayName: "Haley", IsSpeaking: false})
	if ev.AgentSpeaking {
		t.Error("agent still speaking after stop frame")
	}
	if !ev.UserSpeaking {
		t.Error("user activity forgotten when the agent frame updated")
	}
}

func TestApplyParticipantIgnoresBystanders(t *testing.T) {
	s := NewPubSub(Config{})
	ev := s.applyParticipant(wireFrame{ParticipantID: "p3", DisplayName: "Observer", IsSpeaking: true})
	if ev.AgentSpeaking || ev.UserSpeaking {
		t.Errorf("non-agent remote speaker counted: %+v", ev)
	}
}

func TestPubSubCloseWithoutConnect(t *testing.T) {
	// The run loop tears the session down when the dial fails, so Close must
	// cope with a session that never connected.
	s := NewPubSub(Config{Server: "wss://unreachable.example.com"})
	if err := s.Close(); err != nil {
		t.Fatalf("Close before Connect: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestPubSubToggleMicWithoutConnect(t *testing.T) {
	s := NewPubSub(Config{})
	s.ToggleMic() // must not panic or flip state without a connection
	s.mu.Lock()
	on := s.micOn
	s.mu.Unlock()
	if on {
		t.Error("mic state changed without a connection")
	}
}

func TestFakeSessionLifecycle(t *testing.T) {
	f := NewFake()
	if err := f.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.EmitMessage([]byte(`{"type":"EVENT","event":"ping"}`))
	f.EmitActivity(true, false, true)
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	var types []EventType
	for ev := range f.Events() {
		types = append(types, ev.Type)
	}
	want := []EventType{EventJoined, EventMessage, EventActivity, EventLeft}
	if len(types) != len(want) {
		t.Fatalf("got %d events %v, want %v", len(types), types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, types[i], want[i])
		}
	}
}

func TestFakeSessionToggleMic(t *testing.T) {
	f := NewFake()
	if f.MicOn() {
		t.Fatal("mic starts on")
	}
	f.ToggleMic()
	if !f.MicOn() {
		t.Error("mic not toggled on")
	}
	f.ToggleMic()
	if f.MicOn() {
		t.Error("mic not toggled off")
	}
}
