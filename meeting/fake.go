package meeting

import "context"

// FakeSession is an in-memory Session driven by the test (or replay mode)
// instead of a live signaling server.
type FakeSession struct {
	events chan Event
	micOn  bool
}

func NewFake() *FakeSession {
	return &FakeSession{events: make(chan Event, 64)}
}

func (f *FakeSession) Connect(_ context.Context) error {
	f.events <- Event{Type: EventJoined}
	return nil
}

func (f *FakeSession) Events() <-chan Event { return f.events }

func (f *FakeSession) ToggleMic() { f.micOn = !f.micOn }

func (f *FakeSession) MicOn() bool { return f.micOn }

func (f *FakeSession) Close() error {
	f.events <- Event{Type: EventLeft}
	close(f.events)
	return nil
}

// EmitMessage delivers a raw payload as if published on the metrics topic.
func (f *FakeSession) EmitMessage(payload []byte) {
	f.events <- Event{Type: EventMessage, Payload: payload}
}

// EmitActivity delivers a speaker-activity transition.
func (f *FakeSession) EmitActivity(agentSpeaking, userSpeaking, micOn bool) {
	f.events <- Event{Type: EventActivity, AgentSpeaking: agentSpeaking, UserSpeaking: userSpeaking, MicOn: micOn}
}
