// Package engine turns the bursty, partially-ordered AGENT_METRICS message
// stream into three consistent bounded views: an ordered transcript with
// partial/finalized segments, a rolling history of turn-level latency
// metrics, and a derived conversation-activity state.
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"agenthud/log"
)

// Engine owns all reconciliation state. Every mutation goes through Ingest,
// SetJoined, or SetActivity under one mutex, so processing order is arrival
// order; accessors return copies.
type Engine struct {
	mu    sync.Mutex
	clock func() time.Time

	seq    int
	kind   Kind
	agg    aggregator
	rec    reconciler
	events eventLog

	joined        bool
	agentSpeaking bool
	userSpeaking  bool
	state         State
}

func New() *Engine {
	e := &Engine{
		clock: time.Now,
		state: StateOffline,
	}
	e.rec.seq = func() int { return e.seq }
	e.rec.newKey = func() string { return uuid.NewString() }
	return e
}

// SetClock replaces the event-log clock. Tests only.
func (e *Engine) SetClock(clock func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = clock
}

// Ingest processes one raw pubsub payload. Malformed payloads are dropped
// and logged; no error is ever returned to the caller because messages are
// not re-deliverable.
func (e *Engine) Ingest(payload []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	obj, err := decodePayload(payload)
	if err != nil {
		log.Warnf("dropping undecodable message: %v", err)
		return
	}
	env, err := classify(obj)
	if err != nil {
		log.Warnf("dropping message: %v", err)
		return
	}
	if env.class == classUnrecognized {
		return
	}
	e.seq++

	switch env.class {
	case classTelemetry:
		e.kind = env.kind
		e.agg.ingest(env.snapshot, env.fullTurn)
		if env.fullTurn {
			e.events.add(e.clock(), "fullTurnComplete", map[string]any{"type": string(env.kind)})
		}
		e.applyTranscript(env.snapshot)

	case classLegacyPerf:
		if env.kind != KindUnknown {
			e.kind = env.kind
		}
		// The legacy schema has no full-turn flag; every message is a
		// complete turn.
		e.agg.ingest(env.snapshot, true)
		e.events.add(e.clock(), "performanceMetricsReceived", nil)

	case classGenericEvent:
		e.events.add(e.clock(), env.event, env.data)
		if env.event == "transcript" {
			e.rec.legacyEvent(env.data)
		}
	}
}

func (e *Engine) applyTranscript(snap Snapshot) {
	if snap == nil {
		return
	}
	if snap.hasTimeline() {
		e.rec.applyTimeline(snap.Timeline())
		return
	}
	if text, ok := snap.Str("user_speech"); ok {
		e.rec.speech(RoleUser, text)
	}
	if text, ok := snap.Str("agent_speech"); ok {
		e.rec.speech(RoleAgent, text)
	}
}

// SetJoined records session membership. Leaving resets the state machine to
// offline and clears the metrics history; the transcript and event log
// survive so the views remain inspectable after disconnect.
func (e *Engine) SetJoined(joined bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.joined = joined
	e.transition()
}

// SetActivity records the per-participant speaking signals from the
// conferencing collaborator.
func (e *Engine) SetActivity(agentSpeaking, userSpeaking bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.agentSpeaking = agentSpeaking
	e.userSpeaking = userSpeaking
	e.transition()
}

func (e *Engine) transition() {
	if !e.joined {
		e.agg.clearHistory()
	}
	e.state = nextState(e.state, e.joined, e.agentSpeaking, e.userSpeaking)
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) PipelineKind() Kind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.kind
}

// Metrics returns a copy of the current snapshot. ok is false before any
// telemetry has arrived.
func (e *Engine) Metrics() (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agg.current.clone(), e.agg.current != nil
}

func (e *Engine) History() []Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Snapshot, len(e.agg.history))
	for i, s := range e.agg.history {
		out[i] = s.clone()
	}
	return out
}

func (e *Engine) Transcript() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Entry, len(e.rec.entries))
	copy(out, e.rec.entries)
	return out
}

func (e *Engine) Events() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]LogEntry, len(e.events.entries))
	copy(out, e.events.entries)
	return out
}

// View is a consistent read-only snapshot of every exposed surface, taken
// under one lock so renderers never observe half-applied messages.
type View struct {
	State      State
	Kind       Kind
	Metrics    Snapshot
	HasMetrics bool
	History    []Snapshot
	Transcript []Entry
	Events     []LogEntry
}

func (e *Engine) Snapshot() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := View{
		State:      e.state,
		Kind:       e.kind,
		Metrics:    e.agg.current.clone(),
		HasMetrics: e.agg.current != nil,
		History:    make([]Snapshot, len(e.agg.history)),
		Transcript: make([]Entry, len(e.rec.entries)),
		Events:     make([]LogEntry, len(e.events.entries)),
	}
	for i, s := range e.agg.history {
		v.History[i] = s.clone()
	}
	copy(v.Transcript, e.rec.entries)
	copy(v.Events, e.events.entries)
	return v
}
