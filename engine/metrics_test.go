package engine

import (
	"fmt"
	"testing"
)

func TestAggregatorFullTurnReplacesCurrent(t *testing.T) {
	var a aggregator
	a.ingest(Snapshot{"e2e_latency": 1200.0, "ttfb": 300.0}, true)
	a.ingest(Snapshot{"e2e_latency": 900.0}, true)

	if v, _ := a.current.Float("e2e_latency"); v != 900.0 {
		t.Errorf("current e2e_latency = %v, want 900", v)
	}
	if _, ok := a.current.Float("ttfb"); ok {
		t.Error("stale ttfb survived a full-turn replacement")
	}
	if len(a.history) != 2 {
		t.Errorf("history len = %d, want 2", len(a.history))
	}
}

func TestAggregatorHistoryCap(t *testing.T) {
	var a aggregator
	for i := 1; i <= 25; i++ {
		a.ingest(Snapshot{"e2e_latency": float64(i)}, true)
	}

	if len(a.history) != historyCap {
		t.Fatalf("history len = %d, want %d", len(a.history), historyCap)
	}
	if v, _ := a.history[0].Float("e2e_latency"); v != 6 {
		t.Errorf("oldest kept turn = %v, want 6", v)
	}
	if v, _ := a.history[historyCap-1].Float("e2e_latency"); v != 25 {
		t.Errorf("newest turn = %v, want 25", v)
	}
}

func TestAggregatorPartialMergesCumulatively(t *testing.T) {
	var a aggregator
	a.ingest(Snapshot{"stt_latency": 120.0}, false)
	a.ingest(Snapshot{"llm_ttft": 340.0}, false)

	if v, _ := a.current.Float("stt_latency"); v != 120.0 {
		t.Errorf("stt_latency = %v, want 120", v)
	}
	if v, _ := a.current.Float("llm_ttft"); v != 340.0 {
		t.Errorf("llm_ttft = %v, want 340", v)
	}
	if len(a.history) != 0 {
		t.Errorf("partials must not enter history, got %d", len(a.history))
	}
}

func TestAggregatorPartialAfterFullTurnKeepsIdentityOnly(t *testing.T) {
	var a aggregator
	a.ingest(Snapshot{
		"provider_class_name": "GeminiRealtime",
		"provider_model_name": "gemini-live",
		"e2e_latency":         1500.0,
	}, true)
	a.ingest(Snapshot{"ttfb": 210.0}, false)

	if v, _ := a.current.Str("provider_class_name"); v != "GeminiRealtime" {
		t.Errorf("provider identity lost: %v", a.current)
	}
	if _, ok := a.current.Float("e2e_latency"); ok {
		t.Error("new turn inherited e2e_latency from the finished turn")
	}
	if v, _ := a.current.Float("ttfb"); v != 210.0 {
		t.Errorf("ttfb = %v, want 210", v)
	}
}

func TestAggregatorPartialSkipsNilValues(t *testing.T) {
	var a aggregator
	a.ingest(Snapshot{"ttfb": 200.0}, false)
	a.ingest(Snapshot{"ttfb": nil, "e2e_latency": 800.0}, false)

	if v, _ := a.current.Float("ttfb"); v != 200.0 {
		t.Errorf("nil value overwrote ttfb: %v", a.current["ttfb"])
	}
}

func TestAggregatorClearHistoryKeepsCurrent(t *testing.T) {
	var a aggregator
	a.ingest(Snapshot{"e2e_latency": 700.0}, true)
	a.clearHistory()

	if len(a.history) != 0 {
		t.Errorf("history len = %d, want 0", len(a.history))
	}
	if a.current == nil {
		t.Error("current snapshot cleared along with history")
	}
}

func TestSnapshotAccessors(t *testing.T) {
	s := Snapshot{"f": 1.5, "s": "x", "b": true, "wrong": "type"}

	if v, ok := s.Float("f"); !ok || v != 1.5 {
		t.Errorf("Float(f) = %v, %v", v, ok)
	}
	if _, ok := s.Float("wrong"); ok {
		t.Error("Float accepted a string value")
	}
	if v, ok := s.Str("s"); !ok || v != "x" {
		t.Errorf("Str(s) = %v, %v", v, ok)
	}
	if !s.Bool("b") || s.Bool("missing") {
		t.Error("Bool accessor wrong")
	}
}

func TestSnapshotTimeline(t *testing.T) {
	s := Snapshot{"timeline": []any{
		map[string]any{"event_type": "user_speech", "text": "hi", "start_time": 1.0, "end_time": 2.0},
		map[string]any{"event_type": "agent_speech", "text": "open", "start_time": 3.0},
		"not an object",
	}}

	if !s.hasTimeline() {
		t.Fatal("hasTimeline = false")
	}
	evs := s.Timeline()
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if evs[0].End == nil || *evs[0].End != 2.0 {
		t.Errorf("first event end = %v, want 2.0", evs[0].End)
	}
	if evs[1].End != nil {
		t.Error("open segment decoded with an end time")
	}
}

func TestSnapshotEmptyTimelinePresent(t *testing.T) {
	s := Snapshot{"timeline": []any{}, "user_speech": "should be ignored"}
	if !s.hasTimeline() {
		t.Error("empty timeline array should still count as present")
	}
}

func TestSnapshotCloneIndependent(t *testing.T) {
	s := Snapshot{"k": 1.0}
	c := s.clone()
	c["k"] = 2.0
	if v, _ := s.Float("k"); v != 1.0 {
		t.Errorf("clone shares storage: %v", v)
	}

	var nilSnap Snapshot
	if nilSnap.clone() != nil {
		t.Error("clone of nil snapshot should stay nil")
	}
}

func ExampleSnapshot_Float() {
	s := Snapshot{"e2e_latency": 1234.0}
	v, _ := s.Float("e2e_latency")
	fmt.Printf("%.2fs\n", v/1000)
	// Output: 1.23s
}
