package engine

// Kind identifies the agent pipeline shape reported by the telemetry stream.
// Realtime pipelines run a single integrated voice model; cascading pipelines
// run separate STT/LLM/TTS stages, so a different set of latency fields is
// meaningful for each.
type Kind string

const (
	KindUnknown   Kind = ""
	KindRealtime  Kind = "realtime"
	KindCascading Kind = "cascading"
)

// Snapshot is one turn's worth of telemetry fields as decoded from the wire.
// Field values keep their JSON types: float64, string, bool, or nested
// structures for the timeline.
type Snapshot map[string]any

func (s Snapshot) Float(key string) (float64, bool) {
	f, ok := s[key].(float64)
	return f, ok
}

func (s Snapshot) Str(key string) (string, bool) {
	v, ok := s[key].(string)
	return v, ok
}

func (s Snapshot) Bool(key string) bool {
	b, _ := s[key].(bool)
	return b
}

func (s Snapshot) clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// TimelineEvent is one speech segment inside a snapshot's timeline array.
// A nil End means the segment is still in progress.
type TimelineEvent struct {
	EventType string
	Text      string
	Start     float64
	End       *float64
}

// hasTimeline reports whether the snapshot carries a timeline array at all,
// even an empty one. The continuous-speech fields are only consulted when no
// timeline is present.
func (s Snapshot) hasTimeline() bool {
	_, ok := s["timeline"].([]any)
	return ok
}

// Timeline decodes the snapshot's timeline array. Entries that are not
// objects are skipped.
func (s Snapshot) Timeline() []TimelineEvent {
	raw, ok := s["timeline"].([]any)
	if !ok {
		return nil
	}
	out := make([]TimelineEvent, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ev := TimelineEvent{}
		ev.EventType, _ = m["event_type"].(string)
		ev.Text, _ = m["text"].(string)
		ev.Start, _ = m["start_time"].(float64)
		if end, ok := m["end_time"].(float64); ok {
			ev.End = &end
		}
		out = append(out, ev)
	}
	return out
}

const historyCap = 20

// identityFields are the provider/model identity keys carried over into the
// merge base when a partial snapshot starts a new turn. Everything else from
// the previous turn is discarded so a fresh turn cannot inherit stale
// latency numbers.
var identityFields = []string{
	"provider_class_name",
	"provider_model_name",
	"stt_provider_class",
	"stt_model_name",
	"llm_provider_class",
	"llm_model_name",
	"tts_provider_class",
	"tts_model_name",
}

// aggregator merges partial and full-turn snapshots and keeps the bounded
// rolling history used for graphing.
type aggregator struct {
	current      Snapshot
	history      []Snapshot
	lastFullTurn bool
}

func (a *aggregator) ingest(snap Snapshot, fullTurn bool) {
	if fullTurn {
		a.current = snap
		a.history = append(a.history, snap)
		if len(a.history) > historyCap {
			a.history = a.history[len(a.history)-historyCap:]
		}
		a.lastFullTurn = true
		return
	}

	base := a.current
	if a.lastFullTurn {
		// Previous message completed a turn: keep only identity fields as
		// the merge base for the new turn.
		base = Snapshot{}
		for _, k := range identityFields {
			if v, ok := a.current[k]; ok {
				base[k] = v
			}
		}
	}

	merged := base.clone()
	if merged == nil {
		merged = Snapshot{}
	}
	for k, v := range snap {
		if v == nil {
			continue
		}
		merged[k] = v
	}
	a.current = merged
	a.lastFullTurn = false
}

func (a *aggregator) clearHistory() {
	a.history = nil
}
