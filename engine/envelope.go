package engine

import (
	"encoding/json"
	"fmt"
)

// The stream carries two telemetry schema generations plus generic events.
// Classification happens once, here, and everything downstream works with
// the closed envelope variant instead of re-inspecting loose payload shapes.

type msgClass int

const (
	classUnrecognized msgClass = iota
	classTelemetry
	classLegacyPerf
	classGenericEvent
)

type envelope struct {
	class    msgClass
	kind     Kind     // pipeline kind carried by telemetry envelopes
	snapshot Snapshot // telemetry and legacy-performance payload
	fullTurn bool     // telemetry only; legacy messages are always full turns
	event    string   // generic events
	data     any
}

// decodePayload parses a raw pubsub payload into a generic object. Some
// publishers double-encode: the payload is a JSON string whose contents are
// JSON again, so strings get one more decode pass. Anything that is not an
// object after decoding is handed to the router as-is and dropped there.
func decodePayload(raw []byte) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	if s, ok := v.(string); ok {
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("payload string: %w", err)
		}
	}
	m, _ := v.(map[string]any)
	return m, nil
}

// classify routes a decoded payload to its schema variant. Predicates are
// tested in order; the first match wins. A non-nil error means the message
// matched a known shape but its nested metrics could not be decoded.
func classify(m map[string]any) (envelope, error) {
	if m == nil {
		return envelope{}, nil
	}
	typeStr, _ := m["type"].(string)
	metricsVal, hasMetrics := m["metrics"]

	if typeStr != "" && hasMetrics {
		snap, err := decodeMetricsField(metricsVal)
		if err != nil {
			return envelope{}, err
		}
		return envelope{
			class:    classTelemetry,
			kind:     Kind(typeStr),
			snapshot: snap,
			fullTurn: Snapshot(m).Bool("full_turn_data"),
		}, nil
	}

	switch typeStr {
	case "PERFORMANCE":
		return classifyLegacy(m), nil
	case "EVENT":
		name, _ := m["event"].(string)
		return envelope{class: classGenericEvent, event: name, data: m["data"]}, nil
	}
	return envelope{}, nil
}

// decodeMetricsField handles the metrics field being either an object or a
// JSON-encoded string one level deeper.
func decodeMetricsField(v any) (Snapshot, error) {
	if s, ok := v.(string); ok {
		var inner any
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			return nil, fmt.Errorf("metrics field: %w", err)
		}
		v = inner
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("metrics field: not an object")
	}
	return Snapshot(m), nil
}

// classifyLegacy unpacks the old PERFORMANCE schema: payload.data is the
// snapshot, optionally tagged with an interaction type and optionally
// wrapping the real snapshot in a one-element data array.
func classifyLegacy(m map[string]any) envelope {
	env := envelope{class: classLegacyPerf}
	data, _ := m["data"].(map[string]any)
	if data == nil {
		return env
	}
	switch data["type"] {
	case "RealtimeInteraction":
		env.kind = KindRealtime
	case "CascadingInteraction":
		env.kind = KindCascading
	}
	if arr, ok := data["data"].([]any); ok && len(arr) > 0 {
		if first, ok := arr[0].(map[string]any); ok {
			env.snapshot = Snapshot(first)
			return env
		}
	}
	env.snapshot = Snapshot(data)
	return env
}
