package engine

import "testing"

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantNil bool
		wantErr bool
	}{
		{"object", `{"type":"EVENT"}`, false, false},
		{"double-encoded object", `"{\"type\":\"EVENT\"}"`, false, false},
		{"number is not an object", `42`, true, false},
		{"array is not an object", `[1,2]`, true, false},
		{"invalid json", `{broken`, true, true},
		{"double-encoded garbage", `"{broken"`, true, true},
		{"empty", ``, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := decodePayload([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if (m == nil) != tt.wantNil {
				t.Errorf("map nil = %v, want %v", m == nil, tt.wantNil)
			}
		})
	}
}

func TestClassifyTelemetry(t *testing.T) {
	m := map[string]any{
		"type":           "realtime",
		"full_turn_data": true,
		"metrics":        map[string]any{"ttfb": 250.0},
	}
	env, err := classify(m)
	if err != nil {
		t.Fatal(err)
	}
	if env.class != classTelemetry {
		t.Fatalf("class = %v, want telemetry", env.class)
	}
	if env.kind != KindRealtime {
		t.Errorf("kind = %q, want realtime", env.kind)
	}
	if !env.fullTurn {
		t.Error("fullTurn = false")
	}
	if v, _ := env.snapshot.Float("ttfb"); v != 250.0 {
		t.Errorf("snapshot ttfb = %v, want 250", v)
	}
}

func TestClassifyTelemetryStringMetrics(t *testing.T) {
	m := map[string]any{
		"type":    "cascading",
		"metrics": `{"stt_latency": 80}`,
	}
	env, err := classify(m)
	if err != nil {
		t.Fatal(err)
	}
	if env.class != classTelemetry || env.kind != KindCascading {
		t.Fatalf("env = %+v", env)
	}
	if v, _ := env.snapshot.Float("stt_latency"); v != 80.0 {
		t.Errorf("stt_latency = %v, want 80", v)
	}
	if env.fullTurn {
		t.Error("fullTurn = true without full_turn_data")
	}
}

func TestClassifyTelemetryBadMetrics(t *testing.T) {
	for _, metrics := range []any{`{broken`, 42.0, "plain string"} {
		m := map[string]any{"type": "realtime", "metrics": metrics}
		if _, err := classify(m); err == nil {
			t.Errorf("metrics %v: expected error", metrics)
		}
	}
}

func TestClassifyLegacyPerformance(t *testing.T) {
	m := map[string]any{
		"type": "PERFORMANCE",
		"data": map[string]any{
			"type": "RealtimeInteraction",
			"data": []any{map[string]any{"ttfb": 310.0}},
		},
	}
	env, err := classify(m)
	if err != nil {
		t.Fatal(err)
	}
	if env.class != classLegacyPerf || env.kind != KindRealtime {
		t.Fatalf("env = %+v", env)
	}
	if v, _ := env.snapshot.Float("ttfb"); v != 310.0 {
		t.Errorf("snapshot ttfb = %v, want 310", v)
	}
}

func TestClassifyLegacyFlatData(t *testing.T) {
	m := map[string]any{
		"type": "PERFORMANCE",
		"data": map[string]any{
			"type":        "CascadingInteraction",
			"stt_latency": 95.0,
		},
	}
	env, err := classify(m)
	if err != nil {
		t.Fatal(err)
	}
	if env.kind != KindCascading {
		t.Errorf("kind = %q, want cascading", env.kind)
	}
	if v, _ := env.snapshot.Float("stt_latency"); v != 95.0 {
		t.Errorf("stt_latency = %v, want 95", v)
	}
}

func TestClassifyLegacyWithoutData(t *testing.T) {
	env, err := classify(map[string]any{"type": "PERFORMANCE"})
	if err != nil {
		t.Fatal(err)
	}
	if env.class != classLegacyPerf || env.snapshot != nil {
		t.Errorf("env = %+v", env)
	}
}

func TestClassifyGenericEvent(t *testing.T) {
	m := map[string]any{
		"type":  "EVENT",
		"event": "toolCall",
		"data":  map[string]any{"name": "lookup"},
	}
	env, err := classify(m)
	if err != nil {
		t.Fatal(err)
	}
	if env.class != classGenericEvent || env.event != "toolCall" {
		t.Fatalf("env = %+v", env)
	}
	if env.data == nil {
		t.Error("event data dropped")
	}
}

func TestClassifyUnrecognized(t *testing.T) {
	for _, m := range []map[string]any{
		nil,
		{},
		{"foo": "bar"},
		{"type": "SOMETHING_ELSE"},
		{"metrics": map[string]any{}}, // metrics without a type string
	} {
		env, err := classify(m)
		if err != nil {
			t.Fatal(err)
		}
		if env.class != classUnrecognized {
			t.Errorf("classify(%v) class = %v, want unrecognized", m, env.class)
		}
	}
}

func TestTelemetryTakesPrecedenceOverLegacy(t *testing.T) {
	// A message carrying both a type string and a metrics field is routed as
	// telemetry even if the type string matches a legacy marker.
	m := map[string]any{
		"type":    "PERFORMANCE",
		"metrics": map[string]any{"e2e_latency": 100.0},
	}
	env, err := classify(m)
	if err != nil {
		t.Fatal(err)
	}
	if env.class != classTelemetry {
		t.Errorf("class = %v, want telemetry", env.class)
	}
}
