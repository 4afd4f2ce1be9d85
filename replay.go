package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"agenthud/engine"
)

// replayControl lines steer the session instead of feeding the engine:
//
//	{"_pause_ms": 250}
//	{"_joined": true}
//	{"_activity": {"agent": true, "user": false}}
//
// Every other line is delivered verbatim as one pubsub message.
type replayControl struct {
	PauseMs  *int  `json:"_pause_ms"`
	Joined   *bool `json:"_joined"`
	Activity *struct {
		Agent bool `json:"agent"`
		User  bool `json:"user"`
	} `json:"_activity"`
}

func runReplay(path string) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer f.Close()

	eng := engine.New()
	eng.SetJoined(true)

	lines := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var ctl replayControl
		if json.Unmarshal([]byte(line), &ctl) == nil {
			switch {
			case ctl.PauseMs != nil:
				time.Sleep(time.Duration(*ctl.PauseMs) * time.Millisecond)
				continue
			case ctl.Joined != nil:
				eng.SetJoined(*ctl.Joined)
				continue
			case ctl.Activity != nil:
				eng.SetActivity(ctl.Activity.Agent, ctl.Activity.User)
				continue
			}
		}

		eng.Ingest([]byte(line))
		lines++
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
		return 1
	}

	v := eng.Snapshot()
	fmt.Printf("Replayed %d messages (%s pipeline)\n\n", lines, kindLabel(v.Kind))

	fmt.Println("=== Transcript ===")
	if len(v.Transcript) == 0 {
		fmt.Println("(empty)")
	}
	for _, e := range v.Transcript {
		marker := ""
		if e.Partial {
			marker = " …"
		}
		role := "agent"
		if e.Role == engine.RoleUser {
			role = "user"
		}
		fmt.Printf("[%8.2f] %-5s %s%s\n", e.Timestamp, role, e.Text, marker)
	}

	fmt.Printf("\n=== Turns (%d) ===\n", len(v.History))
	for i, snap := range v.History {
		e2e, _ := snap.Float("e2e_latency")
		intr := ""
		if snap.Bool("interrupted") {
			intr = " interrupted"
		}
		fmt.Printf("%2d. e2e=%.0fms%s\n", i+1, e2e, intr)
	}

	fmt.Printf("\n=== Events (%d) ===\n", len(v.Events))
	for _, ev := range v.Events {
		fmt.Printf("%s %s\n", ev.At.Format("15:04:05.000"), ev.Name)
	}
	return 0
}

func kindLabel(k engine.Kind) string {
	if k == engine.KindUnknown {
		return "unknown"
	}
	return string(k)
}
