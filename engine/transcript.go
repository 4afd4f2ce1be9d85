package engine

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

const (
	RoleUser  = "user"
	RoleAgent = "agent"

	transcriptCap = 50

	// Synthetic timestamps for entries without an authoritative time sort
	// just after the watermark but before the next timeline-sourced event.
	timestampEpsilon = 0.01
)

// Entry is one transcript segment. ID is the content/source-derived identity
// used for dedup and merging; Key is a synthetic identity used only for
// display-list stability and is never matched against.
type Entry struct {
	Role      string
	Text      string
	ID        string
	Key       string
	Partial   bool
	Timestamp float64
}

// reconciler converges three asynchronously-arriving representations of the
// same speech into one ordered log: continuous-speech fields and generic
// transcript events render content immediately under temporary identities,
// and the authoritative timeline supersedes them with true start/end times.
type reconciler struct {
	entries []Entry
	water   float64 // highest timeline start/end time observed
	greeted bool

	seq    func() int    // current message sequence, for temp identities
	newKey func() string // fresh display-list identity
}

func (r *reconciler) tempID(role string) string {
	return fmt.Sprintf("temp-%s-%d", role, r.seq())
}

// canonicalID derives the stable identity of a timeline segment from its
// start time and role. The start time always keeps a decimal point so the
// id is unambiguous ("1.0-user", never "1-user").
func canonicalID(start float64, role string) string {
	s := strconv.FormatFloat(start, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s + "-" + role
}

func greetingID(text string) string {
	h := fnv.New32a()
	h.Write([]byte(text))
	return fmt.Sprintf("greeting-%08x", h.Sum32())
}

func isTempID(id string) bool {
	return strings.HasPrefix(id, "temp-")
}

func (r *reconciler) lastOfRole(role string) int {
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Role == role {
			return i
		}
	}
	return -1
}

func (r *reconciler) hasText(text string) bool {
	for i := range r.entries {
		if r.entries[i].Text == text {
			return true
		}
	}
	return false
}

// speech handles a continuous-speech field (user_speech/agent_speech).
// Growing text that contains the previous text is a continuation of the
// open partial entry; anything else finalizes it and starts a new segment.
func (r *reconciler) speech(role, text string) {
	if text == "" {
		return
	}
	defer r.finish()

	if i := r.lastOfRole(role); i >= 0 && r.entries[i].Partial {
		old := r.entries[i].Text
		if len(text) > len(old) && strings.Contains(text, old) {
			r.entries[i].Text = text
			return
		}
		r.entries[i].Partial = false
		r.entries = append(r.entries, Entry{
			Role:      role,
			Text:      text,
			ID:        r.tempID(role),
			Key:       r.newKey(),
			Partial:   true,
			Timestamp: r.water + timestampEpsilon,
		})
		return
	}

	if r.hasText(text) {
		return
	}

	if role == RoleAgent && !r.greeted {
		// First agent utterance is the greeting: deterministic identity,
		// pinned to timestamp 0 so it always sorts first.
		r.greeted = true
		r.entries = append(r.entries, Entry{
			Role:    RoleAgent,
			Text:    text,
			ID:      greetingID(text),
			Key:     r.newKey(),
			Partial: true,
		})
		return
	}

	r.entries = append(r.entries, Entry{
		Role:      role,
		Text:      text,
		ID:        r.tempID(role),
		Key:       r.newKey(),
		Partial:   true,
		Timestamp: r.water + timestampEpsilon,
	})
}

// applyTimeline reconciles authoritative timeline segments into the log and
// advances the watermark. Matching is by canonical id or identical text,
// first match wins; when two distinct utterances share the same text this
// can misattribute the update, which is accepted until the stream carries a
// stronger identity.
func (r *reconciler) applyTimeline(events []TimelineEvent) {
	defer r.finish()

	for _, ev := range events {
		if ev.EventType == "" || ev.Text == "" {
			continue
		}
		role := RoleAgent
		if ev.EventType == "user_speech" {
			role = RoleUser
		}
		id := canonicalID(ev.Start, role)
		final := ev.End != nil

		idx := -1
		for i := range r.entries {
			if r.entries[i].ID == id || r.entries[i].Text == ev.Text {
				idx = i
				break
			}
		}

		if idx >= 0 {
			e := &r.entries[idx]
			if isTempID(e.ID) || e.Text != ev.Text || (e.Partial && final) {
				e.Text = ev.Text
				e.Partial = !final
				e.ID = id
				e.Timestamp = ev.Start
			}
		} else {
			r.entries = append(r.entries, Entry{
				Role:      role,
				Text:      ev.Text,
				ID:        id,
				Key:       r.newKey(),
				Partial:   !final,
				Timestamp: ev.Start,
			})
		}

		t := ev.Start
		if ev.End != nil {
			t = *ev.End
		}
		if t > r.water {
			r.water = t
		}
	}
}

// legacyEvent handles a generic "transcript" event. A trailing partial entry
// of the same role is treated as corrected and replaced in place, keeping
// its display identity.
func (r *reconciler) legacyEvent(data any) {
	m, ok := data.(map[string]any)
	if !ok {
		return
	}
	text, _ := m["text"].(string)
	if text == "" {
		return
	}
	role := RoleAgent
	if rv, _ := m["role"].(string); rv == RoleUser {
		role = RoleUser
	}
	id, _ := m["id"].(string)
	if id == "" {
		id = r.tempID(role)
	}
	kind, _ := m["type"].(string)

	entry := Entry{
		Role:      role,
		Text:      text,
		ID:        id,
		Key:       r.newKey(),
		Partial:   kind == "partial",
		Timestamp: r.water + timestampEpsilon,
	}

	defer r.finish()
	if n := len(r.entries); n > 0 && r.entries[n-1].Partial && r.entries[n-1].Role == role {
		entry.Key = r.entries[n-1].Key
		r.entries[n-1] = entry
		return
	}
	r.entries = append(r.entries, entry)
}

// finish restores the log invariants after any mutation: ascending timestamp
// order (stable, so ties keep insertion order) and at most transcriptCap
// entries, oldest evicted.
func (r *reconciler) finish() {
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].Timestamp < r.entries[j].Timestamp
	})
	if len(r.entries) > transcriptCap {
		r.entries = r.entries[len(r.entries)-transcriptCap:]
	}
}
