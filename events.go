package main

import "agenthud/engine"

// Sink abstracts the display layer so the Bubble Tea TUI and the headless
// log-only mode receive the same dashboard updates.
type Sink interface {
	// Refresh delivers a consistent snapshot of every engine view.
	Refresh(v engine.View)
	// Status shows a transient status line (connection progress, errors).
	Status(text string)
	// Mic reflects the local microphone state.
	Mic(on bool)
	// UpdateAvailable announces a newer released version.
	UpdateAvailable(version string)
}

// headlessSink drops display updates; domain logging happens in the run
// loop's progress tracker, so nothing is lost without a terminal.
type headlessSink struct{}

func (headlessSink) Refresh(engine.View)    {}
func (headlessSink) Status(string)          {}
func (headlessSink) Mic(bool)               {}
func (headlessSink) UpdateAvailable(string) {}
