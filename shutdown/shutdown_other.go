//go:build !windows

// Package shutdown registers the OS signals that end a dashboard session.
// Windows has no SIGTERM, so the signal set differs per platform.
package shutdown

import (
	"os"
	"os/signal"
	"syscall"
)

func Notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}
