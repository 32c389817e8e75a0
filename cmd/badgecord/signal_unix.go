// Unix/Darwin shutdown signals: SIGINT (Ctrl+C) and SIGTERM, the signal
// process managers send to request a graceful stop.

//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ///////////////////////////////////////////////
// Signal Handling
// ///////////////////////////////////////////////

// signalContext returns a context cancelled on SIGINT or SIGTERM. The stop
// function unregisters the handler.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
