// Windows shutdown signals. SIGTERM does not exist here; the Go runtime maps
// CTRL_BREAK_EVENT and console close onto os.Interrupt.

//go:build windows

package main

import (
	"context"
	"os"
	"os/signal"
)

// ///////////////////////////////////////////////
// Signal Handling
// ///////////////////////////////////////////////

// signalContext returns a context cancelled on os.Interrupt. The stop
// function unregisters the handler.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}
