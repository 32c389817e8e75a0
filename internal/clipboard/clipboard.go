// Package clipboard writes text to the system clipboard, falling back to an
// OSC 52 terminal escape when no system clipboard tool is available.
package clipboard

import (
	"errors"
	"fmt"
	"io"

	"github.com/atotto/clipboard"
	"github.com/muesli/termenv"
)

// ErrUnavailable is returned when neither the system clipboard nor a
// terminal fallback is configured.
var ErrUnavailable = errors.New("clipboard unavailable")

// Clipboard copies text with a two-step strategy: the system clipboard
// first, then an OSC 52 escape written to the terminal.
type Clipboard struct {
	// system writes to the OS clipboard.
	system func(string) error
	// term receives the OSC 52 sequence; nil disables the fallback.
	term *termenv.Output
}

// New returns a Clipboard whose fallback writes to term (usually stdout).
// A nil term disables the fallback.
func New(term io.Writer) *Clipboard {
	c := &Clipboard{}
	if !clipboard.Unsupported {
		c.system = clipboard.WriteAll
	}
	if term != nil {
		c.term = termenv.NewOutput(term)
	}
	return c
}

// WriteText copies text. The error is non-nil only when every strategy failed.
func (c *Clipboard) WriteText(text string) error {
	var sysErr error
	if c.system != nil {
		if sysErr = c.system(text); sysErr == nil {
			return nil
		}
	}
	if c.term == nil {
		if sysErr != nil {
			return fmt.Errorf("system clipboard: %w", sysErr)
		}
		return ErrUnavailable
	}
	c.term.Copy(text)
	return nil
}
