package clipboard

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestWriteText_SystemFirst(t *testing.T) {
	var term bytes.Buffer
	var got string
	c := New(&term)
	c.system = func(s string) error { got = s; return nil }

	if err := c.WriteText("https://discord.com/users/123"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if got != "https://discord.com/users/123" {
		t.Errorf("system clipboard got %q", got)
	}
	if term.Len() != 0 {
		t.Errorf("terminal fallback used although system clipboard worked: %q", term.String())
	}
}

func TestWriteText_FallsBackToOSC52(t *testing.T) {
	var term bytes.Buffer
	c := New(&term)
	c.system = func(string) error { return errors.New("xclip missing") }

	if err := c.WriteText("hello"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := term.String()
	if !strings.Contains(out, "\x1b]52;") {
		t.Fatalf("no OSC 52 sequence in %q", out)
	}
	if !strings.Contains(out, base64.StdEncoding.EncodeToString([]byte("hello"))) {
		t.Errorf("OSC 52 payload missing encoded text: %q", out)
	}
}

func TestWriteText_NoFallback(t *testing.T) {
	c := New(nil)
	c.system = func(string) error { return errors.New("xclip missing") }
	if err := c.WriteText("x"); err == nil {
		t.Fatal("WriteText succeeded with no working strategy")
	}

	c.system = nil
	if err := c.WriteText("x"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}
