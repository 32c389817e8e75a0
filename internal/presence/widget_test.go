package presence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tools.zach/dev/badgecord/internal/dom"
	"tools.zach/dev/badgecord/internal/lanyard"
)

// ///////////////////////////////////////////////
// Test Helpers
// ///////////////////////////////////////////////

type fakeClipboard struct {
	mu     sync.Mutex
	writes []string
	err    error
}

func (c *fakeClipboard) WriteText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, text)
	return c.err
}

func (c *fakeClipboard) got() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// newRunning builds a bound widget in the Running state without starting the
// loop, so tests drive results through apply directly.
func newRunning(t *testing.T, opts Options) (*Widget, *testSurfaces) {
	t.Helper()
	ts := newTestSurfaces()
	if opts.Fetcher == nil {
		opts.Fetcher = &fakeFetcher{}
	}
	opts.Logger = quietLogger
	w := New(ts.Surfaces(), opts)
	w.mu.Lock()
	w.state = Running
	w.mu.Unlock()
	return w, ts
}

func okResult(seq uint64, p *lanyard.Presence) Result {
	return Result{Outcome: OK, Presence: p, Seq: seq}
}

func samplePresence() *lanyard.Presence {
	return &lanyard.Presence{
		User:       lanyard.User{ID: "123", Username: "phineas", GlobalName: "Phineas", Avatar: "abc"},
		Status:     lanyard.StatusOnline,
		Activities: []lanyard.Activity{{Type: lanyard.ActivityGame, Name: "Factorio"}},
	}
}

// ///////////////////////////////////////////////
// Binding
// ///////////////////////////////////////////////

func TestNew_UninitializedWithoutAnchors(t *testing.T) {
	f := &fakeFetcher{}
	w := New(Surfaces{Badge: dom.NewNode()}, Options{Fetcher: f, Logger: quietLogger})
	if w.State() != Uninitialized {
		t.Fatalf("State = %s, want uninitialized", w.State())
	}
	w.Start(context.Background())
	w.Dispatch(EventBadgeEnter)
	w.Stop()
	if w.State() != Uninitialized {
		t.Errorf("State = %s after Start, want uninitialized", w.State())
	}
	time.Sleep(20 * time.Millisecond)
	if n := f.calls.Load(); n != 0 {
		t.Errorf("fetcher called %d times on an inert widget", n)
	}
}

func TestNew_SetsTabindexOnlyWhenMissing(t *testing.T) {
	ts := newTestSurfaces()
	New(ts.Surfaces(), Options{Logger: quietLogger})
	if v, _ := ts.badge.Attr("tabindex"); v != "0" {
		t.Errorf("tabindex = %q, want 0", v)
	}

	badge := dom.NewNode("tabindex", "3")
	New(Surfaces{Badge: badge, Card: dom.NewNode()}, Options{Logger: quietLogger})
	if v, _ := badge.Attr("tabindex"); v != "3" {
		t.Errorf("tabindex = %q, want existing 3 kept", v)
	}
}

func TestWidget_IDIsUnique(t *testing.T) {
	a := New(Surfaces{}, Options{Logger: quietLogger})
	b := New(Surfaces{}, Options{Logger: quietLogger})
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("ids %q and %q should be distinct and non-empty", a.ID(), b.ID())
	}
}

// ///////////////////////////////////////////////
// Lifecycle
// ///////////////////////////////////////////////

func TestStart_ResolvesIdentityInOrder(t *testing.T) {
	tests := []struct {
		name      string
		meta      string
		dataAttr  string
		fallback  string
		wantID    string
		wantFetch bool
	}{
		{"meta first", "111", "222", "333", "111", true},
		{"data attribute", "", "222", "333", "222", true},
		{"config fallback", "", "", "333", "333", true},
		{"placeholder", PlaceholderUserID, "222", "", PlaceholderUserID, false},
		{"nothing", "", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestSurfaces()
			if tt.dataAttr != "" {
				ts.badge.SetAttr("data-user-id", tt.dataAttr)
			}
			f := &fakeFetcher{}
			w := New(ts.Surfaces(), Options{
				Fetcher:        f,
				MetaUserID:     tt.meta,
				FallbackUserID: tt.fallback,
				Interval:       time.Hour,
				Logger:         quietLogger,
			})
			w.Start(context.Background())
			defer w.Stop()

			if got := w.TargetID(); got != tt.wantID {
				t.Errorf("TargetID = %q, want %q", got, tt.wantID)
			}
			waitFor(t, "first result", func() bool { return w.LastResult().Seq != 0 })
			if tt.wantFetch {
				if n := f.calls.Load(); n != 1 {
					t.Errorf("fetcher called %d times, want 1", n)
				}
				return
			}
			if n := f.calls.Load(); n != 0 {
				t.Errorf("fetcher called %d times, want 0", n)
			}
			if ts.name.Text() != "No user ID set" || ts.activity.Text() != "Add a Discord ID to enable presence" {
				t.Errorf("rendered (%q, %q)", ts.name.Text(), ts.activity.Text())
			}
		})
	}
}

func TestStop_IsIdempotentAndRestartable(t *testing.T) {
	ts := newTestSurfaces()
	f := &fakeFetcher{}
	w := New(ts.Surfaces(), Options{Fetcher: f, FallbackUserID: "1", Interval: time.Hour, Logger: quietLogger})

	w.Stop() // before Start
	w.Start(context.Background())
	waitFor(t, "first fetch", func() bool { return f.calls.Load() == 1 })
	w.Stop()
	w.Stop()
	if w.State() != Stopped {
		t.Fatalf("State = %s, want stopped", w.State())
	}

	w.Start(context.Background())
	defer w.Stop()
	if w.State() != Running {
		t.Fatalf("State = %s after restart, want running", w.State())
	}
	waitFor(t, "fetch after restart", func() bool { return f.calls.Load() == 2 })
}

func TestStart_ContextCancelStops(t *testing.T) {
	ts := newTestSurfaces()
	w := New(ts.Surfaces(), Options{Fetcher: &fakeFetcher{}, FallbackUserID: "1", Interval: time.Hour, Logger: quietLogger})
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()
	waitFor(t, "stopped state", func() bool { return w.State() == Stopped })
}

func TestReconfigure_SwitchesIdentity(t *testing.T) {
	ts := newTestSurfaces()
	f := &fakeFetcher{}
	w := New(ts.Surfaces(), Options{Fetcher: f, FallbackUserID: "1", Interval: time.Hour, Logger: quietLogger})
	w.Start(context.Background())
	waitFor(t, "first fetch", func() bool { return f.calls.Load() == 1 })

	w.Reconfigure(context.Background(), Options{FallbackUserID: "2", Interval: time.Hour})
	defer w.Stop()
	waitFor(t, "fetch for new identity", func() bool { return f.calls.Load() == 2 })
	if got := w.TargetID(); got != "2" {
		t.Errorf("TargetID = %q, want 2", got)
	}
	waitFor(t, "cache for new identity", func() bool {
		c := w.Cached()
		return c != nil && c.User.ID == "2"
	})
}

func TestReconfigure_InFlightRefreshCannotOutrankNewPoller(t *testing.T) {
	release := make(chan struct{})
	blocked := make(chan struct{}, 1)
	var gate atomic.Bool
	f := &fakeFetcher{fn: func(ctx context.Context, id string) (*lanyard.Presence, error) {
		if id == "1" && gate.Load() {
			blocked <- struct{}{}
			<-release
		}
		return &lanyard.Presence{User: lanyard.User{ID: id, GlobalName: "user " + id}, Status: lanyard.StatusOnline}, nil
	}}
	ts := newTestSurfaces()
	w := New(ts.Surfaces(), Options{Fetcher: f, FallbackUserID: "1", Interval: time.Hour, Logger: quietLogger})
	w.Start(context.Background())
	defer w.Stop()
	waitFor(t, "first fetch applied", func() bool { return w.Cached() != nil })

	gate.Store(true)
	refreshed := make(chan Result, 1)
	go func() { refreshed <- w.Refresh(context.Background()) }()
	<-blocked

	w.Reconfigure(context.Background(), Options{FallbackUserID: "2", Interval: time.Hour})
	waitFor(t, "new identity applied", func() bool {
		c := w.Cached()
		return c != nil && c.User.ID == "2"
	})

	close(release)
	<-refreshed
	if c := w.Cached(); c.User.ID != "2" {
		t.Errorf("cache = user %s, refresh from before Reconfigure overwrote it", c.User.ID)
	}
	if got := ts.name.Text(); got != "user 2" {
		t.Errorf("name = %q, want user 2", got)
	}
}

// ///////////////////////////////////////////////
// Change Suppression
// ///////////////////////////////////////////////

func TestApply_IdenticalSnapshotRendersNothing(t *testing.T) {
	var changes atomic.Int32
	w, ts := newRunning(t, Options{OnChange: func() { changes.Add(1) }})

	w.apply(okResult(1, samplePresence()))
	if ts.name.Text() != "Phineas" || ts.activity.Text() != "Playing Factorio" {
		t.Fatalf("rendered (%q, %q)", ts.name.Text(), ts.activity.Text())
	}
	writes, first := ts.writes(), changes.Load()

	// A fresh decode of the same payload is a different pointer with equal content.
	w.apply(okResult(2, samplePresence()))
	if got := ts.writes(); got != writes {
		t.Errorf("writes went from %d to %d on identical snapshot", writes, got)
	}
	if got := changes.Load(); got != first {
		t.Errorf("OnChange fired %d extra times on identical snapshot", got-first)
	}

	changed := samplePresence()
	changed.Status = lanyard.StatusDND
	w.apply(okResult(3, changed))
	if v, _ := ts.status.Attr("class"); v != "discord-status-icon dnd" {
		t.Errorf("status class = %q after change", v)
	}
	if w.Cached() != changed {
		t.Error("cache not replaced by changed snapshot")
	}
}

func TestApply_SuccessAfterErrorIsRendered(t *testing.T) {
	w, ts := newRunning(t, Options{})
	w.apply(okResult(1, samplePresence()))
	cached := w.Cached()

	w.apply(Result{Outcome: NetworkError, Err: errors.New("offline"), Seq: 2})
	if ts.name.Text() != "Connection error" || ts.activity.Text() != "See console for details" {
		t.Fatalf("rendered (%q, %q)", ts.name.Text(), ts.activity.Text())
	}
	if w.Cached() != cached {
		t.Error("error result touched the cache")
	}

	w.apply(okResult(3, samplePresence()))
	if ts.name.Text() != "Phineas" || ts.activity.Text() != "Playing Factorio" {
		t.Errorf("success after error rendered (%q, %q)", ts.name.Text(), ts.activity.Text())
	}
}

func TestApply_ErrorScenarios(t *testing.T) {
	tests := []struct {
		res          Result
		name, detail string
	}{
		{Result{Outcome: NotFound}, "User not found", "Check Discord user ID"},
		{Result{Outcome: MalformedPayload}, "Data error", "Unexpected payload"},
		{Result{Outcome: RemoteError, Status: 500}, "API error", "Status: 500"},
		{Result{Outcome: NetworkError, Err: context.DeadlineExceeded}, "Connection error", "See console for details"},
	}
	for _, tt := range tests {
		t.Run(tt.res.Outcome.String(), func(t *testing.T) {
			w, ts := newRunning(t, Options{})
			tt.res.Seq = 1
			w.apply(tt.res)
			if ts.name.Text() != tt.name || ts.activity.Text() != tt.detail {
				t.Errorf("rendered (%q, %q), want (%q, %q)", ts.name.Text(), ts.activity.Text(), tt.name, tt.detail)
			}
			if w.Cached() != nil {
				t.Error("error outcome populated the cache")
			}
		})
	}
}

func TestApply_DropsStaleResults(t *testing.T) {
	w, ts := newRunning(t, Options{})
	newer := samplePresence()
	newer.Activities[0].Name = "Celeste"

	w.apply(okResult(5, newer))
	w.apply(okResult(4, samplePresence()))

	if ts.activity.Text() != "Playing Celeste" {
		t.Errorf("activity = %q, stale result overwrote newer", ts.activity.Text())
	}
	if w.Cached() != newer {
		t.Error("stale result replaced the cache")
	}
}

func TestRunOnce_RendersWithoutLoop(t *testing.T) {
	f := &fakeFetcher{}
	ts := newTestSurfaces()
	w := New(ts.Surfaces(), Options{Fetcher: f, FallbackUserID: "42", Logger: quietLogger})

	res := w.RunOnce(context.Background())
	if res.Outcome != OK {
		t.Fatalf("Outcome = %v, want OK", res.Outcome)
	}
	// The fake user has no discriminator, so the legacy form ends in "#".
	if got := ts.name.Text(); got != "u#" {
		t.Errorf("name = %q, want u#", got)
	}
	if w.State() != Stopped {
		t.Errorf("State = %v, want Stopped", w.State())
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}

	// A second run refetches and leaves no loop behind.
	w.RunOnce(context.Background())
	time.Sleep(20 * time.Millisecond)
	if got := f.calls.Load(); got != 2 {
		t.Errorf("fetches after second run = %d, want 2", got)
	}
}

func TestApply_IgnoredWhenNotRunning(t *testing.T) {
	ts := newTestSurfaces()
	w := New(ts.Surfaces(), Options{Logger: quietLogger})
	w.apply(okResult(1, samplePresence()))
	if ts.writes() != 0 || w.Cached() != nil {
		t.Error("result applied to a widget that was never started")
	}
}

// ///////////////////////////////////////////////
// Hover Card
// ///////////////////////////////////////////////

func TestHover_ShowAndDelayedHide(t *testing.T) {
	w, ts := newRunning(t, Options{HideDelay: 30 * time.Millisecond})

	w.Dispatch(EventBadgeEnter)
	if !dom.HasClass(ts.card, "visible") || !w.CardVisible() {
		t.Fatal("card not visible after badge enter")
	}

	w.Dispatch(EventBadgeLeave)
	if !dom.HasClass(ts.card, "visible") {
		t.Fatal("card hidden immediately on leave, want delayed hide")
	}
	waitFor(t, "delayed hide", func() bool { return !dom.HasClass(ts.card, "visible") })
	if w.CardVisible() {
		t.Error("CardVisible() = true after hide")
	}
}

func TestHover_ReenterCancelsHide(t *testing.T) {
	w, ts := newRunning(t, Options{HideDelay: 50 * time.Millisecond})

	w.Dispatch(EventBadgeEnter)
	w.Dispatch(EventBadgeLeave)
	w.Dispatch(EventCardEnter)
	time.Sleep(120 * time.Millisecond)
	if !dom.HasClass(ts.card, "visible") {
		t.Fatal("entering the card did not cancel the pending hide")
	}

	w.Dispatch(EventCardLeave)
	w.Dispatch(EventBadgeEnter)
	time.Sleep(120 * time.Millisecond)
	if !dom.HasClass(ts.card, "visible") {
		t.Fatal("re-entering the badge did not cancel the pending hide")
	}
}

func TestHover_FocusShowsCard(t *testing.T) {
	w, ts := newRunning(t, Options{})
	w.Dispatch(EventFocus)
	if !dom.HasClass(ts.card, "visible") {
		t.Error("focus did not show the card")
	}
}

func TestEscape_HidesImmediately(t *testing.T) {
	w, ts := newRunning(t, Options{HideDelay: 30 * time.Millisecond})
	ts.badge.Focus()

	w.Dispatch(EventBadgeEnter)
	w.Dispatch(EventBadgeLeave)
	w.Dispatch(EventEscape)
	if dom.HasClass(ts.card, "visible") {
		t.Fatal("card still visible after escape")
	}
	if ts.badge.Focused() {
		t.Error("badge still focused after escape")
	}

	// A hide scheduled before escape must not fire over a later show.
	w.Dispatch(EventBadgeEnter)
	time.Sleep(80 * time.Millisecond)
	if !dom.HasClass(ts.card, "visible") {
		t.Error("stale hide fired after escape")
	}
}

// ///////////////////////////////////////////////
// Copy Link
// ///////////////////////////////////////////////

func TestDoubleActivate_CopiesProfileLink(t *testing.T) {
	cb := &fakeClipboard{}
	w, _ := newRunning(t, Options{Clipboard: cb})

	// Nothing cached yet: no write.
	w.Dispatch(EventDoubleActivate)
	if got := cb.got(); len(got) != 0 {
		t.Fatalf("clipboard written before any snapshot: %v", got)
	}

	w.apply(okResult(1, samplePresence()))
	w.Dispatch(EventDoubleActivate)
	got := cb.got()
	if len(got) != 1 || got[0] != "https://discord.com/users/123" {
		t.Errorf("clipboard = %v, want [https://discord.com/users/123]", got)
	}
}

func TestDoubleActivate_CustomProfileBase(t *testing.T) {
	cb := &fakeClipboard{}
	w, _ := newRunning(t, Options{Clipboard: cb, ProfileBase: "https://discord.example/"})
	w.apply(okResult(1, samplePresence()))
	if got := w.ProfileLink(); got != "https://discord.example/users/123" {
		t.Errorf("ProfileLink = %q", got)
	}
}

func TestDoubleActivate_ClipboardFailureSwallowed(t *testing.T) {
	cb := &fakeClipboard{err: errors.New("no clipboard")}
	w, ts := newRunning(t, Options{Clipboard: cb})
	w.apply(okResult(1, samplePresence()))
	before := ts.writes()

	w.Dispatch(EventDoubleActivate)
	if len(cb.got()) != 1 {
		t.Fatalf("clipboard attempts = %d, want exactly 1", len(cb.got()))
	}
	if ts.writes() != before {
		t.Error("clipboard failure changed the rendered surfaces")
	}
}
