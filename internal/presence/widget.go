// Package presence keeps a Discord presence badge in sync with Lanyard.
//
// A [Widget] owns one poll loop, the last decoded snapshot, and the hover
// card timer. Results flow from the [Poller] through the classifier into
// [Render]; unchanged snapshots are suppressed before anything is written.
package presence

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"tools.zach/dev/badgecord/internal/dom"
	"tools.zach/dev/badgecord/internal/lanyard"
	"tools.zach/dev/badgecord/internal/logger"
)

// Interaction defaults.
const (
	DefaultHideDelay   = 100 * time.Millisecond
	DefaultProfileBase = "https://discord.com"
	DefaultAvatarSize  = 128
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// State is the widget lifecycle state.
type State int

const (
	// Uninitialized means the badge or card was missing. The widget never polls.
	Uninitialized State = iota
	// Ready means surfaces are bound and polling has not started.
	Ready
	// Running means the poll loop is active.
	Running
	// Stopped means the poll loop was torn down. Start may run it again.
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is a user interaction with the badge or card.
type Event int

const (
	EventBadgeEnter Event = iota
	EventBadgeLeave
	EventCardEnter
	EventCardLeave
	EventFocus
	EventBlur
	EventEscape
	EventDoubleActivate
)

// Clipboard receives the copied profile link.
type Clipboard interface {
	WriteText(text string) error
}

// Options configures a [Widget]. Zero values take the package defaults.
type Options struct {
	// Fetcher performs the presence request. Required for polling.
	Fetcher Fetcher
	// MetaUserID is the page-level identity, checked before the badge's
	// data-user-id attribute.
	MetaUserID string
	// FallbackUserID is used when neither the page nor the badge names a user.
	FallbackUserID string

	Interval  time.Duration
	Timeout   time.Duration
	HideDelay time.Duration

	AvatarSize int
	IdleText   string
	// ProfileBase prefixes the copied "/users/{id}" link.
	ProfileBase string

	// Clipboard receives the profile link on double activation. Nil disables copying.
	Clipboard Clipboard
	// Logger defaults to [slog.Default].
	Logger *slog.Logger
	// OnChange is called after any surface write, outside the widget lock.
	OnChange func()
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.HideDelay <= 0 {
		o.HideDelay = DefaultHideDelay
	}
	if o.AvatarSize <= 0 {
		o.AvatarSize = DefaultAvatarSize
	}
	if o.IdleText == "" {
		o.IdleText = DefaultIdleText
	}
	if o.ProfileBase == "" {
		o.ProfileBase = DefaultProfileBase
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// ///////////////////////////////////////////////
// Widget
// ///////////////////////////////////////////////

// Widget binds one set of surfaces to one poll loop.
type Widget struct {
	// id correlates this instance's log lines.
	id       string
	surfaces Surfaces
	log      *slog.Logger

	mu     sync.Mutex
	opts   Options
	poller *Poller
	state  State
	// detach unregisters the teardown hook on the current run's context.
	detach func() bool

	// targetID is the identity resolved at Start.
	targetID string
	// cache is the last applied snapshot; nil until the first success.
	cache *lanyard.Presence
	// display is the state last derived from cache.
	display DisplayState
	// last is the most recently applied result.
	last Result
	// seq numbers results across every poller this widget creates.
	seq atomic.Uint64
	// lastSeq is the Seq of the most recently applied result.
	lastSeq uint64
	// errShown is true while the name and activity surfaces hold an error pair.
	errShown bool

	cardVisible bool
	hideTimer   *time.Timer
	// hideGen invalidates hide callbacks scheduled before the latest cancel.
	hideGen uint64
}

// New binds a widget to s. Without both Badge and Card the widget is
// [Uninitialized] and inert.
func New(s Surfaces, opts Options) *Widget {
	opts = opts.withDefaults()
	w := &Widget{
		id:       uuid.NewString(),
		surfaces: s,
		opts:     opts,
	}
	w.log = opts.Logger.With("widget", w.id)

	if !s.Bound() {
		w.log.Debug("badge or card missing, presence disabled")
		return w
	}
	if _, ok := s.Badge.Attr("tabindex"); !ok {
		s.Badge.SetAttr("tabindex", "0")
	}
	w.poller = w.newPoller()
	w.state = Ready
	return w
}

// ID returns the instance id used in log lines.
func (w *Widget) ID() string { return w.id }

// State returns the lifecycle state.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// TargetID returns the identity resolved by the last Start.
func (w *Widget) TargetID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.targetID
}

// Cached returns the last applied snapshot, or nil.
func (w *Widget) Cached() *lanyard.Presence {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cache
}

// Display returns the state last derived from a successful snapshot.
func (w *Widget) Display() DisplayState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.display
}

// LastResult returns the most recently applied result.
func (w *Widget) LastResult() Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// CardVisible reports whether the detail card is shown.
func (w *Widget) CardVisible() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cardVisible
}

// ///////////////////////////////////////////////
// Lifecycle
// ///////////////////////////////////////////////

// resolveTarget picks the page identity, then the badge's data-user-id, then
// the configured fallback.
func (w *Widget) resolveTarget() string {
	if id := strings.TrimSpace(w.opts.MetaUserID); id != "" {
		return id
	}
	if id, ok := w.surfaces.Badge.Attr("data-user-id"); ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	return strings.TrimSpace(w.opts.FallbackUserID)
}

// Start resolves the target identity and starts polling. Cancelling ctx stops
// the widget. Start on an [Uninitialized] widget does nothing; Start on a
// running widget restarts the loop.
func (w *Widget) Start(ctx context.Context) {
	w.mu.Lock()
	if w.state == Uninitialized {
		w.mu.Unlock()
		return
	}
	if w.detach != nil {
		w.detach()
	}
	w.targetID = w.resolveTarget()
	w.state = Running
	target, poller := w.targetID, w.poller
	w.detach = context.AfterFunc(ctx, w.Stop)
	w.mu.Unlock()

	w.log.Info("presence started", "user_id", target)
	poller.Start(ctx, target)
}

// Stop tears down the poll loop and any pending hide. It is idempotent.
func (w *Widget) Stop() {
	w.mu.Lock()
	if w.state != Running {
		w.mu.Unlock()
		return
	}
	w.state = Stopped
	if w.detach != nil {
		w.detach()
		w.detach = nil
	}
	w.cancelHideLocked()
	poller := w.poller
	w.mu.Unlock()

	// The handler takes w.mu, so the loop is drained without holding it.
	poller.Stop()
	w.log.Info("presence stopped")
}

// Reconfigure stops the widget, applies opts over the bound surfaces, and
// starts again under ctx. Nil collaborators in opts keep their current values.
func (w *Widget) Reconfigure(ctx context.Context, opts Options) {
	w.Stop()

	w.mu.Lock()
	if w.state == Uninitialized {
		w.mu.Unlock()
		return
	}
	if opts.Fetcher == nil {
		opts.Fetcher = w.opts.Fetcher
	}
	if opts.Clipboard == nil {
		opts.Clipboard = w.opts.Clipboard
	}
	if opts.Logger == nil {
		opts.Logger = w.opts.Logger
	}
	if opts.OnChange == nil {
		opts.OnChange = w.opts.OnChange
	}
	w.opts = opts.withDefaults()
	// The counter carries over, so an in-flight Refresh on the old poller
	// cannot outrank the new poller's results.
	w.poller = w.newPoller()
	w.mu.Unlock()

	w.Start(ctx)
}

// newPoller builds a poller from the current options that numbers its results
// from the widget's counter.
func (w *Widget) newPoller() *Poller {
	p := NewPoller(w.opts.Fetcher, w.opts.Interval, w.opts.Timeout, w.apply)
	p.seq = &w.seq
	return p
}

// Refresh performs one immediate attempt outside the loop schedule and
// applies its result. It is a no-op unless the widget is running.
func (w *Widget) Refresh(ctx context.Context) Result {
	w.mu.Lock()
	if w.state != Running {
		w.mu.Unlock()
		return Result{}
	}
	poller, target := w.poller, w.targetID
	w.mu.Unlock()

	res := poller.Poll(ctx, target)
	w.apply(res)
	return res
}

// RunOnce resolves the target, performs a single attempt, and applies it
// without starting the loop. The widget is left [Stopped]. RunOnce on an
// [Uninitialized] or running widget returns the zero Result.
func (w *Widget) RunOnce(ctx context.Context) Result {
	w.mu.Lock()
	if w.state == Uninitialized || w.state == Running {
		w.mu.Unlock()
		return Result{}
	}
	w.targetID = w.resolveTarget()
	w.state = Running
	poller, target := w.poller, w.targetID
	w.mu.Unlock()

	res := poller.Poll(ctx, target)
	w.apply(res)

	w.mu.Lock()
	w.state = Stopped
	w.mu.Unlock()
	return res
}

// ///////////////////////////////////////////////
// Result Handling
// ///////////////////////////////////////////////

// apply renders one poll result. Results older than the last applied one are
// dropped. An OK snapshot equal to the cache is suppressed unless an error
// pair is on screen.
func (w *Widget) apply(res Result) {
	w.mu.Lock()
	if w.state != Running {
		w.mu.Unlock()
		return
	}
	if res.Seq != 0 && res.Seq <= w.lastSeq {
		w.mu.Unlock()
		w.log.Debug("dropping stale result", "seq", res.Seq, "last_seq", w.lastSeq)
		return
	}
	w.lastSeq = res.Seq
	w.last = res

	var writes int
	if res.Outcome == OK {
		if !w.errShown && w.cache != nil && cmp.Equal(w.cache, res.Presence) {
			w.mu.Unlock()
			logger.Trace(w.log, "presence unchanged", "seq", res.Seq)
			return
		}
		w.cache = res.Presence
		w.display = Derive(w.cache, DeriveOptions{AvatarSize: w.opts.AvatarSize, IdleText: w.opts.IdleText})
		w.errShown = false
		writes = Render(w.surfaces, w.display)
	} else {
		writes = RenderError(w.surfaces, res)
		w.errShown = true
	}
	onChange := w.opts.OnChange
	w.mu.Unlock()

	w.logResult(res)
	if writes > 0 && onChange != nil {
		onChange()
	}
}

func (w *Widget) logResult(res Result) {
	switch res.Outcome {
	case OK:
		w.log.Debug("presence updated", "seq", res.Seq, "status", res.Presence.Status)
	case NetworkError:
		w.log.Warn("presence fetch failed", "seq", res.Seq, "error", res.Err)
	case RemoteError:
		w.log.Warn("presence api error", "seq", res.Seq, "status", res.Status, "error", res.Err)
	case ConfigMissing:
		w.log.Debug("no user id configured", "seq", res.Seq)
	default:
		w.log.Info("presence unavailable", "seq", res.Seq, "outcome", res.Outcome.String(), "error", res.Err)
	}
}

// ///////////////////////////////////////////////
// Interaction
// ///////////////////////////////////////////////

// Dispatch handles one interaction. Events are ignored unless the widget is
// [Ready] or [Running].
func (w *Widget) Dispatch(ev Event) {
	w.mu.Lock()
	if w.state != Ready && w.state != Running {
		w.mu.Unlock()
		return
	}

	if ev == EventDoubleActivate {
		w.mu.Unlock()
		w.copyProfileLink()
		return
	}

	changed := false
	switch ev {
	case EventBadgeEnter, EventFocus:
		w.cancelHideLocked()
		changed = w.setCardLocked(true)
	case EventCardEnter:
		w.cancelHideLocked()
	case EventBadgeLeave, EventCardLeave, EventBlur:
		w.scheduleHideLocked()
	case EventEscape:
		w.cancelHideLocked()
		changed = w.setCardLocked(false)
		if b, ok := w.surfaces.Badge.(dom.Blurrer); ok {
			b.Blur()
		}
	}
	onChange := w.opts.OnChange
	w.mu.Unlock()

	if changed && onChange != nil {
		onChange()
	}
}

// setCardLocked toggles the card's visible class and reports whether it changed.
func (w *Widget) setCardLocked(visible bool) bool {
	w.cardVisible = visible
	if visible {
		return dom.AddClass(w.surfaces.Card, "visible")
	}
	return dom.RemoveClass(w.surfaces.Card, "visible")
}

func (w *Widget) cancelHideLocked() {
	w.hideGen++
	if w.hideTimer != nil {
		w.hideTimer.Stop()
		w.hideTimer = nil
	}
}

// scheduleHideLocked replaces any pending hide with one due after HideDelay.
func (w *Widget) scheduleHideLocked() {
	w.cancelHideLocked()
	gen := w.hideGen
	w.hideTimer = time.AfterFunc(w.opts.HideDelay, func() {
		w.mu.Lock()
		if gen != w.hideGen {
			w.mu.Unlock()
			return
		}
		w.hideTimer = nil
		changed := w.setCardLocked(false)
		onChange := w.opts.OnChange
		w.mu.Unlock()
		if changed && onChange != nil {
			onChange()
		}
	})
}

// ProfileLink returns the profile URL for the cached identity, or "" when
// nothing has been fetched yet.
func (w *Widget) ProfileLink() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cache == nil || w.cache.User.ID == "" {
		return ""
	}
	return strings.TrimRight(w.opts.ProfileBase, "/") + "/users/" + w.cache.User.ID
}

// copyProfileLink writes the profile link to the clipboard. Failures are
// logged and swallowed.
func (w *Widget) copyProfileLink() {
	link := w.ProfileLink()
	if link == "" {
		w.log.Debug("copy skipped, no cached identity")
		return
	}
	w.mu.Lock()
	cb := w.opts.Clipboard
	w.mu.Unlock()
	if cb == nil {
		return
	}
	if err := cb.WriteText(link); err != nil {
		w.log.Warn("copy profile link failed", "error", err)
		return
	}
	w.log.Info("profile link copied", "url", link)
}
