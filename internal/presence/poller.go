package presence

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tools.zach/dev/badgecord/internal/lanyard"
)

// PlaceholderUserID is the unconfigured identity value shipped in templates.
const PlaceholderUserID = "YOUR_DISCORD_USER_ID"

// Default poll timing.
const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 7 * time.Second
)

// ///////////////////////////////////////////////
// Result
// ///////////////////////////////////////////////

// Outcome classifies one fetch attempt.
type Outcome int

const (
	OK Outcome = iota
	ConfigMissing
	NotFound
	RemoteError
	MalformedPayload
	NetworkError
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case ConfigMissing:
		return "config_missing"
	case NotFound:
		return "not_found"
	case RemoteError:
		return "remote_error"
	case MalformedPayload:
		return "malformed_payload"
	case NetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of one attempt. Presence is set only for [OK];
// Status only for [RemoteError]; Err carries the cause of any failure.
type Result struct {
	Outcome  Outcome
	Status   int
	Presence *lanyard.Presence
	Err      error
	// Seq orders attempts from one poller; later attempts have larger values.
	Seq uint64
}

// Fetcher performs one presence request.
type Fetcher interface {
	FetchUser(ctx context.Context, id string) (*lanyard.Presence, error)
}

// IsConfigured reports whether id names a real user.
func IsConfigured(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && id != PlaceholderUserID
}

// classify maps a fetch return to a Result.
func classify(p *lanyard.Presence, err error) Result {
	if err == nil {
		return Result{Outcome: OK, Presence: p}
	}
	var se *lanyard.StatusError
	switch {
	case errors.Is(err, lanyard.ErrNotFound):
		return Result{Outcome: NotFound, Err: err}
	case errors.As(err, &se):
		return Result{Outcome: RemoteError, Status: se.Code, Err: err}
	case errors.Is(err, lanyard.ErrMalformedPayload):
		return Result{Outcome: MalformedPayload, Err: err}
	default:
		// Timeouts, cancellation and transport failures alike.
		return Result{Outcome: NetworkError, Err: err}
	}
}

// ///////////////////////////////////////////////
// Poller
// ///////////////////////////////////////////////

// Poller fetches one user's presence on a fixed interval and hands every
// result to its handler. At most one loop runs per Poller.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	timeout  time.Duration
	handle   func(Result)

	// seq numbers results. A widget shares one counter across the pollers it
	// replaces so ordering survives Reconfigure.
	seq *atomic.Uint64

	// mu guards cancel and done.
	mu sync.Mutex
	// cancel stops the running loop; nil when idle.
	cancel context.CancelFunc
	// done is closed when the running loop exits.
	done chan struct{}
}

// NewPoller creates a Poller. Non-positive durations use the defaults.
func NewPoller(f Fetcher, interval, timeout time.Duration, handle func(Result)) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if handle == nil {
		handle = func(Result) {}
	}
	return &Poller{fetcher: f, interval: interval, timeout: timeout, handle: handle, seq: new(atomic.Uint64)}
}

// Start fetches immediately and then every interval until [Poller.Stop] or
// until ctx is cancelled. A running loop is stopped first.
func (p *Poller) Start(ctx context.Context, targetID string) {
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	prevCancel, prevDone := p.cancel, p.done
	p.cancel, p.done = cancel, done
	p.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}
	go p.run(loopCtx, targetID, done)
}

func (p *Poller) run(ctx context.Context, targetID string, done chan struct{}) {
	defer close(done)
	// A loop ended by its parent context clears itself unless a newer Start
	// or a Stop already replaced it.
	defer func() {
		p.mu.Lock()
		if p.done == done {
			p.cancel()
			p.cancel, p.done = nil, nil
		}
		p.mu.Unlock()
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		res := p.Poll(ctx, targetID)
		// A result that raced with Stop is dropped.
		if ctx.Err() != nil {
			return
		}
		p.handle(res)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop cancels the loop and any in-flight request, then waits for the loop to
// exit. It is idempotent and safe before Start. Stop must not be called from
// the result handler.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Poll performs a single attempt bounded by the poller's timeout. An
// unconfigured targetID reports [ConfigMissing] without touching the network.
func (p *Poller) Poll(ctx context.Context, targetID string) Result {
	seq := p.seq.Add(1)
	if !IsConfigured(targetID) {
		return Result{Outcome: ConfigMissing, Seq: seq}
	}
	if p.fetcher == nil {
		return Result{Outcome: NetworkError, Err: errors.New("no fetcher configured"), Seq: seq}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	pr, err := p.fetcher.FetchUser(attemptCtx, strings.TrimSpace(targetID))
	res := classify(pr, err)
	res.Seq = seq
	return res
}
