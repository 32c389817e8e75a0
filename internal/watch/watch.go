// Package watch reports changes to a fixed set of files, such as the config
// file and the pages being rendered.
//
// Each file's parent directory is watched with fsnotify rather than the file
// itself, so editors that save by rename-and-replace keep producing events.
// When fsnotify is unavailable or fails, the watcher falls back to stat-based
// polling.
package watch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the stat interval used in polling mode.
const DefaultPollInterval = 2 * time.Second

// Options configures [New].
type Options struct {
	// PollInterval overrides [DefaultPollInterval].
	PollInterval time.Duration
	// ForcePoll skips fsnotify entirely.
	ForcePoll bool
	// Logger receives fallback notices. Defaults to slog.Default().
	Logger *slog.Logger
}

// fileStamp identifies one version of a file for polling.
type fileStamp struct {
	mod  time.Time
	size int64
	ok   bool
}

// Watcher monitors files for writes, creates, renames, and removals.
type Watcher struct {
	// files is the set of cleaned absolute paths being watched.
	files map[string]bool
	// events delivers a signal when at least one file changed since the last
	// [Watcher.Drain]. Buffered to 1 so bursts coalesce.
	events chan struct{}
	// done is closed by [Watcher.Close].
	done chan struct{}
	// once makes [Watcher.Close] idempotent.
	once sync.Once

	mu sync.Mutex
	// pending collects changed paths until drained.
	pending map[string]bool
	// fsw is the fsnotify watcher; nil when polling.
	fsw *fsnotify.Watcher

	polling      atomic.Bool
	pollInterval time.Duration
	log          *slog.Logger
}

// New starts watching paths. Paths need not exist yet, but their parent
// directories must for fsnotify to be used.
func New(paths []string, opts Options) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("watch: no paths")
	}
	w := &Watcher{
		files:        make(map[string]bool, len(paths)),
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pending:      make(map[string]bool),
		pollInterval: opts.PollInterval,
		log:          opts.Logger,
	}
	if w.pollInterval <= 0 {
		w.pollInterval = DefaultPollInterval
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %s: %w", p, err)
		}
		w.files[abs] = true
	}

	if opts.ForcePoll {
		w.startPolling()
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Info("fsnotify unavailable, falling back to polling", "error", err)
		w.startPolling()
		return w, nil
	}
	for _, dir := range w.dirs() {
		if err := fsw.Add(dir); err != nil {
			w.log.Info("cannot watch directory, falling back to polling", "path", dir, "error", err)
			fsw.Close()
			w.startPolling()
			return w, nil
		}
	}
	w.fsw = fsw
	go w.watch(fsw)
	return w, nil
}

// dirs returns the distinct parent directories of the watched files.
func (w *Watcher) dirs() []string {
	var out []string
	for f := range w.files {
		d := filepath.Dir(f)
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out
}

// Polling reports whether the watcher is using polling instead of fsnotify.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Events returns a channel that receives a signal when watched files change.
// Call [Watcher.Drain] after each signal to learn which ones.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Drain returns the paths changed since the previous call, sorted, and
// clears the pending set.
func (w *Watcher) Drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.pending))
	for p := range w.pending {
		out = append(out, p)
	}
	clear(w.pending)
	slices.Sort(out)
	return out
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		fsw := w.fsw
		w.fsw = nil
		w.mu.Unlock()
		if fsw != nil {
			if closeErr := fsw.Close(); closeErr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", closeErr)
			}
		}
	})
	return err
}

// watch forwards fsnotify events for watched files. On an fsnotify error it
// closes the native watcher and switches to polling.
func (w *Watcher) watch(fsw *fsnotify.Watcher) {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if w.files[filepath.Clean(event.Name)] {
				w.notify(filepath.Clean(event.Name))
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.Info("fsnotify error, switching to polling", "error", err)
			w.mu.Lock()
			w.fsw = nil
			w.mu.Unlock()
			fsw.Close()
			w.startPolling()
			return
		}
	}
}

// startPolling takes the baseline before returning, so a change made right
// after New is compared against the pre-change state.
func (w *Watcher) startPolling() {
	w.polling.Store(true)
	last := make(map[string]fileStamp, len(w.files))
	for f := range w.files {
		last[f] = stat(f)
	}
	go w.poll(last)
}

// poll stats every file each interval and reports those whose modification
// time, size, or existence changed since last.
func (w *Watcher) poll(last map[string]fileStamp) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			for f, prev := range last {
				cur := stat(f)
				if cur != prev {
					last[f] = cur
					w.notify(f)
				}
			}
		}
	}
}

func stat(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{mod: info.ModTime(), size: info.Size(), ok: true}
}

// notify records path and signals the events channel. If a signal is
// already pending the send is skipped.
func (w *Watcher) notify(path string) {
	w.mu.Lock()
	w.pending[path] = true
	w.mu.Unlock()
	select {
	case w.events <- struct{}{}:
	default:
	}
}
