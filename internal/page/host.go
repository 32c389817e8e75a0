package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"tools.zach/dev/badgecord/internal/presence"
)

// ///////////////////////////////////////////////
// Host
// ///////////////////////////////////////////////

// Host binds one widget to each non-inert page and saves pages as widgets
// change them.
type Host struct {
	log *slog.Logger

	mu      sync.Mutex
	entries []*entry
}

type entry struct {
	page   *Page
	widget *presence.Widget
	// wrote records a file write made by the change hook since the last reset.
	wrote atomic.Bool
}

// Summary counts what a render pass did.
type Summary struct {
	Pages   int
	Inert   int
	Written int
	Failed  int
}

// NewHost loads every path and binds a widget to each page that carries a
// badge and card. base supplies the shared widget options; MetaUserID and
// OnChange are set per page. Unreadable pages are an error.
func NewHost(paths []string, base presence.Options, log *slog.Logger) (*Host, Summary, error) {
	if log == nil {
		log = slog.Default()
	}
	h := &Host{log: log}
	var sum Summary
	for _, path := range paths {
		p, err := Load(path)
		if err != nil {
			return nil, sum, err
		}
		sum.Pages++
		s := p.Surfaces()
		if !s.Bound() {
			sum.Inert++
			log.Debug("page has no presence badge", "path", path)
			continue
		}
		e := &entry{page: p}
		e.widget = presence.New(s, h.widgetOptions(e, base))
		h.entries = append(h.entries, e)
	}
	return h, sum, nil
}

// widgetOptions specializes base for e's page.
func (h *Host) widgetOptions(e *entry, base presence.Options) presence.Options {
	p := e.page
	opts := base
	opts.MetaUserID = p.MetaUserID()
	lg := base.Logger
	if lg == nil {
		lg = h.log
	}
	opts.Logger = lg.With("page", p.Path)
	opts.OnChange = func() {
		if wrote, _ := h.save(p); wrote {
			e.wrote.Store(true)
		}
	}
	return opts
}

// save writes p and logs the outcome.
func (h *Host) save(p *Page) (bool, error) {
	wrote, err := p.Save()
	if err != nil {
		h.log.Warn("failed to save page", "path", p.Path, "error", err)
		return false, err
	}
	if wrote {
		h.log.Info("page updated", "path", p.Path)
	}
	return wrote, nil
}

// Widgets returns the bound widgets in page order.
func (h *Host) Widgets() []*presence.Widget {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*presence.Widget, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.widget
	}
	return out
}

// RenderOnce performs one fetch per page concurrently, then saves each page
// that changed. Failed fetches still render their error text. The returned
// error joins every save failure.
func (h *Host) RenderOnce(ctx context.Context) (Summary, error) {
	h.mu.Lock()
	entries := append([]*entry(nil), h.entries...)
	h.mu.Unlock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		sum     Summary
		saveErr []error
	)
	for _, e := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.wrote.Store(false)
			res := e.widget.RunOnce(ctx)
			// The change hook already saved; Save here only retries a
			// failed write or flushes edits made without a render.
			wrote, err := e.page.Save()
			wrote = wrote || e.wrote.Load()

			mu.Lock()
			defer mu.Unlock()
			if res.Outcome != presence.OK {
				sum.Failed++
			}
			if err != nil {
				saveErr = append(saveErr, err)
			} else if wrote {
				sum.Written++
			}
		}()
	}
	wg.Wait()
	return sum, errors.Join(saveErr...)
}

// Run starts every widget under ctx and blocks until ctx is done. Widgets
// stop through their context hook; a final save flushes pending writes.
func (h *Host) Run(ctx context.Context) error {
	widgets := h.Widgets()
	if len(widgets) == 0 {
		return fmt.Errorf("no pages with a presence badge")
	}
	for _, w := range widgets {
		w.Start(ctx)
	}
	<-ctx.Done()

	h.mu.Lock()
	entries := append([]*entry(nil), h.entries...)
	h.mu.Unlock()
	var errs []error
	for _, e := range entries {
		e.widget.Stop()
		if _, err := h.save(e.page); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reconfigure restarts every widget under ctx with base applied, keeping
// each page's identity and save hook.
func (h *Host) Reconfigure(ctx context.Context, base presence.Options) {
	h.mu.Lock()
	entries := append([]*entry(nil), h.entries...)
	h.mu.Unlock()
	for _, e := range entries {
		e.widget.Reconfigure(ctx, h.widgetOptions(e, base))
	}
}
