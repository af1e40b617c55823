package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stillcap/stillcap/internal/capture"
	"github.com/stillcap/stillcap/internal/logger"
	"github.com/stillcap/stillcap/internal/xconn"
	"github.com/stillcap/stillcap/internal/xwin"
)

// ErrInvalidState marks an operation against a session that has moved
// past the state the operation needs: reads on a discarded session,
// window surfaces delivered after finalization. It is never swallowed.
var ErrInvalidState = errors.New("snapshot session in invalid state")

// State is where a session sits in its lifecycle.
type State int

const (
	// StateIdle is the resting state with no capture in flight.
	StateIdle State = iota

	// StateCapturing covers the window from session start until the
	// last window surface is delivered or abandoned.
	StateCapturing

	// StateComplete means the snapshot is published and immutable.
	StateComplete

	// StateDiscarded means the session was ended and its surfaces
	// are no longer served.
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateComplete:
		return "complete"
	case StateDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// DesktopSource freezes the full desktop with the cursor blended in.
type DesktopSource interface {
	Capture(cursor *capture.Cursor) (*capture.Surface, xconn.Rect, error)
}

// WindowSource captures one window's pure content.
type WindowSource interface {
	Capture(info xwin.WindowInfo, cursor *capture.Cursor) (*capture.Surface, capture.Tier, error)
}

// WindowLister enumerates candidate windows in stacking order.
type WindowLister interface {
	Enumerate() ([]xwin.WindowInfo, error)
	CurrentDesktop() (int, bool)
}

// CursorSource fetches the pointer image at session start.
type CursorSource interface {
	CaptureCursor() (*capture.Cursor, error)
}

// Sources are the capture dependencies of one session. Cursor may be
// nil; the others are required.
type Sources struct {
	Desktop DesktopSource
	Windows WindowSource
	Lister  WindowLister
	Cursor  CursorSource
}

// Defaults for Options left at their zero value.
const (
	DefaultWorkers        = 4
	DefaultWindowTimeout  = 2 * time.Second
	DefaultSessionTimeout = 5 * time.Second
)

// Options tune a session. MinWindowSize of zero disables the size
// filter.
type Options struct {
	MinWindowSize  int
	IncludeCursor  bool
	Workers        int
	WindowTimeout  time.Duration
	SessionTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.WindowTimeout <= 0 {
		o.WindowTimeout = DefaultWindowTimeout
	}
	if o.SessionTimeout <= 0 {
		o.SessionTimeout = DefaultSessionTimeout
	}
	return o
}

// Session drives one snapshot from capture to discard. The snapshot
// under assembly is guarded by mu; no display round-trip ever happens
// with mu held. Completion is published by closing done after the
// result pointer is written, so readers that have observed done need
// no lock at all.
type Session struct {
	sources Sources
	opts    Options

	mu    sync.Mutex
	state State
	snap  *Snapshot

	result *Snapshot
	err    error
	done   chan struct{}

	cancel   context.CancelFunc
	watchdog *time.Timer
	ended    atomic.Bool
	endOnce  sync.Once
}

// Begin freezes a new session. The desktop surface is captured
// synchronously before Begin returns: it is the temporal origin of the
// whole snapshot and its failure aborts the session. Window captures
// run concurrently afterwards; reads block until they settle.
func Begin(ctx context.Context, sources Sources, opts Options) (*Session, error) {
	if sources.Desktop == nil || sources.Windows == nil || sources.Lister == nil {
		return nil, errors.New("snapshot: desktop, window and lister sources are required")
	}
	opts = opts.withDefaults()
	log := logger.WithComponent("snapshot")

	var cur *capture.Cursor
	if opts.IncludeCursor && sources.Cursor != nil {
		c, err := sources.Cursor.CaptureCursor()
		if err != nil {
			log.Debug().Err(err).Msg("Continuing without a cursor")
		} else {
			cur = c
		}
	}

	var filtered []xwin.WindowInfo
	windows, err := sources.Lister.Enumerate()
	if err != nil {
		log.Warn().Err(err).Msg("Window enumeration failed, snapshot covers the desktop only")
	} else {
		desk, known := sources.Lister.CurrentDesktop()
		filtered = xwin.FilterForCapture(windows, xwin.FilterOptions{
			MinSize:      opts.MinWindowSize,
			Desktop:      desk,
			DesktopKnown: known,
		})
	}

	surface, bounds, err := sources.Desktop.Capture(cur)
	if err != nil {
		return nil, fmt.Errorf("failed to freeze desktop: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		sources: sources,
		opts:    opts,
		state:   StateCapturing,
		snap: &Snapshot{
			Desktop:       surface,
			DesktopBounds: bounds,
			Stacking:      filtered,
			Windows:       make(map[xwin.Handle]*WindowCapture, len(filtered)),
			TakenAt:       time.Now(),
		},
		done:   make(chan struct{}),
		cancel: cancel,
	}
	s.watchdog = time.AfterFunc(opts.SessionTimeout, func() {
		log.Warn().
			Dur("ceiling", opts.SessionTimeout).
			Msg("Session hit its hard ceiling, serving what landed")
		s.finalize(true)
	})

	log.Debug().
		Int("windows", len(filtered)).
		Bool("cursor", cur != nil).
		Int("width", bounds.Width).
		Int("height", bounds.Height).
		Msg("Session started")

	go s.captureWindows(ctx, filtered, cur)
	return s, nil
}

func (s *Session) captureWindows(ctx context.Context, windows []xwin.WindowInfo, cur *capture.Cursor) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.opts.Workers)

loop:
	for _, info := range windows {
		select {
		case <-ctx.Done():
			break loop
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(info xwin.WindowInfo) {
			defer wg.Done()
			defer func() { <-sem }()
			s.captureOne(ctx, info, cur)
		}(info)
	}
	wg.Wait()
	s.finalize(ctx.Err() != nil)
}

// captureOne runs a single window capture and waits on it no longer
// than the per-window timeout. A capture that overruns is abandoned in
// its goroutine; the result channel is buffered so the straggler can
// finish and be collected without anyone listening.
func (s *Session) captureOne(ctx context.Context, info xwin.WindowInfo, cur *capture.Cursor) {
	log := logger.WithComponent("snapshot")

	type result struct {
		surface *capture.Surface
		tier    capture.Tier
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		surface, tier, err := s.sources.Windows.Capture(info, cur)
		ch <- result{surface, tier, err}
	}()

	timer := time.NewTimer(s.opts.WindowTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			log.Debug().
				Err(r.err).
				Uint32("window", info.Handle.ID()).
				Str("title", info.Title).
				Msg("Window capture failed, the desktop surface covers it")
			return
		}
		if err := s.deliver(info, r.surface, r.tier); err != nil {
			log.Warn().
				Err(err).
				Uint32("window", info.Handle.ID()).
				Msg("Window surface arrived after finalization and was rejected")
			return
		}
		log.Debug().
			Uint32("window", info.Handle.ID()).
			Str("tier", r.tier.String()).
			Msg("Window surface delivered")
	case <-timer.C:
		log.Warn().
			Uint32("window", info.Handle.ID()).
			Str("title", info.Title).
			Dur("timeout", s.opts.WindowTimeout).
			Msg("Window capture timed out, abandoning it")
	case <-ctx.Done():
	}
}

// deliver files one window surface into the snapshot under assembly.
// Surfaces arriving after the session left Capturing are refused.
func (s *Session) deliver(info xwin.WindowInfo, surface *capture.Surface, tier capture.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCapturing {
		return fmt.Errorf("%w: snapshot is %s", ErrInvalidState, s.state)
	}
	s.snap.Windows[info.Handle] = &WindowCapture{Info: info, Surface: surface, Tier: tier}
	return nil
}

// finalize publishes the snapshot exactly once. forced marks a result
// cut short by the watchdog or by cancellation.
func (s *Session) finalize(forced bool) {
	s.mu.Lock()
	if s.state != StateCapturing {
		s.mu.Unlock()
		return
	}
	s.state = StateComplete
	s.snap.Partial = forced
	s.result = s.snap
	captured, total := len(s.snap.Windows), len(s.snap.Stacking)
	s.mu.Unlock()

	s.watchdog.Stop()
	s.cancel()
	close(s.done)

	log := logger.WithComponent("snapshot")
	if forced {
		log.Warn().
			Int("captured", captured).
			Int("windows", total).
			Msg("Snapshot finalized early, results are partial")
	} else {
		log.Debug().
			Int("captured", captured).
			Int("windows", total).
			Msg("Snapshot complete")
	}
}

// End discards the session. It is safe to call any number of times,
// from any goroutine, and never blocks on captures still in flight.
func (s *Session) End() {
	s.endOnce.Do(func() {
		s.ended.Store(true)
		s.cancel()
		s.watchdog.Stop()

		s.mu.Lock()
		wasCapturing := s.state == StateCapturing
		s.state = StateDiscarded
		s.mu.Unlock()

		if wasCapturing {
			s.err = fmt.Errorf("%w: session ended during capture", ErrInvalidState)
			close(s.done)
		}
		logger.WithComponent("snapshot").Debug().Msg("Session ended")
	})
}

// Snapshot blocks until the session completes and returns the frozen
// result. The context bounds the wait only; capture keeps running.
func (s *Session) Snapshot(ctx context.Context) (*Snapshot, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
	}
	if s.result == nil {
		return nil, s.err
	}
	if s.ended.Load() {
		return nil, fmt.Errorf("%w: session ended", ErrInvalidState)
	}
	return s.result, nil
}

// Desktop returns the frozen full-desktop surface.
func (s *Session) Desktop(ctx context.Context) (*capture.Surface, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Desktop, nil
}

// Area crops the frozen desktop at absolute screen coordinates.
func (s *Session) Area(ctx context.Context, r xconn.Rect) (*capture.Surface, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Area(r)
}

// WindowAt serves the topmost frozen window under the point.
func (s *Session) WindowAt(ctx context.Context, x, y int) (*capture.Surface, *xwin.WindowInfo, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	return snap.WindowAt(x, y)
}

// State reports where the session is in its lifecycle.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}
